package crypto

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"software.sslmate.com/src/go-pkcs12"
)

// SigningIdentity holds the certificate chain and private key used to
// resign the rebuilt profile. It is passed explicitly to the one call
// that signs and never kept as ambient state.
type SigningIdentity struct {
	// Certificate is the leaf signing certificate.
	Certificate *x509.Certificate

	// Intermediates are the remaining certificates of the chain, in
	// leaf-to-root order. They are embedded in the signature so the
	// device can build trust without fetching anything.
	Intermediates []*x509.Certificate

	Key crypto.PrivateKey
}

type SigningReason int

const (
	// InvalidKey means the private key does not match the signing
	// certificate's public key.
	InvalidKey SigningReason = iota

	// ChainIncomplete means the certificates supplied do not form a
	// chain from the leaf towards a trust anchor.
	ChainIncomplete
)

type SigningError struct {
	Reason SigningReason
	Err    error
}

func (e *SigningError) Error() string {
	switch e.Reason {
	case InvalidKey:
		return fmt.Sprintf("signing key does not match certificate: %v", e.Err)
	case ChainIncomplete:
		return fmt.Sprintf("incomplete signing certificate chain: %v", e.Err)
	default:
		return fmt.Sprintf("signing identity error: %v", e.Err)
	}
}

func IsInvalidKey(err error) bool {
	se, ok := errors.Cause(err).(*SigningError)
	return ok && se.Reason == InvalidKey
}

func IsChainIncomplete(err error) bool {
	se, ok := errors.Cause(err).(*SigningError)
	return ok && se.Reason == ChainIncomplete
}

// Validate checks that the key matches the leaf certificate and that
// the supplied certificates chain up from the leaf.
func (id *SigningIdentity) Validate() error {
	if id.Certificate == nil {
		return &SigningError{Reason: InvalidKey, Err: errors.New("no signing certificate")}
	}
	signer, ok := id.Key.(crypto.Signer)
	if !ok {
		return &SigningError{Reason: InvalidKey, Err: errors.Errorf("unsupported key type %T", id.Key)}
	}
	pub, ok := signer.Public().(interface {
		Equal(crypto.PublicKey) bool
	})
	if !ok || !pub.Equal(id.Certificate.PublicKey) {
		return &SigningError{Reason: InvalidKey, Err: errors.New("public key mismatch")}
	}

	if len(id.Intermediates) == 0 {
		if !selfSigned(id.Certificate) {
			return &SigningError{
				Reason: ChainIncomplete,
				Err:    errors.Errorf("no issuer certificate for %q", id.Certificate.Subject.CommonName),
			}
		}
		return nil
	}

	chain := append([]*x509.Certificate{id.Certificate}, id.Intermediates...)
	for i := 0; i < len(chain)-1; i++ {
		if err := chain[i].CheckSignatureFrom(chain[i+1]); err != nil {
			return &SigningError{
				Reason: ChainIncomplete,
				Err:    errors.Wrapf(err, "certificate %d not issued by certificate %d", i, i+1),
			}
		}
	}
	return nil
}

func selfSigned(cert *x509.Certificate) bool {
	if !bytes.Equal(cert.RawIssuer, cert.RawSubject) {
		return false
	}
	return cert.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature) == nil
}

// LoadSigningIdentity reads a certificate chain and private key from
// disk. Both files accept PEM or DER; the certificate file may contain
// the full chain, leaf first, as in a fullchain.pem.
func LoadSigningIdentity(certPath, keyPath string) (*SigningIdentity, error) {
	certData, err := os.ReadFile(certPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading signing certificate")
	}
	certs, err := ParseCertificates(certData)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing signing certificate %s", certPath)
	}

	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading signing key")
	}
	key, err := ParsePrivateKey(keyData)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing signing key %s", keyPath)
	}

	return &SigningIdentity{
		Certificate:   certs[0],
		Intermediates: certs[1:],
		Key:           key,
	}, nil
}

// LoadSigningIdentityP12 reads a PKCS#12 bundle holding the key, the
// leaf and any chain certificates.
func LoadSigningIdentityP12(path, password string) (*SigningIdentity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading p12 bundle")
	}
	key, cert, caCerts, err := pkcs12.DecodeChain(data, password)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding p12 bundle %s", path)
	}
	return &SigningIdentity{
		Certificate:   cert,
		Intermediates: caCerts,
		Key:           key,
	}, nil
}

// ParseCertificates decodes one or more certificates from PEM or DER.
func ParseCertificates(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}
	if len(certs) > 0 {
		return certs, nil
	}
	certs, err := x509.ParseCertificates(data)
	if err != nil {
		return nil, err
	}
	if len(certs) == 0 {
		return nil, errors.New("no certificates found")
	}
	return certs, nil
}

// ParsePrivateKey decodes an RSA or EC private key from PEM or DER.
func ParsePrivateKey(data []byte) (crypto.PrivateKey, error) {
	der := data
	if block, _ := pem.Decode(data); block != nil {
		if x509.IsEncryptedPEMBlock(block) {
			return nil, errors.New("encrypted private keys are not supported")
		}
		der = block.Bytes
	}
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		switch key := key.(type) {
		case *rsa.PrivateKey, *ecdsa.PrivateKey:
			return key, nil
		default:
			return nil, errors.Errorf("unsupported key type %T", key)
		}
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	return nil, errors.New("no usable private key found")
}
