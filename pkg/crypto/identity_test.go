package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"os"
	"path/filepath"
	"testing"
	"time"

	"software.sslmate.com/src/go-pkcs12"
)

func TestValidateSelfSigned(t *testing.T) {
	key, cert, err := SimpleSelfSignedRSAKeypair("test", 365)
	if err != nil {
		t.Fatal(err)
	}
	id := &SigningIdentity{Certificate: cert, Key: key}
	if err := id.Validate(); err != nil {
		t.Errorf("self-signed identity did not validate: %s", err)
	}
}

func TestValidateMismatchedKey(t *testing.T) {
	_, cert, err := SimpleSelfSignedRSAKeypair("test", 365)
	if err != nil {
		t.Fatal(err)
	}
	otherKey, _, err := SimpleSelfSignedRSAKeypair("other", 365)
	if err != nil {
		t.Fatal(err)
	}

	id := &SigningIdentity{Certificate: cert, Key: otherKey}
	err = id.Validate()
	if err == nil {
		t.Fatal("expected error for mismatched key")
	}
	if !IsInvalidKey(err) {
		t.Errorf("have %v, want InvalidKey", err)
	}
}

func TestValidateChain(t *testing.T) {
	caKey, caCert := testCA(t)
	leafKey, leafCert := testLeaf(t, caKey, caCert)

	id := &SigningIdentity{
		Certificate:   leafCert,
		Intermediates: []*x509.Certificate{caCert},
		Key:           leafKey,
	}
	if err := id.Validate(); err != nil {
		t.Errorf("full chain did not validate: %s", err)
	}

	// dropping the issuer must surface as an incomplete chain
	incomplete := &SigningIdentity{Certificate: leafCert, Key: leafKey}
	err := incomplete.Validate()
	if err == nil {
		t.Fatal("expected error for missing issuer certificate")
	}
	if !IsChainIncomplete(err) {
		t.Errorf("have %v, want ChainIncomplete", err)
	}
}

func TestLoadSigningIdentityP12(t *testing.T) {
	caKey, caCert := testCA(t)
	leafKey, leafCert := testLeaf(t, caKey, caCert)

	const password = "secret"
	bundle, err := pkcs12.Modern.Encode(leafKey, leafCert, []*x509.Certificate{caCert}, password)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "identity.p12")
	if err := os.WriteFile(path, bundle, 0600); err != nil {
		t.Fatal(err)
	}

	id, err := LoadSigningIdentityP12(path, password)
	if err != nil {
		t.Fatal(err)
	}
	if have, want := id.Certificate.Subject.CommonName, leafCert.Subject.CommonName; have != want {
		t.Errorf("have %q, want %q", have, want)
	}
	if have, want := len(id.Intermediates), 1; have != want {
		t.Fatalf("have %d chain certs, want %d", have, want)
	}
	if err := id.Validate(); err != nil {
		t.Errorf("p12 identity did not validate: %s", err)
	}

	if _, err := LoadSigningIdentityP12(path, "wrong"); err == nil {
		t.Fatal("expected error for wrong bundle password")
	}
}

func testCA(t *testing.T) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	serial, err := GenerateRandomCertificateSerialNumber()
	if err != nil {
		t.Fatal(err)
	}
	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "test CA"},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	return key, cert
}

func testLeaf(t *testing.T, caKey *rsa.PrivateKey, caCert *x509.Certificate) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	serial, err := GenerateRandomCertificateSerialNumber()
	if err != nil {
		t.Fatal(err)
	}
	template := x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "test leaf"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, caCert, &key.PublicKey, caKey)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	return key, cert
}
