package profileutil

import (
	"bytes"
	"testing"

	"go.mozilla.org/pkcs7"

	"github.com/RzMY/IOS-AntiRevoke-DNS-Rules/pkg/crypto"
)

func TestSignUnwrapRoundTrip(t *testing.T) {
	key, cert, err := crypto.SimpleSelfSignedRSAKeypair("test", 365)
	if err != nil {
		t.Fatal(err)
	}
	identity := &crypto.SigningIdentity{Certificate: cert, Key: key}
	document := []byte("<?xml version=\"1.0\"?><plist version=\"1.0\"><dict/></plist>")

	signed, err := Sign(identity, document)
	if err != nil {
		t.Fatal(err)
	}

	recovered, err := Unwrap(signed)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(recovered, document) {
		t.Errorf("have %q, want %q", recovered, document)
	}
}

func TestSignMismatchedKey(t *testing.T) {
	_, cert, err := crypto.SimpleSelfSignedRSAKeypair("test", 365)
	if err != nil {
		t.Fatal(err)
	}
	otherKey, _, err := crypto.SimpleSelfSignedRSAKeypair("other", 365)
	if err != nil {
		t.Fatal(err)
	}

	identity := &crypto.SigningIdentity{Certificate: cert, Key: otherKey}
	signed, err := Sign(identity, []byte("document"))
	if err == nil {
		t.Fatal("expected signing to fail")
	}
	if signed != nil {
		t.Error("a failed signing call must not return an envelope")
	}
	if !crypto.IsInvalidKey(err) {
		t.Errorf("have %v, want InvalidKey", err)
	}
}

func TestUnwrapMalformed(t *testing.T) {
	_, err := Unwrap([]byte("definitely not DER"))
	if err == nil {
		t.Fatal("expected error for malformed envelope")
	}
	if !IsMalformed(err) {
		t.Errorf("have %v, want Malformed", err)
	}
}

func TestUnwrapDetachedSignature(t *testing.T) {
	key, cert, err := crypto.SimpleSelfSignedRSAKeypair("test", 365)
	if err != nil {
		t.Fatal(err)
	}

	sd, err := pkcs7.NewSignedData([]byte("document"))
	if err != nil {
		t.Fatal(err)
	}
	if err := sd.AddSigner(cert, key, pkcs7.SignerInfoConfig{}); err != nil {
		t.Fatal(err)
	}
	sd.Detach()
	sig, err := sd.Finish()
	if err != nil {
		t.Fatal(err)
	}

	_, err = Unwrap(sig)
	if err == nil {
		t.Fatal("expected error for detached signature")
	}
	if !IsNoSignature(err) {
		t.Errorf("have %v, want NoSignature", err)
	}
}
