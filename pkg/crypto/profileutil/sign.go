// Package profileutil wraps and unwraps CMS signed configuration
// profiles.
package profileutil

import (
	"github.com/pkg/errors"
	"go.mozilla.org/pkcs7"

	"github.com/RzMY/IOS-AntiRevoke-DNS-Rules/pkg/crypto"
)

// Sign wraps an unsigned mobileconfig into a CMS signed-data envelope
// in the binary DER form consumed by iOS. The identity's chain
// certificates are embedded so the device can validate trust offline.
func Sign(identity *crypto.SigningIdentity, mobileconfig []byte) ([]byte, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}

	sd, err := pkcs7.NewSignedData(mobileconfig)
	if err != nil {
		return nil, errors.Wrap(err, "create signed data for mobileconfig")
	}

	if err := sd.AddSigner(identity.Certificate, identity.Key, pkcs7.SignerInfoConfig{}); err != nil {
		return nil, errors.Wrap(err, "add crypto signer to mobileconfig signed data")
	}
	for _, cert := range identity.Intermediates {
		sd.AddCertificate(cert)
	}

	signedMobileconfig, err := sd.Finish()
	return signedMobileconfig, errors.Wrap(err, "complete mobileconfig signing")
}
