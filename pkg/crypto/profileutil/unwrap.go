package profileutil

import (
	"fmt"

	"github.com/pkg/errors"
	"go.mozilla.org/pkcs7"
)

type EnvelopeReason int

const (
	// Malformed means the bytes are not a parseable CMS structure.
	Malformed EnvelopeReason = iota

	// NoSignature means the structure parsed but carries no recoverable
	// signed content.
	NoSignature
)

type EnvelopeError struct {
	Reason EnvelopeReason
	Err    error
}

func (e *EnvelopeError) Error() string {
	switch e.Reason {
	case Malformed:
		return fmt.Sprintf("malformed CMS envelope: %v", e.Err)
	case NoSignature:
		return "CMS envelope carries no signed content"
	default:
		return fmt.Sprintf("CMS envelope error: %v", e.Err)
	}
}

func IsMalformed(err error) bool {
	ee, ok := errors.Cause(err).(*EnvelopeError)
	return ok && ee.Reason == Malformed
}

func IsNoSignature(err error) bool {
	ee, ok := errors.Cause(err).(*EnvelopeError)
	return ok && ee.Reason == NoSignature
}

// Unwrap recovers the document embedded in a CMS signed-data envelope.
//
// The signer's trust chain is deliberately not validated: scraped
// third-party profiles are signed by certificates the local store has
// no reason to trust, and only content recovery matters here. The
// recovered bytes are untrusted input.
func Unwrap(envelope []byte) ([]byte, error) {
	p7, err := pkcs7.Parse(envelope)
	if err != nil {
		return nil, &EnvelopeError{Reason: Malformed, Err: err}
	}
	if len(p7.Content) == 0 {
		return nil, &EnvelopeError{Reason: NoSignature}
	}
	return p7.Content, nil
}
