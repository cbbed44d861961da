package profile

import (
	"bytes"

	"github.com/groob/plist"
	"github.com/pkg/errors"
)

// FormatError reports a property list that could not be decoded. The
// wrapped error carries the decoder's position information.
type FormatError struct {
	Err error
}

func (e *FormatError) Error() string {
	return "malformed property list: " + e.Err.Error()
}

func IsFormatError(err error) bool {
	_, ok := errors.Cause(err).(*FormatError)
	return ok
}

// Decode parses a profile plist in either the XML or the binary
// exchange form. Scraped sources do not use one form consistently.
func Decode(data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, &FormatError{Err: errors.New("empty input")}
	}
	var doc Document
	if err := plist.Unmarshal(data, &doc); err != nil {
		return nil, &FormatError{Err: err}
	}
	return &doc, nil
}

// Encode serializes the rebuilt profile. The output is always the XML
// form: it is what the CMS signing step consumes and it diffs cleanly
// in version control.
func (p *Profile) Encode() (Mobileconfig, error) {
	buf := new(bytes.Buffer)
	enc := plist.NewEncoder(buf)
	enc.Indent("  ")
	if err := enc.Encode(p); err != nil {
		return nil, errors.Wrap(err, "encode profile plist")
	}
	return buf.Bytes(), nil
}
