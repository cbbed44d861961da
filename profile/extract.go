package profile

import (
	"fmt"

	"github.com/pkg/errors"
)

// ExtractionError reports a payload section whose DNS settings were
// present but could not be read. A profile with no DNS settings at all
// is not an error; it simply contributes no domains.
type ExtractionError struct {
	Section int
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("unreadable DNS settings in payload section %d: %v", e.Section, e.Err)
}

func IsExtractionError(err error) bool {
	_, ok := errors.Cause(err).(*ExtractionError)
	return ok
}

// ExtractDomains collects the supplemental match domains from every DNS
// settings section of the document. Sources legitimately split their
// domain list across multiple sections, so all of them contribute.
func ExtractDomains(doc *Document) ([]string, error) {
	var domains []string
	for i, section := range doc.PayloadContent {
		if section.err != nil {
			return nil, &ExtractionError{Section: i, Err: section.err}
		}
		if section.DNSSettings == nil {
			continue
		}
		domains = append(domains, section.DNSSettings.SupplementalMatchDomains...)
	}
	return domains, nil
}
