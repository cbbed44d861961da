// Package profile reads scraped configuration profiles and builds the
// merged anti-revoke profile emitted by the pipeline.
package profile

// Mobileconfig is the byte representation of an Apple configuration
// profile, either a bare plist or a CMS signed envelope.
type Mobileconfig []byte

const (
	payloadTypeConfiguration = "Configuration"
	payloadTypeDNSSettings   = "com.apple.dnsSettings.managed"
)

// Document is a parsed configuration profile from one of the scraped
// sources. Only the fields the extractor cares about are decoded; the
// rest of the source profile is ignored and never propagated into the
// rebuilt profile.
type Document struct {
	PayloadDisplayName string
	PayloadIdentifier  string
	PayloadUUID        string
	PayloadContent     []Section
}

// Section is one entry of a source profile's payload array. Payload
// sections other than DNS settings decode with a nil DNSSettings.
type Section struct {
	PayloadType string
	DNSSettings *DNSSettings

	// set when the section carried a DNSSettings dict that could not
	// be read into the expected shape
	err error
}

// UnmarshalPlist decodes the section in two passes so that a single
// unreadable section does not fail the whole document.
func (s *Section) UnmarshalPlist(f func(interface{}) error) error {
	var head struct {
		PayloadType string
	}
	if err := f(&head); err != nil {
		return err
	}
	s.PayloadType = head.PayloadType

	var body struct {
		DNSSettings *DNSSettings
	}
	if err := f(&body); err != nil {
		s.err = err
		return nil
	}
	s.DNSSettings = body.DNSSettings
	return nil
}

// DNSSettings is the payload content of a com.apple.dnsSettings.managed
// section.
type DNSSettings struct {
	DNSProtocol              string   `plist:",omitempty"`
	ServerAddresses          []string `plist:",omitempty"`
	SupplementalMatchDomains []string `plist:",omitempty"`
}

// Profile is the rebuilt configuration profile. It is always constructed
// from a minimal skeleton by Builder.Build, never by mutating a Document.
type Profile struct {
	PayloadContent           []DNSPayload
	PayloadDescription       string
	PayloadDisplayName       string
	PayloadIdentifier        string
	PayloadOrganization      string
	PayloadRemovalDisallowed bool
	PayloadType              string
	PayloadUUID              string
	PayloadVersion           int
	ConsentText              map[string]string `plist:",omitempty"`
}

// DNSPayload is the single DNS settings section of a rebuilt profile.
type DNSPayload struct {
	PayloadDescription string `plist:",omitempty"`
	PayloadDisplayName string
	PayloadIdentifier  string
	PayloadType        string
	PayloadUUID        string
	PayloadVersion     int
	DNSSettings        DNSSettings
}
