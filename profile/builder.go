package profile

import (
	crand "crypto/rand"
	"io"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	IdentifierPrefix = "com.revokeGuard"

	DisplayName  = "RevokeGuard Auto-Sync"
	organization = "RevokeGuard"
	description  = "iOS Anti-Revoke & Anti-Blacklist Configuration"
	consentText  = "This profile provides protection against revocation and blacklisting."

	dnsProtocol  = "https"
	dnsServerURL = "https://reject.rzmy.dpdns.org/dns-query"
)

// Builder constructs the rebuilt profile around a merged domain set.
// The zero value builds the stock RevokeGuard profile.
type Builder struct {
	// DisplayName overrides the profile's display name.
	DisplayName string

	// ServerURL overrides the DNS-over-HTTPS resolver address.
	ServerURL string

	// Rand is the source for the profile's payload identifiers.
	// It defaults to crypto/rand; tests inject a fixed stream to get
	// byte-identical output.
	Rand io.Reader
}

func (b *Builder) rand() io.Reader {
	if b.Rand != nil {
		return b.Rand
	}
	return crand.Reader
}

func (b *Builder) newUUID() (string, error) {
	id, err := uuid.NewRandomFromReader(b.rand())
	if err != nil {
		return "", errors.Wrap(err, "generate payload UUID")
	}
	return id.String(), nil
}

// Build assembles a minimal profile skeleton with exactly one DNS
// settings section carrying the merged domains. All four identifiers
// are freshly drawn per build and never reused.
func (b *Builder) Build(domains []string) (*Profile, error) {
	displayName := b.DisplayName
	if displayName == "" {
		displayName = DisplayName
	}
	serverURL := b.ServerURL
	if serverURL == "" {
		serverURL = dnsServerURL
	}

	profileID, err := b.newUUID()
	if err != nil {
		return nil, err
	}
	profileUUID, err := b.newUUID()
	if err != nil {
		return nil, err
	}
	dnsID, err := b.newUUID()
	if err != nil {
		return nil, err
	}
	dnsUUID, err := b.newUUID()
	if err != nil {
		return nil, err
	}

	p := &Profile{
		PayloadVersion:           1,
		PayloadType:              payloadTypeConfiguration,
		PayloadIdentifier:        IdentifierPrefix + "." + profileID,
		PayloadUUID:              profileUUID,
		PayloadDisplayName:       displayName,
		PayloadDescription:       description,
		PayloadOrganization:      organization,
		PayloadRemovalDisallowed: false,
		ConsentText: map[string]string{
			"default": consentText,
		},
		PayloadContent: []DNSPayload{
			{
				PayloadVersion:     1,
				PayloadType:        payloadTypeDNSSettings,
				PayloadIdentifier:  IdentifierPrefix + ".dns." + dnsID,
				PayloadUUID:        dnsUUID,
				PayloadDisplayName: "DNS Settings",
				DNSSettings: DNSSettings{
					DNSProtocol:              dnsProtocol,
					ServerAddresses:          []string{serverURL},
					SupplementalMatchDomains: MergeDomains([][]string{domains}),
				},
			},
		},
	}
	return p, nil
}
