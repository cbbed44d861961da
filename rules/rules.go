// Package rules renders the merged domain set into the filter rule
// formats consumed by the common proxy tools.
package rules

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	projectName = "iOS-AntiRevoke-DNS-Rules"
	licenseName = "MIT License"

	hostsBlockIP = "0.0.0.0"
)

// Header is the comment block stamped on every rendered rule file.
type Header struct {
	Author      string
	Updated     time.Time
	DomainCount int
}

func headerLines(prefix string, h Header) []string {
	return []string{
		fmt.Sprintf("%s Project: %s", prefix, projectName),
		fmt.Sprintf("%s Author: %s", prefix, h.Author),
		fmt.Sprintf("%s Updated: %s", prefix, h.Updated.UTC().Format("2006-01-02 15:04:05 UTC")),
		fmt.Sprintf("%s Domain Count: %d", prefix, h.DomainCount),
		fmt.Sprintf("%s License: %s", prefix, licenseName),
	}
}

// cleaned dedupes, trims and sorts the domains the way every renderer
// consumes them.
func cleaned(domains []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range domains {
		d = strings.TrimSpace(d)
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func render(h Header, formatComment string, domains []string, entry func(string) string) string {
	lines := headerLines("#", h)
	if formatComment != "" {
		lines = append(lines, formatComment)
	}
	lines = append(lines, "")
	for _, d := range cleaned(domains) {
		lines = append(lines, entry(d))
	}
	return strings.Join(lines, "\n")
}

// QuantumultX renders host,domain,action entries.
func QuantumultX(domains []string, h Header) string {
	return render(h, "# Format: host, domain, action", domains, func(d string) string {
		return fmt.Sprintf("host, %s, reject", d)
	})
}

// Surge renders DOMAIN,domain,action entries.
func Surge(domains []string, h Header) string {
	return render(h, "# Format: DOMAIN,domain,action", domains, func(d string) string {
		return fmt.Sprintf("DOMAIN,%s,REJECT", d)
	})
}

// Loon uses the Surge rule syntax.
func Loon(domains []string, h Header) string {
	return Surge(domains, h)
}

// Shadowrocket uses the Surge rule syntax.
func Shadowrocket(domains []string, h Header) string {
	return Surge(domains, h)
}

// Hosts renders a hosts file pointing every domain at the block IP.
func Hosts(domains []string, h Header) string {
	return render(h, "# Format: IP domain", domains, func(d string) string {
		return fmt.Sprintf("%s %s", hostsBlockIP, d)
	})
}

// DomainList renders the bare merged domain list.
func DomainList(domains []string, h Header) string {
	return render(h, "", domains, func(d string) string {
		return d
	})
}
