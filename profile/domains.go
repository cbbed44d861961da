package profile

import (
	"sort"
	"strings"
)

// MergeDomains flattens the per-source domain lists into one canonical
// set: exact duplicates removed, whitespace-only entries dropped, sorted
// lexicographically. Domains are kept exactly as scraped; in particular
// there is no case folding, so a.com and A.com stay distinct entries.
//
// The result depends only on set membership, never on the order of the
// input lists, which keeps the artifact reproducible and diffable.
func MergeDomains(lists [][]string) []string {
	seen := make(map[string]bool)
	merged := make([]string, 0)
	for _, list := range lists {
		for _, domain := range list {
			if strings.TrimSpace(domain) == "" {
				continue
			}
			if seen[domain] {
				continue
			}
			seen[domain] = true
			merged = append(merged, domain)
		}
	}
	sort.Strings(merged)
	return merged
}
