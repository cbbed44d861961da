package rules

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// A File pairs a rule renderer with the artifact name it is written to.
type File struct {
	Tool   string
	Name   string
	Render func([]string, Header) string
}

// Files lists every rule artifact the pipeline publishes.
var Files = []File{
	{Tool: "Quantumult X", Name: "RevokeGuard_QuantumultX.txt", Render: QuantumultX},
	{Tool: "Surge", Name: "RevokeGuard_Surge.txt", Render: Surge},
	{Tool: "Loon", Name: "RevokeGuard_Loon.txt", Render: Loon},
	{Tool: "Shadowrocket", Name: "RevokeGuard_Shadowrocket.txt", Render: Shadowrocket},
	{Tool: "Hosts", Name: "RevokeGuard_hosts.txt", Render: Hosts},
	{Tool: "Domain List", Name: "domains.txt", Render: DomainList},
}

// WriteAll renders every rule format into dir and returns the written
// paths keyed by tool name.
func WriteAll(dir string, domains []string, h Header) (map[string]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating rules output directory %s", dir)
	}
	written := make(map[string]string)
	for _, f := range Files {
		path := filepath.Join(dir, f.Name)
		if err := os.WriteFile(path, []byte(f.Render(domains, h)+"\n"), 0644); err != nil {
			return nil, errors.Wrapf(err, "writing %s rules", f.Tool)
		}
		written[f.Tool] = path
	}
	return written, nil
}
