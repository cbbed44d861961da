package pipeline

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// BuildTopic carries an Event after every completed pipeline run.
const BuildTopic = "pipeline.build.completed"

// SourceStatus records how one source fared during a run.
type SourceStatus struct {
	Name        string `json:"name"`
	DomainCount int    `json:"domain_count"`
	Error       string `json:"error,omitempty"`
}

// Report is the build metadata record handed to collaborators. It
// deliberately carries no key material.
type Report struct {
	DomainCount        int            `json:"domain_count"`
	SourceSuccessCount int            `json:"source_success_count"`
	SourceFailureCount int            `json:"source_failure_count"`
	Signed             bool           `json:"signed"`
	Sources            []SourceStatus `json:"sources"`
}

// Event is the message published on BuildTopic.
type Event struct {
	Time   time.Time `json:"time"`
	Report Report    `json:"report"`
}

func MarshalEvent(e *Event) ([]byte, error) {
	data, err := json.Marshal(e)
	return data, errors.Wrap(err, "marshal build event")
}

func UnmarshalEvent(data []byte, e *Event) error {
	return errors.Wrap(json.Unmarshal(data, e), "unmarshal build event")
}
