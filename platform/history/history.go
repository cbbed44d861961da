// Package history keeps the metadata record of every pipeline run.
package history

import (
	"context"
	"encoding/json"
	"time"

	"github.com/RzMY/IOS-AntiRevoke-DNS-Rules/pipeline"
)

// Record is the build metadata for one pipeline run.
type Record struct {
	Timestamp      time.Time         `json:"timestamp"`
	Report         pipeline.Report   `json:"report"`
	GeneratedFiles map[string]string `json:"generated_files,omitempty"`
}

func (r *Record) Key() string {
	return r.Timestamp.UTC().Format(time.RFC3339Nano)
}

func MarshalRecord(r *Record) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

func UnmarshalRecord(data []byte, r *Record) error {
	return json.Unmarshal(data, r)
}

type Store interface {
	Save(ctx context.Context, r *Record) error
	List(ctx context.Context) ([]Record, error)
}

type Service interface {
	ListBuilds(ctx context.Context) ([]Record, error)
}

type HistoryService struct {
	store Store
}

func New(store Store) *HistoryService {
	return &HistoryService{store: store}
}
