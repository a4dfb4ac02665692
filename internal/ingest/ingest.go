package ingest

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// Submitter accepts jobs on behalf of a principal.
type Submitter interface {
	Submit(ctx context.Context, jobType string, payload json.RawMessage, principal string) (uuid.UUID, error)
}

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string
	JobID        string
	JobType      string
	Deduplicated bool
	HashHex      string
	FileExt      string
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}
