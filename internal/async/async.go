// Package async runs submitted jobs outside the request that created them.
package async

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Message is the queued unit of work. The job row holds everything else.
type Message struct {
	JobID       uuid.UUID `json:"job_id"`
	SubmittedAt time.Time `json:"submitted_at"`
	TraceID     string    `json:"trace_id,omitempty"`
}

// Executor runs a stored job to a terminal status.
type Executor interface {
	Execute(ctx context.Context, id uuid.UUID) error
	FailFallback(ctx context.Context, id uuid.UUID, reason string) error
}
