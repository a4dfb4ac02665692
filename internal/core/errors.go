package core

import (
	"errors"
	"fmt"

	"github.com/joseph-ayodele/course-jobs/internal/common"
	"github.com/joseph-ayodele/course-jobs/internal/repository"
)

// StageError is returned by Execute after a stage failure was recorded on the job.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("stage %s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// InfraError means the job store could not be read or written. The job is
// not terminal and the execution may be retried.
type InfraError struct {
	Op       string
	Attempts int // executions claimed so far, 0 if the claim itself failed
	Err      error
}

func (e *InfraError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *InfraError) Unwrap() error { return e.Err }

// Retryable reports whether Execute left the job non-terminal because of an
// infrastructure failure. Everything else is final for this delivery.
func Retryable(err error) bool {
	var ie *InfraError
	return errors.As(err, &ie)
}

// Superseded reports whether another execution owns or already finished the job.
func Superseded(err error) bool {
	return errors.Is(err, repository.ErrJobTerminal) ||
		errors.Is(err, repository.ErrStaleClaim) ||
		errors.Is(err, common.ErrNotFound)
}
