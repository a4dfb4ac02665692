package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/course-jobs/internal/llm"
)

const (
	defaultMaxAttempts = 5
	rateLimitWait      = 60 * time.Second
	unavailableBase    = time.Second
	flatWait           = 2 * time.Second
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retrier retries AI calls, choosing the wait from the error class.
type Retrier struct {
	maxAttempts int
	sleep       SleepFunc
	logger      *slog.Logger
}

func NewRetrier(maxAttempts int, sleep SleepFunc, logger *slog.Logger) *Retrier {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if sleep == nil {
		sleep = sleepCtx
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrier{maxAttempts: maxAttempts, sleep: sleep, logger: logger}
}

// Backoff returns the wait after the given failed attempt (1-based).
func Backoff(err error, attempt int) time.Duration {
	var rl *llm.RateLimitError
	var ue *llm.UnavailableError
	switch {
	case errors.As(err, &rl):
		return rateLimitWait
	case errors.As(err, &ue):
		return unavailableBase << (attempt - 1)
	default:
		return flatWait
	}
}

// Do runs op until it succeeds or attempts run out, returning the last error.
func (r *Retrier) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if attempt == r.maxAttempts {
			break
		}
		wait := Backoff(err, attempt)
		r.logger.Warn("retry.scheduled", "op", name, "attempt", attempt, "wait", wait, "error", err)
		if serr := r.sleep(ctx, wait); serr != nil {
			return err
		}
	}
	r.logger.Error("retry.exhausted", "op", name, "attempts", r.maxAttempts, "error", err)
	return err
}
