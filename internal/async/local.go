package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/course-jobs/internal/core"
)

var ErrShuttingDown = errors.New("dispatcher is shutting down")

// LocalDispatcher runs every job in its own goroutine, detached from the
// submitting request. Nothing bounds concurrency and a restart leaves
// in-flight jobs pending. Meant for development.
type LocalDispatcher struct {
	exec   Executor
	logger *slog.Logger

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

func NewLocalDispatcher(exec Executor, logger *slog.Logger) *LocalDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("dispatcher.local", "msg", "jobs run in-process and do not survive a restart")
	return &LocalDispatcher{exec: exec, logger: logger}
}

func (d *LocalDispatcher) Dispatch(ctx context.Context, id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrShuttingDown
	}
	d.wg.Add(1)
	go d.run(context.WithoutCancel(ctx), id)
	return nil
}

func (d *LocalDispatcher) run(ctx context.Context, id uuid.UUID) {
	defer d.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatcher.local.panic", "job_id", id, "panic", r)
			_ = d.exec.FailFallback(ctx, id, "internal error")
		}
	}()

	err := d.exec.Execute(ctx, id)
	switch {
	case err == nil:
		d.logger.Info("dispatcher.local.done", "job_id", id)
	case core.Retryable(err):
		// nobody will retry, so record the failure if the store is back
		if ferr := d.exec.FailFallback(ctx, id, "could not record job outcome: "+err.Error()); ferr != nil {
			d.logger.Error("dispatcher.local.fallback_failed", "job_id", id, "error", ferr, "critical", true)
		}
	default:
		d.logger.Info("dispatcher.local.finished", "job_id", id, "outcome", err)
	}
}

// Shutdown stops accepting jobs and waits for running ones until ctx is done.
func (d *LocalDispatcher) Shutdown(ctx context.Context) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); d.wg.Wait() }()

	select {
	case <-ctx.Done():
		d.logger.Warn("shutdown interrupted by context")
	case <-done:
		d.logger.Info("local dispatcher drained, shutdown complete")
	}
}
