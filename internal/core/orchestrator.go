// Package core accepts jobs, runs their stage sequences and reports status.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/course-jobs/constants"
	"github.com/joseph-ayodele/course-jobs/internal/common"
	"github.com/joseph-ayodele/course-jobs/internal/entity"
	"github.com/joseph-ayodele/course-jobs/internal/pipeline"
	"github.com/joseph-ayodele/course-jobs/internal/repository"
)

const finishTimeout = 10 * time.Second

// Dispatcher hands a persisted job to an executor.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID uuid.UUID) error
}

// Sequencer maps a job type to its steps.
type Sequencer interface {
	Sequence(t constants.JobType, p entity.Payload) ([]pipeline.Step, error)
}

type Orchestrator struct {
	jobs       repository.JobRepository
	stages     Sequencer
	dispatcher Dispatcher
	logger     *slog.Logger
	newID      func() uuid.UUID
}

func NewOrchestrator(jobs repository.JobRepository, stages Sequencer, dispatcher Dispatcher, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		jobs:       jobs,
		stages:     stages,
		dispatcher: dispatcher,
		logger:     logger,
		newID:      uuid.New,
	}
}

// SetDispatcher replaces the dispatcher. Used when the dispatcher itself
// needs the orchestrator, as the in-process one does.
func (o *Orchestrator) SetDispatcher(d Dispatcher) { o.dispatcher = d }

// Submit validates the request, stores a pending job and dispatches it.
// The returned id always refers to a stored job.
func (o *Orchestrator) Submit(ctx context.Context, jobType string, payload json.RawMessage, principal string) (uuid.UUID, error) {
	if strings.TrimSpace(principal) == "" {
		return uuid.Nil, common.NewAppError("UNAUTHORIZED", "missing principal", common.ErrUnauthorized)
	}
	t, err := constants.ParseJobType(jobType)
	if err != nil {
		return uuid.Nil, common.NewAppError("VALIDATION_ERROR", err.Error(), common.ErrValidation)
	}
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	p, err := entity.DecodePayload(payload)
	if err != nil {
		return uuid.Nil, common.NewAppError("VALIDATION_ERROR", "payload must be a JSON object", common.ErrValidation)
	}
	if err := validatePayload(t, p); err != nil {
		o.logger.Info("job.submit.rejected", "type", t, "principal", principal, "error", err)
		return uuid.Nil, err
	}

	job := &entity.Job{
		ID:        o.newID(),
		Type:      t,
		Payload:   payload,
		CreatedBy: principal,
	}
	if p.CourseID != "" {
		courseID := p.CourseID
		job.RelatedEntityID = &courseID
	}
	if err := o.jobs.Create(ctx, job); err != nil {
		return uuid.Nil, err
	}

	if o.dispatcher == nil {
		o.logger.Warn("job.dispatch.skipped", "job_id", job.ID, "reason", "no dispatcher")
	} else if err := o.dispatcher.Dispatch(ctx, job.ID); err != nil {
		// the row stays pending and pollable
		o.logger.Warn("job.dispatch.failed", "job_id", job.ID, "error", err, "dispatch_failed", true)
	}

	o.logger.Info("job.submit.ok", "job_id", job.ID, "type", t, "principal", principal)
	return job.ID, nil
}

// Execute claims the job and runs its steps, then records the terminal status.
//
// A nil return means the job completed. A *StageError means it was recorded
// as failed. Superseded errors mean another execution owns it. An
// *InfraError means the job is still non-terminal.
func (o *Orchestrator) Execute(ctx context.Context, id uuid.UUID) error {
	job, err := o.jobs.Claim(ctx, id)
	switch {
	case errors.Is(err, repository.ErrJobTerminal):
		o.logger.Info("job.execute.skipped", "job_id", id, "reason", "terminal")
		return err
	case errors.Is(err, repository.ErrStaleClaim), errors.Is(err, common.ErrNotFound):
		o.logger.Warn("job.execute.skipped", "job_id", id, "error", err)
		return err
	case err != nil:
		return &InfraError{Op: "claim", Err: err}
	}

	log := o.logger.With("job_id", job.ID, "type", job.Type, "attempt", job.Attempts)
	start := time.Now()

	st, stage, runErr := o.run(ctx, job, log)
	if runErr == nil {
		result, err := json.Marshal(st.Result)
		if err == nil {
			if err := o.finish(ctx, job, result, ""); err != nil {
				return err
			}
			log.Info("job.execute.completed", "elapsed_ms", time.Since(start).Milliseconds())
			return nil
		}
		runErr, stage = fmt.Errorf("encode result: %w", err), "finish"
	}

	if err := o.finish(ctx, job, nil, runErr.Error()); err != nil {
		return err
	}
	log.Warn("job.execute.failed", "stage", stage, "error", runErr, "elapsed_ms", time.Since(start).Milliseconds())
	return &StageError{Stage: stage, Err: runErr}
}

// run executes every step in order. A panic in a step becomes that step's error.
func (o *Orchestrator) run(ctx context.Context, job *entity.Job, log *slog.Logger) (st *pipeline.State, stage string, err error) {
	stage = "prepare"
	defer func() {
		if r := recover(); r != nil {
			log.Error("job.execute.panic", "stage", stage, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("internal error in stage %s: %v", stage, r)
		}
	}()

	p, err := entity.DecodePayload(job.Payload)
	if err != nil {
		return nil, stage, err
	}
	steps, err := o.stages.Sequence(job.Type, p)
	if err != nil {
		return nil, stage, err
	}

	st = pipeline.NewState(job.ID, p)
	for _, step := range steps {
		stage = step.Name
		if err := o.jobs.UpdateProgress(ctx, job.ID, job.Version, step.Message); err != nil {
			log.Warn("job.progress.write_failed", "stage", stage, "error", err)
		}
		t0 := time.Now()
		if err := step.Run(ctx, st); err != nil {
			return st, stage, err
		}
		log.Info("stage.ok", "stage", stage, "elapsed_ms", time.Since(t0).Milliseconds())
	}
	return st, stage, nil
}

// finish writes the terminal status with the claimed version. It uses a
// context detached from the execution so a timed out job can still be recorded.
func (o *Orchestrator) finish(ctx context.Context, job *entity.Job, result json.RawMessage, failure string) error {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()

	var err error
	if failure == "" {
		err = o.jobs.Complete(wctx, job.ID, job.Version, result)
	} else {
		err = o.jobs.Fail(wctx, job.ID, job.Version, failure)
	}
	switch {
	case err == nil:
		return nil
	case Superseded(err):
		o.logger.Warn("job.finish.superseded", "job_id", job.ID, "version", job.Version, "error", err)
		return err
	default:
		o.logger.Error("job.finish.write_failed", "job_id", job.ID, "error", err, "critical", true)
		return &InfraError{Op: "finish", Attempts: job.Attempts, Err: err}
	}
}

// FailFallback records a failure without the version guard. Executors call
// it when Execute could not record an outcome itself.
func (o *Orchestrator) FailFallback(ctx context.Context, id uuid.UUID, reason string) error {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()
	if err := o.jobs.FailFallback(wctx, id, reason); err != nil {
		if Superseded(err) {
			return nil
		}
		o.logger.Error("job.fallback.failed", "job_id", id, "error", err, "critical", true)
		return err
	}
	return nil
}

// GetStatus returns the poller view of a job owned by principal. Jobs of
// other principals are reported as not found.
func (o *Orchestrator) GetStatus(ctx context.Context, id uuid.UUID, principal string) (entity.JobStatusView, error) {
	if strings.TrimSpace(principal) == "" {
		return entity.JobStatusView{}, common.NewAppError("UNAUTHORIZED", "missing principal", common.ErrUnauthorized)
	}
	job, err := o.jobs.GetForPrincipal(ctx, id, principal)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return entity.JobStatusView{}, common.NewAppError("NOT_FOUND", "job not found", common.ErrNotFound)
		}
		return entity.JobStatusView{}, err
	}
	return job.StatusView(), nil
}

// ListJobs returns principal's jobs created in [from, to), newest first.
func (o *Orchestrator) ListJobs(ctx context.Context, principal string, from, to *time.Time) ([]*entity.Job, error) {
	if strings.TrimSpace(principal) == "" {
		return nil, common.NewAppError("UNAUTHORIZED", "missing principal", common.ErrUnauthorized)
	}
	return o.jobs.ListByPrincipal(ctx, principal, from, to)
}
