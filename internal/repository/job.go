package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/course-jobs/constants"
	"github.com/joseph-ayodele/course-jobs/internal/common"
	"github.com/joseph-ayodele/course-jobs/internal/entity"
)

var (
	// ErrJobTerminal is returned when a write targets a completed or failed job.
	ErrJobTerminal = errors.New("job already terminal")
	// ErrStaleClaim is returned when the caller's version no longer matches the row.
	ErrStaleClaim = errors.New("job claimed by another execution")
)

var jobColumns = []string{
	"id", "type", "status", "payload", "result", "error", "message",
	"created_by", "related_entity_id", "attempts", "version", "created_at", "updated_at",
}

type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) error
	Get(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	GetForPrincipal(ctx context.Context, id uuid.UUID, principal string) (*entity.Job, error)
	ListByPrincipal(ctx context.Context, principal string, from, to *time.Time) ([]*entity.Job, error)
	Claim(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	UpdateProgress(ctx context.Context, id uuid.UUID, version int64, message string) error
	Complete(ctx context.Context, id uuid.UUID, version int64, result json.RawMessage) error
	Fail(ctx context.Context, id uuid.UUID, version int64, message string) error
	FailFallback(ctx context.Context, id uuid.UUID, message string) error
}

type jobRepo struct {
	db  *DB
	log *slog.Logger
	now func() time.Time
}

func NewJobRepository(db *DB, log *slog.Logger) JobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &jobRepo{db: db, log: log, now: func() time.Time { return time.Now().UTC() }}
}

func (r *jobRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.Dialect)
}

func (r *jobRepo) Create(ctx context.Context, job *entity.Job) error {
	now := r.now()
	job.Status = constants.JobStatusPending
	job.CreatedAt, job.UpdatedAt = now, now

	q, args := r.builder().Insert(jobsTable).
		Columns("id", "type", "status", "payload", "created_by", "related_entity_id", "attempts", "version", "created_at", "updated_at").
		Values(job.ID, string(job.Type), string(job.Status), string(job.Payload), job.CreatedBy, nullString(job.RelatedEntityID), 0, 0, now, now).
		Query()
	if err := r.db.Driver.Exec(ctx, q, args, nil); err != nil {
		r.log.Error("job create failed", "job_id", job.ID, "type", job.Type, "err", err)
		return fmt.Errorf("%w: insert job: %v", common.ErrDatabase, err)
	}
	r.log.Info("job created", "job_id", job.ID, "type", job.Type, "created_by", job.CreatedBy)
	return nil
}

func (r *jobRepo) Get(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return r.getOne(ctx, entsql.EQ("id", id))
}

// GetForPrincipal only matches rows created by principal, so foreign and
// missing jobs are indistinguishable.
func (r *jobRepo) GetForPrincipal(ctx context.Context, id uuid.UUID, principal string) (*entity.Job, error) {
	return r.getOne(ctx, entsql.And(entsql.EQ("id", id), entsql.EQ("created_by", principal)))
}

func (r *jobRepo) getOne(ctx context.Context, p *entsql.Predicate) (*entity.Job, error) {
	b := r.builder()
	q, args := b.Select(jobColumns...).From(b.Table(jobsTable)).Where(p).Limit(1).Query()
	jobs, err := r.query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, common.ErrNotFound
	}
	return jobs[0], nil
}

func (r *jobRepo) ListByPrincipal(ctx context.Context, principal string, from, to *time.Time) ([]*entity.Job, error) {
	preds := []*entsql.Predicate{entsql.EQ("created_by", principal)}
	if from != nil {
		preds = append(preds, entsql.GTE("created_at", from.UTC()))
	}
	if to != nil {
		preds = append(preds, entsql.LT("created_at", to.UTC()))
	}
	b := r.builder()
	q, args := b.Select(jobColumns...).
		From(b.Table(jobsTable)).
		Where(entsql.And(preds...)).
		OrderBy(entsql.Desc("created_at")).
		Query()
	return r.query(ctx, q, args)
}

// Claim marks the job running for a new execution and returns it with the
// version stamp the execution must present on every later write.
func (r *jobRepo) Claim(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	job, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return job, ErrJobTerminal
	}

	now := r.now()
	q, args := r.builder().Update(jobsTable).
		Set("status", string(constants.JobStatusRunning)).
		Add("attempts", 1).
		Add("version", 1).
		Set("updated_at", now).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.EQ("version", job.Version),
			notTerminal(),
		)).
		Query()
	n, err := r.exec(ctx, q, args)
	if err != nil {
		r.log.Error("job claim failed", "job_id", id, "err", err)
		return nil, err
	}
	if n == 0 {
		r.log.Warn("job claim lost", "job_id", id, "version", job.Version)
		return nil, ErrStaleClaim
	}

	job.Status = constants.JobStatusRunning
	job.Attempts++
	job.Version++
	job.UpdatedAt = now
	r.log.Info("job claimed", "job_id", id, "attempt", job.Attempts, "version", job.Version)
	return job, nil
}

// UpdateProgress sets the human-readable message without touching status.
func (r *jobRepo) UpdateProgress(ctx context.Context, id uuid.UUID, version int64, message string) error {
	q, args := r.builder().Update(jobsTable).
		Set("message", message).
		Set("updated_at", r.now()).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("version", version), notTerminal())).
		Query()
	n, err := r.exec(ctx, q, args)
	if err != nil {
		return err
	}
	if n == 0 {
		return r.rejected(ctx, id)
	}
	return nil
}

func (r *jobRepo) Complete(ctx context.Context, id uuid.UUID, version int64, result json.RawMessage) error {
	q, args := r.builder().Update(jobsTable).
		Set("status", string(constants.JobStatusCompleted)).
		Set("result", string(result)).
		SetNull("error").
		SetNull("message").
		Add("version", 1).
		Set("updated_at", r.now()).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("version", version), notTerminal())).
		Query()
	n, err := r.exec(ctx, q, args)
	if err != nil {
		r.log.Error("job finish(completed) failed", "job_id", id, "err", err)
		return err
	}
	if n == 0 {
		return r.rejected(ctx, id)
	}
	r.log.Info("job finished (completed)", "job_id", id)
	return nil
}

func (r *jobRepo) Fail(ctx context.Context, id uuid.UUID, version int64, message string) error {
	q, args := r.builder().Update(jobsTable).
		Set("status", string(constants.JobStatusFailed)).
		Set("error", message).
		SetNull("result").
		SetNull("message").
		Add("version", 1).
		Set("updated_at", r.now()).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("version", version), notTerminal())).
		Query()
	n, err := r.exec(ctx, q, args)
	if err != nil {
		r.log.Error("job finish(failed) failed", "job_id", id, "err", err)
		return err
	}
	if n == 0 {
		return r.rejected(ctx, id)
	}
	r.log.Warn("job finished (failed)", "job_id", id, "error", message)
	return nil
}

// FailFallback records a failure regardless of which execution holds the job.
// Terminal rows are still never rewritten.
func (r *jobRepo) FailFallback(ctx context.Context, id uuid.UUID, message string) error {
	q, args := r.builder().Update(jobsTable).
		Set("status", string(constants.JobStatusFailed)).
		Set("error", message).
		SetNull("result").
		Add("version", 1).
		Set("updated_at", r.now()).
		Where(entsql.And(entsql.EQ("id", id), notTerminal())).
		Query()
	n, err := r.exec(ctx, q, args)
	if err != nil {
		r.log.Error("job fallback failure write failed", "job_id", id, "err", err, "critical", true)
		return err
	}
	if n == 0 {
		return r.rejected(ctx, id)
	}
	r.log.Warn("job finished (failed, fallback)", "job_id", id, "error", message)
	return nil
}

// rejected explains why a guarded update matched no rows.
func (r *jobRepo) rejected(ctx context.Context, id uuid.UUID) error {
	job, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return ErrJobTerminal
	}
	return ErrStaleClaim
}

func notTerminal() *entsql.Predicate {
	vals := make([]any, 0, len(constants.TerminalStatuses))
	for _, s := range constants.TerminalStatuses {
		vals = append(vals, string(s))
	}
	return entsql.NotIn("status", vals...)
}

func (r *jobRepo) exec(ctx context.Context, q string, args []any) (int64, error) {
	var res sql.Result
	if err := r.db.Driver.Exec(ctx, q, args, &res); err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: rows affected: %v", common.ErrDatabase, err)
	}
	return n, nil
}

func (r *jobRepo) query(ctx context.Context, q string, args []any) ([]*entity.Job, error) {
	var rows entsql.Rows
	if err := r.db.Driver.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []*entity.Job
	for rows.Next() {
		var (
			j                          entity.Job
			typ, status, payload       string
			result, errMsg, msg, relID sql.NullString
		)
		if err := rows.Scan(&j.ID, &typ, &status, &payload, &result, &errMsg, &msg,
			&j.CreatedBy, &relID, &j.Attempts, &j.Version, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan job: %v", common.ErrDatabase, err)
		}
		j.Type = constants.JobType(typ)
		j.Status = constants.JobStatus(status)
		j.Payload = json.RawMessage(payload)
		if result.Valid {
			j.Result = json.RawMessage(result.String)
		}
		j.Error = ptr(errMsg)
		j.Message = ptr(msg)
		j.RelatedEntityID = ptr(relID)
		out = append(out, &j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return out, nil
}

func ptr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
