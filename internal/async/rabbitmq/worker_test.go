package rabbitmq

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/course-jobs/constants"
	"github.com/joseph-ayodele/course-jobs/internal/async"
	"github.com/joseph-ayodele/course-jobs/internal/common"
	"github.com/joseph-ayodele/course-jobs/internal/core"
	"github.com/joseph-ayodele/course-jobs/internal/extract"
	"github.com/joseph-ayodele/course-jobs/internal/lock"
	"github.com/joseph-ayodele/course-jobs/internal/pipeline"
	"github.com/joseph-ayodele/course-jobs/internal/repository"
)

type ackRecord struct {
	mu      sync.Mutex
	acks    []uint64
	nacks   []uint64
	requeue []bool
}

func (a *ackRecord) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, tag)
	return nil
}

func (a *ackRecord) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks = append(a.nacks, tag)
	a.requeue = append(a.requeue, requeue)
	return nil
}

func (a *ackRecord) Reject(tag uint64, requeue bool) error { return a.Nack(tag, false, requeue) }

type scriptedExecutor struct {
	mu        sync.Mutex
	result    func(id uuid.UUID) error
	fallbacks []string
	running   int32
	peak      int32
	hold      time.Duration
}

func (s *scriptedExecutor) Execute(_ context.Context, id uuid.UUID) error {
	n := atomic.AddInt32(&s.running, 1)
	defer atomic.AddInt32(&s.running, -1)
	for {
		p := atomic.LoadInt32(&s.peak)
		if n <= p || atomic.CompareAndSwapInt32(&s.peak, p, n) {
			break
		}
	}
	time.Sleep(s.hold)
	if s.result == nil {
		return nil
	}
	return s.result(id)
}

func (s *scriptedExecutor) FailFallback(_ context.Context, _ uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallbacks = append(s.fallbacks, reason)
	return nil
}

func delivery(t *testing.T, ack *ackRecord, tag uint64, id uuid.UUID) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(async.Message{JobID: id, SubmittedAt: time.Now()})
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: tag, Body: body}
}

func docxPayload(t *testing.T, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	body, err := json.Marshal(map[string]string{
		"filename": "manual.docx",
		"document": base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
	require.NoError(t, err)
	return body
}

func testConfig() Config {
	return Config{Workers: 2, MaxDeliveries: 3, JobTimeout: time.Minute, RetryDelay: time.Millisecond}
}

func TestWorker_AcksCompletedAndFailedJobs(t *testing.T) {
	exec := &scriptedExecutor{result: func(uuid.UUID) error {
		return &core.StageError{Stage: "extract", Err: errors.New("unsupported file type")}
	}}
	w := newWorker(testConfig(), exec, lock.NewMemoryLocker(), nil)
	ack := &ackRecord{}

	w.handle(context.Background(), 1, delivery(t, ack, 7, uuid.New()))
	assert.Equal(t, []uint64{7}, ack.acks)
	assert.Empty(t, ack.nacks)
}

func TestWorker_AcksSupersededJobs(t *testing.T) {
	exec := &scriptedExecutor{result: func(uuid.UUID) error { return repository.ErrJobTerminal }}
	w := newWorker(testConfig(), exec, nil, nil)
	ack := &ackRecord{}

	w.handle(context.Background(), 1, delivery(t, ack, 1, uuid.New()))
	assert.Equal(t, []uint64{1}, ack.acks)
}

func TestWorker_RequeuesInfraErrors(t *testing.T) {
	exec := &scriptedExecutor{result: func(uuid.UUID) error {
		return &core.InfraError{Op: "finish", Attempts: 1, Err: common.ErrDatabase}
	}}
	w := newWorker(testConfig(), exec, nil, nil)
	ack := &ackRecord{}

	w.handle(context.Background(), 1, delivery(t, ack, 3, uuid.New()))
	assert.Empty(t, ack.acks)
	assert.Equal(t, []uint64{3}, ack.nacks)
	assert.Equal(t, []bool{true}, ack.requeue)
	assert.Empty(t, exec.fallbacks)
}

func TestWorker_GivesUpAfterMaxDeliveries(t *testing.T) {
	exec := &scriptedExecutor{result: func(uuid.UUID) error {
		return &core.InfraError{Op: "finish", Attempts: 3, Err: common.ErrDatabase}
	}}
	w := newWorker(testConfig(), exec, nil, nil)
	ack := &ackRecord{}

	w.handle(context.Background(), 1, delivery(t, ack, 4, uuid.New()))
	assert.Equal(t, []uint64{4}, ack.acks)
	require.Len(t, exec.fallbacks, 1)
	assert.Contains(t, exec.fallbacks[0], "giving up")
}

func TestWorker_DropsInvalidMessages(t *testing.T) {
	w := newWorker(testConfig(), &scriptedExecutor{}, nil, nil)
	ack := &ackRecord{}

	w.handle(context.Background(), 1, amqp.Delivery{Acknowledger: ack, DeliveryTag: 9, Body: []byte("{")})
	assert.Equal(t, []uint64{9}, ack.nacks)
	assert.Equal(t, []bool{false}, ack.requeue)
}

func TestWorker_LockedDeliveryIsRequeued(t *testing.T) {
	locker := lock.NewMemoryLocker()
	id := uuid.New()
	release, err := locker.Acquire(context.Background(), id.String(), time.Minute)
	require.NoError(t, err)
	defer release(context.Background())

	exec := &scriptedExecutor{}
	w := newWorker(testConfig(), exec, locker, nil)
	ack := &ackRecord{}

	w.handle(context.Background(), 1, delivery(t, ack, 5, id))
	assert.Empty(t, ack.acks)
	assert.Equal(t, []uint64{5}, ack.nacks)
	assert.Equal(t, []bool{true}, ack.requeue)
	assert.Equal(t, int32(0), atomic.LoadInt32(&exec.peak), "job must not run twice at once")
}

func TestWorker_RedeliveryAfterCrashedHolderRunsJob(t *testing.T) {
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{DSN: "sqlite::memory:"}, nil)
	require.NoError(t, err)
	defer repository.Close(db, nil)
	require.NoError(t, repository.Migrate(ctx, db, nil))

	jobs := repository.NewJobRepository(db, nil)
	stages := pipeline.NewStages(pipeline.Deps{Extractor: extract.NewExtractor(nil, nil)}, nil)
	orch := core.NewOrchestrator(jobs, stages, nil, nil)

	id, err := orch.Submit(ctx, string(constants.JobTypeFileUpload), docxPayload(t, "Check the torque settings"), "alice")
	require.NoError(t, err)

	// the first worker claimed the job, took the lock and died
	_, err = jobs.Claim(ctx, id)
	require.NoError(t, err)
	locker := lock.NewMemoryLocker()
	_, err = locker.Acquire(ctx, id.String(), 50*time.Millisecond)
	require.NoError(t, err)

	w := newWorker(testConfig(), orch, locker, nil)
	ack := &ackRecord{}

	w.handle(ctx, 1, delivery(t, ack, 42, id))
	assert.Empty(t, ack.acks)
	assert.Equal(t, []uint64{42}, ack.nacks)
	assert.Equal(t, []bool{true}, ack.requeue)
	view, err := orch.GetStatus(ctx, id, "alice")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusRunning, view.Status)

	time.Sleep(60 * time.Millisecond)
	w.handle(ctx, 1, delivery(t, ack, 43, id))
	assert.Equal(t, []uint64{43}, ack.acks)

	view, err = orch.GetStatus(ctx, id, "alice")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, view.Status)
	assert.Contains(t, string(view.Result), "Check the torque settings")
}

func TestWorker_ServeReportsClosedDeliveries(t *testing.T) {
	w := newWorker(testConfig(), &scriptedExecutor{}, nil, nil)

	msgs := make(chan amqp.Delivery)
	close(msgs)
	assert.ErrorIs(t, w.serve(context.Background(), msgs), ErrDeliveriesClosed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stopped := make(chan amqp.Delivery)
	close(stopped)
	assert.NoError(t, w.serve(ctx, stopped))
}

func TestWorker_PoolIsBounded(t *testing.T) {
	exec := &scriptedExecutor{hold: 20 * time.Millisecond}
	w := newWorker(testConfig(), exec, nil, nil)
	ack := &ackRecord{}

	msgs := make(chan amqp.Delivery, 10)
	for i := 0; i < 10; i++ {
		msgs <- delivery(t, ack, uint64(i+1), uuid.New())
	}
	close(msgs)

	w.consume(context.Background(), msgs)
	assert.Len(t, ack.acks, 10)
	assert.LessOrEqual(t, atomic.LoadInt32(&exec.peak), int32(2))
}
