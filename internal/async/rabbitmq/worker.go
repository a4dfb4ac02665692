package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/joseph-ayodele/course-jobs/internal/async"
	"github.com/joseph-ayodele/course-jobs/internal/core"
	"github.com/joseph-ayodele/course-jobs/internal/lock"
)

// ErrDeliveriesClosed is returned by Run when the broker closes the
// consumer while the worker is still meant to be running.
var ErrDeliveriesClosed = errors.New("amqp delivery channel closed")

// Worker consumes job messages with manual acks and executes up to
// cfg.Workers of them at a time.
type Worker struct {
	channel *amqp.Channel
	cfg     Config
	exec    async.Executor
	locker  lock.Locker
	logger  *slog.Logger
	tag     string
}

func NewWorker(conn *amqp.Connection, cfg Config, exec async.Executor, locker lock.Locker, logger *slog.Logger) (*Worker, error) {
	w := newWorker(cfg, exec, locker, logger)
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := declareExchange(ch, w.cfg.Exchange); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", w.cfg.Exchange, err)
	}
	if _, err := ch.QueueDeclare(
		w.cfg.Queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare queue %s: %w", w.cfg.Queue, err)
	}
	if err := ch.QueueBind(w.cfg.Queue, w.cfg.RoutingKey, w.cfg.Exchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("bind queue %s: %w", w.cfg.Queue, err)
	}
	if err := ch.Qos(w.cfg.Workers, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	w.channel = ch
	return w, nil
}

func newWorker(cfg Config, exec async.Executor, locker lock.Locker, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}
	return &Worker{
		cfg:    cfg.withDefaults(),
		exec:   exec,
		locker: locker,
		logger: logger,
		tag:    "course-jobs-worker",
	}
}

// Run consumes until ctx is cancelled or the channel closes, then waits
// for in-flight jobs.
func (w *Worker) Run(ctx context.Context) error {
	msgs, err := w.channel.Consume(
		w.cfg.Queue,
		w.tag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", w.cfg.Queue, err)
	}
	w.logger.Info("worker.started", "queue", w.cfg.Queue, "workers", w.cfg.Workers)

	go func() {
		<-ctx.Done()
		// stops new deliveries; unacked ones return to the queue
		if err := w.channel.Cancel(w.tag, false); err != nil {
			w.logger.Warn("worker.cancel_failed", "error", err)
		}
	}()

	return w.serve(ctx, msgs)
}

// serve drains msgs. The channel closing before ctx is done means the
// broker dropped the consumer.
func (w *Worker) serve(ctx context.Context, msgs <-chan amqp.Delivery) error {
	w.consume(ctx, msgs)
	if ctx.Err() == nil {
		w.logger.Error("worker.deliveries.closed", "queue", w.cfg.Queue)
		return ErrDeliveriesClosed
	}
	w.logger.Info("worker.stopped")
	return nil
}

// consume runs a fixed pool over msgs, so deliveries start in queue order.
func (w *Worker) consume(ctx context.Context, msgs <-chan amqp.Delivery) {
	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for d := range msgs {
				w.handle(ctx, workerID, d)
			}
		}(i + 1)
	}
	wg.Wait()
}

func (w *Worker) handle(ctx context.Context, workerID int, d amqp.Delivery) {
	var msg async.Message
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		w.logger.Error("worker.delivery.invalid", "worker_id", workerID, "error", err)
		_ = d.Nack(false, false)
		return
	}
	log := w.logger.With("worker_id", workerID, "job_id", msg.JobID, "trace_id", msg.TraceID, "redelivered", d.Redelivered)

	// the job context must outlive shutdown so the outcome gets written
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.JobTimeout)
	defer cancel()

	release, err := w.locker.Acquire(jobCtx, msg.JobID.String(), w.cfg.LockTTL)
	switch {
	case errors.Is(err, lock.ErrNotAcquired):
		// the holder may have crashed; its lock lasts until the TTL expires
		log.Warn("worker.delivery.locked", "retry_in", w.cfg.RetryDelay)
		w.requeue(ctx, d, log)
		return
	case err != nil:
		log.Warn("worker.lock.unavailable", "error", err)
	default:
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("worker.lock.release_failed", "error", err)
			}
		}()
	}

	err = w.exec.Execute(jobCtx, msg.JobID)
	if !core.Retryable(err) {
		log.Info("worker.delivery.ack", "outcome", outcome(err))
		_ = d.Ack(false)
		return
	}

	var ie *core.InfraError
	errors.As(err, &ie)
	if ie.Attempts >= w.cfg.MaxDeliveries {
		if ferr := w.exec.FailFallback(jobCtx, msg.JobID, "giving up after repeated infrastructure failures: "+err.Error()); ferr != nil {
			// leave it on the queue; the job is still non-terminal
			log.Error("worker.fallback.failed", "error", ferr, "critical", true)
			w.requeue(ctx, d, log)
			return
		}
		log.Error("worker.delivery.exhausted", "attempts", ie.Attempts, "error", err)
		_ = d.Ack(false)
		return
	}
	log.Warn("worker.delivery.nack", "attempts", ie.Attempts, "error", err)
	w.requeue(ctx, d, log)
}

func (w *Worker) requeue(ctx context.Context, d amqp.Delivery, log *slog.Logger) {
	t := time.NewTimer(w.cfg.RetryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
	if err := d.Nack(false, true); err != nil {
		log.Error("worker.nack_failed", "error", err)
	}
}

func outcome(err error) string {
	var se *core.StageError
	switch {
	case err == nil:
		return "completed"
	case errors.As(err, &se):
		return "failed"
	case core.Superseded(err):
		return "superseded"
	default:
		return "error"
	}
}

func (w *Worker) Close() error {
	if w.channel == nil {
		return nil
	}
	return w.channel.Close()
}
