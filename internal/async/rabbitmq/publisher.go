package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/joseph-ayodele/course-jobs/internal/async"
	"github.com/joseph-ayodele/course-jobs/internal/common"
)

// Publisher dispatches jobs by publishing persistent messages.
type Publisher struct {
	mu         sync.Mutex
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger
}

func NewPublisher(conn *amqp.Connection, cfg Config, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := declareExchange(ch, cfg.Exchange); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	return &Publisher{
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}, nil
}

func (p *Publisher) Dispatch(ctx context.Context, id uuid.UUID) error {
	msg := async.Message{
		JobID:       id,
		SubmittedAt: time.Now().UTC(),
		TraceID:     common.RequestIDFromContext(ctx),
	}
	if msg.TraceID == "" {
		msg.TraceID = uuid.NewString()
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		p.routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			MessageId:     id.String(),
			CorrelationId: msg.TraceID,
			Timestamp:     msg.SubmittedAt,
			Body:          body,
		},
	)
	if err != nil {
		p.logger.Error("queue.publish.failed", "job_id", id, "error", err)
		return fmt.Errorf("publish job %s: %w", id, err)
	}
	p.logger.Info("queue.publish.ok", "job_id", id, "trace_id", msg.TraceID)
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.Close()
}
