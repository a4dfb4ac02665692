// Package rabbitmq carries job ids over a durable RabbitMQ queue to a
// bounded pool of workers.
package rabbitmq

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Config struct {
	Exchange      string
	RoutingKey    string
	Queue         string
	Workers       int           // concurrent executions, default 5
	MaxDeliveries int           // executions before giving up on infra errors, default 3
	JobTimeout    time.Duration // per execution, default 30m
	LockTTL       time.Duration // default JobTimeout + 5m
	RetryDelay    time.Duration // pause before requeueing, default 1s
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 5
	}
	if c.MaxDeliveries <= 0 {
		c.MaxDeliveries = 3
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 30 * time.Minute
	}
	if c.LockTTL <= 0 {
		c.LockTTL = c.JobTimeout + 5*time.Minute
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	return c
}

// Dial opens a connection to the broker.
func Dial(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	return conn, nil
}

func declareExchange(ch *amqp.Channel, name string) error {
	return ch.ExchangeDeclare(
		name,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
}
