// Package amqp implements queue.Queue against a RabbitMQ broker using
// amqp091-go. It matches the durability and prefetch semantics spec.md §4.7
// requires: durable queues, persistent delivery mode, and per-consumer QoS.
package amqp

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"codegraph/internal/queue"
)

// Queue wraps a single AMQP connection and channel. It is safe for
// concurrent Publish calls from multiple goroutines; each Consume opens its
// own channel.
type Queue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Config holds the broker connection parameters (spec.md §6, "Environment
// configuration").
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	// MaxRetries and BaseBackoff govern the initial connection attempt,
	// matching the file watcher's publish_with_retry behavior (spec.md §4.2).
	MaxRetries int
	BaseBackoff time.Duration
}

// Connect dials the broker, retrying with linear backoff up to
// cfg.MaxRetries times. It declares nothing itself; each queue name is
// declared lazily on first Publish/Consume.
func Connect(cfg Config) (*Queue, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d/", cfg.User, cfg.Password, cfg.Host, cfg.Port)

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	backoff := cfg.BaseBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		conn, err := amqp.DialConfig(url, amqp.Config{
			Heartbeat: 10 * time.Second,
		})
		if err == nil {
			ch, chErr := conn.Channel()
			if chErr != nil {
				conn.Close()
				lastErr = chErr
			} else {
				return &Queue{conn: conn, ch: ch}, nil
			}
		} else {
			lastErr = err
		}
		time.Sleep(time.Duration(attempt) * backoff)
	}
	return nil, fmt.Errorf("connect to rabbitmq after %d attempts: %w", maxRetries, lastErr)
}

func (q *Queue) declare(name string) error {
	_, err := q.ch.QueueDeclare(name, true /* durable */, false, false, false, nil)
	return err
}

// Publish persists body with delivery mode 2 (persistent) and content-type
// application/json, matching the teacher's RabbitMQPublisher.
func (q *Queue) Publish(ctx context.Context, queueName string, body []byte) error {
	if err := q.declare(queueName); err != nil {
		return fmt.Errorf("declare queue %s: %w", queueName, err)
	}
	return q.ch.PublishWithContext(ctx, "", queueName, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         body,
	})
}

// Consume opens a dedicated channel with the given prefetch and delivers
// messages to handler until ctx is cancelled.
func (q *Queue) Consume(ctx context.Context, queueName string, prefetch int, handler func(queue.Delivery)) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queueName, err)
	}
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(queueName, "", false /* autoAck */, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queueName, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			delivery := d
			handler(queue.Delivery{
				Body: delivery.Body,
				Ack:  func() error { return delivery.Ack(false) },
				Nack: func(requeue bool) error { return delivery.Nack(false, requeue) },
			})
		}
	}
}

// Close shuts down the channel and connection.
func (q *Queue) Close() error {
	if q.ch != nil {
		_ = q.ch.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
