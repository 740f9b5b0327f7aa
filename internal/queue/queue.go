// Package queue adapts the durable RabbitMQ transport: persistent
// publish, prefetch-1 consume with manual acknowledgment, and bounded
// retry with a dead-letter queue per stage.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/redactify/redactify/internal/logging"
)

// Stage queue names. Each declared queue gets a ".dlq" sibling for
// messages that exhausted their retries or failed terminally.
const (
	QueueOCR    = "ocr"
	QueueDetect = "detect"
	QueueRedact = "redact"
)

const (
	dlqSuffix   = ".dlq"
	retryHeader = "x-retry-count"
	deadHeader  = "x-dead-reason"
)

// ErrDeliveriesClosed means the broker closed the delivery stream while
// the consumer had not been asked to stop. Workers treat it as fatal so
// a dropped connection never looks like a clean shutdown.
var ErrDeliveriesClosed = errors.New("queue: delivery channel closed by broker")

// Handler processes one message body. A nil return acknowledges the
// message; an error routes it through retry or dead-letter handling
// depending on whether it reports itself retryable.
type Handler func(ctx context.Context, body []byte) error

// retryableError is the contract a handler error implements to request
// redelivery. services.StageError satisfies it.
type retryableError interface {
	Retryable() bool
}

// Client wraps one AMQP connection and channel. A worker holds exactly
// one Client and consumes a single queue with one message in flight.
type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	log  zerolog.Logger
}

// Dial connects to the broker and opens a channel.
func Dial(url string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return &Client{conn: conn, ch: ch, log: logging.WithComponent("queue")}, nil
}

// Declare creates the named durable queues and their dead-letter
// siblings. Declaration is idempotent; every worker declares what it
// touches.
func (c *Client) Declare(queues ...string) error {
	for _, name := range queues {
		for _, q := range []string{name, name + dlqSuffix} {
			if _, err := c.ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
				return fmt.Errorf("failed to declare queue %s: %w", q, err)
			}
		}
	}
	return nil
}

// Publish marshals v as JSON and enqueues it persistently.
func (c *Client) Publish(ctx context.Context, queueName string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message for %s: %w", queueName, err)
	}
	return c.publishRaw(ctx, queueName, body, nil)
}

func (c *Client) publishRaw(ctx context.Context, queueName string, body []byte, headers amqp.Table) error {
	err := c.ch.PublishWithContext(ctx, "", queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      headers,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queueName, err)
	}
	return nil
}

// Consume blocks on the queue until ctx is cancelled, handling one
// message at a time. Failed messages are re-enqueued with an incremented
// retry header up to maxRetries when the error is retryable, otherwise
// dead-lettered. The original delivery is always acknowledged, so a bad
// message can never wedge the queue.
func (c *Client) Consume(ctx context.Context, queueName string, maxRetries int, h Handler) error {
	if err := c.ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}
	deliveries, err := c.ch.ConsumeWithContext(ctx, queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming %s: %w", queueName, err)
	}
	c.log.Info().Str("queue", queueName).Msg("consuming")

	return c.consumeLoop(ctx, queueName, maxRetries, deliveries, h)
}

// consumeLoop drains deliveries until the channel closes. A close with
// the context still live is a broker-side failure, not a shutdown.
func (c *Client) consumeLoop(ctx context.Context, queueName string, maxRetries int, deliveries <-chan amqp.Delivery, h Handler) error {
	for d := range deliveries {
		if err := h(ctx, d.Body); err != nil {
			c.dispose(ctx, queueName, d, maxRetries, err)
			continue
		}
		if err := d.Ack(false); err != nil {
			c.log.Error().Err(err).Str("queue", queueName).Msg("failed to ack delivery")
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrDeliveriesClosed
}

// dispose routes a failed delivery: retryable and under budget goes back
// on the stage queue after a backoff, everything else goes to the DLQ.
func (c *Client) dispose(ctx context.Context, queueName string, d amqp.Delivery, maxRetries int, handlerErr error) {
	attempt := retryCount(d.Headers)
	if isRetryable(handlerErr) && attempt < maxRetries {
		wait := Backoff(attempt)
		c.log.Warn().Err(handlerErr).
			Str("queue", queueName).
			Int("attempt", attempt+1).
			Int("maxRetries", maxRetries).
			Dur("backoff", wait).
			Msg("handler failed, re-enqueueing")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
		}
		headers := amqp.Table{retryHeader: int32(attempt + 1)}
		if err := c.publishRaw(ctx, queueName, d.Body, headers); err != nil {
			c.log.Error().Err(err).Str("queue", queueName).Msg("failed to re-enqueue, dead-lettering instead")
			c.deadLetter(ctx, queueName, d, handlerErr)
		}
	} else {
		c.deadLetter(ctx, queueName, d, handlerErr)
	}
	if err := d.Ack(false); err != nil {
		c.log.Error().Err(err).Str("queue", queueName).Msg("failed to ack failed delivery")
	}
}

func (c *Client) deadLetter(ctx context.Context, queueName string, d amqp.Delivery, cause error) {
	headers := amqp.Table{deadHeader: cause.Error()}
	if err := c.publishRaw(ctx, queueName+dlqSuffix, d.Body, headers); err != nil {
		// Last resort: the message is lost except for this log line.
		c.log.Error().Err(err).Str("queue", queueName).Msg("failed to dead-letter message")
		return
	}
	c.log.Error().Err(cause).Str("queue", queueName).Msg("message dead-lettered")
}

// Close tears down the channel and connection.
func (c *Client) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Backoff returns the redelivery delay for the given zero-based attempt:
// 1s, 2s, 4s, ... capped at 30s.
func Backoff(attempt int) time.Duration {
	d := time.Second << attempt
	if d > 30*time.Second || d <= 0 {
		return 30 * time.Second
	}
	return d
}

func retryCount(headers amqp.Table) int {
	v, ok := headers[retryHeader]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	}
	return 0
}

func isRetryable(err error) bool {
	var r retryableError
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return false
}
