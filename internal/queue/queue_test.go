package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type stageErr struct {
	transient bool
}

func (e *stageErr) Error() string   { return "stage failed" }
func (e *stageErr) Retryable() bool { return e.transient }

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"plain error", errors.New("boom"), false},
		{"transient stage error", &stageErr{transient: true}, true},
		{"terminal stage error", &stageErr{transient: false}, false},
		{"wrapped transient", fmt.Errorf("outer: %w", &stageErr{transient: true}), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isRetryable(tc.err); got != tc.want {
				t.Errorf("isRetryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestBackoffBounds(t *testing.T) {
	if Backoff(0) != time.Second {
		t.Errorf("Backoff(0) = %v, want 1s", Backoff(0))
	}
	if Backoff(2) != 4*time.Second {
		t.Errorf("Backoff(2) = %v, want 4s", Backoff(2))
	}
	if Backoff(10) != 30*time.Second {
		t.Errorf("Backoff(10) = %v, want cap 30s", Backoff(10))
	}
	if Backoff(63) != 30*time.Second {
		t.Errorf("Backoff(63) = %v, want cap on overflow", Backoff(63))
	}
}

func TestRetryCountHeader(t *testing.T) {
	if got := retryCount(nil); got != 0 {
		t.Errorf("retryCount(nil) = %d, want 0", got)
	}
	if got := retryCount(amqp.Table{retryHeader: int32(2)}); got != 2 {
		t.Errorf("retryCount(int32) = %d, want 2", got)
	}
	if got := retryCount(amqp.Table{retryHeader: int64(5)}); got != 5 {
		t.Errorf("retryCount(int64) = %d, want 5", got)
	}
	if got := retryCount(amqp.Table{retryHeader: "junk"}); got != 0 {
		t.Errorf("retryCount(string) = %d, want 0", got)
	}
}

func TestConsumeLoopClosedByBroker(t *testing.T) {
	c := &Client{}

	deliveries := make(chan amqp.Delivery)
	close(deliveries)

	err := c.consumeLoop(context.Background(), QueueOCR, 3, deliveries, func(context.Context, []byte) error {
		t.Fatal("handler must not run")
		return nil
	})
	if !errors.Is(err, ErrDeliveriesClosed) {
		t.Errorf("consumeLoop after broker close = %v, want ErrDeliveriesClosed", err)
	}
}

func TestConsumeLoopShutdown(t *testing.T) {
	c := &Client{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	deliveries := make(chan amqp.Delivery)
	close(deliveries)

	err := c.consumeLoop(ctx, QueueOCR, 3, deliveries, func(context.Context, []byte) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("consumeLoop after shutdown = %v, want context.Canceled", err)
	}
}
