package queue

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/delordemm1/routine-notifier/internal/metrics"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Processor decides what happens to each consumed message. A failed delivery is
// republished with an incremented attempt header after an exponential delay,
// and routed to SendToDLQ once MaxAttempts is reached.
type Processor struct {
	MaxAttempts int
	BaseBackoff time.Duration
	Deliver     func(ctx context.Context, p Payload) error
	Republish   func(ctx context.Context, msg kafka.Message) error
	SendToDLQ   func(ctx context.Context, msg kafka.Message) error
}

// Consumer reads the notification topic and hands payloads to a Processor.
type Consumer struct {
	r    messageReader
	proc *Processor
	log  *slog.Logger

	// after schedules a delayed republish; swapped in tests.
	after func(d time.Duration, f func())
}

func NewConsumer(r *kafka.Reader, proc *Processor, log *slog.Logger) *Consumer {
	return &Consumer{r: r, proc: proc, log: log, after: afterFunc}
}

func afterFunc(d time.Duration, f func()) { time.AfterFunc(d, f) }

// Run consumes until ctx is cancelled. Offsets are committed after each message
// has been delivered, scheduled for retry, or dead-lettered.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() {
		if err := c.r.Close(); err != nil {
			c.log.Error("failed to close reader", "error", err)
		}
	}()

	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		c.handle(ctx, msg)

		if err := c.r.CommitMessages(ctx, msg); err != nil {
			c.log.Error("failed to commit offset", "offset", msg.Offset, "partition", msg.Partition, "error", err)
		}
	}
}

func attemptOf(msg kafka.Message) int {
	n, _ := strconv.Atoi(header(msg, HeaderAttempt))
	return n
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	payload, err := DecodePayload(msg.Value)
	if err != nil {
		metrics.WorkerDeliveries.WithLabelValues("unknown", "bad_message").Inc()
		c.log.Error("dropping undecodable message", "offset", msg.Offset, "error", err)
		return
	}

	started := time.Now()
	err = c.proc.Deliver(ctx, payload)
	metrics.WorkerDeliveryDuration.WithLabelValues(payload.Type).Observe(time.Since(started).Seconds())
	if err == nil {
		metrics.WorkerDeliveries.WithLabelValues(payload.Type, "ok").Inc()
		c.log.Info("notification delivered", "id", payload.ID, "type", payload.Type, "log_id", payload.Metadata.LogID)
		return
	}

	attempt := attemptOf(msg) + 1
	next := kafka.Message{Key: msg.Key, Value: msg.Value, Headers: append([]kafka.Header(nil), msg.Headers...)}
	setHeader(&next, HeaderAttempt, strconv.Itoa(attempt))

	if attempt >= c.proc.MaxAttempts {
		metrics.WorkerDeliveries.WithLabelValues(payload.Type, "dlq").Inc()
		if dlqErr := c.proc.SendToDLQ(context.WithoutCancel(ctx), next); dlqErr != nil {
			c.log.Error("failed to dead-letter notification", "id", payload.ID, "error", dlqErr)
		}
		c.log.Error("notification dead-lettered", "id", payload.ID, "attempts", attempt, "error", err)
		return
	}

	delay := c.proc.BaseBackoff * time.Duration(1<<(attempt-1))
	metrics.WorkerDeliveries.WithLabelValues(payload.Type, "retry").Inc()
	c.log.Warn("notification delivery failed, retrying", "id", payload.ID, "attempt", attempt, "delay", delay, "error", err)

	rctx := context.WithoutCancel(ctx)
	c.after(delay, func() {
		if err := c.proc.Republish(rctx, next); err != nil {
			c.log.Error("failed to republish notification", "id", payload.ID, "error", err)
		}
	})
}
