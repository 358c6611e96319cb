package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/delordemm1/routine-notifier/internal/contextx"
	"github.com/delordemm1/routine-notifier/internal/metrics"
)

// ErrNotConnected is returned by Publish before a successful Connect.
var ErrNotConnected = errors.New("queue producer is not connected")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Backoff bounds the retries made by Connect. Delays grow by Factor per attempt
// starting at Initial and never exceed Max.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
	Retries int
}

func (b Backoff) delay(attempt int) time.Duration {
	d := float64(b.Initial)
	for i := 0; i < attempt; i++ {
		d *= b.Factor
		if time.Duration(d) >= b.Max {
			return b.Max
		}
	}
	return time.Duration(d)
}

// ProducerConfig configures a Kafka backed producer.
type ProducerConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
	Backoff  Backoff
}

// Producer publishes notification payloads. It is safe for concurrent use and
// is meant to be created once per process and shared.
type Producer struct {
	topic     string
	newWriter func() messageWriter
	probe     func(ctx context.Context) error
	backoff   Backoff
	log       *slog.Logger

	mu        sync.RWMutex
	w         messageWriter
	connected bool
}

// NewProducer creates a producer for cfg. No connection is made until Connect.
func NewProducer(cfg ProducerConfig, log *slog.Logger) *Producer {
	return &Producer{
		topic: cfg.Topic,
		newWriter: func() messageWriter {
			return NewWriter(cfg.Brokers, cfg.Topic, cfg.ClientID)
		},
		probe:   DialProbe(cfg.Brokers),
		backoff: cfg.Backoff,
		log:     log,
	}
}

// Connected reports whether Publish will attempt delivery.
func (p *Producer) Connected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

// Connect verifies a broker is reachable, retrying with exponential backoff.
// Calling Connect on a connected producer is a no-op.
func (p *Producer) Connect(ctx context.Context) error {
	if p.Connected() {
		return nil
	}

	var err error
	for attempt := 0; attempt <= p.backoff.Retries; attempt++ {
		if err = p.probe(ctx); err == nil {
			break
		}
		if attempt == p.backoff.Retries {
			break
		}
		wait := p.backoff.delay(attempt)
		p.log.Warn("kafka connect failed, retrying", "attempt", attempt+1, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return fmt.Errorf("connect to kafka: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
	if err != nil {
		return fmt.Errorf("connect to kafka after %d attempts: %w", p.backoff.Retries+1, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		p.w = p.newWriter()
		p.connected = true
		p.log.Info("notification producer connected", "topic", p.topic)
	}
	return nil
}

// Publish writes one payload to the notification topic. The correlation id is
// taken from ctx.
func (p *Producer) Publish(ctx context.Context, payload Payload) error {
	p.mu.RLock()
	w, ok := p.w, p.connected
	p.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}

	msg, err := payload.KafkaMessage(contextx.CorrelationID(ctx))
	if err != nil {
		return err
	}

	started := time.Now()
	err = w.WriteMessages(ctx, msg)
	metrics.PublishDuration.WithLabelValues(p.topic).Observe(time.Since(started).Seconds())
	if err != nil {
		p.log.Error("failed to publish notification", "id", payload.ID, "type", payload.Type, "template_id", payload.TemplateID, "error", err)
		return fmt.Errorf("publish notification %s: %w", payload.ID, err)
	}

	p.log.Info("notification published", "id", payload.ID, "type", payload.Type, "template_id", payload.TemplateID, "topic", p.topic)
	return nil
}

// Disconnect closes the writer. Failures are logged, never returned, and
// repeated calls do nothing.
func (p *Producer) Disconnect(_ context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return
	}
	p.connected = false
	if err := p.w.Close(); err != nil {
		p.log.Error("failed to disconnect producer", "error", err)
		return
	}
	p.w = nil
	p.log.Info("notification producer disconnected")
}
