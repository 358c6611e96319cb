package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delordemm1/routine-notifier/internal/contextx"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeWriter struct {
	mu       sync.Mutex
	msgs     []kafka.Message
	writeErr error
	closed   int
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writeErr != nil {
		return w.writeErr
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed++
	return nil
}

func newTestProducer(w *fakeWriter, probe func(context.Context) error) *Producer {
	return &Producer{
		topic:     "notifications",
		newWriter: func() messageWriter { return w },
		probe:     probe,
		backoff:   Backoff{Initial: time.Millisecond, Max: 4 * time.Millisecond, Factor: 2, Retries: 3},
		log:       testLogger(),
	}
}

func samplePayload() Payload {
	return Payload{
		ID:         "abc",
		UserID:     "a@b.co",
		Recipient:  "a@b.co",
		Type:       "email",
		Title:      "Reminder",
		Message:    "Morning Run in 15",
		TemplateID: 7,
		Metadata:   Metadata{RoutineID: 1, RoutineName: "Morning Run", Type: "email", Recipient: "a@b.co", LogID: 42},
		Timestamp:  1700000000000,
	}
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Max: 30 * time.Second, Factor: 2, Retries: 8}
	assert.Equal(t, 100*time.Millisecond, b.delay(0))
	assert.Equal(t, 200*time.Millisecond, b.delay(1))
	assert.Equal(t, 800*time.Millisecond, b.delay(3))
	assert.Equal(t, 30*time.Second, b.delay(20))
}

func TestPayload_Message(t *testing.T) {
	msg, err := samplePayload().KafkaMessage("corr-1")
	require.NoError(t, err)

	assert.Equal(t, "a@b.co", string(msg.Key))
	assert.Equal(t, "corr-1", header(msg, HeaderCorrelationID))
	assert.Equal(t, "email", header(msg, HeaderNotificationType))
	assert.Equal(t, "7", header(msg, HeaderTemplateID))

	back, err := DecodePayload(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, samplePayload(), back)
}

func TestPayload_KeyFallsBackToID(t *testing.T) {
	p := samplePayload()
	p.UserID = ""
	assert.Equal(t, "abc", p.Key())
}

func TestProducer_PublishBeforeConnect(t *testing.T) {
	p := newTestProducer(&fakeWriter{}, func(context.Context) error { return nil })
	err := p.Publish(context.Background(), samplePayload())
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestProducer_ConnectRetriesThenSucceeds(t *testing.T) {
	calls := 0
	w := &fakeWriter{}
	p := newTestProducer(w, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("broker down")
		}
		return nil
	})

	require.NoError(t, p.Connect(context.Background()))
	assert.Equal(t, 3, calls)
	assert.True(t, p.Connected())

	// idempotent
	require.NoError(t, p.Connect(context.Background()))
	assert.Equal(t, 3, calls)
}

func TestProducer_ConnectGivesUp(t *testing.T) {
	calls := 0
	p := newTestProducer(&fakeWriter{}, func(context.Context) error {
		calls++
		return errors.New("broker down")
	})

	err := p.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.False(t, p.Connected())
}

func TestProducer_PublishAndDisconnect(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w, func(context.Context) error { return nil })
	require.NoError(t, p.Connect(context.Background()))

	ctx := contextx.WithCorrelationID(context.Background(), "scan-1")
	require.NoError(t, p.Publish(ctx, samplePayload()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "scan-1", header(w.msgs[0], HeaderCorrelationID))

	p.Disconnect(context.Background())
	p.Disconnect(context.Background())
	assert.Equal(t, 1, w.closed)
	assert.False(t, p.Connected())
	assert.ErrorIs(t, p.Publish(ctx, samplePayload()), ErrNotConnected)
}

func TestProducer_PublishError(t *testing.T) {
	w := &fakeWriter{writeErr: errors.New("leader not available")}
	p := newTestProducer(w, func(context.Context) error { return nil })
	require.NoError(t, p.Connect(context.Background()))

	err := p.Publish(context.Background(), samplePayload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}

type fakeReader struct {
	msgs      []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		return kafka.Message{}, context.Canceled
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { r.closed = true; return nil }

type recorder struct {
	delivered   []Payload
	republished []kafka.Message
	dlq         []kafka.Message
	delays      []time.Duration
}

func newTestConsumer(r *fakeReader, deliverErr error, maxAttempts int) (*Consumer, *recorder) {
	rec := &recorder{}
	proc := &Processor{
		MaxAttempts: maxAttempts,
		BaseBackoff: time.Second,
		Deliver: func(_ context.Context, p Payload) error {
			rec.delivered = append(rec.delivered, p)
			return deliverErr
		},
		Republish: func(_ context.Context, m kafka.Message) error {
			rec.republished = append(rec.republished, m)
			return nil
		},
		SendToDLQ: func(_ context.Context, m kafka.Message) error {
			rec.dlq = append(rec.dlq, m)
			return nil
		},
	}
	c := &Consumer{r: r, proc: proc, log: testLogger(), after: func(d time.Duration, f func()) {
		rec.delays = append(rec.delays, d)
		f()
	}}
	return c, rec
}

func TestConsumer_Delivers(t *testing.T) {
	msg, err := samplePayload().KafkaMessage("c")
	require.NoError(t, err)
	r := &fakeReader{msgs: []kafka.Message{msg}}
	c, rec := newTestConsumer(r, nil, 3)

	require.NoError(t, c.Run(context.Background()))
	require.Len(t, rec.delivered, 1)
	assert.Equal(t, int64(42), rec.delivered[0].Metadata.LogID)
	assert.Len(t, r.committed, 1)
	assert.True(t, r.closed)
	assert.Empty(t, rec.republished)
}

func TestConsumer_RetriesWithBackoff(t *testing.T) {
	msg, err := samplePayload().KafkaMessage("c")
	require.NoError(t, err)
	setHeader(&msg, HeaderAttempt, "1")
	r := &fakeReader{msgs: []kafka.Message{msg}}
	c, rec := newTestConsumer(r, errors.New("smtp down"), 5)

	require.NoError(t, c.Run(context.Background()))
	require.Len(t, rec.republished, 1)
	assert.Equal(t, "2", header(rec.republished[0], HeaderAttempt))
	assert.Equal(t, []time.Duration{2 * time.Second}, rec.delays)
	assert.Empty(t, rec.dlq)
}

func TestConsumer_DeadLettersAfterMaxAttempts(t *testing.T) {
	msg, err := samplePayload().KafkaMessage("c")
	require.NoError(t, err)
	setHeader(&msg, HeaderAttempt, "2")
	r := &fakeReader{msgs: []kafka.Message{msg}}
	c, rec := newTestConsumer(r, errors.New("smtp down"), 3)

	require.NoError(t, c.Run(context.Background()))
	require.Len(t, rec.dlq, 1)
	assert.Equal(t, "3", header(rec.dlq[0], HeaderAttempt))
	assert.Empty(t, rec.republished)
}

func TestConsumer_DropsBadMessage(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{{Value: []byte("{not json")}}}
	c, rec := newTestConsumer(r, nil, 3)

	require.NoError(t, c.Run(context.Background()))
	assert.Empty(t, rec.delivered)
	assert.Len(t, r.committed, 1)
}
