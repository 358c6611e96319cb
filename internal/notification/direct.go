package notification

import (
	"context"

	"github.com/delordemm1/routine-notifier/internal/queue"
)

// DirectPublisher delivers payloads through the channel senders in-process
// instead of handing them to Kafka. Publish returns once the provider has
// accepted or rejected the message.
type DirectPublisher struct {
	svc Service
}

func NewDirectPublisher(svc Service) *DirectPublisher {
	return &DirectPublisher{svc: svc}
}

// Connect is a no-op; senders hold no long-lived connection.
func (p *DirectPublisher) Connect(context.Context) error { return nil }

func (p *DirectPublisher) Publish(ctx context.Context, payload queue.Payload) error {
	return p.svc.Deliver(ctx, MessageFromPayload(payload))
}

// MessageFromPayload maps a queued payload onto a deliverable message.
func MessageFromPayload(p queue.Payload) Message {
	return Message{
		Channel:   Channel(p.Type),
		Recipient: p.Recipient,
		Subject:   p.Title,
		Body:      p.Message,
	}
}
