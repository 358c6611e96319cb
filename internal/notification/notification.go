package notification

import (
	"context"
	"fmt"
	"log/slog"
)

// --- Constants for Type Safety ---
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Valid reports whether c is a supported delivery channel.
func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelSMS
}

// --- Data Structures ---

// Message is one rendered notification ready for delivery.
type Message struct {
	Channel   Channel
	Recipient string // email address or phone number
	Subject   string // email only
	Body      string
}

// --- Sender Interfaces ---

// EmailSender delivers an HTML email with a plain text alternative.
type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
	Configured() bool
}

// SMSSender delivers a text message.
type SMSSender interface {
	Send(ctx context.Context, to, message string) error
	Configured() bool
}

// --- Public Service ---

// Service routes messages to the sender for their channel.
type Service interface {
	Deliver(ctx context.Context, m Message) error
}

type service struct {
	log         *slog.Logger
	emailSender EmailSender
	smsSender   SMSSender
}

// NewService creates a new notification service.
func NewService(log *slog.Logger, emailSender EmailSender, smsSender SMSSender) Service {
	return &service{
		log:         log,
		emailSender: emailSender,
		smsSender:   smsSender,
	}
}

// Deliver sends m synchronously so the caller can retry on failure. A channel
// without a configured provider is skipped and counts as delivered.
func (s *service) Deliver(ctx context.Context, m Message) error {
	switch m.Channel {
	case ChannelEmail:
		if !s.emailSender.Configured() {
			s.log.Info("email provider not configured, skipping", "recipient", m.Recipient)
			return nil
		}
		s.log.Info("dispatching email notification", "recipient", m.Recipient)
		return s.emailSender.Send(ctx, m.Recipient, m.Subject, m.Body)
	case ChannelSMS:
		if !s.smsSender.Configured() {
			s.log.Info("sms provider not configured, skipping", "recipient", m.Recipient)
			return nil
		}
		s.log.Info("dispatching sms notification", "recipient", m.Recipient)
		return s.smsSender.Send(ctx, m.Recipient, m.Body)
	default:
		return fmt.Errorf("unsupported notification channel %q", m.Channel)
	}
}
