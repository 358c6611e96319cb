package notification

import (
	"context"
	"log/slog"
)

// unconfiguredSender stands in for a channel whose provider has no
// credentials. Sends succeed without delivering anything.
type unconfiguredSender struct {
	channel Channel
	log     *slog.Logger
}

func (s *unconfiguredSender) Configured() bool { return false }

func (s *unconfiguredSender) skip(to string) error {
	s.log.Warn("no provider configured, notification not delivered", "channel", s.channel, "to", to)
	return nil
}

type unconfiguredEmail struct{ unconfiguredSender }

func (s *unconfiguredEmail) Send(_ context.Context, to, _, _ string) error { return s.skip(to) }

type unconfiguredSMS struct{ unconfiguredSender }

func (s *unconfiguredSMS) Send(_ context.Context, to, _ string) error { return s.skip(to) }

// NewUnconfiguredEmailSender returns an EmailSender that delivers nothing.
func NewUnconfiguredEmailSender(log *slog.Logger) EmailSender {
	return &unconfiguredEmail{unconfiguredSender{channel: ChannelEmail, log: log}}
}

// NewUnconfiguredSMSSender returns an SMSSender that delivers nothing.
func NewUnconfiguredSMSSender(log *slog.Logger) SMSSender {
	return &unconfiguredSMS{unconfiguredSender{channel: ChannelSMS, log: log}}
}
