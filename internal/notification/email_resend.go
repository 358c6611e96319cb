package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v3"
)

type resendEmailSender struct {
	client *resend.Client
	from   string
	log    *slog.Logger
}

// NewResendEmailSender sends email through the Resend API.
func NewResendEmailSender(apiKey, senderEmail, senderName string, log *slog.Logger) EmailSender {
	return &resendEmailSender{
		client: resend.NewClient(apiKey),
		from:   formatSender(senderEmail, senderName),
		log:    log,
	}
}

func formatSender(email, name string) string {
	if name != "" {
		return fmt.Sprintf("%s <%s>", name, email)
	}
	return email
}

func (s *resendEmailSender) Configured() bool { return true }

func (s *resendEmailSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Html:    htmlBody,
		Text:    PlainText(htmlBody),
	})
	if err != nil {
		return fmt.Errorf("resend: failed to send email: %w", err)
	}

	s.log.Info("email sent via resend", "to", to, "id", sent.Id)
	return nil
}
