package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESAPI is the part of the SES client used for sending.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type sesEmailSender struct {
	client SESAPI
	from   string
	log    *slog.Logger
}

// NewSESEmailSender sends email through Amazon SES.
func NewSESEmailSender(client SESAPI, from string, log *slog.Logger) EmailSender {
	return &sesEmailSender{client: client, from: from, log: log}
}

func (s *sesEmailSender) Configured() bool { return true }

func (s *sesEmailSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	out, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{ToAddresses: []string{to}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")},
				Text: &types.Content{Data: aws.String(PlainText(htmlBody)), Charset: aws.String("UTF-8")},
			},
		},
		Source: aws.String(s.from),
	})
	if err != nil {
		return fmt.Errorf("ses: failed to send email: %w", err)
	}

	s.log.Info("email sent via ses", "to", to, "message_id", aws.ToString(out.MessageId))
	return nil
}
