package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSAPI is the part of the SNS client used for SMS.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type snsSMSSender struct {
	client      SNSAPI
	countryCode string
	log         *slog.Logger
}

// NewSNSSMSSender sends transactional SMS through Amazon SNS.
func NewSNSSMSSender(client SNSAPI, countryCode string, log *slog.Logger) SMSSender {
	return &snsSMSSender{client: client, countryCode: countryCode, log: log}
}

func (s *snsSMSSender) Configured() bool { return true }

func (s *snsSMSSender) Send(ctx context.Context, to, message string) error {
	phone := "+" + NormalizePhone(to, s.countryCode)
	out, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(PrepareSMSText(message)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
		},
	})
	if err != nil {
		return fmt.Errorf("sns: failed to send sms: %w", err)
	}

	s.log.Info("sms sent via sns", "to", phone, "message_id", aws.ToString(out.MessageId))
	return nil
}
