package notification

import (
	"context"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/delordemm1/routine-notifier/internal/config"
)

// NewEmailSenderFromConfig picks the email provider named by cfg.Email.Provider.
// A provider missing required settings yields an unconfigured sender.
func NewEmailSenderFromConfig(ctx context.Context, cfg *config.Config, log *slog.Logger) (EmailSender, error) {
	switch cfg.Email.Provider {
	case "smtp":
		c := cfg.SMTP
		if c.Host == "" || c.Username == "" || c.Password == "" || c.From == "" {
			break
		}
		return NewSMTPEmailSender(c.Host, c.Port, c.Username, c.Password, c.From, log), nil
	case "ses":
		if cfg.SES.Region == "" || cfg.SES.From == "" {
			break
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.SES.Region))
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		return NewSESEmailSender(ses.NewFromConfig(awsCfg), cfg.SES.From, log), nil
	case "resend":
		if cfg.Resend.APIKey == "" || cfg.Resend.SenderEmail == "" {
			break
		}
		return NewResendEmailSender(cfg.Resend.APIKey, cfg.Resend.SenderEmail, cfg.Resend.SenderName, log), nil
	case "none":
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Email.Provider)
	}

	log.Warn("email provider is not configured", "provider", cfg.Email.Provider)
	return NewUnconfiguredEmailSender(log), nil
}

// NewSMSSenderFromConfig picks the SMS provider named by cfg.SMS.Provider.
func NewSMSSenderFromConfig(ctx context.Context, cfg *config.Config, log *slog.Logger) (SMSSender, error) {
	c := cfg.SMS
	switch c.Provider {
	case "http":
		if c.URL == "" || c.APIKey == "" {
			break
		}
		return NewHTTPSMSSender(HTTPSMSConfig{
			URL:         c.URL,
			APIKey:      c.APIKey,
			PartnerID:   c.PartnerID,
			Shortcode:   c.Shortcode,
			PassType:    c.PassType,
			CountryCode: c.CountryCode,
		}, log), nil
	case "sns":
		if c.Region == "" {
			break
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.Region))
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		return NewSNSSMSSender(sns.NewFromConfig(awsCfg), c.CountryCode, log), nil
	case "none":
	default:
		return nil, fmt.Errorf("unknown sms provider %q", c.Provider)
	}

	log.Warn("sms provider is not configured", "provider", c.Provider)
	return NewUnconfiguredSMSSender(log), nil
}
