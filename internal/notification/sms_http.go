package notification

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPSMSConfig describes a form-encoded SMS gateway.
type HTTPSMSConfig struct {
	URL         string
	APIKey      string
	PartnerID   string
	Shortcode   string
	PassType    string
	CountryCode string
}

type httpSMSSender struct {
	cfg    HTTPSMSConfig
	client *http.Client
	log    *slog.Logger
}

// NewHTTPSMSSender posts messages to an SMS gateway as an HTML form.
func NewHTTPSMSSender(cfg HTTPSMSConfig, log *slog.Logger) SMSSender {
	if cfg.PassType == "" {
		cfg.PassType = "plain"
	}
	return &httpSMSSender{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		log:    log,
	}
}

func (s *httpSMSSender) Configured() bool { return true }

func (s *httpSMSSender) Send(ctx context.Context, to, message string) error {
	mobile := NormalizePhone(to, s.cfg.CountryCode)

	form := url.Values{}
	form.Set("apikey", s.cfg.APIKey)
	form.Set("partnerID", s.cfg.PartnerID)
	form.Set("shortcode", s.cfg.Shortcode)
	form.Set("pass_type", s.cfg.PassType)
	form.Set("mobile", mobile)
	form.Set("message", PrepareSMSText(message))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("SMS provider error: %d %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	s.log.Info("sms sent via gateway", "to", mobile)
	return nil
}
