package loyalty

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/appetiteclub/apt"
)

const otpMessageFormat = "Your Epicure Cafe OTP is %s. Valid for %d minutes. Do not share this code with anyone."

// Sender delivers a text message to a 10 digit mobile.
type Sender interface {
	Send(ctx context.Context, mobile, message string) error
}

// LogSender writes messages to the log instead of sending them.
type LogSender struct {
	logger apt.Logger
}

func NewLogSender(logger apt.Logger) *LogSender {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, mobile, message string) error {
	s.logger.Info("sms not sent (demo mode)", "mobile", mobile, "message", message)
	return nil
}

// AirtelSender sends messages through the Airtel business SMS gateway.
type AirtelSender struct {
	cfg    SMSSettings
	client *http.Client
	logger apt.Logger
}

type airtelPayload struct {
	Sender        string `json:"sender"`
	Message       string `json:"message"`
	Mobile        string `json:"mobile"`
	DLTTemplateID string `json:"dlt_template_id"`
	Unicode       bool   `json:"unicode"`
}

func NewAirtelSender(cfg SMSSettings, logger apt.Logger) (*AirtelSender, error) {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if cfg.URL == "" || cfg.APIKey == "" || cfg.SenderID == "" || cfg.TemplateID == "" {
		return nil, fmt.Errorf("airtel sms requires url, key, sender and template")
	}
	return &AirtelSender{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}, nil
}

func (s *AirtelSender) Send(ctx context.Context, mobile, message string) error {
	body, err := json.Marshal(airtelPayload{
		Sender:        s.cfg.SenderID,
		Message:       message,
		Mobile:        "91" + mobile,
		DLTTemplateID: s.cfg.TemplateID,
	})
	if err != nil {
		return fmt.Errorf("encode sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	s.logger.Debug("sms sent", "mobile", mobile)
	return nil
}

// NewSender picks the gateway sender when SMS is enabled outside demo mode.
func NewSender(settings Settings, logger apt.Logger) (Sender, error) {
	if settings.DemoMode || !settings.SMS.Enabled {
		return NewLogSender(logger), nil
	}
	return NewAirtelSender(settings.SMS, logger)
}

// OTPMessage renders the login code text.
func OTPMessage(code string, ttl time.Duration) string {
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf(otpMessageFormat, code, minutes)
}
