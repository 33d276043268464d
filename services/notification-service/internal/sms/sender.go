package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrNotConfigured = errors.New("sms webhook url not configured")

// Sender delivers a short text. reference identifies the triggering event so the
// provider can drop duplicates.
type Sender interface {
	Send(ctx context.Context, to, body, reference string) error
	ProviderID() string
}

type WebhookConfig struct {
	URL     string
	Token   string
	Timeout time.Duration // zero means 5s
}

// Webhook posts {to, body, reference} as JSON to a provider gateway. The reference is
// repeated in the Idempotency-Key header.
type Webhook struct {
	cfg    WebhookConfig
	client *http.Client
}

type webhookMessage struct {
	To        string `json:"to"`
	Body      string `json:"body"`
	Reference string `json:"reference,omitempty"`
}

func NewWebhookSender(cfg WebhookConfig) *Webhook {
	cfg.URL = strings.TrimSpace(cfg.URL)
	cfg.Token = strings.TrimSpace(cfg.Token)
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Webhook{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (*Webhook) ProviderID() string { return "sms-webhook" }

func (s *Webhook) Send(ctx context.Context, to, body, reference string) error {
	if s.cfg.URL == "" {
		return ErrNotConfigured
	}
	raw, err := json.Marshal(webhookMessage{To: to, Body: body, Reference: reference})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if reference != "" {
		req.Header.Set("Idempotency-Key", reference)
	}
	if s.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 == 2 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	if msg := strings.TrimSpace(string(snippet)); msg != "" {
		return fmt.Errorf("sms webhook returned %d: %s", resp.StatusCode, msg)
	}
	return fmt.Errorf("sms webhook returned %d", resp.StatusCode)
}

// Noop accepts every message. Used when no provider is configured but delivery
// attempts should still be recorded.
type Noop struct{}

func (Noop) ProviderID() string { return "sms-noop" }
func (Noop) Send(context.Context, string, string, string) error { return nil }

// Text is the single-line SMS form of a booking message.
func Text(kind, meetingType, date, clock, timezone string) string {
	return fmt.Sprintf("%s: %s on %s at %s (%s)", kind, meetingType, date, clock, timezone)
}
