package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hazyhaar/docveille/monitor"
)

// WebhookConfig configures the webhook notifier.
type WebhookConfig struct {
	URL string
	// Secret, when set, signs the payload: X-Signature-256 carries
	// "sha256=" + hex HMAC-SHA256 of the body.
	Secret string
	// Timeout bounds the POST. Default: 10s.
	Timeout time.Duration
}

func (c *WebhookConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

// Webhook POSTs the full report as JSON to one endpoint. Unlike Telegram it
// also delivers no-change reports; the receiver decides what matters.
type Webhook struct {
	config WebhookConfig
	client *http.Client
}

// NewWebhook creates a Webhook notifier.
func NewWebhook(cfg WebhookConfig) *Webhook {
	cfg.defaults()
	return &Webhook{config: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (w *Webhook) Notify(ctx context.Context, report *monitor.Report) error {
	if w.config.URL == "" {
		return nil
	}
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("webhook: marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.config.Secret != "" {
		mac := hmac.New(sha256.New, []byte(w.config.Secret))
		mac.Write(body)
		req.Header.Set("X-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: POST: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned %d", resp.StatusCode)
	}
	return nil
}
