// Package notify delivers one-time codes through a Make-style webhook.
// Delivery is synchronous, single-attempt, best-effort: the caller
// decides what to do when the channel fails.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/healthcard/healthcard-api/pkg/config"
	"github.com/healthcard/healthcard-api/pkg/logger"
	"github.com/healthcard/healthcard-api/pkg/types"
)

// WebhookNotifier posts code emails to the configured webhook URL
type WebhookNotifier struct {
	cfg    *config.EmailConfig
	client *http.Client
	logger *logger.Logger
}

// NewWebhookNotifier creates a new webhook notifier
func NewWebhookNotifier(cfg *config.EmailConfig, log *logger.Logger) *WebhookNotifier {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: log,
	}
}

// Configured reports whether a webhook URL is set
func (n *WebhookNotifier) Configured() bool {
	return n.cfg.WebhookURL != ""
}

// SendCode posts the code email and treats any non-2xx response as a
// delivery failure
func (n *WebhookNotifier) SendCode(ctx context.Context, email types.CodeEmail) error {
	if !n.Configured() {
		return types.NewUnavailableError(types.ErrCodeServiceUnavailable, "Email service is not configured")
	}

	if email.AppName == "" {
		email.AppName = n.cfg.AppName
	}

	body, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("failed to marshal code email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.cfg.APIKey != "" {
		req.Header.Set("x-make-apikey", n.cfg.APIKey)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.WithError(err).Warn("Code email delivery failed")
		return types.NewUnavailableError(types.ErrCodeServiceUnavailable, "Unable to send code email")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.logger.WithField("status", resp.StatusCode).Warn("Webhook rejected code email")
		return types.NewUnavailableError(types.ErrCodeServiceUnavailable, "Unable to send code email")
	}

	n.logger.WithFields(map[string]interface{}{
		"channel": email.Channel,
	}).Info("Code email delivered")
	return nil
}
