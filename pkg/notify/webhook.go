package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/secondbrainhq/secondbrain/pkg/services"
	"github.com/secondbrainhq/secondbrain/pkg/store"
)

// Webhook posts JSON payloads to the URL configured in notification_config.
type Webhook struct {
	settings *store.Settings
	client   *http.Client
	logger   *slog.Logger
}

// NewWebhook creates the webhook sender.
func NewWebhook(settings *store.Settings, logger *slog.Logger) *Webhook {
	return &Webhook{
		settings: settings,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger.With("component", "webhook"),
	}
}

// Send posts the payload to the configured webhook URL. url may be empty to
// use the channel configuration.
func (w *Webhook) Send(ctx context.Context, url string, payload map[string]any) Result {
	res := Result{Channel: ChannelWebhook, Recipient: url}

	if url == "" {
		cfg, enabled, err := w.settings.NotificationConfig(ctx, ChannelWebhook)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				res.Error = "webhook channel not configured"
			} else {
				res.Error = fmt.Sprintf("load webhook config: %v", err)
			}
			return res
		}
		if !enabled {
			res.Error = "webhook channel disabled"
			return res
		}
		url, _ = cfg["url"].(string)
		res.Recipient = url
	}
	if url == "" {
		res.Error = "webhook url missing"
		return res
	}

	body, err := json.Marshal(payload)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		res.Error = err.Error()
		return res
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		res.Error = err.Error()
		w.logger.Warn("webhook delivery failed", "url", url, "error", err)
		return res
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		res.Error = fmt.Sprintf("webhook returned %d", resp.StatusCode)
		w.logger.Warn("webhook delivery rejected", "url", url, "status", resp.StatusCode)
		return res
	}

	res.Success = true
	return res
}
