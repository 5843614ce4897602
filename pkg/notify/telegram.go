package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/secondbrainhq/secondbrain/pkg/models"
	"github.com/secondbrainhq/secondbrain/pkg/store"
)

const telegramAPIBase = "https://api.telegram.org"

// Telegram sends messages through the Bot API using the configuration stored
// in telegram_config. The config is cached until Invalidate is called.
type Telegram struct {
	settings *store.Settings
	client   *http.Client
	logger   *slog.Logger

	mu  sync.Mutex
	cfg *models.TelegramConfig
}

// NewTelegram creates the Telegram sender.
func NewTelegram(settings *store.Settings, logger *slog.Logger) *Telegram {
	return &Telegram{
		settings: settings,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger.With("component", "telegram"),
	}
}

// Invalidate drops the cached bot configuration.
func (t *Telegram) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cfg = nil
}

// Config returns the cached active bot configuration.
func (t *Telegram) Config(ctx context.Context) (*models.TelegramConfig, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cfg != nil {
		return t.cfg, nil
	}
	cfg, err := t.settings.TelegramConfig(ctx)
	if err != nil {
		return nil, err
	}
	t.cfg = cfg
	return cfg, nil
}

// Send delivers an HTML-formatted message to a chat. An empty chatID falls
// back to the configured default chat.
func (t *Telegram) Send(ctx context.Context, chatID, text string) Result {
	res := Result{Channel: ChannelTelegram, Recipient: chatID}

	cfg, err := t.Config(ctx)
	if err != nil {
		res.Error = fmt.Sprintf("load telegram config: %v", err)
		t.logger.Warn("telegram send skipped", "error", res.Error)
		return res
	}
	if chatID == "" {
		chatID = cfg.ChatID
		res.Recipient = chatID
	}

	payload, err := json.Marshal(map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		res.Error = err.Error()
		return res
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", telegramAPIBase, cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		res.Error = err.Error()
		return res
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		res.Error = err.Error()
		t.logger.Warn("telegram send failed", "chat_id", chatID, "error", err)
		return res
	}
	defer resp.Body.Close()

	var apiResp struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		res.Error = fmt.Sprintf("decode response: %v", err)
		return res
	}
	if !apiResp.OK {
		res.Error = fmt.Sprintf("telegram api: %s (http %d)", apiResp.Description, resp.StatusCode)
		t.logger.Warn("telegram send rejected", "chat_id", chatID, "error", res.Error)
		return res
	}

	res.Success = true
	return res
}
