package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/secondbrainhq/secondbrain/pkg/models"
)

// Settings reads and writes the DB-backed configuration substrate:
// system_settings, language_mappings, api_keys, telegram_config, and
// notification_config.
type Settings struct {
	g *Gateway
}

// NewSettings creates the settings repository.
func NewSettings(g *Gateway) *Settings {
	return &Settings{g: g}
}

// GetSetting returns the raw JSON value of one system setting.
func (s *Settings) GetSetting(ctx context.Context, key string) (json.RawMessage, error) {
	row, err := s.g.QueryOne(ctx,
		"SELECT setting_value FROM system_settings WHERE setting_key = $1", key)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(asString(row["setting_value"])), nil
}

// SetSetting upserts one system setting.
func (s *Settings) SetSetting(ctx context.Context, key string, value any, description string) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal setting %s: %w", key, err)
	}
	_, err = s.g.Exec(ctx, `INSERT INTO system_settings (setting_key, setting_value, description)
		VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (setting_key)
		DO UPDATE SET setting_value = EXCLUDED.setting_value, updated_at = NOW()`,
		key, string(raw), description)
	return err
}

// Mappings returns the active language mappings of one type, keyed by
// mapping_key, values as raw JSON.
func (s *Settings) Mappings(ctx context.Context, mappingType string) (map[string]json.RawMessage, error) {
	rows, err := s.g.Query(ctx,
		`SELECT mapping_key, mapping_value FROM language_mappings
		 WHERE mapping_type = $1 AND is_active = TRUE`, mappingType)
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		out[asString(row["mapping_key"])] = json.RawMessage(asString(row["mapping_value"]))
	}
	return out, nil
}

// APIKey returns the valid key stored for a provider. Missing rows surface as
// services.ErrNotFound so the caller can fall through to the environment.
func (s *Settings) APIKey(ctx context.Context, provider string) (string, error) {
	row, err := s.g.QueryOne(ctx,
		"SELECT api_key FROM api_keys WHERE provider = $1 AND valid = TRUE", provider)
	if err != nil {
		return "", err
	}
	return asString(row["api_key"]), nil
}

// TelegramConfig returns the active bot configuration.
func (s *Settings) TelegramConfig(ctx context.Context) (*models.TelegramConfig, error) {
	row, err := s.g.QueryOne(ctx,
		"SELECT id, bot_token, chat_id, webhook_secret, is_active FROM telegram_config WHERE is_active = TRUE")
	if err != nil {
		return nil, err
	}
	return &models.TelegramConfig{
		ID:            asInt64(row["id"]),
		BotToken:      asString(row["bot_token"]),
		ChatID:        asString(row["chat_id"]),
		WebhookSecret: asString(row["webhook_secret"]),
		IsActive:      asBool(row["is_active"]),
	}, nil
}

// NotificationConfig returns the config map and enabled flag of one channel.
func (s *Settings) NotificationConfig(ctx context.Context, channel string) (map[string]any, bool, error) {
	row, err := s.g.QueryOne(ctx,
		"SELECT config, enabled FROM notification_config WHERE channel = $1", channel)
	if err != nil {
		return nil, false, err
	}
	return asJSONMap(row["config"]), asBool(row["enabled"]), nil
}

// SetNotificationConfig upserts a channel configuration.
func (s *Settings) SetNotificationConfig(ctx context.Context, channel string, config map[string]any, enabled bool) error {
	raw, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshal notification config: %w", err)
	}
	_, err = s.g.Exec(ctx, `INSERT INTO notification_config (channel, config, enabled)
		VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (channel)
		DO UPDATE SET config = EXCLUDED.config, enabled = EXCLUDED.enabled, updated_at = NOW()`,
		channel, string(raw), enabled)
	return err
}

// NotificationChannels lists configured channels and their enabled flags.
func (s *Settings) NotificationChannels(ctx context.Context) (map[string]bool, error) {
	rows, err := s.g.Query(ctx, "SELECT channel, enabled FROM notification_config")
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(rows))
	for _, row := range rows {
		out[asString(row["channel"])] = asBool(row["enabled"])
	}
	return out, nil
}
