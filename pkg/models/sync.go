package models

import "time"

// SyncConfig holds per-provider sync settings. Credentials is provider-shaped
// JSON and may carry an opaque sync_token between runs.
type SyncConfig struct {
	ID              int64          `json:"id"`
	Provider        string         `json:"provider"`
	Enabled         bool           `json:"enabled"`
	SyncInterval    int            `json:"sync_interval"` // seconds
	Credentials     map[string]any `json:"credentials,omitempty"`
	LastSync        *time.Time     `json:"last_sync,omitempty"`
	WriteCalendarID string         `json:"write_calendar_id,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// SyncToken returns the stored incremental-sync token, if any.
func (c *SyncConfig) SyncToken() string {
	if c.Credentials == nil {
		return ""
	}
	if tok, ok := c.Credentials["sync_token"].(string); ok {
		return tok
	}
	return ""
}

// SyncLog records one statistic of one sync run.
type SyncLog struct {
	ID        int64          `json:"id"`
	Provider  string         `json:"provider"`
	Direction string         `json:"direction"`
	Action    string         `json:"action"`
	Status    string         `json:"status"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ReportChannel maps a report type to the recipients of one channel type.
type ReportChannel struct {
	ID          int64     `json:"id"`
	ReportType  string    `json:"report_type"`
	ChannelType string    `json:"channel_type"`
	Recipients  []string  `json:"recipients"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TelegramConfig is the single active bot configuration.
type TelegramConfig struct {
	ID            int64  `json:"id"`
	BotToken      string `json:"bot_token"`
	ChatID        string `json:"chat_id"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
	IsActive      bool   `json:"is_active"`
}
