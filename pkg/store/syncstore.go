package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/secondbrainhq/secondbrain/pkg/models"
)

// SyncStore persists sync configuration, tokens, and the sync log.
type SyncStore struct {
	g *Gateway
}

// NewSyncStore creates the sync repository.
func NewSyncStore(g *Gateway) *SyncStore {
	return &SyncStore{g: g}
}

const syncConfigColumns = "id, provider, enabled, sync_interval, credentials, last_sync, write_calendar_id, created_at, updated_at"

// Config loads one provider's sync configuration.
func (s *SyncStore) Config(ctx context.Context, provider string) (*models.SyncConfig, error) {
	row, err := s.g.QueryOne(ctx,
		"SELECT "+syncConfigColumns+" FROM sync_config WHERE provider = $1", provider)
	if err != nil {
		return nil, err
	}
	return scanSyncConfig(row), nil
}

// EnabledConfigs returns all enabled provider configurations.
func (s *SyncStore) EnabledConfigs(ctx context.Context) ([]*models.SyncConfig, error) {
	rows, err := s.g.Query(ctx,
		"SELECT "+syncConfigColumns+" FROM sync_config WHERE enabled = TRUE ORDER BY provider")
	if err != nil {
		return nil, err
	}
	out := make([]*models.SyncConfig, 0, len(rows))
	for _, row := range rows {
		out = append(out, scanSyncConfig(row))
	}
	return out, nil
}

// SaveSyncToken stores the new incremental token inside credentials and
// stamps last_sync.
func (s *SyncStore) SaveSyncToken(ctx context.Context, provider, token string) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal sync token: %w", err)
	}
	_, err = s.g.Exec(ctx, `UPDATE sync_config
		SET credentials = jsonb_set(credentials, '{sync_token}', $2::jsonb),
		    last_sync = NOW(), updated_at = NOW()
		WHERE provider = $1`, provider, string(raw))
	return err
}

// TouchLastSync stamps last_sync without changing the token.
func (s *SyncStore) TouchLastSync(ctx context.Context, provider string) error {
	_, err := s.g.Exec(ctx,
		"UPDATE sync_config SET last_sync = NOW(), updated_at = NOW() WHERE provider = $1", provider)
	return err
}

// InsertLog writes one sync-log row.
func (s *SyncStore) InsertLog(ctx context.Context, entry *models.SyncLog) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}
	_, err = s.g.Exec(ctx, `INSERT INTO sync_log (provider, direction, action, status, details, created_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, NOW())`,
		entry.Provider, entry.Direction, entry.Action, entry.Status, string(details))
	return err
}

// ListLogs returns the newest sync-log rows, capped at limit.
func (s *SyncStore) ListLogs(ctx context.Context, limit int) ([]*models.SyncLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.g.Query(ctx, `SELECT id, provider, direction, action, status, details, created_at
		FROM sync_log ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*models.SyncLog, 0, len(rows))
	for _, row := range rows {
		entry := &models.SyncLog{
			ID:        asInt64(row["id"]),
			Provider:  asString(row["provider"]),
			Direction: asString(row["direction"]),
			Action:    asString(row["action"]),
			Status:    asString(row["status"]),
			Details:   asJSONMap(row["details"]),
		}
		if t := asTime(row["created_at"]); t != nil {
			entry.CreatedAt = *t
		}
		out = append(out, entry)
	}
	return out, nil
}

// DeleteLogsOlderThan hard-deletes sync-log rows past the retention window.
func (s *SyncStore) DeleteLogsOlderThan(ctx context.Context, days int) (int64, error) {
	return s.g.Exec(ctx,
		"DELETE FROM sync_log WHERE created_at < NOW() - make_interval(days => $1)", days)
}

func scanSyncConfig(row Row) *models.SyncConfig {
	cfg := &models.SyncConfig{
		ID:              asInt64(row["id"]),
		Provider:        asString(row["provider"]),
		Enabled:         asBool(row["enabled"]),
		SyncInterval:    int(asInt64(row["sync_interval"])),
		Credentials:     asJSONMap(row["credentials"]),
		LastSync:        asTime(row["last_sync"]),
		WriteCalendarID: asString(row["write_calendar_id"]),
	}
	if t := asTime(row["created_at"]); t != nil {
		cfg.CreatedAt = *t
	}
	if t := asTime(row["updated_at"]); t != nil {
		cfg.UpdatedAt = *t
	}
	return cfg
}
