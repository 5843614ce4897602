// Package config serves runtime configuration from the database with a short
// in-memory cache, so settings and language mappings can change without a
// restart while hot paths avoid a query per lookup.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/secondbrainhq/secondbrain/pkg/services"
	"github.com/secondbrainhq/secondbrain/pkg/store"
)

// cacheTTL bounds staleness after an admin edits a setting.
const cacheTTL = 60 * time.Second

// Defaults applied when the database has no row for a setting.
const (
	DefaultTimezone            = "Europe/Berlin"
	DefaultConfidenceThreshold = 0.3
	DefaultMaxMatches          = 5
	DefaultKeywordMinLength    = 2
)

// Manager caches system settings and language mappings.
type Manager struct {
	settings *store.Settings
	logger   *slog.Logger

	mu       sync.RWMutex
	values   map[string]json.RawMessage
	mappings map[string][]string
	loadedAt time.Time
}

// NewManager creates a manager over the settings repository.
func NewManager(settings *store.Settings, logger *slog.Logger) *Manager {
	return &Manager{
		settings: settings,
		logger:   logger.With("component", "config"),
	}
}

// Invalidate drops the cache so the next read hits the database.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = nil
	m.mappings = nil
	m.loadedAt = time.Time{}
}

func (m *Manager) ensure(ctx context.Context) error {
	m.mu.RLock()
	fresh := m.values != nil && time.Since(m.loadedAt) < cacheTTL
	m.mu.RUnlock()
	if fresh {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values != nil && time.Since(m.loadedAt) < cacheTTL {
		return nil
	}

	values := make(map[string]json.RawMessage)
	for _, key := range []string{"timezone", "confidence_threshold", "max_matches", "keyword_min_length"} {
		raw, err := m.settings.GetSetting(ctx, key)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				continue
			}
			return err
		}
		values[key] = raw
	}

	mappings := make(map[string][]string)
	for _, typ := range []string{"stopwords", "completion", "deletion"} {
		rows, err := m.settings.Mappings(ctx, typ)
		if err != nil {
			return err
		}
		var words []string
		for _, raw := range rows {
			var list []string
			if err := json.Unmarshal(raw, &list); err != nil {
				m.logger.Warn("skipping malformed language mapping", "type", typ, "error", err)
				continue
			}
			words = append(words, list...)
		}
		mappings[typ] = words
	}

	m.values = values
	m.mappings = mappings
	m.loadedAt = time.Now()
	return nil
}

// Timezone returns the configured location, falling back to the default when
// the setting is absent or unloadable.
func (m *Manager) Timezone(ctx context.Context) *time.Location {
	name := DefaultTimezone
	if raw, ok := m.raw(ctx, "timezone"); ok {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			name = s
		}
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		m.logger.Warn("invalid timezone setting, using UTC", "timezone", name)
		return time.UTC
	}
	return loc
}

// ConfidenceThreshold returns the clarification cutoff.
func (m *Manager) ConfidenceThreshold(ctx context.Context) float64 {
	return m.floatSetting(ctx, "confidence_threshold", DefaultConfidenceThreshold)
}

// MaxMatches returns the entity matcher result cap.
func (m *Manager) MaxMatches(ctx context.Context) int {
	return int(m.floatSetting(ctx, "max_matches", DefaultMaxMatches))
}

// KeywordMinLength returns the minimum keyword length for matching.
func (m *Manager) KeywordMinLength(ctx context.Context) int {
	return int(m.floatSetting(ctx, "keyword_min_length", DefaultKeywordMinLength))
}

// Stopwords returns words excluded from keyword extraction.
func (m *Manager) Stopwords(ctx context.Context) []string {
	return m.mapping(ctx, "stopwords")
}

// CompletionKeywords returns words that mark a task as done.
func (m *Manager) CompletionKeywords(ctx context.Context) []string {
	return m.mapping(ctx, "completion")
}

// DeletionKeywords returns words that request a soft delete.
func (m *Manager) DeletionKeywords(ctx context.Context) []string {
	return m.mapping(ctx, "deletion")
}

func (m *Manager) raw(ctx context.Context, key string) (json.RawMessage, bool) {
	if err := m.ensure(ctx); err != nil {
		m.logger.Warn("settings load failed, using defaults", "error", err)
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.values[key]
	return raw, ok
}

func (m *Manager) floatSetting(ctx context.Context, key string, fallback float64) float64 {
	raw, ok := m.raw(ctx, key)
	if !ok {
		return fallback
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return fallback
	}
	return f
}

func (m *Manager) mapping(ctx context.Context, typ string) []string {
	if err := m.ensure(ctx); err != nil {
		m.logger.Warn("mappings load failed", "type", typ, "error", err)
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mappings[typ]
}
