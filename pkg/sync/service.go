package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/secondbrainhq/secondbrain/pkg/masking"
	"github.com/secondbrainhq/secondbrain/pkg/models"
	"github.com/secondbrainhq/secondbrain/pkg/services"
	"github.com/secondbrainhq/secondbrain/pkg/store"
)

// Service runs contact sync against one or more providers.
type Service struct {
	contacts  *store.Contacts
	syncStore *store.SyncStore
	logger    *slog.Logger
}

// NewService creates the sync engine.
func NewService(contacts *store.Contacts, syncStore *store.SyncStore, logger *slog.Logger) *Service {
	return &Service{
		contacts:  contacts,
		syncStore: syncStore,
		logger:    logger.With("component", "sync"),
	}
}

// SyncContacts runs one full reconciliation pass against the adapter's
// provider: pull remote changes, apply remote deletions, push local pending
// work, then advance the sync token.
func (s *Service) SyncContacts(ctx context.Context, adapter ContactAdapter) (*Stats, error) {
	provider := adapter.Provider()
	cfg, err := s.syncStore.Config(ctx, provider)
	if err != nil {
		return nil, fmt.Errorf("load sync config for %s: %w", provider, err)
	}
	if !cfg.Enabled {
		s.logger.Info("sync disabled", "provider", provider)
		return &Stats{}, nil
	}

	stats := &Stats{}
	delta, err := adapter.Pull(ctx, cfg.SyncToken())
	if err != nil {
		return nil, fmt.Errorf("pull from %s: %w", provider, err)
	}
	s.logger.Info("pulled remote changes", "provider", provider,
		"changed", len(delta.Changed), "deleted", len(delta.Deleted))

	for _, remote := range delta.Changed {
		if err := s.applyRemote(ctx, provider, remote, stats); err != nil {
			stats.Errors++
			s.logger.Error("applying remote contact failed",
				"provider", provider, "uid", remote.ProviderUID(provider), "error", err)
		}
	}

	for _, uid := range delta.Deleted {
		deleted, err := s.contacts.SoftDeleteByProviderUID(ctx, provider, uid)
		if err != nil {
			stats.Errors++
			s.logger.Error("applying remote deletion failed", "provider", provider, "uid", uid, "error", err)
			continue
		}
		if deleted {
			stats.Deleted++
		}
	}

	s.pushPending(ctx, adapter, stats)
	s.pushDeletions(ctx, adapter, stats)

	if delta.SyncToken != "" {
		err = s.syncStore.SaveSyncToken(ctx, provider, delta.SyncToken)
	} else {
		err = s.syncStore.TouchLastSync(ctx, provider)
	}
	if err != nil {
		return stats, fmt.Errorf("save sync state for %s: %w", provider, err)
	}

	s.logStats(ctx, provider, cfg, stats)
	return stats, nil
}

// applyRemote reconciles one pulled contact against the local copy.
func (s *Service) applyRemote(ctx context.Context, provider string, remote *models.Contact, stats *Stats) error {
	uid := remote.ProviderUID(provider)
	local, err := s.contacts.FindByProviderUID(ctx, provider, uid)
	if errors.Is(err, services.ErrNotFound) {
		if _, err := s.contacts.Insert(ctx, remote); err != nil {
			return err
		}
		stats.Pulled++
		return nil
	}
	if err != nil {
		return err
	}

	switch Resolve(local, remote, remoteRevision(remote)) {
	case ActionNone:
		return nil
	case ActionPush:
		// Local pending copy wins; the push stage uploads it.
		stats.Conflicts++
		return nil
	default:
		merged := Merge(local, remote, provider)
		if err := s.contacts.Update(ctx, merged); err != nil {
			return err
		}
		stats.Pulled++
		return nil
	}
}

// remoteRevision returns the provider-reported modification time of a pulled
// contact, nil for providers that sent none.
func remoteRevision(remote *models.Contact) *time.Time {
	if remote.UpdatedAt.IsZero() {
		return nil
	}
	t := remote.UpdatedAt
	return &t
}

// pushPending uploads locally created or edited contacts.
func (s *Service) pushPending(ctx context.Context, adapter ContactAdapter, stats *Stats) {
	provider := adapter.Provider()
	pending, err := s.contacts.PendingForProvider(ctx, provider)
	if err != nil {
		stats.Errors++
		s.logger.Error("listing pending contacts failed", "provider", provider, "error", err)
		return
	}

	for _, c := range pending {
		uid, etag, err := adapter.Push(ctx, c)
		if err != nil {
			stats.Errors++
			s.logger.Error("pushing contact failed", "provider", provider, "id", c.ID, "error", err)
			continue
		}
		if err := s.contacts.MarkSynced(ctx, c.ID, provider, uid, etag); err != nil {
			stats.Errors++
			s.logger.Error("marking contact synced failed", "provider", provider, "id", c.ID, "error", err)
			continue
		}
		stats.Pushed++
	}
}

// pushDeletions removes remote copies of locally deleted contacts.
func (s *Service) pushDeletions(ctx context.Context, adapter ContactAdapter, stats *Stats) {
	provider := adapter.Provider()
	deleted, err := s.contacts.DeletedForProvider(ctx, provider)
	if err != nil {
		stats.Errors++
		s.logger.Error("listing deleted contacts failed", "provider", provider, "error", err)
		return
	}

	for _, c := range deleted {
		uid := c.ProviderUID(provider)
		if _, err := adapter.Delete(ctx, uid); err != nil {
			stats.Errors++
			s.logger.Error("remote delete failed", "provider", provider, "uid", uid, "error", err)
			continue
		}
		if err := s.contacts.ClearProviderUID(ctx, c.ID, provider); err != nil {
			stats.Errors++
			s.logger.Error("clearing provider uid failed", "provider", provider, "id", c.ID, "error", err)
			continue
		}
		stats.Deleted++
	}
}

// logStats writes one sync_log row per non-zero counter, with credentials
// masked out of the details.
func (s *Service) logStats(ctx context.Context, provider string, cfg *models.SyncConfig, stats *Stats) {
	entries := []struct {
		direction, action string
		count             int
	}{
		{"pull", "upsert", stats.Pulled},
		{"push", "upsert", stats.Pushed},
		{"both", "delete", stats.Deleted},
		{"both", "conflict", stats.Conflicts},
		{"both", "error", stats.Errors},
	}
	for _, e := range entries {
		if e.count == 0 {
			continue
		}
		status := "success"
		if e.action == "error" {
			status = "error"
		}
		entry := &models.SyncLog{
			Provider:  provider,
			Direction: e.direction,
			Action:    e.action,
			Status:    status,
			Details: masking.MaskMap(map[string]any{
				"count":       e.count,
				"credentials": cfg.Credentials,
			}),
		}
		if err := s.syncStore.InsertLog(ctx, entry); err != nil {
			s.logger.Warn("writing sync log failed", "provider", provider, "error", err)
		}
	}
}
