// Package cleanup removes aged audit data: inbox log rows, sync log rows,
// and resolved human requests past the retention window.
package cleanup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/secondbrainhq/secondbrain/pkg/hitl"
	"github.com/secondbrainhq/secondbrain/pkg/store"
)

const (
	runInterval = 24 * time.Hour
	// retentionDays keeps three months of history for review.
	retentionDays = 90
)

// Service runs the periodic retention sweep.
type Service struct {
	inbox     *store.InboxLogs
	syncStore *store.SyncStore
	requests  *hitl.Service
	logger    *slog.Logger

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewService creates the cleanup service.
func NewService(inbox *store.InboxLogs, syncStore *store.SyncStore, requests *hitl.Service, logger *slog.Logger) *Service {
	return &Service{
		inbox:     inbox,
		syncStore: syncStore,
		requests:  requests,
		logger:    logger.With("component", "cleanup"),
		done:      make(chan struct{}),
	}
}

// Start launches the sweep loop. The first sweep runs shortly after startup
// so a long-stopped instance catches up.
func (s *Service) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go func() {
		defer close(s.done)
		s.logger.Info("cleanup service started", "interval", runInterval, "retention_days", retentionDays)

		timer := time.NewTimer(time.Minute)
		defer timer.Stop()
		for {
			select {
			case <-timer.C:
				s.sweep(runCtx)
				timer.Reset(runInterval)
			case <-runCtx.Done():
				return
			}
		}
	}()
}

// Stop cancels the loop and waits for a running sweep to finish.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		<-s.done
		s.logger.Info("cleanup service stopped")
	})
}

func (s *Service) sweep(ctx context.Context) {
	inboxDeleted, err := s.inbox.DeleteOlderThan(ctx, retentionDays)
	if err != nil {
		s.logger.Error("inbox log cleanup failed", "error", err)
	}
	syncDeleted, err := s.syncStore.DeleteLogsOlderThan(ctx, retentionDays)
	if err != nil {
		s.logger.Error("sync log cleanup failed", "error", err)
	}
	requestsDeleted, err := s.requests.DeleteResolvedOlderThan(ctx, retentionDays)
	if err != nil {
		s.logger.Error("human request cleanup failed", "error", err)
	}

	if inboxDeleted+syncDeleted+requestsDeleted > 0 {
		s.logger.Info("retention sweep completed",
			"inbox_logs", inboxDeleted,
			"sync_logs", syncDeleted,
			"human_requests", requestsDeleted)
	}
}
