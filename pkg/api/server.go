// Package api exposes the HTTP surface: capture, clarifications, scheduler
// administration, sync logs, report recipients, and the Telegram webhook.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/secondbrainhq/secondbrain/pkg/config"
	"github.com/secondbrainhq/secondbrain/pkg/hitl"
	"github.com/secondbrainhq/secondbrain/pkg/notify"
	"github.com/secondbrainhq/secondbrain/pkg/pipeline"
	"github.com/secondbrainhq/secondbrain/pkg/scheduler"
	"github.com/secondbrainhq/secondbrain/pkg/store"
	"github.com/secondbrainhq/secondbrain/pkg/telegram"
	"github.com/secondbrainhq/secondbrain/pkg/version"
)

// Deps bundles everything the handlers need.
type Deps struct {
	Gateway      *store.Gateway
	Inbox        *store.InboxLogs
	Schedules    *store.Schedules
	SyncStore    *store.SyncStore
	Reports      *store.ReportChannels
	Pipeline     *pipeline.Orchestrator
	HITL         *hitl.Service
	Runner       *scheduler.Runner
	Telegram     *telegram.Handler
	TgSender     *notify.Telegram
	Config       *config.Manager
	AgentsReload func()
}

// Server is the HTTP server.
type Server struct {
	http   *http.Server
	logger *slog.Logger
}

// NewServer builds the router and binds it to addr.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	log := logger.With("component", "api")

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log), securityHeaders())

	h := &handlers{deps: deps, logger: log}

	router.GET("/health", h.health)

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/inbox", h.capture)
		apiGroup.GET("/inbox/logs", h.inboxLogs)

		apiGroup.GET("/clarifications", h.pendingClarifications)
		apiGroup.POST("/clarifications/:id", h.respondClarification)

		apiGroup.GET("/scheduler/schedules", h.listSchedules)
		apiGroup.POST("/scheduler/schedules", h.createSchedule)
		apiGroup.PUT("/scheduler/schedules/:id", h.updateSchedule)
		apiGroup.DELETE("/scheduler/schedules/:id", h.deleteSchedule)
		apiGroup.GET("/scheduler/jobs", h.listJobs)
		apiGroup.PUT("/scheduler/jobs/:id", h.updateJob)
		apiGroup.POST("/scheduler/jobs/:id/run", h.runJob)

		apiGroup.GET("/sync/logs", h.syncLogs)

		apiGroup.GET("/reports/channels/:type", h.reportChannels)
		apiGroup.POST("/reports/channels/:type/recipients", h.addRecipient)
		apiGroup.DELETE("/reports/channels/:type/recipients", h.removeRecipient)

		apiGroup.POST("/agents/reload", h.reloadAgents)
		apiGroup.POST("/config/reload", h.reloadConfig)
	}

	router.POST("/telegram/webhook", h.telegramWebhook)

	return &Server{
		http: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
		logger: log,
	}
}

// Start runs the server until it fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.http.Addr, "version", version.Full())
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains connections gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
