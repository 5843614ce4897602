// Command secondbrain runs the capture backend: HTTP API, Telegram webhook,
// scheduled sync and report jobs, and the retention sweep.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/secondbrainhq/secondbrain/pkg/agent"
	"github.com/secondbrainhq/secondbrain/pkg/api"
	"github.com/secondbrainhq/secondbrain/pkg/cleanup"
	"github.com/secondbrainhq/secondbrain/pkg/config"
	"github.com/secondbrainhq/secondbrain/pkg/database"
	"github.com/secondbrainhq/secondbrain/pkg/dav"
	"github.com/secondbrainhq/secondbrain/pkg/hitl"
	"github.com/secondbrainhq/secondbrain/pkg/llm"
	"github.com/secondbrainhq/secondbrain/pkg/models"
	"github.com/secondbrainhq/secondbrain/pkg/notify"
	"github.com/secondbrainhq/secondbrain/pkg/people"
	"github.com/secondbrainhq/secondbrain/pkg/pipeline"
	"github.com/secondbrainhq/secondbrain/pkg/reports"
	"github.com/secondbrainhq/secondbrain/pkg/scheduler"
	"github.com/secondbrainhq/secondbrain/pkg/store"
	syncsvc "github.com/secondbrainhq/secondbrain/pkg/sync"
	"github.com/secondbrainhq/secondbrain/pkg/telegram"
	"github.com/secondbrainhq/secondbrain/pkg/textproc"
	"github.com/secondbrainhq/secondbrain/pkg/version"
)

const shutdownTimeout = 20 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(),
	}))
	slog.SetDefault(logger)
	logger.Info("starting", "version", version.Full())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Step 1: configuration
	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		return fmt.Errorf("load database config: %w", err)
	}
	addr := ":" + envOrDefault("PORT", "8080")

	// Step 2: database (runs migrations)
	dbClient, err := database.NewClient(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = dbClient.Close() }()
	logger.Info("database ready")

	// Step 3: stores and config manager
	gateway := store.NewFromDB(dbClient.DB())
	entities := store.NewEntities(gateway)
	contacts := store.NewContacts(gateway)
	events := store.NewCalendarEvents(gateway)
	settings := store.NewSettings(gateway)
	agentConfigs := store.NewAgentConfigs(gateway)
	inbox := store.NewInboxLogs(gateway)
	schedules := store.NewSchedules(gateway)
	syncStore := store.NewSyncStore(gateway)
	reportChannels := store.NewReportChannels(gateway)
	cfg := config.NewManager(settings, logger)

	// Step 4: LLM factory and agent runner
	factory := llm.NewFactory(settings)
	agents := agent.NewRunner(agentConfigs, factory, logger)

	// Step 5: notification channels
	tgSender := notify.NewTelegram(settings, logger)
	webhook := notify.NewWebhook(settings, logger)
	router := notify.NewRouter(tgSender, webhook, logger)

	// Step 6: human-in-the-loop requests
	requests := hitl.NewService(gateway, logger)

	// Step 7: capture pipeline
	matcher := textproc.NewMatcher(entities, cfg)
	pipe := pipeline.NewOrchestrator(matcher, entities, contacts, inbox,
		gateway, agents, requests, cfg, router, logger)

	// Step 8: reports
	reportSvc := reports.NewService(gateway, reportChannels, agents, tgSender, webhook, cfg, logger)

	// Step 9: sync engine
	contactSync := syncsvc.NewService(contacts, syncStore, logger)
	calendarSync := syncsvc.NewCalendarService(contactSync, events)

	// Step 10: scheduler
	runner := scheduler.NewRunner(schedules, cfg, logger)
	runner.Register("contact_sync", func(ctx context.Context) error {
		return runContactSync(ctx, contactSync, syncStore, logger)
	})
	runner.Register("calendar_sync", func(ctx context.Context) error {
		return runCalendarSync(ctx, calendarSync, syncStore, logger)
	})
	runner.Register("daily_report", reportSvc.RunDaily)
	runner.Register("weekly_report", reportSvc.RunWeekly)
	runner.Start(ctx)

	// Step 11: retention sweep
	sweeper := cleanup.NewService(inbox, syncStore, requests, logger)
	sweeper.Start(ctx)

	// Step 12: HTTP server and Telegram handler
	tgHandler := telegram.NewHandler(gateway, pipe, reportSvc, tgSender, cfg, logger)
	server := api.NewServer(addr, api.Deps{
		Gateway:      gateway,
		Inbox:        inbox,
		Schedules:    schedules,
		SyncStore:    syncStore,
		Reports:      reportChannels,
		Pipeline:     pipe,
		HITL:         requests,
		Runner:       runner,
		Telegram:     tgHandler,
		TgSender:     tgSender,
		Config:       cfg,
		AgentsReload: agents.Reload,
	}, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	// Drain in dependency order: stop accepting work, stop the background
	// loops, then let the deferred Close release the pool.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	runner.Stop()
	sweeper.Stop()
	logger.Info("shutdown complete")
	return nil
}

// runContactSync builds one adapter per enabled contact provider and syncs
// each in turn. Provider credentials live in sync_configs.
func runContactSync(ctx context.Context, svc *syncsvc.Service, syncStore *store.SyncStore, logger *slog.Logger) error {
	configs, err := syncStore.EnabledConfigs(ctx)
	if err != nil {
		return fmt.Errorf("load sync configs: %w", err)
	}

	var failed int
	for _, cfg := range configs {
		adapter, err := contactAdapter(ctx, cfg, logger)
		if err != nil {
			logger.Error("adapter setup failed", "provider", cfg.Provider, "error", err)
			failed++
			continue
		}
		if adapter == nil {
			continue
		}
		stats, err := svc.SyncContacts(ctx, adapter)
		if err != nil {
			logger.Error("contact sync failed", "provider", cfg.Provider, "error", err)
			failed++
			continue
		}
		logger.Info("contact sync finished", "provider", cfg.Provider,
			"pulled", stats.Pulled, "pushed", stats.Pushed,
			"deleted", stats.Deleted, "conflicts", stats.Conflicts)
	}
	if failed > 0 {
		return fmt.Errorf("contact sync: %d provider(s) failed", failed)
	}
	return nil
}

func contactAdapter(ctx context.Context, cfg *models.SyncConfig, logger *slog.Logger) (syncsvc.ContactAdapter, error) {
	cred := func(key string) string {
		if v, ok := cfg.Credentials[key].(string); ok {
			return v
		}
		return ""
	}

	switch cfg.Provider {
	case syncsvc.ProviderNextcloud:
		client := dav.NewNextcloudCardDAV(cred("server"), cred("username"), cred("password"), logger)
		return syncsvc.NewCardDAVAdapter(cfg.Provider, client, true), nil
	case syncsvc.ProviderICloud:
		client, err := dav.NewICloudCardDAV(ctx, cred("apple_id"), cred("app_password"), logger)
		if err != nil {
			return nil, err
		}
		return syncsvc.NewCardDAVAdapter(cfg.Provider, client, false), nil
	case syncsvc.ProviderGoogle:
		client := people.NewGoogle(cred("client_id"), cred("client_secret"), cred("refresh_token"), logger)
		return syncsvc.NewGoogleAdapter(client), nil
	default:
		// Calendar providers are handled by the calendar_sync job.
		return nil, nil
	}
}

func runCalendarSync(ctx context.Context, svc *syncsvc.CalendarService, syncStore *store.SyncStore, logger *slog.Logger) error {
	cfg, err := syncStore.Config(ctx, syncsvc.ProviderICloudCalendar)
	if err != nil {
		return fmt.Errorf("load calendar sync config: %w", err)
	}
	if !cfg.Enabled {
		return nil
	}
	cred := func(key string) string {
		if v, ok := cfg.Credentials[key].(string); ok {
			return v
		}
		return ""
	}
	caldav, err := dav.NewICloudCalDAV(ctx, cred("apple_id"), cred("app_password"), logger)
	if err != nil {
		return fmt.Errorf("caldav setup: %w", err)
	}
	stats, err := svc.Sync(ctx, caldav)
	if err != nil {
		return err
	}
	logger.Info("calendar sync finished",
		"pulled", stats.Pulled, "pushed", stats.Pushed, "deleted", stats.Deleted)
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func logLevel() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
