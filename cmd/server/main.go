// Intake bot server: collects training sign-ups over Telegram.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/fencing-federation/intake-bot/internal/api"
	"github.com/fencing-federation/intake-bot/internal/config"
	"github.com/fencing-federation/intake-bot/internal/intake"
	"github.com/fencing-federation/intake-bot/internal/live"
	"github.com/fencing-federation/intake-bot/internal/metrics"
	"github.com/fencing-federation/intake-bot/internal/middleware"
	"github.com/fencing-federation/intake-bot/internal/notify"
	"github.com/fencing-federation/intake-bot/internal/ratelimit"
	"github.com/fencing-federation/intake-bot/internal/session"
	"github.com/fencing-federation/intake-bot/internal/store"
	"github.com/fencing-federation/intake-bot/internal/telegram"
	"github.com/fencing-federation/intake-bot/web"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server",
		"port", cfg.Port,
		"org", cfg.OrgName,
		"container", config.IsContainer())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	startCtx, startCancel := context.WithTimeout(context.Background(), cfg.Timeout.Store)
	total, err := repo.CountApplications(startCtx)
	startCancel()
	if err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected", "path", cfg.DBPath, "applications", total)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewCollector(registry)

	sessions := session.NewStore()
	metrics.RegisterActiveSessions(registry, sessions.Len)
	mailbox := session.NewMailbox()

	client, err := telegram.NewClient(cfg.BotToken, cfg.Timeout.Send)
	if err != nil {
		slog.Error("Failed to initialize Telegram client", "error", err)
		os.Exit(1)
	}
	slog.Info("Telegram client ready", "bot", client.Username())

	// Work started from here outlives the signal so queued events and
	// notifications can finish during shutdown.
	workCtx, workCancel := context.WithCancel(context.Background())
	defer workCancel()

	notifier := notify.NewDispatcher(client, cfg.ManagerChatID, notify.Options{
		QueueSize:   cfg.Notify.QueueSize,
		Attempts:    cfg.Notify.Attempts,
		Backoff:     cfg.Notify.Backoff,
		SendTimeout: cfg.Timeout.Send,
		Metrics:     recorder,
		Org:         cfg.OrgName,
	})
	notifier.Start(workCtx)

	feed := live.NewHub(cfg.CORSOrigins, 0)

	machine := intake.NewMachine(intake.DefaultTexts(cfg.OrgName, cfg.OrgNameAccusative))
	service := intake.NewService(sessions, machine, repo, intake.Notifiers{notifier, feed}, intake.Options{
		StoreTimeout:    cfg.Timeout.Store,
		PersistAttempts: cfg.Persist.Attempts,
		PersistBackoff:  cfg.Persist.Backoff,
		Metrics:         recorder,
	})

	poller := telegram.NewPoller(client, service, mailbox, telegram.PollerOptions{
		DropPendingUpdates: cfg.DropPendingUpdates,
		SendTimeout:        cfg.Timeout.Send,
		Limiter:            ratelimit.New(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst, 0),
		Metrics:            recorder,
	})

	// Setup router.
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)

	handler := api.NewHandler(repo, sessions, cfg)
	r.Group(func(r chi.Router) {
		r.Use(middleware.CORS(cfg.CORSOrigins))
		handler.RegisterRoutes(r)
	})
	r.Handle("/metrics", metrics.Handler(registry))
	r.Get("/ws/applications", feed.ServeHTTP)
	r.Handle("/*", web.Handler())

	// The live feed keeps connections open, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session.StartSweeper(ctx, sessions, cfg.SessionTTL, 0, func(userID int64) {
		slog.Info("Idle intake expired", "user_id", userID)
	})

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	if err := poller.Start(workCtx); err != nil {
		slog.Error("Failed to start polling", "error", err)
		os.Exit(1)
	}

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	poller.Stop()
	if err := mailbox.Close(shutdownCtx); err != nil {
		slog.Warn("Pending updates abandoned", "users", mailbox.Pending(), "error", err)
	}
	if err := notifier.Close(shutdownCtx); err != nil {
		slog.Warn("Pending notifications abandoned", "error", err)
	}
	workCancel()
	feed.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully", "active_sessions", sessions.Len())
}
