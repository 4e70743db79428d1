// Command notifier is the TableTalk proximity-notification engine: a
// scheduled pipeline that scans recently created public in-person meals,
// matches them against opted-in users within their own radii, and dispatches
// interactive push notifications with a plain-push fallback.
//
// Usage:
//
//	notifier
//	API_PORT=8080 SCHEDULER_CADENCE="@every 15m" notifier
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/table-talk25/tabletalk-notify/internal/api"
	"github.com/table-talk25/tabletalk-notify/internal/category"
	"github.com/table-talk25/tabletalk-notify/internal/compose"
	"github.com/table-talk25/tabletalk-notify/internal/config"
	"github.com/table-talk25/tabletalk-notify/internal/dispatch"
	"github.com/table-talk25/tabletalk-notify/internal/pipeline"
	"github.com/table-talk25/tabletalk-notify/internal/prefs"
	"github.com/table-talk25/tabletalk-notify/internal/push"
	"github.com/table-talk25/tabletalk-notify/internal/realtime"
	"github.com/table-talk25/tabletalk-notify/internal/scheduler"
	"github.com/table-talk25/tabletalk-notify/internal/store"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Fail fast on a malformed category table rather than at dispatch time.
	if err := category.Validate(); err != nil {
		logger.Error("Category tables invalid", "error", err)
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Connect to the record store
	logger.Info("Connecting to record store...")
	st, err := store.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("Failed to connect to record store", "error", err)
		os.Exit(1)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		_ = st.Close(closeCtx)
	}()
	logger.Info("Record store connected", "database", cfg.MongoDB)

	// Push provider (nil when no credentials: realtime channel only)
	fcm, err := push.NewFCM(ctx, cfg.FCMCredentialsFile, logger)
	if err != nil {
		logger.Error("Failed to init push provider", "error", err)
		os.Exit(1)
	}
	if fcm == nil {
		logger.Info("Push provider disabled (no FIREBASE_CREDENTIALS_FILE)")
	}

	// Realtime in-app channel (nil when no gateway configured)
	rt := realtime.NewGateway(cfg.RealtimeGatewayURL)
	if rt == nil {
		logger.Info("Realtime channel disabled (no REALTIME_GATEWAY_URL)")
	}

	// Component graph
	resolver := prefs.NewResolver(st, logger)
	composer := compose.New(cfg.DeepLinkBaseURL)
	coordinator := dispatch.NewCoordinator(resolver, composer, fcm, rt, st, logger)
	pipe := pipeline.New(st, st, coordinator, cfg.PipelineWorkers, logger)
	job := scheduler.New(pipe, cfg.Lookback, cfg.SchedulerEnabled, logger)

	if cfg.SchedulerEnabled {
		if err := job.Start(cfg.SchedulerCadence); err != nil {
			logger.Error("Failed to start scheduler", "error", err)
			os.Exit(1)
		}
		defer job.Stop()
	} else {
		logger.Info("Scheduler disabled; passes run on manual trigger only")
	}

	// Admin & settings API
	router := api.NewRouter(st, job, cfg, logger)

	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting tabletalk-notify",
			"addr", addr,
			"environment", cfg.Environment,
			"cadence", cfg.SchedulerCadence,
			"lookback", cfg.Lookback)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
