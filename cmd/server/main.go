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

	"github.com/gametrack/gametrack/internal/cache"
	"github.com/gametrack/gametrack/internal/config"
	"github.com/gametrack/gametrack/internal/epic"
	"github.com/gametrack/gametrack/internal/notify"
	"github.com/gametrack/gametrack/internal/scheduler"
	"github.com/gametrack/gametrack/internal/server"
	"github.com/gametrack/gametrack/internal/steam"
	"github.com/gametrack/gametrack/internal/store"
	"github.com/gametrack/gametrack/internal/tracker"
	"github.com/gametrack/gametrack/pkg/logger"
)

func main() {
	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	caps := server.Capabilities{}

	// Database. Missing or unreachable degrades to search-only mode; the
	// process still serves the storefront tools.
	var st *store.Store
	if cfg.DatabaseURL != "" {
		st, err = store.NewStore(cfg.DatabaseURL)
		if err == nil {
			err = st.AutoMigrate()
		}
		if err != nil {
			slog.Warn("Database unavailable, running in search-only mode", "error", err)
			st = nil
		} else {
			defer st.Close()
			caps.Database = true
			slog.Info("Connected to database")
		}
	} else {
		slog.Warn("DATABASE_URL not set, running in search-only mode")
	}

	// Redis speed layer. Optional; a nil cache is a permanent miss.
	var speedLayer *cache.Cache
	if cfg.RedisAddr != "" {
		speedLayer, err = cache.New(cfg.RedisAddr)
		if err != nil {
			slog.Warn("Redis unavailable, caching disabled", "error", err)
			speedLayer = nil
		} else {
			defer speedLayer.Close()
			caps.Cache = true
			slog.Info("Connected to Redis")
		}
	}

	var mailer notify.Mailer
	if cfg.ResendAPIKey != "" {
		mailer = notify.NewResendMailer(cfg.ResendAPIKey, cfg.SenderEmail)
		caps.Email = true
	} else {
		mailer = notify.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SenderEmail, cfg.SenderPassword)
		caps.Email = cfg.SenderEmail != "" && cfg.SenderPassword != ""
	}
	if !caps.Email {
		slog.Warn("No mail credentials configured, notification delivery will fail")
	}

	steamClient := steam.NewClient(cfg.CountryCode)
	epicClient := epic.NewClient(cfg.CountryCode)

	trk := tracker.New(st, steamClient, epicClient, mailer, speedLayer)

	// The scheduled jobs only make sense with somewhere to keep state.
	var sched *scheduler.Scheduler
	if caps.Database {
		digestHour, digestMinute, err := config.ParseClock(cfg.DealsDigestTime)
		if err != nil {
			slog.Error("Invalid DEALS_DIGEST_TIME", "error", err)
			os.Exit(1)
		}
		sched, err = scheduler.New(trk,
			time.Duration(cfg.PriceCheckHours)*time.Hour,
			time.Duration(cfg.FreeGamesCheckHours)*time.Hour,
			digestHour, digestMinute,
		)
		if err != nil {
			slog.Error("Failed to build scheduler", "error", err)
			os.Exit(1)
		}
		sched.Start()
		defer sched.Stop()
	} else {
		slog.Warn("Scheduler disabled without a database")
	}

	srv := server.New(cfg, st, steamClient, epicClient, mailer, trk, speedLayer, caps)
	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Router(),
	}

	go func() {
		slog.Info("Server listening", "port", cfg.Port)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	sig := <-stop
	slog.Info("Shutdown signal received", "signal", sig.String())

	// Let in-flight requests finish before the deferred teardown runs.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}
	slog.Info("Shutting down...")
}
