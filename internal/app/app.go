package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"mail-sticky-go/internal/ai"
	"mail-sticky-go/internal/config"
	"mail-sticky-go/internal/db"
	"mail-sticky-go/internal/fetcher"
	"mail-sticky-go/internal/handler"
	"mail-sticky-go/internal/ingest"
	"mail-sticky-go/internal/lifecycle"
	"mail-sticky-go/internal/logging"
	"mail-sticky-go/internal/metrics"
	"mail-sticky-go/internal/repository"
	"mail-sticky-go/internal/router"
	"mail-sticky-go/internal/scheduler"
)

const shutdownTimeout = 30 * time.Second

// Run initializes and starts the application
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logCloser, err := logging.Setup(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logCloser.Close()
	gin.DefaultWriter = logrus.StandardLogger().Out

	logrus.Info("Starting Mail Sticky Service")

	dbConn, err := db.Init(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	repo := repository.New(dbConn)

	opts, err := ingest.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)
	adapter := ai.NewAdapter(&cfg.AI)
	if cfg.AI.Enabled && !adapter.Available() {
		logrus.Warn("AI enabled but no API key configured; using heuristic summaries")
	}

	dialer := fetcher.NewIMAPDialer(&cfg.IMAP)
	status := ingest.NewStatusBoard()
	diagnostics := ingest.NewDiagnostics(ingest.DefaultDiagnosticsSize)
	cycle := ingest.NewCycle(dialer, repo, adapter, opts, status, diagnostics, m)
	sched := scheduler.NewScheduler(cfg.App.PollInterval, cycle)

	h := handler.NewHandlers(handler.Dependencies{
		Repo:        repo,
		Lifecycle:   lifecycle.NewManager(repo, m, nil),
		Scheduler:   sched,
		Status:      status,
		Diagnostics: diagnostics,
		Adapter:     adapter,
		Gatherer:    prometheus.DefaultGatherer,
		LogFile:     cfg.Log.File,
		Retention:   cfg.App.Retention,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.SetupRouter(h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	// Poll once at startup instead of waiting a full interval.
	sched.TriggerManualPoll()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logrus.Info("Shutting down server...")

		sched.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	if sqlDB, err := dbConn.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logrus.Errorf("Failed to close database: %v", err)
		}
	}

	logrus.Info("Server stopped gracefully")
	return nil
}
