// Package main is the entry point for the assessment hub HTTP API.
//
// The server accepts weekly assessment workbooks, records every upload in
// the audit log and serves the tier dashboards built from the weekly
// aggregates. Without DATABASE_URL it runs against an in-memory store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schoolpulse/assessment-hub/config"
	"github.com/schoolpulse/assessment-hub/internal/application/command"
	"github.com/schoolpulse/assessment-hub/internal/application/query"
	"github.com/schoolpulse/assessment-hub/internal/infrastructure/persistence/postgres"
	"github.com/schoolpulse/assessment-hub/internal/infrastructure/persistence/redis"
	"github.com/schoolpulse/assessment-hub/internal/infrastructure/service"
	"github.com/schoolpulse/assessment-hub/internal/infrastructure/spreadsheet"
	httpserver "github.com/schoolpulse/assessment-hub/internal/interface/http"
	"github.com/schoolpulse/assessment-hub/internal/interface/http/handlers"
	"github.com/schoolpulse/assessment-hub/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := cfg.Logger()
	log.Info("starting assessment hub",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.Bool("debug", cfg.App.Debug),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. STORAGE
	// ─────────────────────────────────────────────────────────────────────────
	backend, err := service.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	if backend.DB != nil {
		applied, err := postgres.NewMigrator(backend.DB).Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("migrations completed", logger.Int("applied", applied))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. APPLICATION HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	ingest := command.NewIngestScoresHandler(
		spreadsheet.NewReader(),
		backend.Directory,
		backend.Classrooms,
		backend.GradeLevels,
		backend.Groups,
		backend.Audit,
		backend.Cache,
		log,
		command.IngestScoresHandlerConfig{
			GroupConcurrency: cfg.Ingestion.GroupConcurrency,
			MaxRows:          cfg.Ingestion.MaxRows,
		},
	)

	rosterLookups := backend.Roster()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.SetTimeout(3 * time.Second)
	if backend.DB != nil {
		health.AddCheck("database", handlers.NewDatabaseCheck(handlers.PingFunc(backend.DB.CheckHealth)))
	}
	if backend.Redis != nil {
		health.AddOptionalCheck("cache", handlers.NewCacheCheck(backend.Redis))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpserver.DefaultConfig()
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.AllowedOrigins = cfg.HTTP.CORSOrigins
	serverCfg.RateLimitPerMinute = cfg.HTTP.RateLimit
	serverCfg.MaxUploadBytes = cfg.Ingestion.MaxUploadBytes
	serverCfg.Version = cfg.App.Version

	deps := httpserver.Dependencies{
		IngestScores:        ingest,
		GetTierDistribution: query.NewGetTierDistributionHandler(rosterLookups, backend.Aggregates, backend.Cache),
		GetTierTrends:       query.NewGetTierTrendsHandler(rosterLookups, backend.Aggregates, backend.Cache),
		GetClassroomRollup:  query.NewGetClassroomRollupHandler(rosterLookups, backend.Aggregates, backend.Cache),
		ListUploads:         query.NewListUploadsHandler(backend.Audit),
		WriteTemplate:       spreadsheet.WriteTemplate,
		Logger:              log,
		HealthChecker:       health,
	}
	if backend.Redis != nil && cfg.HTTP.RateLimit > 0 {
		deps.RateLimiter = redis.NewRateLimiter(backend.Redis, cfg.HTTP.RateLimit, time.Minute)
	}

	server := httpserver.NewServer(serverCfg, deps)
	errCh := server.StartAsync()
	log.Info("http server listening", logger.String("addr", serverCfg.Address()))

	// ─────────────────────────────────────────────────────────────────────────
	// 7. WAIT FOR SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown", logger.Duration("timeout", cfg.App.ShutdownTimeout))
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", logger.Err(err))
		return err
	}

	log.Info("shutdown complete")
	return nil
}
