// Package main is the maintenance CLI for the assessment hub.
//
// Usage:
//
//	worker migrate                 apply pending schema migrations
//	worker rollback                revert the latest migration
//	worker status                  list migrations and whether they ran
//	worker rebuild [-since DATE]   recount weekly aggregates from scores
//	worker ingest -user ID FILE    ingest a workbook from disk
//	worker schedule [-cron SPEC] [-weeks N] [-now]
//	                               rebuild recent aggregates until stopped
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/schoolpulse/assessment-hub/config"
	"github.com/schoolpulse/assessment-hub/internal/application/command"
	"github.com/schoolpulse/assessment-hub/internal/infrastructure/persistence/postgres"
	"github.com/schoolpulse/assessment-hub/internal/infrastructure/scheduler"
	"github.com/schoolpulse/assessment-hub/internal/infrastructure/scheduler/jobs"
	"github.com/schoolpulse/assessment-hub/internal/infrastructure/service"
	"github.com/schoolpulse/assessment-hub/internal/infrastructure/spreadsheet"
	"github.com/schoolpulse/assessment-hub/pkg/logger"
	"github.com/schoolpulse/assessment-hub/pkg/timeutil"
)

var errUsage = errors.New("usage: worker <migrate|rollback|status|rebuild|ingest|schedule> [flags]")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	name, args := args[0], args[1:]

	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION AND LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := cfg.Logger().With(logger.Component("worker"), logger.Operation(name))

	// ─────────────────────────────────────────────────────────────────────────
	// 2. STORAGE
	// ─────────────────────────────────────────────────────────────────────────
	backend, err := service.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DISPATCH
	// ─────────────────────────────────────────────────────────────────────────
	switch name {
	case "migrate":
		m, err := migrator(backend)
		if err != nil {
			return err
		}
		n, err := m.Migrate(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "applied %d migration(s)\n", n)
		return nil

	case "rollback":
		m, err := migrator(backend)
		if err != nil {
			return err
		}
		version, err := m.Rollback(ctx)
		if err != nil {
			return err
		}
		if version == 0 {
			fmt.Fprintln(out, "nothing to roll back")
			return nil
		}
		fmt.Fprintf(out, "rolled back migration %d\n", version)
		return nil

	case "status":
		m, err := migrator(backend)
		if err != nil {
			return err
		}
		status, err := m.Status(ctx)
		if err != nil {
			return err
		}
		for _, mig := range status {
			applied := "pending"
			if mig.IsApplied {
				applied = mig.AppliedAt.Format(time.RFC3339)
			}
			fmt.Fprintf(out, "%3d  %-28s %s\n", mig.Version, mig.Name, applied)
		}
		return nil

	case "rebuild":
		return rebuild(ctx, cfg, backend, log, args, out)

	case "ingest":
		return ingest(ctx, cfg, backend, log, args, out)

	case "schedule":
		return schedule(ctx, cfg, backend, log, args)

	default:
		return fmt.Errorf("unknown command %q: %w", name, errUsage)
	}
}

func migrator(b *service.Backend) (*postgres.Migrator, error) {
	if b.DB == nil {
		return nil, errors.New("DATABASE_URL is required for migrations")
	}
	return postgres.NewMigrator(b.DB), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// rebuild
// ─────────────────────────────────────────────────────────────────────────────

func rebuild(ctx context.Context, cfg *config.Config, b *service.Backend, log *logger.Logger, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("rebuild", flag.ContinueOnError)
	since := fs.String("since", "", "only weeks starting on or after this date (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd := command.RecomputeAggregatesCommand{}
	if *since != "" {
		d, err := timeutil.ParseDate(*since)
		if err != nil {
			return fmt.Errorf("-since: %w", err)
		}
		cmd.Since = d
	}

	h := command.NewRecomputeAggregatesHandler(b.Groups, log, command.RecomputeAggregatesHandlerConfig{
		Concurrency: cfg.Ingestion.GroupConcurrency,
	})
	res, err := h.Handle(ctx, cmd)
	if err != nil {
		return err
	}

	if err := b.Cache.InvalidateAll(ctx); err != nil {
		log.Warn("dashboard cache invalidation failed", logger.Err(err))
	}

	fmt.Fprintf(out, "groups=%d rebuilt=%d failed=%d in %s\n",
		res.Groups, res.Rebuilt, len(res.Failed), res.Duration.Round(time.Millisecond))
	for _, f := range res.Failed {
		fmt.Fprintf(out, "  %s\n", f)
	}
	if len(res.Failed) > 0 {
		return fmt.Errorf("%d group(s) failed", len(res.Failed))
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// ingest
// ─────────────────────────────────────────────────────────────────────────────

func ingest(ctx context.Context, cfg *config.Config, b *service.Backend, log *logger.Logger, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	user := fs.String("user", "", "uploader id recorded in the audit log")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 || *user == "" {
		return fmt.Errorf("ingest -user ID FILE: %w", errUsage)
	}
	path := fs.Arg(0)

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() > cfg.Ingestion.MaxUploadBytes {
		return fmt.Errorf("%s is %d bytes, limit is %d", path, info.Size(), cfg.Ingestion.MaxUploadBytes)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	h := command.NewIngestScoresHandler(
		spreadsheet.NewReader(),
		b.Directory,
		b.Classrooms,
		b.GradeLevels,
		b.Groups,
		b.Audit,
		b.Cache,
		log,
		command.IngestScoresHandlerConfig{
			GroupConcurrency: cfg.Ingestion.GroupConcurrency,
			MaxRows:          cfg.Ingestion.MaxRows,
		},
	)
	res, err := h.Handle(ctx, command.IngestScoresCommand{
		UserID:   *user,
		Filename: filepath.Base(path),
		Content:  content,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("upload %s finished %s", res.UploadID, res.Status)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// schedule
// ─────────────────────────────────────────────────────────────────────────────

func schedule(ctx context.Context, cfg *config.Config, b *service.Backend, log *logger.Logger, args []string) error {
	fs := flag.NewFlagSet("schedule", flag.ContinueOnError)
	spec := fs.String("cron", "@every 1h", "when to rebuild: cron expression or descriptor, in UTC")
	weeks := fs.Int("weeks", 4, "rebuild the current week and this many previous weeks (0 = all)")
	now := fs.Bool("now", false, "run once immediately before waiting for the schedule")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sched, err := scheduler.ParseCron(*spec, time.UTC)
	if err != nil {
		return err
	}

	rebuilder := command.NewRecomputeAggregatesHandler(b.Groups, log, command.RecomputeAggregatesHandlerConfig{
		Concurrency: cfg.Ingestion.GroupConcurrency,
	})
	job := jobs.NewRebuildAggregatesJob(rebuilder, b.Cache, *weeks, log)

	s := scheduler.New(scheduler.Config{Logger: log})
	if err := s.Register(job, sched); err != nil {
		return err
	}
	if *now {
		// A failed first run is logged; the schedule still starts.
		_, _ = s.RunNow(ctx, job.Name())
	}

	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	log.Info("stopping scheduler")
	return s.Stop()
}
