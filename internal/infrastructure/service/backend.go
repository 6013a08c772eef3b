// Package service assembles the storage collaborators a process needs from
// its configuration: Postgres or the in-memory store, and Redis or the
// in-process dashboard cache.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/schoolpulse/assessment-hub/config"
	"github.com/schoolpulse/assessment-hub/internal/application/query"
	"github.com/schoolpulse/assessment-hub/internal/domain/assessment"
	"github.com/schoolpulse/assessment-hub/internal/domain/roster"
	"github.com/schoolpulse/assessment-hub/internal/domain/upload"
	"github.com/schoolpulse/assessment-hub/internal/infrastructure/persistence/memcache"
	"github.com/schoolpulse/assessment-hub/internal/infrastructure/persistence/memory"
	"github.com/schoolpulse/assessment-hub/internal/infrastructure/persistence/postgres"
	"github.com/schoolpulse/assessment-hub/internal/infrastructure/persistence/redis"
	"github.com/schoolpulse/assessment-hub/pkg/logger"
	"github.com/schoolpulse/assessment-hub/pkg/retry"
)

// Backend bundles every storage collaborator.
type Backend struct {
	Directory   roster.Directory
	Classrooms  roster.ClassroomRepository
	GradeLevels roster.GradeLevelRepository
	Groups      assessment.GroupStore
	Aggregates  assessment.AggregateReader
	Audit       upload.AuditLog
	Cache       query.DashboardCache

	// Exactly one of DB and Memory is set.
	DB     *postgres.Connection
	Memory *memory.Store

	// Redis is nil when REDIS_ENABLED is false or Redis was unreachable.
	Redis *redis.Cache

	log *logger.Logger
}

// Open connects to the configured stores. Connections are retried with
// backoff. When Redis cannot be reached at startup the in-process cache is
// used instead; later Redis failures trip a breaker in front of it.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Backend, error) {
	b := &Backend{log: log.With(logger.Component("backend"))}

	if cfg.UseMemoryStore() {
		b.useMemory(cfg.IsDevelopment())
	} else if err := b.usePostgres(ctx, cfg); err != nil {
		return nil, err
	}

	b.Cache = memcache.NewDashboardCache(cfg.Ingestion.DashboardCacheTTL)
	if cfg.Redis.Enabled {
		cache, err := connectRedis(ctx, cfg.Redis, b.log)
		if err != nil {
			b.log.Warn("redis unavailable, using in-process dashboard cache", logger.Err(err))
		} else {
			b.Redis = cache
			b.Cache = newGuardedCache(redis.NewDashboardCache(cache, cfg.Ingestion.DashboardCacheTTL), b.log)
		}
	}

	return b, nil
}

func (b *Backend) useMemory(seed bool) {
	store := memory.NewStore()
	if seed {
		SeedDemoRoster(store)
	}
	b.Memory = store
	b.Directory = store
	b.Classrooms = store
	b.GradeLevels = store.GradeLevels()
	b.Groups = store
	b.Aggregates = store
	b.Audit = store
	b.log.Warn("no DATABASE_URL configured, using in-memory store", logger.Bool("demo_roster", seed))
}

func (b *Backend) usePostgres(ctx context.Context, cfg *config.Config) error {
	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.Database.URL
	pgCfg.MaxConns = int32(cfg.Database.MaxConns)
	pgCfg.MinConns = int32(cfg.Database.MinConns)
	pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	pgCfg.ConnectTimeout = cfg.Database.ConnectTimeout

	conn, err := retry.DoWithData(ctx, func(ctx context.Context) (*postgres.Connection, error) {
		return postgres.NewConnection(ctx, pgCfg)
	}, databaseRetryOptions(b.log)...)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	b.DB = conn
	b.Directory = postgres.NewStudentDirectory(conn)
	b.Classrooms = postgres.NewClassroomRepository(conn)
	b.GradeLevels = postgres.NewGradeLevelRepository(conn)
	b.Groups = postgres.NewGroupStore(conn)
	b.Aggregates = postgres.NewAggregateReader(conn)
	b.Audit = postgres.NewAuditLog(conn)
	b.log.Info("database connection established")
	return nil
}

// databaseRetryOptions spreads reconnect attempts widely: every replica of
// the server and the worker starts against the same database.
func databaseRetryOptions(log *logger.Logger) []retry.Option {
	return []retry.Option{
		retry.WithJitter(0.3),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("database not reachable, retrying",
				logger.Int("attempt", attempt), logger.Err(err), logger.Duration("delay", delay))
		}),
	}
}

func connectRedis(ctx context.Context, rc config.RedisConfig, log *logger.Logger) (*redis.Cache, error) {
	redisCfg := redis.DefaultConfig()
	redisCfg.Host = rc.Host
	redisCfg.Port = rc.Port
	redisCfg.Password = rc.Password
	redisCfg.DB = rc.DB
	redisCfg.PoolSize = rc.PoolSize
	redisCfg.MinIdleConns = rc.MinIdleConns
	redisCfg.DialTimeout = rc.DialTimeout
	redisCfg.ReadTimeout = rc.ReadTimeout
	redisCfg.WriteTimeout = rc.WriteTimeout

	return retry.DoWithData(ctx, func(ctx context.Context) (*redis.Cache, error) {
		return redis.NewCache(redisCfg)
	}, retry.WithMaxAttempts(3), retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
		log.Warn("redis not reachable, retrying", logger.Int("attempt", attempt), logger.Err(err))
	}))
}

// Roster returns the lookups dashboard queries need.
func (b *Backend) Roster() query.Roster {
	return query.Roster{Classrooms: b.Classrooms, GradeLevels: b.GradeLevels}
}

// Close releases every connection.
func (b *Backend) Close() {
	if b.Redis != nil {
		if err := b.Redis.Close(); err != nil {
			b.log.Warn("closing redis", logger.Err(err))
		}
	}
	if b.DB != nil {
		b.DB.Close()
	}
}
