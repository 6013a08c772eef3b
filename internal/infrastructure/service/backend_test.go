package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolpulse/assessment-hub/config"
	"github.com/schoolpulse/assessment-hub/internal/infrastructure/persistence/memcache"
	"github.com/schoolpulse/assessment-hub/pkg/logger"
	"github.com/schoolpulse/assessment-hub/pkg/retry"
)

func TestOpen_MemoryBackend(t *testing.T) {
	cfg := &config.Config{
		App:       config.AppConfig{Environment: config.EnvDevelopment},
		Ingestion: config.IngestionConfig{DashboardCacheTTL: 0},
	}

	b, err := Open(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	defer b.Close()

	assert.Nil(t, b.DB)
	assert.Nil(t, b.Redis)
	require.NotNil(t, b.Memory)
	assert.IsType(t, &memcache.DashboardCache{}, b.Cache)

	ctx := context.Background()
	g, err := b.GradeLevels.Resolve(ctx, "Grade 3")
	require.NoError(t, err)

	rooms, err := b.Classrooms.ListByGradeLevel(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, rooms, 2)

	st, err := b.Directory.FindByExternalID(ctx, g.ID, "S-3001")
	require.NoError(t, err)
	assert.Equal(t, "Ava Martinez", st.FullName)

	assert.NotNil(t, b.Roster().Classrooms)
}

func TestOpen_MemoryBackendOutsideDevelopmentIsEmpty(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Environment: config.EnvTest}}

	b, err := Open(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)

	_, err = b.GradeLevels.Resolve(context.Background(), "3")
	assert.Error(t, err)
}

func TestDatabaseRetryOptions(t *testing.T) {
	cfg := retry.DefaultConfig()
	for _, opt := range databaseRetryOptions(logger.Nop()) {
		opt(&cfg)
	}

	assert.Equal(t, 0.3, cfg.JitterFactor)
	require.NotNil(t, cfg.OnRetry)
	cfg.OnRetry(1, assert.AnError, cfg.InitialDelay)
}
