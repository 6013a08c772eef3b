package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.True(t, cfg.IsDevelopment())
	assert.True(t, cfg.UseMemoryStore())
	assert.Equal(t, 5000, cfg.Ingestion.MaxRows)
	assert.Equal(t, 1, cfg.Ingestion.GroupConcurrency)
	assert.Equal(t, int64(10<<20), cfg.Ingestion.MaxUploadBytes)
	assert.Equal(t, 5*time.Minute, cfg.Ingestion.DashboardCacheTTL)
	assert.Equal(t, []string{"*"}, cfg.HTTP.CORSOrigins)
	assert.False(t, cfg.Redis.Enabled)
}

func TestFromViperReadsEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost/hub")
	t.Setenv("INGEST_GROUP_CONCURRENCY", "8")
	t.Setenv("DASHBOARD_CACHE_TTL", "90s")
	t.Setenv("HTTP_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("REDIS_ENABLED", "true")

	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.UseMemoryStore())
	assert.Equal(t, 8, cfg.Ingestion.GroupConcurrency)
	assert.Equal(t, 90*time.Second, cfg.Ingestion.DashboardCacheTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.CORSOrigins)
	assert.True(t, cfg.Redis.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		set     map[string]any
		wantErr string
	}{
		{name: "production without database", set: map[string]any{"APP_ENV": "production"}, wantErr: "DATABASE_URL is required"},
		{name: "zero rows", set: map[string]any{"INGEST_MAX_ROWS": 0}, wantErr: "INGEST_MAX_ROWS"},
		{name: "concurrency too high", set: map[string]any{"INGEST_GROUP_CONCURRENCY": 65}, wantErr: "INGEST_GROUP_CONCURRENCY"},
		{name: "concurrency zero", set: map[string]any{"INGEST_GROUP_CONCURRENCY": 0}, wantErr: "INGEST_GROUP_CONCURRENCY"},
		{name: "bad log level", set: map[string]any{"LOG_LEVEL": "loud"}, wantErr: "LOG_LEVEL"},
		{name: "bad pool", set: map[string]any{"DATABASE_MAX_CONNS": 0}, wantErr: "DATABASE_MAX_CONNS"},
		{name: "unknown env", set: map[string]any{"APP_ENV": "moon"}, wantErr: "APP_ENV"},
		{name: "valid", set: map[string]any{"LOG_LEVEL": "debug"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper()
			for k, val := range tt.set {
				v.Set(k, val)
			}
			_, err := FromViper(v)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoggerWithoutRollbar(t *testing.T) {
	cfg, err := FromViper(newViper())
	require.NoError(t, err)
	assert.NotNil(t, cfg.Logger())
}

