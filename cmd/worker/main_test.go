package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolpulse/assessment-hub/internal/domain/upload"
	"github.com/schoolpulse/assessment-hub/internal/infrastructure/spreadsheet"
)

func setMemoryEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("LOG_LEVEL", "error")
}

func writeWorkbook(t *testing.T, rows ...[]any) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, spreadsheet.Build(&buf, upload.Columns, rows))

	path := filepath.Join(t.TempDir(), "week.xlsx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestRun_NoCommand(t *testing.T) {
	err := run(context.Background(), nil, &bytes.Buffer{})
	assert.ErrorIs(t, err, errUsage)
}

func TestRun_UnknownCommand(t *testing.T) {
	setMemoryEnv(t)
	err := run(context.Background(), []string{"frobnicate"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, errUsage)
}

func TestRun_MigrateNeedsDatabase(t *testing.T) {
	setMemoryEnv(t)
	err := run(context.Background(), []string{"migrate"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestRun_IngestAgainstDemoRoster(t *testing.T) {
	setMemoryEnv(t)
	path := writeWorkbook(t,
		[]any{"2026-10-12", "G3-A", "Math", "Ava Martinez", "S-3001", "", 91},
		[]any{"2026-10-12", "G3-A", "Math", "Liam Chen", "", "Grade 3", 66},
	)

	var out bytes.Buffer
	err := run(context.Background(), []string{"ingest", "-user", "teacher-7", path}, &out)
	require.NoError(t, err)

	var res upload.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, upload.StatusComplete, res.Status)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.ProcessedCount)
	assert.Empty(t, res.UnmatchedStudents)
}

func TestRun_IngestReportsPartialUpload(t *testing.T) {
	setMemoryEnv(t)
	path := writeWorkbook(t,
		[]any{"2026-10-12", "G3-A", "Reading", "Ava Martinez", "", "", 88},
		[]any{"2026-10-12", "G3-A", "Reading", "Nobody Here", "", "", 70},
	)

	var out bytes.Buffer
	err := run(context.Background(), []string{"ingest", "-user", "teacher-7", path}, &out)
	require.NoError(t, err)

	var res upload.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, upload.StatusPartial, res.Status)
	assert.Equal(t, 1, res.ProcessedCount)
	require.Len(t, res.UnmatchedStudents, 1)
}

func TestRun_IngestRequiresUserAndFile(t *testing.T) {
	setMemoryEnv(t)
	err := run(context.Background(), []string{"ingest", "missing.xlsx"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, errUsage)
}

func TestRun_RebuildOnEmptyStore(t *testing.T) {
	setMemoryEnv(t)

	var out bytes.Buffer
	err := run(context.Background(), []string{"rebuild", "-since", "2026-01-05"}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "groups=0 rebuilt=0 failed=0")
}

func TestRun_RebuildRejectsBadDate(t *testing.T) {
	setMemoryEnv(t)
	err := run(context.Background(), []string{"rebuild", "-since", "last week"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRun_ScheduleStopsWithContext(t *testing.T) {
	setMemoryEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- run(ctx, []string{"schedule", "-cron", "@daily", "-now"}, &bytes.Buffer{})
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("schedule did not stop")
	}
}

func TestRun_ScheduleRejectsBadTime(t *testing.T) {
	setMemoryEnv(t)
	err := run(context.Background(), []string{"schedule", "-cron", "at noon"}, &bytes.Buffer{})
	assert.Error(t, err)
}
