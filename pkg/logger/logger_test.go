package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHook struct {
	min     Level
	entries []string
}

func (h *recordingHook) MinLevel() Level { return h.min }

func (h *recordingHook) Fire(level Level, msg string, fields map[string]any) {
	h.entries = append(h.entries, level.String()+":"+msg)
}

func TestLogger_WritesJSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelInfo}).With(Component("ingest"))

	log.Debug("hidden")
	log.Info("batch finished", UploadID("u-1"), Int("processed", 3))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "batch finished", entry.Message)
	assert.Equal(t, "ingest", entry.Fields["component"])
	assert.Equal(t, "u-1", entry.Fields["upload_id"])
	assert.EqualValues(t, 3, entry.Fields["processed"])
}

func TestLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelDebug, Format: FormatText})

	log.Warn("slow group", Classroom("G3-A"), Subject("MATH"))

	out := buf.String()
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "slow group")
	assert.Contains(t, out, "classroom=G3-A subject=MATH")
}

func TestLogger_HooksFireAtOrAboveMinLevel(t *testing.T) {
	hook := &recordingHook{min: LevelError}
	log := New(Options{Output: &bytes.Buffer{}, Level: LevelDebug}).AddHook(hook)

	log.Info("fine")
	log.Warn("meh")
	log.Error("audit append failed", Err(errors.New("boom")))

	assert.Equal(t, []string{"ERROR:audit append failed"}, hook.entries)
}

func TestLogger_ContextRoundTrip(t *testing.T) {
	log := Nop().WithRequestID("req-1")
	ctx := WithContext(context.Background(), log)

	assert.Same(t, log, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelDebug, ParseLevel(" debug "))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
	assert.True(t, ValidLevel("error"))
	assert.False(t, ValidLevel("loud"))
}
