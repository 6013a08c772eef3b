package logger

import (
	"errors"

	"github.com/rollbar/rollbar-go"
)

// RollbarConfig configures the Rollbar hook.
type RollbarConfig struct {
	Token       string
	Environment string
	CodeVersion string
	ServerHost  string
	// MinLevel is the lowest level forwarded. Default: LevelError.
	MinLevel Level
}

// RollbarHook forwards error and fatal entries to Rollbar.
type RollbarHook struct {
	minLevel Level
}

var _ Hook = (*RollbarHook)(nil)

// NewRollbarHook configures the process-wide Rollbar client and returns a hook.
func NewRollbarHook(cfg RollbarConfig) *RollbarHook {
	rollbar.SetToken(cfg.Token)
	rollbar.SetEnvironment(cfg.Environment)
	rollbar.SetCodeVersion(cfg.CodeVersion)
	if cfg.ServerHost != "" {
		rollbar.SetServerHost(cfg.ServerHost)
	}

	minLevel := cfg.MinLevel
	if minLevel < LevelWarn {
		minLevel = LevelError
	}
	return &RollbarHook{minLevel: minLevel}
}

// MinLevel implements Hook.
func (h *RollbarHook) MinLevel() Level {
	return h.minLevel
}

// Fire implements Hook.
func (h *RollbarHook) Fire(level Level, msg string, fields map[string]any) {
	extras := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		extras[k] = v
	}

	var item interface{} = msg
	if text, ok := fields["error"].(string); ok && text != "" {
		item = errors.New(msg + ": " + text)
	}

	switch {
	case level >= LevelFatal:
		rollbar.Critical(item, extras)
	case level >= LevelError:
		rollbar.Error(item, extras)
	default:
		rollbar.Warning(item, extras)
	}
}

// Flush blocks until queued items are delivered.
func (h *RollbarHook) Flush() {
	rollbar.Wait()
}
