// Package logging builds the zap loggers used by the CLI and tests.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvLogLevel overrides the configured level.
const EnvLogLevel = "AVMETA_LOG_LEVEL"

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Config selects the logger profile and level. An empty Level keeps the
// profile default.
type Config struct {
	Profile Profile
	Level   string
}

// New builds a logger writing to stderr. The runtime profile logs JSON at
// warn and above; the test profile uses the console encoder at debug.
// AVMETA_LOG_LEVEL wins over cfg.Level. Level "off" yields a no-op logger.
func New(cfg Config) (*zap.Logger, error) {
	zc := defaultConfig(cfg.Profile)

	raw := cfg.Level
	if env := os.Getenv(EnvLogLevel); env != "" {
		raw = env
	}
	if raw != "" {
		lvl, off, ok := ParseLevel(raw)
		if off {
			return zap.NewNop(), nil
		}
		if ok {
			zc.Level = zap.NewAtomicLevelAt(lvl)
		}
	}
	return zc.Build()
}

// Must is New for callers that cannot handle an error; it falls back to
// a no-op logger.
func Must(cfg Config) *zap.Logger {
	l, err := New(cfg)
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func defaultConfig(profile Profile) zap.Config {
	var zc zap.Config
	switch profile {
	case ProfileTest:
		zc = zap.NewDevelopmentConfig()
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		zc.EncoderConfig.TimeKey = ""
	default:
		zc = zap.NewProductionConfig()
		zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		zc.Sampling = nil
	}
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc
}

// levelOff sits above every level zap emits.
const levelOff = zapcore.FatalLevel + 1

// ParseLevel maps a level name to a zap level. off reports the names that
// disable logging; ok is false for unknown names.
func ParseLevel(raw string) (lvl zapcore.Level, off, ok bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug", "trace":
		return zapcore.DebugLevel, false, true
	case "info":
		return zapcore.InfoLevel, false, true
	case "warn", "warning":
		return zapcore.WarnLevel, false, true
	case "error":
		return zapcore.ErrorLevel, false, true
	case "off", "none", "disabled":
		return levelOff, true, true
	default:
		return zapcore.InfoLevel, false, false
	}
}
