// Package logging builds the process-wide structured logger. Every
// component takes a logr.Logger rather than a concrete logging type, so the
// engine's monitors can be driven from tests with a no-op logger without
// pulling in zap.
package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls the LOG_LEVEL / LOG_FORMAT / LOG_FILE env vars from spec §6.
type Config struct {
	Level  string // debug|info|warn|error
	Format string // standard|json
	File   string // optional path; empty means stderr only
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "standard"}
}

// LoadFromEnv overlays LOG_LEVEL, LOG_FORMAT, and LOG_FILE onto the config,
// leaving the existing value in place for any unset variable.
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Format = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		c.File = v
	}
}

func (c Config) level() zapcore.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Build constructs a logr.Logger from the config. A malformed LOG_FILE path
// is reported but not fatal — the logger falls back to stderr-only.
func Build(c Config) (logr.Logger, error) {
	var encoderCfg zapcore.EncoderConfig
	var encoder zapcore.Encoder
	if strings.EqualFold(c.Format, "json") {
		encoderCfg = zap.NewProductionEncoderConfig()
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	sinks := []zapcore.WriteSyncer{zapcore.AddSync(os.Stderr)}
	var openErr error
	if c.File != "" {
		f, err := os.OpenFile(c.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			openErr = fmt.Errorf("opening log file %q: %w", c.File, err)
		} else {
			sinks = append(sinks, zapcore.AddSync(f))
		}
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), c.level())
	zl := zap.New(core, zap.AddCaller())
	return zapr.NewLogger(zl), openErr
}
