// Package logging builds the zap logger shared by the protocol packages.
//
// Protocol code logs through zap.L(), which discards everything until Install
// replaces the global logger. Secret values are never logged; Redacted marks
// the place where one was left out.
package logging

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const redactedPlaceholder = "[redacted]"

var ErrInvalidConfig = errors.New("logging: invalid config")

// Config selects the level and encoding of the log output.
type Config struct {
	Level  string `json:"level" mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"`
}

func DefaultConfig() Config {
	return Config{Level: "info", Format: "console"}
}

func (c Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Level); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "level %q", c.Level)
	}
	switch strings.ToLower(c.Format) {
	case "json", "console":
	default:
		return errors.Wrapf(ErrInvalidConfig, "format %q", c.Format)
	}
	return nil
}

// New builds a logger writing to stderr.
func New(cfg Config) (*zap.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, _ := zapcore.ParseLevel(cfg.Level)

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Encoding = strings.ToLower(cfg.Format)
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.DisableStacktrace = true
	if zc.Encoding == "console" {
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	log, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(err, "logging: build logger")
	}
	return log, nil
}

// Install makes log the global logger and returns a function restoring the
// previous one.
func Install(log *zap.Logger) func() {
	return zap.ReplaceGlobals(log)
}

// Redacted stands in for a field that holds secret material.
func Redacted(key string) zap.Field {
	return zap.String(key, redactedPlaceholder)
}

// Placeholder is the string logged in place of a redacted value.
func Placeholder() string {
	return redactedPlaceholder
}
