package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	log, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))

	log, err = New(Config{Level: "debug", Format: "JSON"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestInvalidConfig(t *testing.T) {
	_, err := New(Config{Level: "chatty", Format: "json"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = New(Config{Level: "info", Format: "xml"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestInstall(t *testing.T) {
	before := zap.L()
	log := zap.NewExample()
	restore := Install(log)
	assert.Equal(t, log, zap.L())
	restore()
	assert.Equal(t, before, zap.L())
}

func TestRedacted(t *testing.T) {
	f := Redacted("poly_point")
	assert.Equal(t, "poly_point", f.Key)
	assert.Equal(t, Placeholder(), f.String)
}
