package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		enabled zapcore.Level
		muted   zapcore.Level
	}{
		{name: "default", config: DefaultConfig(), enabled: zapcore.InfoLevel, muted: zapcore.DebugLevel},
		{name: "debug console", config: Config{Level: "debug", Format: "console"}, enabled: zapcore.DebugLevel, muted: zapcore.DebugLevel - 1},
		{name: "warn json", config: Config{Level: "warn", Format: "json"}, enabled: zapcore.ErrorLevel, muted: zapcore.InfoLevel},
		{name: "empty format", config: Config{Level: "error"}, enabled: zapcore.ErrorLevel, muted: zapcore.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.muted))
		})
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Config{Level: "loud", Format: "json"})
	assert.Error(t, err)

	_, err = New(Config{Level: "info", Format: "xml"})
	assert.Error(t, err)
}
