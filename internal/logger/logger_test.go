package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	cases := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
	}
	for _, tc := range cases {
		log, err := New(tc.level, "json", "wardtrack-test")
		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(tc.want), tc.level)
		if tc.want > zapcore.DebugLevel {
			assert.False(t, log.Core().Enabled(tc.want-1), tc.level)
		}
	}
}

func TestNew_ConsoleFormat(t *testing.T) {
	log, err := New("info", "console", "")
	require.NoError(t, err)
	assert.NotNil(t, log)
}
