package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/medannot/medannot/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		env, level string
		want       slog.Level
	}{
		{config.EnvDevelopment, "info", slog.LevelDebug},
		{config.EnvProduction, "info", slog.LevelInfo},
		{config.EnvProduction, "DEBUG", slog.LevelDebug},
		{config.EnvDevelopment, "warn", slog.LevelWarn},
		{config.EnvProduction, "error", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.level, func(t *testing.T) {
			assert.Equal(t, tt.want, Level(&config.Config{Env: tt.env, LogLevel: tt.level}))
		})
	}
}

func TestSetupFileLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "logs", "medannot.log")

	logger, closer, err := SetupFileLogger(&config.Config{Env: config.EnvProduction, LogLevel: "info"}, path)
	require.NoError(t, err)

	logger.Debug("hidden")
	slog.Info("draft restored", "step", "transcription")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "draft restored")
	assert.Contains(t, string(data), "step=transcription")
	assert.NotContains(t, string(data), "hidden")
}
