package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"tradesense/internal/config"
)

func TestNew_WritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")
	log, err := New(config.LogConfig{
		Level:    "debug",
		Encoding: "json",
		File:     config.LogFileConfig{Path: path, MaxSizeMB: 1},
	})
	require.NoError(t, err)

	log.Info("trade processed")
	_ = log.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(raw), `"msg":"trade processed"`), "file=%s", raw)
}

func TestNew_BadLevelFallsBackToInfo(t *testing.T) {
	log, err := New(config.LogConfig{Level: "loud", Encoding: "console"})
	require.NoError(t, err)
	require.False(t, log.Core().Enabled(-1))
	require.True(t, log.Core().Enabled(0))
}
