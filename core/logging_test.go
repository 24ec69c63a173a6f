package core

import (
	"bytes"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", "json")

	logger.Info("hidden")
	logger.Warn("shown", "user", "alice")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"user":"alice"`)
}

func TestSetupLogging_WritesFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() {
		slog.SetDefault(prev)
		log.SetOutput(os.Stderr)
		gin.DefaultWriter = os.Stdout
		gin.DefaultErrorWriter = os.Stderr
	})

	cfg := testConfig()
	cfg.LogDir = filepath.Join(t.TempDir(), "logs")
	closer, err := SetupLogging(cfg, "api.log")
	require.NoError(t, err)

	slog.Info("hello from test")
	require.NoError(t, closer.Close())

	raw, err := os.ReadFile(filepath.Join(cfg.LogDir, "api.log"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "hello from test")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}
