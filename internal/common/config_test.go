package common

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "HTTP_ADDR", "LEGACY_DECODER", "DECODE_TIMEOUT", "MAX_UPLOAD_BYTES", "JOBS_DB_URL"} {
		t.Setenv(k, "")
	}

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.Server.HTTPAddr)
	assert.Equal(t, "antiword", cfg.Legacy.Decoder)
	assert.Equal(t, 30*time.Second, cfg.Legacy.Timeout)
	assert.Equal(t, int64(32<<20), cfg.Server.MaxUploadBytes)
	assert.Empty(t, cfg.Database.DSN)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doctext.yaml")
	content := `
server:
  http_addr: ":9000"
legacy:
  decoder: catdoc
  args: ["-w"]
  timeout: 5s
queue:
  workers: 2
  size: 8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	for _, k := range []string{"PORT", "HTTP_ADDR", "LEGACY_DECODER", "LEGACY_DECODER_ARGS", "DECODE_TIMEOUT", "QUEUE_SIZE"} {
		t.Setenv(k, "")
	}
	t.Setenv("WORKERS", "3")
	t.Setenv("JOBS_DB_URL", "file:jobs.db")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.HTTPAddr)
	assert.Equal(t, "catdoc", cfg.Legacy.Decoder)
	assert.Equal(t, []string{"-w"}, cfg.Legacy.Args)
	assert.Equal(t, 5*time.Second, cfg.Legacy.Timeout)
	assert.Equal(t, 3, cfg.Queue.Workers)
	assert.Equal(t, 8, cfg.Queue.Size)
	assert.Equal(t, "file:jobs.db", cfg.Database.DSN)
}

func TestLoadConfig_PortAndOverrides(t *testing.T) {
	t.Setenv("PORT", "7000")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("LEGACY_DECODER_ARGS", "-m UTF-8.txt")
	t.Setenv("DECODE_TIMEOUT", "not-a-duration")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.HTTPAddr)
	assert.Equal(t, []string{"-m", "UTF-8.txt"}, cfg.Legacy.Args)
	assert.Equal(t, 30*time.Second, cfg.Legacy.Timeout, "invalid duration keeps the default")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "CONFIG_ERROR", appErr.Code)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))
	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Legacy.Timeout = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)

	cfg = DefaultConfig()
	cfg.Legacy.Decoder = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Queue.Workers = 0
	assert.Error(t, cfg.Validate())
}

func TestLogConfig_SlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LogConfig{Level: "DEBUG"}.SlogLevel())
	assert.Equal(t, slog.LevelWarn, LogConfig{Level: "warning"}.SlogLevel())
	assert.Equal(t, slog.LevelError, LogConfig{Level: "error"}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, LogConfig{Level: "verbose"}.SlogLevel())
}
