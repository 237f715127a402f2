package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Stream.BufferCount)
	assert.Equal(t, 4096, cfg.Stream.ChunkFrames)
	assert.Equal(t, 10*time.Millisecond, cfg.Stream.WakeInterval())
	assert.Equal(t, 2*time.Second, cfg.Stream.JoinTimeout())
	assert.Equal(t, 3, cfg.Stream.UnderrunWarnAfter)
	assert.False(t, cfg.Stream.Preload)
	assert.Equal(t, "oto", cfg.Device.Backend)
	assert.Equal(t, 10*time.Millisecond, cfg.Device.Period())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.Equal(t, "default", cfg.Playlist.Name)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
stream:
  buffer_count: 3
  chunk_frames: 1024
  preload: true
device:
  backend: "null"
  period_ms: 5
logging:
  level: debug
playlist:
  name: evening
  tracks:
    - a.wav
    - b.flac
filters:
  duration_limit_filter:
    enabled: true
    settings:
      max_seconds: 600
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Stream.BufferCount)
	assert.Equal(t, 1024, cfg.Stream.ChunkFrames)
	assert.Equal(t, 10, cfg.Stream.WakeIntervalMs, "unset fields take defaults")
	assert.True(t, cfg.Stream.Preload)
	assert.Equal(t, "null", cfg.Device.Backend)
	assert.Equal(t, 5*time.Millisecond, cfg.Device.Period())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "evening", cfg.Playlist.Name)
	assert.Equal(t, []string{"a.wav", "b.flac"}, cfg.Playlist.Tracks)
	require.Contains(t, cfg.Filters, "duration_limit_filter")
	assert.True(t, cfg.Filters["duration_limit_filter"].Enabled)
	assert.Equal(t, 600, cfg.Filters["duration_limit_filter"].Settings["max_seconds"])
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvBackend, "portaudio")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load(writeConfig(t, "device:\n  backend: malgo\n"))
	require.NoError(t, err)
	assert.Equal(t, "portaudio", cfg.Device.Backend)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		errMsg string
	}{
		{name: "single buffer", body: "stream:\n  buffer_count: 1\n", errMsg: "BufferCount"},
		{name: "too many buffers", body: "stream:\n  buffer_count: 17\n", errMsg: "BufferCount"},
		{name: "tiny chunk", body: "stream:\n  chunk_frames: 16\n", errMsg: "ChunkFrames"},
		{name: "slow wake", body: "stream:\n  wake_interval_ms: 900\n", errMsg: "WakeIntervalMs"},
		{name: "unknown backend", body: "device:\n  backend: alsa\n", errMsg: "Backend"},
		{name: "unknown level", body: "logging:\n  level: chatty\n", errMsg: "Level"},
		{name: "file output without path", body: "logging:\n  output: file\n", errMsg: "File"},
		{name: "malformed yaml", body: "stream: [", errMsg: "failed to parse config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}
