package playback

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_WithDefaults(t *testing.T) {
	cfg, err := Config{}.withDefaults()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = Config{BufferCount: 2, ChunkFrames: 512, WakeInterval: time.Millisecond}.withDefaults()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.BufferCount)
	assert.Equal(t, 512, cfg.ChunkFrames)
	assert.Equal(t, time.Millisecond, cfg.WakeInterval)
	assert.Equal(t, DefaultJoinTimeout, cfg.JoinTimeout)
}

func TestConfig_WithDefaultsRejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "single buffer", cfg: Config{BufferCount: 1}},
		{name: "negative buffers", cfg: Config{BufferCount: -3}},
		{name: "negative chunk", cfg: Config{ChunkFrames: -1}},
		{name: "negative wake interval", cfg: Config{WakeInterval: -time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.withDefaults()
			assert.True(t, errors.Is(err, ErrInvalidParameter))
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "initial", StateInitial.String())
	assert.Equal(t, "playing", StatePlaying.String())
	assert.Equal(t, "paused", StatePaused.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.Equal(t, "end_of_stream", EventEndOfStream.String())
}
