package playback

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Defaults
const (
	DefaultBufferCount       = 4
	DefaultChunkFrames       = 4096
	DefaultWakeInterval      = 10 * time.Millisecond
	DefaultJoinTimeout       = 2 * time.Second
	DefaultUnderrunWarnAfter = 3

	minBufferCount = 2
)

// Config holds stream configuration. Zero fields take their default.
type Config struct {
	BufferCount       int           // Buffers rotating between decoder and device
	ChunkFrames       int           // Frames decoded into one buffer
	WakeInterval      time.Duration // Upper bound on the worker sleep
	JoinTimeout       time.Duration // Bound on Close waiting for the worker
	UnderrunWarnAfter int           // Consecutive underruns before a warning
}

// DefaultConfig returns the default stream configuration.
func DefaultConfig() Config {
	return Config{
		BufferCount:       DefaultBufferCount,
		ChunkFrames:       DefaultChunkFrames,
		WakeInterval:      DefaultWakeInterval,
		JoinTimeout:       DefaultJoinTimeout,
		UnderrunWarnAfter: DefaultUnderrunWarnAfter,
	}
}

func (c Config) withDefaults() (Config, error) {
	d := DefaultConfig()
	if c.BufferCount == 0 {
		c.BufferCount = d.BufferCount
	}
	if c.ChunkFrames == 0 {
		c.ChunkFrames = d.ChunkFrames
	}
	if c.WakeInterval == 0 {
		c.WakeInterval = d.WakeInterval
	}
	if c.JoinTimeout == 0 {
		c.JoinTimeout = d.JoinTimeout
	}
	if c.UnderrunWarnAfter == 0 {
		c.UnderrunWarnAfter = d.UnderrunWarnAfter
	}

	if c.BufferCount < minBufferCount {
		return c, errors.Wrapf(ErrInvalidParameter, "buffer count %d is below %d", c.BufferCount, minBufferCount)
	}
	if c.ChunkFrames < 0 || c.WakeInterval < 0 || c.JoinTimeout < 0 || c.UnderrunWarnAfter < 0 {
		return c, errors.Wrap(ErrInvalidParameter, "negative stream setting")
	}
	return c, nil
}
