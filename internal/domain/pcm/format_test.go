package pcm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormat_Duration(t *testing.T) {
	tests := []struct {
		name     string
		format   Format
		frames   int64
		expected time.Duration
	}{
		{
			name:     "one second",
			format:   Format{SampleRate: 44100, Channels: 2, BytesPerSample: 2},
			frames:   44100,
			expected: time.Second,
		},
		{
			name:     "fractional",
			format:   Format{SampleRate: 48000, Channels: 1, BytesPerSample: 2},
			frames:   72000,
			expected: 1500 * time.Millisecond,
		},
		{
			name:     "zero rate",
			format:   Format{},
			frames:   1000,
			expected: 0,
		},
		{
			name:     "negative frames",
			format:   Format{SampleRate: 8000, Channels: 1, BytesPerSample: 2},
			frames:   -5,
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.format.Duration(tt.frames))
		})
	}
}

func TestFormat_Sizes(t *testing.T) {
	f := Format{SampleRate: 44100, Channels: 2, BytesPerSample: BytesPerSample16}

	assert.Equal(t, 4, f.FrameSize())
	assert.Equal(t, 4096, f.Bytes(1024))
	assert.Equal(t, 1024, f.Frames(4097))
	assert.Equal(t, int64(22050), f.FramesIn(500*time.Millisecond))
	assert.True(t, f.Valid())
	assert.Equal(t, "44100Hz/2ch/16bit", f.String())

	assert.Equal(t, 0, Format{}.Frames(100))
	assert.False(t, Format{}.Valid())
}
