package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/osa030/musicstream/internal/domain/pcm"
)

func TestNew(t *testing.T) {
	format := pcm.Format{SampleRate: 44100, Channels: 2, BytesPerSample: 2}

	tr := New("/music/looptest.ogg", "vorbis", format, 88200)

	assert.Equal(t, "/music/looptest.ogg", tr.Path)
	assert.Equal(t, "looptest", tr.Title)
	assert.Equal(t, "vorbis", tr.Codec)
	assert.Equal(t, int64(88200), tr.Frames)
	assert.Equal(t, 2*time.Second, tr.Duration)
}

func TestTitleFromPath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{name: "with extension", path: "res/shot.wav", expected: "shot"},
		{name: "multiple dots", path: "a/b/take.2.flac", expected: "take.2"},
		{name: "no extension", path: "music", expected: "music"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TitleFromPath(tt.path))
		})
	}
}

func TestTrack_ContainsFrame(t *testing.T) {
	tests := []struct {
		name     string
		frames   int64
		frame    int64
		expected bool
	}{
		{name: "start", frames: 100, frame: 0, expected: true},
		{name: "last frame", frames: 100, frame: 99, expected: true},
		{name: "past end", frames: 100, frame: 100, expected: false},
		{name: "negative", frames: 100, frame: -1, expected: false},
		{name: "unknown length", frames: 0, frame: 1 << 40, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &Track{Frames: tt.frames}
			assert.Equal(t, tt.expected, tr.ContainsFrame(tt.frame))
		})
	}
}
