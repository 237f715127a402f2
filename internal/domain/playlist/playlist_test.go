package playlist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/osa030/musicstream/internal/domain/track"
)

func TestPlaylist_Paths(t *testing.T) {
	tests := []struct {
		name     string
		tracks   []track.Track
		expected []string
	}{
		{
			name:     "empty playlist",
			tracks:   []track.Track{},
			expected: []string{},
		},
		{
			name: "keeps order",
			tracks: []track.Track{
				{Path: "b.wav"},
				{Path: "a.mp3"},
			},
			expected: []string{"b.wav", "a.mp3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Playlist{Name: "test", Tracks: tt.tracks}
			assert.Equal(t, tt.expected, p.Paths())
			assert.Equal(t, len(tt.expected), p.Len())
		})
	}
}

func TestPlaylist_TotalDuration(t *testing.T) {
	p := &Playlist{
		Tracks: []track.Track{
			{Path: "a.wav", Duration: 90 * time.Second},
			{Path: "b.wav", Duration: 1500 * time.Millisecond},
			{Path: "c.wav"},
		},
	}

	assert.Equal(t, 91500*time.Millisecond, p.TotalDuration())
	assert.Equal(t, time.Duration(0), (&Playlist{}).TotalDuration())
}
