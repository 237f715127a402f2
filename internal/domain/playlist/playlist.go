// Package playlist provides the Playlist domain entity.
package playlist

import (
	"time"

	"github.com/osa030/musicstream/internal/domain/track"
)

// Playlist represents an ordered list of tracks played one after another.
type Playlist struct {
	Name   string        // Playlist name
	Tracks []track.Track // Tracks in play order
}

// Paths returns all track paths in the playlist.
func (p *Playlist) Paths() []string {
	paths := make([]string, len(p.Tracks))
	for i, t := range p.Tracks {
		paths[i] = t.Path
	}
	return paths
}

// TotalDuration returns the total duration of all tracks.
func (p *Playlist) TotalDuration() time.Duration {
	var total time.Duration
	for _, t := range p.Tracks {
		total += t.Duration
	}
	return total
}

// Len returns the number of tracks.
func (p *Playlist) Len() int {
	return len(p.Tracks)
}
