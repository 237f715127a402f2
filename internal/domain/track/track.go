// Package track provides the Track domain entity.
package track

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/osa030/musicstream/internal/domain/pcm"
)

// Track represents a decodable audio resource.
// Contains only information reported by the decoder.
type Track struct {
	Path     string        // Resource path
	Title    string        // Display title (file name without extension)
	Codec    string        // Container/codec name, e.g. "wav"
	Format   pcm.Format    // Decoded PCM format
	Frames   int64         // Total frame count (0 if unknown)
	Duration time.Duration // Total duration computed from Frames and Format
}

// New creates a track from decoder-reported metadata and computes its duration.
func New(path, codec string, format pcm.Format, frames int64) Track {
	return Track{
		Path:     path,
		Title:    TitleFromPath(path),
		Codec:    codec,
		Format:   format,
		Frames:   frames,
		Duration: format.Duration(frames),
	}
}

// TitleFromPath derives a display title from a resource path.
func TitleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsSeekable reports whether the track has a known length that offsets can be checked against.
func (t *Track) IsSeekable() bool {
	return t.Frames > 0
}

// ContainsFrame reports whether frame is a valid offset into the track.
func (t *Track) ContainsFrame(frame int64) bool {
	if frame < 0 {
		return false
	}
	if !t.IsSeekable() {
		return true
	}
	return frame < t.Frames
}
