package filter

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/osa030/musicstream/internal/domain/track"
)

// DuplicateTrackConfig represents the configuration for DuplicateTrackFilter.
type DuplicateTrackConfig struct {
	// PathOnly limits matching to identical paths. Otherwise different files
	// whose normalized titles match are rejected too, e.g.
	// "song (remastered 2011).flac" after "song.mp3".
	PathOnly bool `yaml:"path_only" mapstructure:"path_only"`
}

// DuplicateTrackFilter rejects tracks already admitted to the playlist.
type DuplicateTrackFilter struct {
	matchTitle bool
}

// NewDuplicateTrackFilter creates a new duplicate track filter.
func NewDuplicateTrackFilter(matchTitle bool) *DuplicateTrackFilter {
	return &DuplicateTrackFilter{matchTitle: matchTitle}
}

// Name returns the filter name.
func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

// Description returns the filter description.
func (f *DuplicateTrackFilter) Description() string {
	return "Rejects a file listed twice and, optionally, other versions of the same title"
}

// ReturnCodes returns possible return codes.
func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{"duplicate_track"}
}

// ValidateConfig validates the filter configuration.
func (f *DuplicateTrackFilter) ValidateConfig(settings map[string]any) error {
	var config DuplicateTrackConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.matchTitle = !config.PathOnly
	return nil
}

// Check checks if the track is a duplicate.
func (f *DuplicateTrackFilter) Check(ctx context.Context, t track.Track, admitted []track.Track) Result {
	path := filepath.Clean(t.Path)
	title := normalizeTitle(t.Title)

	for _, prev := range admitted {
		if filepath.Clean(prev.Path) == path {
			return Reject("duplicate_track")
		}
		if f.matchTitle && title != "" && normalizeTitle(prev.Title) == title {
			return Reject("duplicate_track")
		}
	}
	return Accept()
}

var (
	versionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
		regexp.MustCompile(`\s*\(.*?remaster.*?\)`),              // "(Remastered 2023)"
		regexp.MustCompile(`\s*\[.*?remaster.*?\]`),              // "[Remastered]"
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
		regexp.MustCompile(`\s*\(.*?version\)`),                  // "(Single Version)"
		regexp.MustCompile(`\s*\(.*?edit\)`),                     // "(Radio Edit)"
		regexp.MustCompile(`\s*\(live\)`),                        // "(Live)"
	}
	leadingNumber = regexp.MustCompile(`^\d{1,3}\s*[-_.]\s*`) // "03 - "
	separators    = regexp.MustCompile(`[\s_]+`)
)

// normalizeTitle removes track numbers and version details from a title.
func normalizeTitle(title string) string {
	normalized := strings.ToLower(title)
	normalized = leadingNumber.ReplaceAllString(normalized, "")
	normalized = separators.ReplaceAllString(normalized, " ")

	for _, pattern := range versionPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	normalized = strings.TrimSpace(normalized)
	return strings.TrimRight(normalized, " -")
}

func init() {
	Register("duplicate_track_filter", func() Filter {
		return NewDuplicateTrackFilter(true)
	})
}
