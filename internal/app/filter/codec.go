package filter

import (
	"context"
	"slices"

	"github.com/osa030/musicstream/internal/domain/track"
)

// CodecConfig represents the configuration for CodecFilter.
type CodecConfig struct {
	Codecs        []string `yaml:"codecs" mapstructure:"codecs" validate:"dive,oneof=wav mp3 flac vorbis"`
	MinSampleRate int      `yaml:"min_sample_rate" mapstructure:"min_sample_rate" validate:"gte=0"`
}

// CodecFilter restricts the playlist to the configured codecs and sample rates.
type CodecFilter struct {
	config CodecConfig
}

// NewCodecFilter creates a codec filter allowing the given codecs; none means any.
func NewCodecFilter(codecs ...string) *CodecFilter {
	return &CodecFilter{config: CodecConfig{Codecs: codecs}}
}

func (f *CodecFilter) Name() string {
	return "codec_filter"
}

func (f *CodecFilter) Description() string {
	return "Rejects tracks whose codec or sample rate is not allowed"
}

func (f *CodecFilter) ReturnCodes() []string {
	return []string{"codec_not_allowed", "sample_rate_too_low"}
}

func (f *CodecFilter) ValidateConfig(settings map[string]any) error {
	var config CodecConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.config = config
	return nil
}

func (f *CodecFilter) Check(ctx context.Context, t track.Track, admitted []track.Track) Result {
	if len(f.config.Codecs) > 0 && !slices.Contains(f.config.Codecs, t.Codec) {
		return Reject("codec_not_allowed")
	}
	if t.Format.SampleRate < f.config.MinSampleRate {
		return Reject("sample_rate_too_low")
	}
	return Accept()
}

func init() {
	Register("codec_filter", func() Filter {
		return NewCodecFilter()
	})
}
