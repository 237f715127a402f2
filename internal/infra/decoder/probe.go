package decoder

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-audio/wav"

	"github.com/osa030/musicstream/internal/domain/pcm"
	"github.com/osa030/musicstream/internal/domain/track"
)

// Probe reports the metadata of the resource at path without decoding its samples.
// WAV headers are read directly; other containers are opened through their decoder.
func Probe(path string) (track.Track, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		return probeWAV(path)
	}

	d, err := Open(path)
	if err != nil {
		return track.Track{}, err
	}
	defer d.Close()

	name := ""
	if sd, ok := d.(*streamDecoder); ok {
		name = sd.Codec()
	}
	return track.New(path, name, d.Format(), d.Frames()), nil
}

func probeWAV(path string) (track.Track, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return track.Track{}, errors.Mark(errors.Wrapf(err, "failed to open %s", path), ErrNotFound)
		}
		return track.Track{}, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return track.Track{}, errors.Wrapf(ErrFormat, "invalid WAV file %s", path)
	}
	if err := dec.FwdToPCM(); err != nil {
		return track.Track{}, errors.Mark(errors.Wrapf(err, "failed to locate PCM data in %s", path), ErrFormat)
	}

	channels := int(dec.NumChans)
	if channels > 2 {
		channels = 2
	}
	format := pcm.Format{
		SampleRate:     int(dec.SampleRate),
		Channels:       channels,
		BytesPerSample: pcm.BytesPerSample16,
	}

	var frames int64
	if width := int64(dec.NumChans) * int64(dec.BitDepth) / 8; width > 0 {
		frames = int64(dec.PCMSize) / width
	}
	return track.New(path, "wav", format, frames), nil
}
