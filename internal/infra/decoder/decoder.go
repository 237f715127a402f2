// Package decoder adapts container/codec decoders to a chunked PCM contract.
package decoder

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"

	"github.com/osa030/musicstream/internal/domain/pcm"
)

// Errors
var (
	ErrNotFound = errors.New("resource not found")
	ErrFormat   = errors.New("unsupported format")
	ErrDecode   = errors.New("decode failed")
	ErrSeek     = errors.New("seek failed")
)

// Decoder yields fixed-size chunks of signed 16-bit little-endian interleaved PCM.
type Decoder interface {
	// Format returns the PCM format written by ReadChunk.
	Format() pcm.Format
	// Frames returns the total frame count, 0 if unknown.
	Frames() int64
	// ReadChunk decodes up to len(dst)/FrameSize frames into dst.
	// It returns 0 frames and a nil error at end of stream.
	ReadChunk(dst []byte) (int, error)
	// SeekFrame moves the read cursor to the given frame.
	SeekFrame(frame int64) error
	// Close releases the underlying resource.
	Close() error
}

type codec struct {
	name   string
	decode func(f *os.File) (beep.StreamSeekCloser, beep.Format, error)
}

var codecs = map[string]codec{
	".wav": {name: "wav", decode: func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
		return wav.Decode(f)
	}},
	".mp3": {name: "mp3", decode: func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
		return mp3.Decode(f)
	}},
	".flac": {name: "flac", decode: func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
		return flac.Decode(f)
	}},
	".ogg": {name: "vorbis", decode: func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
		return vorbis.Decode(f)
	}},
	".oga": {name: "vorbis", decode: func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
		return vorbis.Decode(f)
	}},
}

// Supported reports whether the extension of path maps to a known codec.
func Supported(path string) bool {
	_, ok := codecs[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Open opens the resource at path and returns a streaming decoder for it.
func Open(path string) (Decoder, error) {
	s, bf, name, err := openStream(path)
	if err != nil {
		return nil, err
	}
	return newStreamDecoder(name, s, s.Close, bf), nil
}

// openStream opens a file and hands it to the codec selected by extension.
// The returned streamer owns the file.
func openStream(path string) (beep.StreamSeekCloser, beep.Format, string, error) {
	c, ok := codecs[strings.ToLower(filepath.Ext(path))]
	if !ok {
		if _, err := os.Stat(path); err != nil && errors.Is(err, fs.ErrNotExist) {
			return nil, beep.Format{}, "", errors.Mark(errors.Wrapf(err, "failed to open %s", path), ErrNotFound)
		}
		return nil, beep.Format{}, "", errors.Wrapf(ErrFormat, "no decoder for %q", filepath.Ext(path))
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, beep.Format{}, "", errors.Mark(errors.Wrapf(err, "failed to open %s", path), ErrNotFound)
		}
		return nil, beep.Format{}, "", errors.Wrapf(err, "failed to open %s", path)
	}

	s, bf, err := c.decode(f)
	if err != nil {
		_ = f.Close()
		return nil, beep.Format{}, "", errors.Mark(errors.Wrapf(err, "failed to decode %s header", path), ErrFormat)
	}
	if bf.SampleRate <= 0 || bf.NumChannels <= 0 {
		_ = s.Close()
		return nil, beep.Format{}, "", errors.Wrapf(ErrFormat, "invalid stream format in %s", path)
	}
	return s, bf, c.name, nil
}

// streamDecoder converts a beep StreamSeeker into 16-bit PCM chunks.
type streamDecoder struct {
	codec   string
	s       beep.StreamSeeker
	closer  func() error
	enc     beep.Format
	format  pcm.Format
	scratch [][2]float64
	closed  bool
}

func newStreamDecoder(name string, s beep.StreamSeeker, closer func() error, bf beep.Format) *streamDecoder {
	enc, format := outputFormat(bf)
	return &streamDecoder{
		codec:  name,
		s:      s,
		closer: closer,
		enc:    enc,
		format: format,
	}
}

// outputFormat maps a decoded stream format to the 16-bit format written by ReadChunk.
// Streams with more than two channels are folded to stereo.
func outputFormat(bf beep.Format) (beep.Format, pcm.Format) {
	channels := bf.NumChannels
	if channels > 2 {
		channels = 2
	}
	enc := beep.Format{
		SampleRate:  bf.SampleRate,
		NumChannels: channels,
		Precision:   pcm.BytesPerSample16,
	}
	return enc, pcm.Format{
		SampleRate:     int(bf.SampleRate),
		Channels:       channels,
		BytesPerSample: pcm.BytesPerSample16,
	}
}

// Codec returns the codec name used to decode the stream.
func (d *streamDecoder) Codec() string { return d.codec }

func (d *streamDecoder) Format() pcm.Format { return d.format }

func (d *streamDecoder) Frames() int64 { return int64(d.s.Len()) }

func (d *streamDecoder) ReadChunk(dst []byte) (int, error) {
	if d.closed {
		return 0, errors.Wrap(ErrDecode, "decoder closed")
	}
	want := d.format.Frames(len(dst))
	if want == 0 {
		return 0, errors.Newf("chunk of %d bytes holds no %d-byte frame", len(dst), d.format.FrameSize())
	}
	if len(d.scratch) < want {
		d.scratch = make([][2]float64, want)
	}

	filled := 0
	for filled < want {
		n, ok := d.s.Stream(d.scratch[filled:want])
		filled += n
		if !ok || n == 0 {
			break
		}
	}
	if err := d.s.Err(); err != nil {
		return 0, errors.Mark(errors.Wrap(err, "stream error"), ErrDecode)
	}

	off := 0
	for i := 0; i < filled; i++ {
		off += d.enc.EncodeSigned(dst[off:], d.scratch[i])
	}
	return filled, nil
}

func (d *streamDecoder) SeekFrame(frame int64) error {
	if frame < 0 || frame > int64(d.s.Len()) {
		return errors.Wrapf(ErrSeek, "frame %d outside [0, %d]", frame, d.s.Len())
	}
	if err := d.s.Seek(int(frame)); err != nil {
		return errors.Mark(errors.Wrapf(err, "failed to seek to frame %d", frame), ErrSeek)
	}
	return nil
}

func (d *streamDecoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if d.closer == nil {
		return nil
	}
	return d.closer()
}
