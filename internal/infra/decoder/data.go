package decoder

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicstream/internal/domain/pcm"
	"github.com/osa030/musicstream/internal/domain/track"
)

// SoundData holds a fully decoded clip that several handles can stream from.
// The samples are immutable after Load, so decoders created from it never share a cursor.
type SoundData struct {
	path   string
	codec  string
	format beep.Format
	buffer *beep.Buffer
}

// Load decodes the whole resource at path into memory.
func Load(path string) (*SoundData, error) {
	s, bf, name, err := openStream(path)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	buffer := beep.NewBuffer(bf)
	buffer.Append(s)
	if err := s.Err(); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to decode %s", path), ErrDecode)
	}

	return &SoundData{
		path:   path,
		codec:  name,
		format: bf,
		buffer: buffer,
	}, nil
}

// NewDecoder returns an independent decoder positioned at frame 0.
func (d *SoundData) NewDecoder() Decoder {
	return newStreamDecoder(d.codec, d.buffer.Streamer(0, d.buffer.Len()), nil, d.format)
}

// Path returns the resource the data was loaded from.
func (d *SoundData) Path() string { return d.path }

// Frames returns the number of decoded frames.
func (d *SoundData) Frames() int64 { return int64(d.buffer.Len()) }

// Track returns the metadata of the decoded clip.
func (d *SoundData) Track() track.Track {
	return track.New(d.path, d.codec, d.Format(), d.Frames())
}

// Format returns the PCM format produced by decoders of this data.
func (d *SoundData) Format() pcm.Format {
	_, format := outputFormat(d.format)
	return format
}

// Cache holds decoded clips keyed by path.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*SoundData
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		items: make(map[string]*SoundData),
	}
}

// Get returns the cached data for path, loading it on first use.
func (c *Cache) Get(path string) (*SoundData, error) {
	c.mu.RLock()
	data, ok := c.items[path]
	c.mu.RUnlock()
	if ok {
		return data, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if data, ok := c.items[path]; ok {
		return data, nil
	}
	data, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.items[path] = data
	zlog.Debug().Msgf("decoder: cached %s (%d frames)", path, data.Frames())
	return data, nil
}

// Len returns the number of cached clips.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Drop removes a clip from the cache. Handles already streaming from it are unaffected.
func (c *Cache) Drop(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, path)
}
