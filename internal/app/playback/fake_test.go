package playback

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/osa030/musicstream/internal/domain/pcm"
	"github.com/osa030/musicstream/internal/infra/decoder"
	"github.com/osa030/musicstream/internal/infra/device"
)

var testFormat = pcm.Format{SampleRate: 8000, Channels: 1, BytesPerSample: 2}

// fakeDecoder yields frames whose sample value is the frame index.
type fakeDecoder struct {
	format pcm.Format
	frames int64
	pos    int64
	failAt int64 // ReadChunk fails once pos reaches failAt, 0 disables
	closed atomic.Bool
}

func newFakeDecoder(frames int64) *fakeDecoder {
	return &fakeDecoder{format: testFormat, frames: frames}
}

func (d *fakeDecoder) Format() pcm.Format { return d.format }

func (d *fakeDecoder) Frames() int64 { return d.frames }

func (d *fakeDecoder) ReadChunk(dst []byte) (int, error) {
	if d.failAt > 0 && d.pos >= d.failAt {
		return 0, errors.Wrap(decoder.ErrDecode, "corrupt frame")
	}
	n := int64(d.format.Frames(len(dst)))
	if remaining := d.frames - d.pos; n > remaining {
		n = remaining
	}
	size := d.format.FrameSize()
	for i := int64(0); i < n; i++ {
		v := uint16(int16((d.pos + i) % 32768))
		for c := 0; c < d.format.Channels; c++ {
			binary.LittleEndian.PutUint16(dst[int(i)*size+c*2:], v)
		}
	}
	d.pos += n
	return int(n), nil
}

func (d *fakeDecoder) SeekFrame(frame int64) error {
	if frame < 0 || frame > d.frames {
		return errors.Wrapf(decoder.ErrSeek, "frame %d", frame)
	}
	d.pos = frame
	return nil
}

func (d *fakeDecoder) Close() error {
	d.closed.Store(true)
	return nil
}

// recordingDevice wraps the null device and records what reaches its sources.
type recordingDevice struct {
	*device.Null

	mu      sync.Mutex
	sources []*recordingSource
}

func (d *recordingDevice) NewSource(format pcm.Format) (device.Source, error) {
	src, err := d.Null.NewSource(format)
	if err != nil {
		return nil, err
	}
	r := &recordingSource{Source: src}
	d.mu.Lock()
	d.sources = append(d.sources, r)
	d.mu.Unlock()
	return r, nil
}

const flushMark = -1

type recordingSource struct {
	device.Source

	mu     sync.Mutex
	starts []int64 // first frame of every queued buffer, flushMark on Flush
	reject int     // Queue calls left to reject
}

func (r *recordingSource) Queue(id int, data []byte) error {
	r.mu.Lock()
	if r.reject > 0 {
		r.reject--
		r.mu.Unlock()
		return errors.Wrap(device.ErrRejected, "buffer refused")
	}
	r.starts = append(r.starts, int64(int16(binary.LittleEndian.Uint16(data))))
	r.mu.Unlock()
	return r.Source.Queue(id, data)
}

func (r *recordingSource) Flush() []int {
	r.mu.Lock()
	r.starts = append(r.starts, flushMark)
	r.mu.Unlock()
	return r.Source.Flush()
}

// sinceFlush returns the starts queued after the last flush.
func (r *recordingSource) sinceFlush() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.starts) - 1; i >= 0; i-- {
		if r.starts[i] == flushMark {
			return append([]int64(nil), r.starts[i+1:]...)
		}
	}
	return append([]int64(nil), r.starts...)
}

func (r *recordingSource) rejectNext(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reject = n
}

const testChunk = 400

func testConfig() Config {
	return Config{
		BufferCount:       4,
		ChunkFrames:       testChunk,
		WakeInterval:      2 * time.Millisecond,
		JoinTimeout:       time.Second,
		UnderrunWarnAfter: 3,
	}
}

func newRecordingDevice(t *testing.T, speed float64) *recordingDevice {
	t.Helper()
	dev := &recordingDevice{Null: device.NewNull(device.NullConfig{Period: time.Millisecond, Speed: speed})}
	t.Cleanup(func() { _ = dev.Close() })
	return dev
}

// newTestStream starts a stream over dec on a recording null device.
func newTestStream(t *testing.T, dec *fakeDecoder, cfg Config, speed float64) (*Stream, *recordingDevice, *recordingSource) {
	t.Helper()

	dev := newRecordingDevice(t, speed)
	cfg, err := cfg.withDefaults()
	require.NoError(t, err)
	s, err := start(dec, nil, dev, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	dev.mu.Lock()
	src := dev.sources[len(dev.sources)-1]
	dev.mu.Unlock()
	return s, dev, src
}

// drain collects the event types buffered on ch without blocking.
func drain(ch <-chan Event) []EventType {
	var types []EventType
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return types
			}
			types = append(types, e.Type)
		default:
			return types
		}
	}
}
