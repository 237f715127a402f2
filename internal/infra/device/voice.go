package device

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/osa030/musicstream/internal/domain/pcm"
)

type queuedBuffer struct {
	id   int
	data []byte
	pos  int
}

// Voice is a software source: a queue of borrowed 16-bit buffers drained by
// an output pull callback through Read or ReadSamples.
type Voice struct {
	mu        sync.Mutex
	format    pcm.Format
	frameSize int
	queue     []queuedBuffer
	processed []int
	state     State
	gain      float32
	pitch     float32
	spatial   Spatial
	consumed  int64
	frac      float64
	lost      bool
	closed    bool
	scratch   []int16
	release   func() error
}

var _ Source = (*Voice)(nil)

// NewVoice creates a voice for 16-bit PCM of the given format.
// release is called once by Close and may be nil.
func NewVoice(format pcm.Format, release func() error) (*Voice, error) {
	if !format.Valid() || format.BytesPerSample != pcm.BytesPerSample16 {
		return nil, errors.Wrapf(ErrFormatMismatch, "unsupported source format %s", format)
	}
	return &Voice{
		format:    format,
		frameSize: format.FrameSize(),
		state:     StateInitial,
		gain:      1,
		pitch:     1,
		spatial:   DefaultSpatial(),
		release:   release,
	}, nil
}

// Format returns the PCM format of the voice.
func (v *Voice) Format() pcm.Format { return v.format }

func (v *Voice) Queue(id int, data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.usableLocked(); err != nil {
		return err
	}
	if len(data) == 0 || len(data)%v.frameSize != 0 {
		return errors.Wrapf(ErrRejected, "buffer %d holds %d bytes, frame size is %d", id, len(data), v.frameSize)
	}
	for _, q := range v.queue {
		if q.id == id {
			return errors.Wrapf(ErrRejected, "buffer %d already queued", id)
		}
	}
	v.queue = append(v.queue, queuedBuffer{id: id, data: data})
	return nil
}

func (v *Voice) UnqueueProcessed() []int {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(v.processed) == 0 {
		return nil
	}
	ids := v.processed
	v.processed = nil
	return ids
}

func (v *Voice) Flush() []int {
	v.mu.Lock()
	defer v.mu.Unlock()

	ids := v.processed
	v.processed = nil
	for _, q := range v.queue {
		ids = append(ids, q.id)
	}
	v.queue = v.queue[:0]
	v.frac = 0
	if v.state == StatePlaying {
		v.state = StateStopped
	}
	return ids
}

func (v *Voice) Play() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.usableLocked(); err != nil {
		return err
	}
	v.state = StatePlaying
	return nil
}

func (v *Voice) Pause() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.usableLocked(); err != nil {
		return err
	}
	if v.state == StatePlaying || v.state == StateInitial {
		v.state = StatePaused
	}
	return nil
}

func (v *Voice) Stop() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return ErrClosed
	}
	v.stopLocked()
	return nil
}

func (v *Voice) stopLocked() {
	for _, q := range v.queue {
		v.processed = append(v.processed, q.id)
	}
	v.queue = v.queue[:0]
	v.frac = 0
	v.state = StateStopped
}

func (v *Voice) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *Voice) ConsumedFrames() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.consumed
}

func (v *Voice) SetGain(gain float32) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return ErrClosed
	}
	v.gain = gain
	return nil
}

func (v *Voice) Gain() float32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.gain
}

func (v *Voice) SetPitch(pitch float32) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return ErrClosed
	}
	v.pitch = pitch
	return nil
}

func (v *Voice) Pitch() float32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pitch
}

func (v *Voice) SetSpatial(sp Spatial) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return ErrClosed
	}
	v.spatial = sp
	return nil
}

func (v *Voice) Spatial() Spatial {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.spatial
}

// Lose marks the output context as lost. The voice stops and rejects further work.
func (v *Voice) Lose() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.lost {
		return
	}
	v.lost = true
	v.stopLocked()
}

// Lost reports whether the output context was lost.
func (v *Voice) Lost() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lost
}

func (v *Voice) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	v.queue = nil
	v.processed = nil
	v.state = StateStopped
	release := v.release
	v.mu.Unlock()

	if release == nil {
		return nil
	}
	return release()
}

func (v *Voice) usableLocked() error {
	if v.closed {
		return ErrClosed
	}
	if v.lost {
		return ErrInvalidContext
	}
	return nil
}

// Read fills p with little-endian 16-bit samples. It always fills p entirely,
// writing silence where no queued audio is available.
func (v *Voice) Read(p []byte) (int, error) {
	samples := len(p) / pcm.BytesPerSample16

	v.mu.Lock()
	if cap(v.scratch) < samples {
		v.scratch = make([]int16, samples)
	}
	out := v.scratch[:samples]
	v.fillLocked(out)
	v.mu.Unlock()

	for i, s := range out {
		binary.LittleEndian.PutUint16(p[i*2:], uint16(s))
	}
	for i := samples * 2; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

// ReadSamples fills out with interleaved samples, silence where no audio is queued.
func (v *Voice) ReadSamples(out []int16) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fillLocked(out)
}

func (v *Voice) fillLocked(out []int16) {
	channels := v.format.Channels
	frames := len(out) / channels
	written := 0

	if v.state == StatePlaying && !v.lost && !v.closed {
		gain := v.spatial.Effective(v.gain)
		step := float64(v.pitch)
		if step <= 0 {
			step = 1
		}

		for written < frames {
			if len(v.queue) == 0 {
				// drained while playing
				v.state = StateStopped
				break
			}
			head := &v.queue[0]
			frame := out[written*channels : (written+1)*channels]
			for c := range frame {
				s := int16(binary.LittleEndian.Uint16(head.data[head.pos+c*2:]))
				frame[c] = scale(s, gain)
			}
			written++

			v.frac += step
			advance := int(v.frac)
			v.frac -= float64(advance)
			v.advanceLocked(advance)
		}
	}

	for i := written * channels; i < len(out); i++ {
		out[i] = 0
	}
}

// advanceLocked moves the read cursor forward, retiring consumed buffers.
func (v *Voice) advanceLocked(frames int) {
	for frames > 0 && len(v.queue) > 0 {
		head := &v.queue[0]
		remaining := (len(head.data) - head.pos) / v.frameSize
		if frames < remaining {
			head.pos += frames * v.frameSize
			v.consumed += int64(frames)
			return
		}
		frames -= remaining
		v.consumed += int64(remaining)
		v.processed = append(v.processed, head.id)
		v.queue = v.queue[1:]
	}
}

func scale(s int16, gain float32) int16 {
	if gain == 1 {
		return s
	}
	f := math.Round(float64(s) * float64(gain))
	if f > math.MaxInt16 {
		return math.MaxInt16
	}
	if f < math.MinInt16 {
		return math.MinInt16
	}
	return int16(f)
}
