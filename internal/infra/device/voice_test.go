package device

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/musicstream/internal/domain/pcm"
)

var mono = pcm.Format{SampleRate: 1000, Channels: 1, BytesPerSample: 2}

func buffer(values ...int16) []byte {
	b := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(v))
	}
	return b
}

func newTestVoice(t *testing.T) *Voice {
	t.Helper()
	v, err := NewVoice(mono, nil)
	require.NoError(t, err)
	return v
}

func TestNewVoice_RejectsFormat(t *testing.T) {
	_, err := NewVoice(pcm.Format{SampleRate: 1000, Channels: 1, BytesPerSample: 4}, nil)
	assert.True(t, errors.Is(err, ErrFormatMismatch))

	_, err = NewVoice(pcm.Format{}, nil)
	assert.True(t, errors.Is(err, ErrFormatMismatch))
}

func TestVoice_ConsumesQueueInOrder(t *testing.T) {
	v := newTestVoice(t)

	require.NoError(t, v.Queue(0, buffer(1, 2)))
	require.NoError(t, v.Queue(1, buffer(3, 4)))
	assert.Equal(t, StateInitial, v.State())

	out := make([]int16, 3)
	v.ReadSamples(out)
	assert.Equal(t, []int16{0, 0, 0}, out, "initial source outputs silence")

	require.NoError(t, v.Play())
	v.ReadSamples(out)
	assert.Equal(t, []int16{1, 2, 3}, out)
	assert.Equal(t, []int{0}, v.UnqueueProcessed())
	assert.Nil(t, v.UnqueueProcessed())
	assert.Equal(t, int64(3), v.ConsumedFrames())

	v.ReadSamples(out)
	assert.Equal(t, []int16{4, 0, 0}, out)
	assert.Equal(t, []int{1}, v.UnqueueProcessed())
	assert.Equal(t, StateStopped, v.State(), "drained source stops")
}

func TestVoice_PauseKeepsQueue(t *testing.T) {
	v := newTestVoice(t)
	require.NoError(t, v.Queue(7, buffer(10, 20, 30)))
	require.NoError(t, v.Play())

	out := make([]int16, 1)
	v.ReadSamples(out)
	assert.Equal(t, int16(10), out[0])

	require.NoError(t, v.Pause())
	assert.Equal(t, StatePaused, v.State())
	v.ReadSamples(out)
	assert.Equal(t, int16(0), out[0])

	require.NoError(t, v.Play())
	v.ReadSamples(out)
	assert.Equal(t, int16(20), out[0], "resumes where it paused")
}

func TestVoice_StopMarksProcessed(t *testing.T) {
	v := newTestVoice(t)
	require.NoError(t, v.Queue(0, buffer(1)))
	require.NoError(t, v.Queue(1, buffer(2)))
	require.NoError(t, v.Play())

	require.NoError(t, v.Stop())
	assert.Equal(t, StateStopped, v.State())
	assert.ElementsMatch(t, []int{0, 1}, v.UnqueueProcessed())
}

func TestVoice_Flush(t *testing.T) {
	v := newTestVoice(t)
	require.NoError(t, v.Queue(0, buffer(1)))
	require.NoError(t, v.Queue(1, buffer(2, 3)))
	require.NoError(t, v.Play())

	out := make([]int16, 1)
	v.ReadSamples(out)

	assert.ElementsMatch(t, []int{0, 1}, v.Flush())
	assert.Nil(t, v.UnqueueProcessed())
	assert.Equal(t, StateStopped, v.State())
}

func TestVoice_QueueRejects(t *testing.T) {
	v := newTestVoice(t)

	tests := []struct {
		name string
		id   int
		data []byte
	}{
		{name: "empty", id: 0, data: nil},
		{name: "partial frame", id: 1, data: []byte{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Queue(tt.id, tt.data)
			assert.True(t, errors.Is(err, ErrRejected))
		})
	}

	require.NoError(t, v.Queue(3, buffer(1)))
	assert.True(t, errors.Is(v.Queue(3, buffer(1)), ErrRejected), "duplicate id")
}

func TestVoice_Gain(t *testing.T) {
	v := newTestVoice(t)
	require.NoError(t, v.SetGain(0.5))
	require.NoError(t, v.Queue(0, buffer(1000, -1000)))
	require.NoError(t, v.Play())

	out := make([]int16, 2)
	v.ReadSamples(out)
	assert.Equal(t, []int16{500, -500}, out)
	assert.Equal(t, float32(0.5), v.Gain())
}

func TestVoice_Pitch(t *testing.T) {
	v := newTestVoice(t)
	require.NoError(t, v.SetPitch(2))
	require.NoError(t, v.Queue(0, buffer(1, 2, 3, 4, 5, 6)))
	require.NoError(t, v.Play())

	out := make([]int16, 3)
	v.ReadSamples(out)
	assert.Equal(t, []int16{1, 3, 5}, out)
	assert.Equal(t, int64(6), v.ConsumedFrames())
}

func TestVoice_Read(t *testing.T) {
	v := newTestVoice(t)
	require.NoError(t, v.Queue(0, buffer(258, -2)))
	require.NoError(t, v.Play())

	p := make([]byte, 5)
	n, err := v.Read(p)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte{2, 1, 0xfe, 0xff, 0}, p)
}

func TestVoice_LoseAndClose(t *testing.T) {
	released := 0
	v, err := NewVoice(mono, func() error {
		released++
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, v.Queue(0, buffer(1)))
	v.Lose()
	assert.True(t, v.Lost())
	assert.Equal(t, StateStopped, v.State())
	assert.Equal(t, []int{0}, v.UnqueueProcessed())
	assert.True(t, errors.Is(v.Play(), ErrInvalidContext))
	assert.True(t, errors.Is(v.Queue(1, buffer(1)), ErrInvalidContext))

	require.NoError(t, v.Close())
	require.NoError(t, v.Close())
	assert.Equal(t, 1, released)
	assert.True(t, errors.Is(v.SetGain(1), ErrClosed))
}

func TestSpatial_Attenuation(t *testing.T) {
	tests := []struct {
		name string
		sp   func(Spatial) Spatial
		want float32
	}{
		{name: "at listener", sp: func(s Spatial) Spatial { return s }, want: 1},
		{name: "inside reference distance", sp: func(s Spatial) Spatial {
			s.Position = Vec3{0.5, 0, 0}
			return s
		}, want: 1},
		{name: "twice the reference distance", sp: func(s Spatial) Spatial {
			s.Position = Vec3{0, 2, 0}
			return s
		}, want: 0.5},
		{name: "clamped at max distance", sp: func(s Spatial) Spatial {
			s.Position = Vec3{0, 0, 10}
			s.MaxDistance = 4
			return s
		}, want: 0.25},
		{name: "no rolloff", sp: func(s Spatial) Spatial {
			s.Position = Vec3{3, 4, 0}
			s.Rolloff = 0
			return s
		}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.sp(DefaultSpatial()).Attenuation(), 1e-6)
		})
	}
}

func TestSpatial_EffectiveClampsGain(t *testing.T) {
	sp := DefaultSpatial()
	sp.MinGain = 0.2
	sp.MaxGain = 0.8

	assert.InDelta(t, 0.8, sp.Effective(2), 1e-6)
	assert.InDelta(t, 0.2, sp.Effective(0), 1e-6)
	assert.InDelta(t, 0.5, sp.Effective(0.5), 1e-6)
}

func TestNull_DrainsPlayingSources(t *testing.T) {
	n := NewNull(NullConfig{Period: time.Millisecond, Speed: 1})
	defer n.Close()

	src, err := n.NewSource(mono)
	require.NoError(t, err)
	assert.Equal(t, 1, n.Sources())

	require.NoError(t, src.Queue(0, make([]byte, mono.Bytes(20))))
	require.NoError(t, src.Play())

	assert.Eventually(t, func() bool {
		return src.State() == StateStopped
	}, time.Second, time.Millisecond)
	assert.Equal(t, []int{0}, src.UnqueueProcessed())
	assert.Equal(t, int64(20), src.ConsumedFrames())

	require.NoError(t, src.Close())
	assert.Equal(t, 0, n.Sources())
}

func TestNull_Disconnect(t *testing.T) {
	n := NewNull(NullConfig{})
	defer n.Close()

	src, err := n.NewSource(mono)
	require.NoError(t, err)

	n.Disconnect()
	assert.True(t, errors.Is(src.Play(), ErrInvalidContext))

	_, err = n.NewSource(mono)
	assert.True(t, errors.Is(err, ErrInvalidContext))

	require.NoError(t, n.Close())
	_, err = n.NewSource(mono)
	assert.True(t, errors.Is(err, ErrUnavailable))
}
