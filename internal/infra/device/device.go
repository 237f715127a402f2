// Package device binds PCM sources to an audio output.
//
// A Source behaves like an OpenAL streaming source: callers queue identified
// buffers, the output consumes them in real time, and consumed buffers are
// handed back through UnqueueProcessed. A playing source whose queue drains
// switches to StateStopped on its own.
package device

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/musicstream/internal/domain/pcm"
)

// Errors
var (
	ErrUnavailable    = errors.New("audio device unavailable")
	ErrInvalidContext = errors.New("audio context missing or lost")
	ErrRejected       = errors.New("buffer rejected")
	ErrClosed         = errors.New("source closed")
	ErrFormatMismatch = errors.New("format does not match the device")
)

// State is the state reported by a source.
type State int

const (
	StateInitial State = iota
	StatePlaying
	StatePaused
	StateStopped
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Device creates sources on an output.
type Device interface {
	// NewSource allocates a source accepting PCM of the given format.
	NewSource(format pcm.Format) (Source, error)
	// Close releases the output. Sources must be closed first.
	Close() error
}

// Source is a single voice on a device.
//
// Queue, UnqueueProcessed, Flush and the transport methods are meant for the
// goroutine streaming into the source; parameter setters may be called from
// any goroutine.
type Source interface {
	// Queue appends a buffer. The source borrows data until the id is
	// returned by UnqueueProcessed or Flush.
	Queue(id int, data []byte) error
	// UnqueueProcessed returns the ids of fully consumed buffers.
	UnqueueProcessed() []int
	// Flush discards every queued buffer without waiting for consumption
	// and returns their ids, processed ones included.
	Flush() []int

	Play() error
	Pause() error
	// Stop halts output and marks every queued buffer processed.
	Stop() error
	State() State

	// ConsumedFrames returns the number of frames the output has consumed.
	ConsumedFrames() int64

	SetGain(gain float32) error
	Gain() float32
	SetPitch(pitch float32) error
	Pitch() float32
	SetSpatial(sp Spatial) error
	Spatial() Spatial

	Close() error
}
