// Package playback streams decoded audio to an output device under caller control.
package playback

// State represents the transport state of a stream.
type State int

const (
	StateInitial State = iota // Never played
	StatePlaying              // Feeding the device
	StatePaused               // Device holds its queue, position frozen
	StateStopped              // Stopped by the caller, end of stream or an error
)

// String returns the string representation of the state.
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
