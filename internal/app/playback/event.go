package playback

// EventType represents a playback event type.
type EventType int

const (
	EventStateChanged EventType = iota // Transport state changed
	EventSeeked                        // A seek was applied by the worker
	EventLooped                        // Decoding wrapped to frame 0
	EventEndOfStream                   // Last queued buffer drained without looping
	EventUnderrun                      // Sustained buffer underrun
	EventError                         // Worker recorded an error
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventStateChanged:
		return "state_changed"
	case EventSeeked:
		return "seeked"
	case EventLooped:
		return "looped"
	case EventEndOfStream:
		return "end_of_stream"
	case EventUnderrun:
		return "underrun"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// terminal reports whether the event ends playback of the stream.
func (e EventType) terminal() bool {
	return e == EventEndOfStream || e == EventError
}

// Event represents a playback event.
type Event struct {
	Type   EventType
	Stream string // Stream id
	State  State  // Transport state when the event was raised
	Offset int64  // Playback position in frames
	Err    error  // Set for EventError
}
