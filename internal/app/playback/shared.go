package playback

import (
	"sync"
)

// shared is the state exchanged between the caller and the worker.
// Every field is guarded by mu; wake carries no data.
type shared struct {
	mu sync.Mutex

	stream      string
	state       State
	seq         uint64 // bumped by every caller transport command
	looping     bool
	seekPending bool
	seekTarget  int64
	position    int64
	err         error
	fatal       bool
	underruns   int
	closed      bool

	wake   chan struct{}
	events chan Event
}

// command is the worker's view of shared at the start of an iteration.
type command struct {
	state   State
	seq     uint64
	looping bool
	seek    int64
	hasSeek bool
	fatal   bool
}

func newShared(stream string) *shared {
	return &shared{
		stream: stream,
		state:  StateInitial,
		wake:   make(chan struct{}, 1),
		events: make(chan Event, 32),
	}
}

// signal wakes the worker without blocking.
func (s *shared) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// usableLocked returns the error a caller operation gets on a closed or failed stream.
func (s *shared) usableLocked() error {
	if s.closed {
		return ErrClosed
	}
	if s.fatal {
		return s.err
	}
	return nil
}

// transport records a caller transport command. rewind also requests a seek to frame 0.
func (s *shared) transport(to State, rewind bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usableLocked(); err != nil {
		return err
	}
	if s.state == to && !rewind {
		return nil
	}

	from := s.state
	s.state = to
	s.seq++
	if rewind {
		s.requestSeekLocked(0)
	}
	if from != to {
		s.sendEventLocked(Event{Type: EventStateChanged, State: to})
	}
	s.signal()
	return nil
}

// seek records a seek request. Pending requests are overwritten.
func (s *shared) seek(frame int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usableLocked(); err != nil {
		return err
	}
	s.requestSeekLocked(frame)
	s.signal()
	return nil
}

func (s *shared) requestSeekLocked(frame int64) {
	s.seekPending = true
	s.seekTarget = frame
	s.position = frame
}

func (s *shared) setLooping(looping bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.looping = looping
	s.signal()
}

// take returns the current command and consumes the pending seek.
func (s *shared) take() command {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmd := command{
		state:   s.state,
		seq:     s.seq,
		looping: s.looping,
		seek:    s.seekTarget,
		hasSeek: s.seekPending,
		fatal:   s.fatal,
	}
	s.seekPending = false
	return cmd
}

// publish stores the worker position unless a newer seek is waiting.
func (s *shared) publish(position int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.seekPending {
		s.position = position
	}
}

// finish moves to Stopped at the end of the stream unless the caller issued
// a command or a seek after seq was observed.
func (s *shared) finish(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seq != seq || s.fatal || s.seekPending {
		return false
	}
	s.state = StateStopped
	s.position = 0
	s.sendEventLocked(Event{Type: EventEndOfStream, State: s.state})
	s.sendEventLocked(Event{Type: EventStateChanged, State: s.state})
	return true
}

// fail records err in the error slot. A fatal error stops the stream for good;
// any other error stops it and rewinds, unless the caller issued a command
// after seq was observed.
func (s *shared) fail(seq uint64, err error, fatal bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fatal {
		return
	}
	s.err = err
	s.sendEventLocked(Event{Type: EventError, State: s.state, Err: err})

	if fatal {
		s.fatal = true
	} else {
		if s.seq != seq {
			return
		}
		s.requestSeekLocked(0)
	}

	if s.state != StateStopped {
		s.state = StateStopped
		s.sendEventLocked(Event{Type: EventStateChanged, State: s.state})
	}
}

// clearErr clears a non-fatal error after a successful operation.
func (s *shared) clearErr() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.fatal {
		s.err = nil
	}
}

func (s *shared) underrun() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.underruns++
	return s.underruns
}

// emit sends an event from the worker.
func (s *shared) emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Type != EventError {
		e.State = s.state
	}
	s.sendEventLocked(e)
}

// sendEventLocked sends an event without blocking. Must be called with lock held.
// When the channel is full other events are dropped, while a terminal event
// evicts the oldest pending one.
func (s *shared) sendEventLocked(e Event) {
	if s.closed {
		return
	}
	e.Stream = s.stream
	if e.Type != EventSeeked {
		e.Offset = s.position
	}
	select {
	case s.events <- e:
		return
	default:
	}
	if !e.Type.terminal() {
		return
	}
	select {
	case <-s.events:
	default:
	}
	select {
	case s.events <- e:
	default:
	}
}

// close marks the state closed and closes the event channel.
func (s *shared) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}

func (s *shared) lastErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *shared) usable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usableLocked()
}
