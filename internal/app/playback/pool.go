package playback

type slotState int

const (
	slotFree slotState = iota
	slotDecoding
	slotQueued
)

// slot is one reusable PCM buffer. id is its index in the pool and the id
// the device sees.
type slot struct {
	id     int
	state  slotState
	data   []byte
	frames int   // frames decoded into data
	start  int64 // stream frame of the first frame in data
}

// bytes returns the decoded part of the buffer.
func (s *slot) bytes(frameSize int) []byte {
	return s.data[:s.frames*frameSize]
}

// pool is a fixed arena of slots. It is owned by the worker and needs no lock.
type pool struct {
	slots []slot
}

func newPool(count, size int) *pool {
	p := &pool{slots: make([]slot, count)}
	for i := range p.slots {
		p.slots[i] = slot{id: i, data: make([]byte, size)}
	}
	return p
}

// acquireFree hands out a free slot tagged Decoding, or false when every slot is busy.
func (p *pool) acquireFree() (*slot, bool) {
	for i := range p.slots {
		if p.slots[i].state == slotFree {
			s := &p.slots[i]
			s.state = slotDecoding
			s.frames = 0
			return s, true
		}
	}
	return nil, false
}

func (p *pool) markQueued(s *slot) {
	if s.state != slotDecoding {
		panic("playback: queuing a slot that is not decoding")
	}
	s.state = slotQueued
}

// reclaim returns a slot to Free.
func (p *pool) reclaim(s *slot) {
	s.state = slotFree
	s.frames = 0
}

// reclaimID returns the slot the device reported by id. Unknown or already
// free ids return false.
func (p *pool) reclaimID(id int) (*slot, bool) {
	if id < 0 || id >= len(p.slots) || p.slots[id].state == slotFree {
		return nil, false
	}
	s := &p.slots[id]
	end := *s
	p.reclaim(s)
	return &end, true
}

func (p *pool) reclaimAll() {
	for i := range p.slots {
		p.reclaim(&p.slots[i])
	}
}

func (p *pool) queued() int {
	n := 0
	for i := range p.slots {
		if p.slots[i].state == slotQueued {
			n++
		}
	}
	return n
}

// counts returns the number of slots per tag. They always sum to the pool size.
func (p *pool) counts() (free, decoding, queued int) {
	for i := range p.slots {
		switch p.slots[i].state {
		case slotFree:
			free++
		case slotDecoding:
			decoding++
		case slotQueued:
			queued++
		}
	}
	return free, decoding, queued
}
