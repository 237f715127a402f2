package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/musicstream/internal/app/playback"
)

type recorder struct {
	mu  sync.Mutex
	got []*Notification
}

func (r *recorder) Send(n *Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return nil
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func TestManager_Broadcast(t *testing.T) {
	m := NewManager()
	a, b := &recorder{}, &recorder{}
	idA := m.Subscribe(a)
	m.Subscribe(b)
	assert.Equal(t, 2, m.SubscriberCount())

	first := m.Broadcast("intro", playback.Event{Type: playback.EventStateChanged, State: playback.StatePlaying})
	second := m.Broadcast("intro", playback.Event{Type: playback.EventEndOfStream})

	assert.Equal(t, uint64(1), first.SequenceNo)
	assert.Equal(t, uint64(2), second.SequenceNo)
	assert.Equal(t, 2, a.len())
	assert.Equal(t, 2, b.len())
	assert.Equal(t, "intro", a.got[0].Track)
	assert.Equal(t, playback.EventEndOfStream, b.got[1].Event.Type)

	m.Unsubscribe(idA)
	m.Broadcast("intro", playback.Event{Type: playback.EventLooped})
	assert.Equal(t, 2, a.len())
	assert.Equal(t, 3, b.len())

	m.Close()
	assert.Equal(t, 0, m.SubscriberCount())
}

func TestManager_BroadcastSkipsSlowAndFailingSubscribers(t *testing.T) {
	m := NewManager()
	m.SetSendTimeout(20 * time.Millisecond)

	block := make(chan struct{})
	defer close(block)
	m.Subscribe(StreamFunc(func(*Notification) error {
		<-block
		return nil
	}))
	m.Subscribe(StreamFunc(func(*Notification) error {
		return errors.New("gone")
	}))
	ok := &recorder{}
	m.Subscribe(ok)

	start := time.Now()
	m.Broadcast("slow", playback.Event{Type: playback.EventUnderrun})
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, ok.len())
}

func TestManager_Relay(t *testing.T) {
	m := NewManager()
	r := &recorder{}
	m.Subscribe(r)

	events := make(chan playback.Event, 3)
	events <- playback.Event{Type: playback.EventStateChanged}
	events <- playback.Event{Type: playback.EventSeeked, Offset: 42}
	close(events)

	done := make(chan struct{})
	go func() {
		m.Relay(context.Background(), "track", events)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "relay did not return after the channel closed")
	}
	require.Equal(t, 2, r.len())
	assert.Equal(t, int64(42), r.got[1].Event.Offset)
}
