package device

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicstream/internal/domain/pcm"
)

// NullConfig configures the null device.
type NullConfig struct {
	// Period is the interval between two pulls.
	Period time.Duration
	// Speed scales the clock; 1 consumes audio in real time.
	Speed float64
}

// Null is a device without audio hardware. A software clock drains every
// playing source at its sample rate and discards the samples.
type Null struct {
	mu      sync.Mutex
	period  time.Duration
	speed   float64
	voices  map[*Voice]*nullClock
	lost    bool
	closed  bool
	cancel  context.CancelFunc
	stopped chan struct{}
}

type nullClock struct {
	carry   float64
	scratch []int16
}

var _ Device = (*Null)(nil)

// NewNull creates a null device and starts its clock.
func NewNull(cfg NullConfig) *Null {
	if cfg.Period <= 0 {
		cfg.Period = 10 * time.Millisecond
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := &Null{
		period:  cfg.Period,
		speed:   cfg.Speed,
		voices:  make(map[*Voice]*nullClock),
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
	go n.run(ctx)
	return n
}

func (n *Null) NewSource(format pcm.Format) (Source, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil, errors.Wrap(ErrUnavailable, "null device closed")
	}
	if n.lost {
		return nil, errors.Wrap(ErrInvalidContext, "null device disconnected")
	}

	var v *Voice
	v, err := NewVoice(format, func() error {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.voices, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	n.voices[v] = &nullClock{}
	return v, nil
}

// Disconnect simulates the loss of the output context.
func (n *Null) Disconnect() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.lost = true
	for v := range n.voices {
		v.Lose()
	}
	zlog.Debug().Msgf("device: null device disconnected (%d sources)", len(n.voices))
}

// Sources returns the number of open sources.
func (n *Null) Sources() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.voices)
}

func (n *Null) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.mu.Unlock()

	n.cancel()
	<-n.stopped
	return nil
}

func (n *Null) run(ctx context.Context) {
	defer close(n.stopped)

	ticker := time.NewTicker(n.period)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n.pull(now.Sub(last))
			last = now
		}
	}
}

func (n *Null) pull(elapsed time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for v, clk := range n.voices {
		format := v.Format()
		exact := elapsed.Seconds()*float64(format.SampleRate)*n.speed + clk.carry
		frames := int(exact)
		clk.carry = exact - float64(frames)
		if frames == 0 {
			continue
		}

		samples := frames * format.Channels
		if cap(clk.scratch) < samples {
			clk.scratch = make([]int16, samples)
		}
		v.ReadSamples(clk.scratch[:samples])
	}
}
