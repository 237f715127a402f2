package playback

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicstream/internal/domain/pcm"
	"github.com/osa030/musicstream/internal/infra/decoder"
	"github.com/osa030/musicstream/internal/infra/device"
)

// controller is the streaming worker. It owns the decoder and the pool while
// it runs and is the only goroutine that queues buffers on the source.
type controller struct {
	id     string
	cfg    Config
	dec    decoder.Decoder
	source device.Source
	format pcm.Format
	frames int64
	pool   *pool
	shared *shared
	exited chan struct{}

	applied   State // last transport primitive issued to the source
	cursor    int64 // next frame the decoder yields
	exhausted bool  // decoder reached the end without looping
	streak    int   // consecutive underruns

	// Position tracking since the last flush: base is the frame playback
	// resumed from, consumedBase the source counter at that moment and
	// reclaimed the frames of buffers the source returned since.
	base         int64
	consumedBase int64
	reclaimed    int64
}

func newController(id string, cfg Config, dec decoder.Decoder, source device.Source, sh *shared) *controller {
	format := dec.Format()
	return &controller{
		id:      id,
		cfg:     cfg,
		dec:     dec,
		source:  source,
		format:  format,
		frames:  dec.Frames(),
		pool:    newPool(cfg.BufferCount, format.Bytes(cfg.ChunkFrames)),
		shared:  sh,
		exited:  make(chan struct{}),
		applied: StateInitial,
	}
}

// run is the worker loop. It returns after ctx is cancelled, once every
// buffer is reclaimed and the decoder and source are closed.
func (c *controller) run(ctx context.Context) {
	defer close(c.exited)
	defer c.teardown()

	zlog.Debug().Str("stream", c.id).Msgf("playback: worker started (%s, %d frames)", c.format, c.frames)

	ticker := time.NewTicker(c.cfg.WakeInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		c.step()

		select {
		case <-ctx.Done():
			return
		case <-c.shared.wake:
		case <-ticker.C:
		}
	}
}

// step runs one iteration of the worker.
func (c *controller) step() {
	cmd := c.shared.take()
	if cmd.fatal {
		c.halt()
		return
	}

	if cmd.hasSeek {
		c.applySeek(cmd)
	}
	c.reclaim()

	switch cmd.state {
	case StatePlaying:
		c.fill(cmd)
		c.drive(cmd)
	case StatePaused:
		if c.applied != StatePaused {
			c.primitive(cmd, StatePaused, "pause", c.source.Pause)
		}
	case StateStopped:
		if c.applied != StateStopped {
			c.primitive(cmd, StateStopped, "stop", c.source.Stop)
			c.flush()
		}
	}
}

// applySeek discards queued audio and moves the decoder to the requested frame.
func (c *controller) applySeek(cmd command) {
	c.flush()
	if c.applied == StatePlaying {
		c.applied = StateStopped
	}
	c.exhausted = false
	c.streak = 0

	if err := c.dec.SeekFrame(cmd.seek); err != nil {
		err = classify(err)
		zlog.Error().Str("stream", c.id).Err(err).Msgf("playback: seek to frame %d failed", cmd.seek)
		c.shared.fail(cmd.seq, err, false)
		return
	}
	c.cursor = cmd.seek
	c.rebase(cmd.seek)
	c.shared.publish(cmd.seek)
	c.shared.emit(Event{Type: EventSeeked, Offset: cmd.seek})
	zlog.Debug().Str("stream", c.id).Msgf("playback: seeked to frame %d", cmd.seek)
}

// reclaim frees the slots the device consumed and publishes the position
// the device reached.
func (c *controller) reclaim() {
	for _, id := range c.source.UnqueueProcessed() {
		if s, ok := c.pool.reclaimID(id); ok {
			c.reclaimed += int64(s.frames)
		}
	}
	c.shared.publish(c.position())
}

// position maps the frames the source consumed since the last flush onto the
// stream. Whole reclaimed buffers bound it from below for sources that do
// not count consumed frames.
func (c *controller) position() int64 {
	played := c.source.ConsumedFrames() - c.consumedBase
	if played < c.reclaimed {
		played = c.reclaimed
	}
	pos := c.base + played
	if c.frames > 0 && pos >= c.frames {
		pos %= c.frames
	}
	return pos
}

// rebase restarts position tracking at frame after the source queue was flushed.
func (c *controller) rebase(frame int64) {
	c.base = frame
	c.consumedBase = c.source.ConsumedFrames()
	c.reclaimed = 0
}

// flush takes every queued buffer back from the source without waiting.
func (c *controller) flush() {
	for _, id := range c.source.Flush() {
		c.pool.reclaimID(id)
	}
}

// fill decodes into every free slot and queues the results.
func (c *controller) fill(cmd command) {
	if c.exhausted && cmd.looping && c.frames > 0 {
		// looping was enabled while the tail drained
		if err := c.rewind(); err != nil {
			c.shared.fail(cmd.seq, classify(err), false)
			return
		}
		c.exhausted = false
		c.shared.emit(Event{Type: EventLooped})
	}
	if c.exhausted {
		return
	}

	for {
		s, ok := c.pool.acquireFree()
		if !ok {
			return
		}

		n, err := c.decodeInto(s, cmd.looping)
		if err != nil {
			c.pool.reclaim(s)
			err = classify(err)
			zlog.Error().Str("stream", c.id).Err(err).Msg("playback: decode failed")
			c.shared.fail(cmd.seq, err, true)
			return
		}
		if n == 0 {
			c.pool.reclaim(s)
			c.exhausted = true
			zlog.Debug().Str("stream", c.id).Msg("playback: decoder reached end of stream")
			return
		}

		if err := c.source.Queue(s.id, s.bytes(c.format.FrameSize())); err != nil {
			c.pool.reclaim(s)
			c.deviceFailed(cmd, err, "queue on")
			return
		}
		c.pool.markQueued(s)
		c.shared.clearErr()
	}
}

// decodeInto decodes the next chunk into s. At the end of the stream a
// looping decoder is rewound and read again into the same slot.
func (c *controller) decodeInto(s *slot, looping bool) (int, error) {
	n, err := c.dec.ReadChunk(s.data)
	if err != nil {
		return 0, err
	}
	if n == 0 && looping && c.frames > 0 {
		if err := c.rewind(); err != nil {
			return 0, err
		}
		c.shared.emit(Event{Type: EventLooped})
		n, err = c.dec.ReadChunk(s.data)
		if err != nil {
			return 0, err
		}
	}

	s.frames = n
	s.start = c.cursor
	c.cursor += int64(n)
	return n, nil
}

func (c *controller) rewind() error {
	if err := c.dec.SeekFrame(0); err != nil {
		return errors.Wrap(err, "failed to rewind for loop")
	}
	c.cursor = 0
	return nil
}

// drive keeps the source playing, detects underruns and finishes the stream
// once its tail drained.
func (c *controller) drive(cmd command) {
	queued := c.pool.queued()

	if c.exhausted && queued == 0 {
		c.finishStream(cmd)
		return
	}
	if queued == 0 {
		return
	}

	if c.applied != StatePlaying {
		c.primitive(cmd, StatePlaying, "play", c.source.Play)
		return
	}

	if c.source.State() != device.StateStopped || c.exhausted {
		if free, _, _ := c.pool.counts(); free == 0 {
			c.streak = 0
		}
		return
	}

	// The source drained its queue before the worker refilled it.
	total := c.shared.underrun()
	c.streak++
	if c.streak == c.cfg.UnderrunWarnAfter {
		zlog.Warn().Str("stream", c.id).Int("underruns", total).Msg("playback: sustained buffer underrun")
		c.shared.emit(Event{Type: EventUnderrun})
	}
	if err := c.source.Play(); err != nil {
		c.deviceFailed(cmd, err, "restart")
	}
}

// finishStream stops the stream at its natural end and rewinds the decoder.
func (c *controller) finishStream(cmd command) {
	if !c.shared.finish(cmd.seq) {
		return
	}
	zlog.Debug().Str("stream", c.id).Msg("playback: end of stream")

	if err := c.source.Stop(); err != nil && deviceLost(err) {
		c.deviceFailed(cmd, err, "stop")
		return
	}
	c.flush()
	c.applied = StateStopped
	c.exhausted = false
	c.rebase(0)

	if err := c.rewind(); err != nil {
		c.shared.fail(cmd.seq, classify(err), false)
	}
}

// primitive issues a transport primitive on the source.
func (c *controller) primitive(cmd command, to State, op string, fn func() error) {
	if err := fn(); err != nil {
		c.deviceFailed(cmd, err, op)
		return
	}
	c.applied = to
	zlog.Debug().Str("stream", c.id).Msgf("playback: source %s", to)
}

// deviceFailed records a device error. A lost device is fatal; a rejected
// buffer only stops the stream.
func (c *controller) deviceFailed(cmd command, err error, op string) {
	fatal := deviceLost(err)
	if fatal {
		err = lostError(err)
	} else {
		err = classify(err)
	}
	err = errors.Wrapf(err, "failed to %s source", op)
	zlog.Error().Str("stream", c.id).Err(err).Bool("fatal", fatal).Msg("playback: device error")
	c.shared.fail(cmd.seq, err, fatal)
}

// halt silences the source once after a fatal error.
func (c *controller) halt() {
	if c.applied == StateStopped {
		return
	}
	_ = c.source.Stop()
	c.flush()
	c.applied = StateStopped
}

func (c *controller) teardown() {
	_ = c.source.Stop()
	c.flush()
	c.pool.reclaimAll()

	if err := c.dec.Close(); err != nil {
		zlog.Warn().Str("stream", c.id).Err(err).Msg("playback: failed to close decoder")
	}
	if err := c.source.Close(); err != nil {
		zlog.Warn().Str("stream", c.id).Err(err).Msg("playback: failed to close source")
	}
	zlog.Debug().Str("stream", c.id).Msg("playback: worker exited")
}
