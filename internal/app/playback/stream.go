package playback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicstream/internal/domain/pcm"
	"github.com/osa030/musicstream/internal/infra/decoder"
	"github.com/osa030/musicstream/internal/infra/device"
)

const maxAirAbsorption = 10

// AudioController is the control surface shared by playable sounds.
type AudioController interface {
	Play() error
	Pause() error
	Stop() error
	IsPlaying() bool
	State() State
	SetLooping(looping bool)
	IsLooping() bool
	SetOffset(frame int64) error
	Offset() int64
	SetVolume(volume float32) error
	Volume() float32
	Duration() time.Duration
	Close() error
}

var _ AudioController = (*Stream)(nil)

// Stream plays one resource through a device source. A background worker
// decodes into a small pool of buffers and keeps the source fed; every method
// returns without waiting for it, except Close.
type Stream struct {
	id     string
	cfg    Config
	format pcm.Format
	frames int64
	data   *decoder.SoundData
	source device.Source
	shared *shared
	ctrl   *controller
	cancel context.CancelFunc

	paramMu   sync.Mutex // serialises spatial read-modify-write
	closeOnce sync.Once
	closeErr  error
}

// NewStream opens the resource at path and starts streaming it to dev.
// Errors leave no worker running and no source allocated.
func NewStream(path string, dev device.Device, cfg Config) (*Stream, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	dec, err := decoder.Open(path)
	if err != nil {
		return nil, classify(err)
	}
	return start(dec, nil, dev, cfg)
}

// NewStreamFromData streams shared decoded data to dev. Several streams may
// share the same data, each with its own position.
func NewStreamFromData(data *decoder.SoundData, dev device.Device, cfg Config) (*Stream, error) {
	if data == nil {
		return nil, errors.Wrap(ErrInvalidParameter, "no sound data")
	}
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return start(data.NewDecoder(), data, dev, cfg)
}

func start(dec decoder.Decoder, data *decoder.SoundData, dev device.Device, cfg Config) (*Stream, error) {
	if dev == nil {
		_ = dec.Close()
		return nil, errors.Wrap(ErrInvalidContext, "no audio device")
	}
	source, err := dev.NewSource(dec.Format())
	if err != nil {
		_ = dec.Close()
		return nil, classify(err)
	}

	id := uuid.New().String()
	sh := newShared(id)
	ctx, cancel := context.WithCancel(context.Background())
	s := &Stream{
		id:     id,
		cfg:    cfg,
		format: dec.Format(),
		frames: dec.Frames(),
		data:   data,
		source: source,
		shared: sh,
		ctrl:   newController(id, cfg, dec, source, sh),
		cancel: cancel,
	}
	go s.ctrl.run(ctx)

	zlog.Debug().Str("stream", id).Msgf("playback: stream created (%s, %v)", s.format, s.Duration())
	return s, nil
}

// ID returns the stream id used in logs and events.
func (s *Stream) ID() string { return s.id }

// Data returns the shared data the stream plays, nil when it streams from a file.
func (s *Stream) Data() *decoder.SoundData { return s.data }

// Format returns the PCM format sent to the device.
func (s *Stream) Format() pcm.Format { return s.format }

// Frames returns the total frame count, 0 if unknown.
func (s *Stream) Frames() int64 { return s.frames }

// Duration returns the length of the resource.
func (s *Stream) Duration() time.Duration {
	return s.format.Duration(s.frames)
}

// Events returns the event channel. It is closed by Close.
func (s *Stream) Events() <-chan Event {
	return s.shared.events
}

// Play starts or resumes playback. A paused stream resumes where it paused,
// a stopped one restarts from the beginning.
func (s *Stream) Play() error {
	return s.shared.transport(StatePlaying, false)
}

// Pause pauses playback. The device keeps its queued buffers.
func (s *Stream) Pause() error {
	return s.shared.transport(StatePaused, false)
}

// Stop stops playback and rewinds to the beginning.
func (s *Stream) Stop() error {
	return s.shared.transport(StateStopped, true)
}

// State returns the transport state.
func (s *Stream) State() State {
	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()
	return s.shared.state
}

// IsPlaying reports whether the stream is playing.
func (s *Stream) IsPlaying() bool {
	return s.State() == StatePlaying
}

// SetLooping sets whether the stream wraps to the beginning at its end.
func (s *Stream) SetLooping(looping bool) {
	s.shared.setLooping(looping)
}

// IsLooping reports whether looping is enabled.
func (s *Stream) IsLooping() bool {
	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()
	return s.shared.looping
}

// SetOffset requests a seek to frame. A newer request replaces a pending one.
func (s *Stream) SetOffset(frame int64) error {
	if frame < 0 || s.frames == 0 || frame >= s.frames {
		return errors.Wrapf(ErrInvalidParameter, "offset %d outside [0, %d)", frame, s.frames)
	}
	return s.shared.seek(frame)
}

// Offset returns the last known playback position in frames.
func (s *Stream) Offset() int64 {
	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()
	return s.shared.position
}

// SetOffsetDuration requests a seek to a time offset.
func (s *Stream) SetOffsetDuration(d time.Duration) error {
	return s.SetOffset(s.format.FramesIn(d))
}

// OffsetDuration returns the last known playback position as a duration.
func (s *Stream) OffsetDuration() time.Duration {
	return s.format.Duration(s.Offset())
}

// Err returns the last recorded error, nil once a later operation succeeded.
func (s *Stream) Err() error {
	return s.shared.lastErr()
}

// Underruns returns how many buffer underruns the worker detected.
func (s *Stream) Underruns() int {
	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()
	return s.shared.underruns
}

// SetVolume sets the source gain. 1 is unchanged, 0 is silent.
func (s *Stream) SetVolume(volume float32) error {
	if volume < 0 {
		return errors.Wrapf(ErrInvalidParameter, "volume %v is negative", volume)
	}
	if err := s.shared.usable(); err != nil {
		return err
	}
	return classify(s.source.SetGain(volume))
}

// Volume returns the source gain.
func (s *Stream) Volume() float32 {
	return s.source.Gain()
}

// SetPitch sets the playback speed factor.
func (s *Stream) SetPitch(pitch float32) error {
	if pitch <= 0 {
		return errors.Wrapf(ErrInvalidParameter, "pitch %v must be positive", pitch)
	}
	if err := s.shared.usable(); err != nil {
		return err
	}
	return classify(s.source.SetPitch(pitch))
}

// Pitch returns the playback speed factor.
func (s *Stream) Pitch() float32 {
	return s.source.Pitch()
}

// Spatial returns the positional parameters of the source.
func (s *Stream) Spatial() device.Spatial {
	return s.source.Spatial()
}

// updateSpatial applies fn to the current positional parameters.
func (s *Stream) updateSpatial(fn func(sp *device.Spatial)) error {
	if err := s.shared.usable(); err != nil {
		return err
	}
	s.paramMu.Lock()
	defer s.paramMu.Unlock()

	sp := s.source.Spatial()
	fn(&sp)
	return classify(s.source.SetSpatial(sp))
}

func unitRange(name string, v float32) error {
	if v < 0 || v > 1 {
		return errors.Wrapf(ErrInvalidParameter, "%s %v outside [0, 1]", name, v)
	}
	return nil
}

func nonNegative(name string, v float32) error {
	if v < 0 {
		return errors.Wrapf(ErrInvalidParameter, "%s %v is negative", name, v)
	}
	return nil
}

// SetMinVolume sets the lower bound of the effective gain.
func (s *Stream) SetMinVolume(v float32) error {
	if err := unitRange("min volume", v); err != nil {
		return err
	}
	return s.updateSpatial(func(sp *device.Spatial) { sp.MinGain = v })
}

// MinVolume returns the lower bound of the effective gain.
func (s *Stream) MinVolume() float32 { return s.Spatial().MinGain }

// SetMaxVolume sets the upper bound of the effective gain.
func (s *Stream) SetMaxVolume(v float32) error {
	if err := unitRange("max volume", v); err != nil {
		return err
	}
	return s.updateSpatial(func(sp *device.Spatial) { sp.MaxGain = v })
}

// MaxVolume returns the upper bound of the effective gain.
func (s *Stream) MaxVolume() float32 { return s.Spatial().MaxGain }

// SetPosition sets the source position.
func (s *Stream) SetPosition(x, y, z float32) error {
	return s.updateSpatial(func(sp *device.Spatial) { sp.Position = device.Vec3{x, y, z} })
}

// Position returns the source position.
func (s *Stream) Position() device.Vec3 { return s.Spatial().Position }

// SetDirection sets the source direction.
func (s *Stream) SetDirection(x, y, z float32) error {
	return s.updateSpatial(func(sp *device.Spatial) { sp.Direction = device.Vec3{x, y, z} })
}

// Direction returns the source direction.
func (s *Stream) Direction() device.Vec3 { return s.Spatial().Direction }

// SetVelocity sets the source velocity.
func (s *Stream) SetVelocity(x, y, z float32) error {
	return s.updateSpatial(func(sp *device.Spatial) { sp.Velocity = device.Vec3{x, y, z} })
}

// Velocity returns the source velocity.
func (s *Stream) Velocity() device.Vec3 { return s.Spatial().Velocity }

// SetRelative sets whether the position is relative to the listener.
func (s *Stream) SetRelative(relative bool) error {
	return s.updateSpatial(func(sp *device.Spatial) { sp.Relative = relative })
}

// IsRelative reports whether the position is relative to the listener.
func (s *Stream) IsRelative() bool { return s.Spatial().Relative }

// SetMaxDistance sets the distance beyond which attenuation stops.
func (s *Stream) SetMaxDistance(d float32) error {
	if err := nonNegative("max distance", d); err != nil {
		return err
	}
	return s.updateSpatial(func(sp *device.Spatial) { sp.MaxDistance = d })
}

// MaxDistance returns the distance beyond which attenuation stops.
func (s *Stream) MaxDistance() float32 { return s.Spatial().MaxDistance }

// SetReferenceDistance sets the distance at which the gain is unattenuated.
func (s *Stream) SetReferenceDistance(d float32) error {
	if err := nonNegative("reference distance", d); err != nil {
		return err
	}
	return s.updateSpatial(func(sp *device.Spatial) { sp.ReferenceDistance = d })
}

// ReferenceDistance returns the distance at which the gain is unattenuated.
func (s *Stream) ReferenceDistance() float32 { return s.Spatial().ReferenceDistance }

// SetAttenuation sets the rolloff factor.
func (s *Stream) SetAttenuation(rolloff float32) error {
	if err := nonNegative("attenuation", rolloff); err != nil {
		return err
	}
	return s.updateSpatial(func(sp *device.Spatial) { sp.Rolloff = rolloff })
}

// Attenuation returns the rolloff factor.
func (s *Stream) Attenuation() float32 { return s.Spatial().Rolloff }

// SetAirAbsorption sets the air absorption factor in [0, 10].
func (s *Stream) SetAirAbsorption(factor float32) error {
	if factor < 0 || factor > maxAirAbsorption {
		return errors.Wrapf(ErrInvalidParameter, "air absorption %v outside [0, %d]", factor, maxAirAbsorption)
	}
	return s.updateSpatial(func(sp *device.Spatial) { sp.AirAbsorption = factor })
}

// AirAbsorption returns the air absorption factor.
func (s *Stream) AirAbsorption() float32 { return s.Spatial().AirAbsorption }

// Close stops the worker and waits for it to release the decoder, the
// buffers and the source. It returns ErrJoinTimeout if the worker does not
// exit within the configured bound. Close is idempotent.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()

		timer := time.NewTimer(s.cfg.JoinTimeout)
		defer timer.Stop()

		select {
		case <-s.ctrl.exited:
			zlog.Debug().Str("stream", s.id).Msg("playback: stream closed")
		case <-timer.C:
			s.closeErr = errors.Wrapf(ErrJoinTimeout, "stream %s", s.id)
			zlog.Error().Str("stream", s.id).Err(s.closeErr).Msg("playback: worker did not exit")
		}
		s.shared.close()
	})
	return s.closeErr
}
