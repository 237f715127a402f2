// Package malgodev outputs sources through miniaudio playback devices.
package malgodev

import (
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gen2brain/malgo"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicstream/internal/domain/pcm"
	"github.com/osa030/musicstream/internal/infra/device"
)

// Config configures the malgo device.
type Config struct {
	// Period is the device period.
	Period time.Duration
}

// Device owns a miniaudio context and opens one playback device per source.
type Device struct {
	ctx    *malgo.AllocatedContext
	period time.Duration
}

var _ device.Device = (*Device)(nil)

// New initialises a miniaudio context.
func New(cfg Config) (*Device, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		zlog.Debug().Msgf("malgodev: %s", message)
	})
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to initialize audio context"), device.ErrUnavailable)
	}
	return &Device{ctx: ctx, period: cfg.Period}, nil
}

func (d *Device) NewSource(format pcm.Format) (device.Source, error) {
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = uint32(format.Channels)
	cfg.SampleRate = uint32(format.SampleRate)
	if frames := format.FramesIn(d.period); frames > 0 {
		cfg.PeriodSizeInFrames = uint32(frames)
	}

	var (
		dev     *malgo.Device
		closing atomic.Bool
	)
	v, err := device.NewVoice(format, func() error {
		closing.Store(true)
		dev.Uninit()
		return nil
	})
	if err != nil {
		return nil, err
	}

	dev, err = malgo.InitDevice(d.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(out, _ []byte, _ uint32) {
			_, _ = v.Read(out)
		},
		Stop: func() {
			if closing.Load() {
				return
			}
			zlog.Warn().Msg("malgodev: playback device stopped unexpectedly")
			v.Lose()
		},
	})
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to initialize playback device"), device.ErrUnavailable)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return nil, errors.Mark(errors.Wrap(err, "failed to start playback device"), device.ErrUnavailable)
	}
	return v, nil
}

func (d *Device) Close() error {
	if err := d.ctx.Uninit(); err != nil {
		return errors.Wrap(err, "failed to release audio context")
	}
	d.ctx.Free()
	return nil
}
