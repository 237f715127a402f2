// Package portaudiodev outputs sources through PortAudio callback streams.
package portaudiodev

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gordonklaus/portaudio"

	"github.com/osa030/musicstream/internal/domain/pcm"
	"github.com/osa030/musicstream/internal/infra/device"
)

// Config configures the PortAudio device.
type Config struct {
	// Period is the duration of one callback buffer.
	Period time.Duration
}

// Device opens one default output stream per source.
type Device struct {
	period time.Duration
}

var _ device.Device = (*Device)(nil)

// New initialises PortAudio.
func New(cfg Config) (*Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to initialize PortAudio"), device.ErrUnavailable)
	}
	return &Device{period: cfg.Period}, nil
}

func (d *Device) NewSource(format pcm.Format) (device.Source, error) {
	var stream *portaudio.Stream
	v, err := device.NewVoice(format, func() error {
		if err := stream.Stop(); err != nil {
			_ = stream.Close()
			return errors.Wrap(err, "failed to stop audio stream")
		}
		return stream.Close()
	})
	if err != nil {
		return nil, err
	}

	frames := int(format.FramesIn(d.period))
	stream, err = portaudio.OpenDefaultStream(0, format.Channels, float64(format.SampleRate), frames, func(out []int16) {
		v.ReadSamples(out)
	})
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to open audio stream"), device.ErrUnavailable)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, errors.Mark(errors.Wrap(err, "failed to start audio stream"), device.ErrUnavailable)
	}
	return v, nil
}

func (d *Device) Close() error {
	if err := portaudio.Terminate(); err != nil {
		return errors.Wrap(err, "failed to terminate PortAudio")
	}
	return nil
}
