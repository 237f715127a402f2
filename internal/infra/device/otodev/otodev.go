// Package otodev outputs sources through an oto context.
package otodev

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ebitengine/oto/v3"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicstream/internal/domain/pcm"
	"github.com/osa030/musicstream/internal/infra/device"
)

// oto allows a single context per process.
var (
	ctxMu     sync.Mutex
	ctx       *oto.Context
	ctxFormat pcm.Format
)

// Config configures the oto device.
type Config struct {
	// Period is the output buffer duration.
	Period time.Duration
}

// Device creates oto players, one per source.
type Device struct {
	period time.Duration
}

var _ device.Device = (*Device)(nil)

// New creates an oto device. The context is created lazily by the first source.
func New(cfg Config) *Device {
	return &Device{period: cfg.Period}
}

func sharedContext(format pcm.Format, period time.Duration) (*oto.Context, error) {
	ctxMu.Lock()
	defer ctxMu.Unlock()

	if ctx != nil {
		if ctxFormat != format {
			return nil, errors.Wrapf(device.ErrFormatMismatch, "oto context runs at %s, source wants %s", ctxFormat, format)
		}
		return ctx, nil
	}

	c, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   period,
	})
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to create oto context"), device.ErrUnavailable)
	}
	<-ready

	ctx = c
	ctxFormat = format
	zlog.Debug().Msgf("otodev: context ready at %s", format)
	return ctx, nil
}

func (d *Device) NewSource(format pcm.Format) (device.Source, error) {
	c, err := sharedContext(format, d.period)
	if err != nil {
		return nil, err
	}

	var player *oto.Player
	v, err := device.NewVoice(format, func() error {
		return player.Close()
	})
	if err != nil {
		return nil, err
	}

	player = c.NewPlayer(v)
	if d.period > 0 {
		player.SetBufferSize(format.Bytes(int(format.FramesIn(d.period))))
	}
	player.Play()
	return v, nil
}

// Close is a no-op: an oto context cannot be released and lives until exit.
func (d *Device) Close() error {
	return nil
}
