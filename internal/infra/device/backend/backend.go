// Package backend selects an output device by name.
package backend

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/musicstream/internal/infra/device"
	"github.com/osa030/musicstream/internal/infra/device/malgodev"
	"github.com/osa030/musicstream/internal/infra/device/otodev"
	"github.com/osa030/musicstream/internal/infra/device/portaudiodev"
)

// Backend names.
const (
	Oto       = "oto"
	Malgo     = "malgo"
	PortAudio = "portaudio"
	Null      = "null"
)

// Names lists the known backends.
var Names = []string{Oto, Malgo, PortAudio, Null}

// New opens the named backend with the given output period.
func New(name string, period time.Duration) (device.Device, error) {
	switch name {
	case Oto:
		return otodev.New(otodev.Config{Period: period}), nil
	case Malgo:
		return malgodev.New(malgodev.Config{Period: period})
	case PortAudio:
		return portaudiodev.New(portaudiodev.Config{Period: period})
	case Null:
		return device.NewNull(device.NullConfig{Period: period, Speed: 1}), nil
	default:
		return nil, errors.Newf("unknown audio backend %q", name)
	}
}
