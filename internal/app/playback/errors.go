package playback

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/musicstream/internal/infra/decoder"
	"github.com/osa030/musicstream/internal/infra/device"
)

// Errors
var (
	ErrResourceNotFound  = errors.New("resource not found")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrDecodeFailure     = errors.New("decode failure")
	ErrDeviceUnavailable = errors.New("device unavailable")
	ErrInvalidContext    = errors.New("invalid device context")
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrClosed            = errors.New("stream closed")
	ErrJoinTimeout       = errors.New("worker did not exit in time")
)

// classify marks decoder and device errors with the matching playback error.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, decoder.ErrNotFound):
		return errors.Mark(err, ErrResourceNotFound)
	case errors.Is(err, decoder.ErrFormat), errors.Is(err, device.ErrFormatMismatch):
		return errors.Mark(err, ErrUnsupportedFormat)
	case errors.Is(err, decoder.ErrDecode), errors.Is(err, decoder.ErrSeek):
		return errors.Mark(err, ErrDecodeFailure)
	case errors.Is(err, device.ErrUnavailable):
		return errors.Mark(err, ErrDeviceUnavailable)
	case errors.Is(err, device.ErrInvalidContext):
		return errors.Mark(err, ErrInvalidContext)
	case errors.Is(err, device.ErrClosed):
		return errors.Mark(err, ErrClosed)
	}
	return err
}

// deviceLost reports whether a device error leaves the source unusable.
func deviceLost(err error) bool {
	return errors.Is(err, device.ErrInvalidContext) ||
		errors.Is(err, device.ErrUnavailable) ||
		errors.Is(err, device.ErrClosed)
}

// lostError converts a device failure seen by the worker into the error recorded for the stream.
func lostError(err error) error {
	return errors.Mark(classify(err), ErrDeviceUnavailable)
}
