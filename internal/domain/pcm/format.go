// Package pcm provides the linear PCM format shared by decoders and output devices.
package pcm

import (
	"fmt"
	"time"
)

// BytesPerSample16 is the width of a signed 16-bit sample.
const BytesPerSample16 = 2

// Format describes interleaved linear PCM audio.
type Format struct {
	SampleRate     int // Frames per second
	Channels       int // Interleaved channels per frame
	BytesPerSample int // Width of one sample of one channel
}

// FrameSize returns the number of bytes in one frame.
func (f Format) FrameSize() int {
	return f.Channels * f.BytesPerSample
}

// Bytes returns the number of bytes occupied by n frames.
func (f Format) Bytes(frames int) int {
	return frames * f.FrameSize()
}

// Frames returns the number of whole frames contained in n bytes.
func (f Format) Frames(bytes int) int {
	size := f.FrameSize()
	if size == 0 {
		return 0
	}
	return bytes / size
}

// Duration converts a frame count to a duration without losing sub-second precision.
func (f Format) Duration(frames int64) time.Duration {
	if f.SampleRate <= 0 || frames <= 0 {
		return 0
	}
	rate := int64(f.SampleRate)
	seconds := frames / rate
	nanos := frames % rate * int64(time.Second) / rate
	return time.Duration(seconds)*time.Second + time.Duration(nanos)
}

// FramesIn converts a duration to the number of frames it covers.
func (f Format) FramesIn(d time.Duration) int64 {
	if f.SampleRate <= 0 || d <= 0 {
		return 0
	}
	return int64(d) * int64(f.SampleRate) / int64(time.Second)
}

// Valid reports whether the format can be streamed.
func (f Format) Valid() bool {
	return f.SampleRate > 0 && f.Channels > 0 && f.BytesPerSample > 0
}

// String returns a short human readable description, e.g. "44100Hz/2ch/16bit".
func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit", f.SampleRate, f.Channels, f.BytesPerSample*8)
}
