package audio

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrDeviceNotFound is returned when no capture device matches the
	// configured pattern and no explicit index was given.
	ErrDeviceNotFound = errors.New("audio device not found")
	// ErrDeviceUnavailable is returned when an open stream loses its
	// device mid-capture, e.g. the monitored application was closed.
	ErrDeviceUnavailable = errors.New("audio device unavailable")
)

// Chunk is one fixed-length read of signed 16-bit little-endian PCM.
// Immutable once produced.
type Chunk struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames in the chunk.
func (c Chunk) Frames() int {
	if c.Channels == 0 {
		return 0
	}
	return len(c.PCM) / (2 * c.Channels)
}

// Duration returns the wall-clock span the chunk covers.
func (c Chunk) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

// Device describes one capture device as reported by the backend.
// Inputs is 0 when the backend does not report channel counts.
type Device struct {
	Index  int
	Name   string
	Inputs int
}

// Stream delivers fixed-size chunks from a single opened device.
// ReadChunk blocks until a full chunk is available. Close releases the
// device and unblocks any in-flight read.
type Stream interface {
	ReadChunk(ctx context.Context) (Chunk, error)
	Close() error
}

// Source enumerates devices and opens capture streams.
type Source interface {
	ListDevices(ctx context.Context) ([]Device, error)
	Open(ctx context.Context, device Device) (Stream, error)
}

// FindDevice returns the first device whose name contains pattern,
// case-insensitively.
func FindDevice(devices []Device, pattern string) (Device, bool) {
	needle := strings.ToLower(pattern)
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.Name), needle) {
			return d, true
		}
	}
	return Device{}, false
}
