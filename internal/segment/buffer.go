package segment

import (
	"time"

	"github.com/loqalabs/loqa-scribe/internal/audio"
	"github.com/loqalabs/loqa-scribe/internal/config"
)

// Segment is one window of PCM handed to the recognizer in a single
// call, with its start offset from the beginning of capture.
type Segment struct {
	PCM        []byte
	SampleRate int
	Channels   int
	Start      time.Duration
}

func (s Segment) Duration() time.Duration {
	if s.SampleRate == 0 || s.Channels == 0 {
		return 0
	}
	frames := len(s.PCM) / (2 * s.Channels)
	return time.Duration(frames) * time.Second / time.Duration(s.SampleRate)
}

// Buffer accumulates capture chunks into fixed windows. Consecutive
// windows overlap by a fixed amount so words are not cut at boundaries.
// Memory is bounded by one window plus one chunk.
type Buffer struct {
	sampleRate    int
	channels      int
	windowBytes   int
	overlapBytes  int
	minDrainBytes int

	buf []byte
	// bytes at the head of buf already emitted as the tail of the
	// previous segment
	retained int
	// capture offset of buf[0]
	startBytes int64
}

func NewBuffer(cfg config.SegmenterConfig, sampleRate, channels int) *Buffer {
	return &Buffer{
		sampleRate:    sampleRate,
		channels:      channels,
		windowBytes:   bytesForDuration(cfg.WindowMS, sampleRate, channels),
		overlapBytes:  bytesForDuration(cfg.OverlapMS, sampleRate, channels),
		minDrainBytes: bytesForDuration(cfg.MinDrainMS, sampleRate, channels),
	}
}

func (b *Buffer) Push(c audio.Chunk) {
	b.buf = append(b.buf, c.PCM...)
}

// Ready reports whether a full window has accumulated.
func (b *Buffer) Ready() bool {
	return len(b.buf) >= b.windowBytes
}

// Drain returns the accumulated window and resets the buffer, keeping
// the trailing overlap as the head of the next window.
func (b *Buffer) Drain() (Segment, bool) {
	if !b.Ready() {
		return Segment{}, false
	}
	seg := Segment{
		PCM:        append([]byte(nil), b.buf...),
		SampleRate: b.sampleRate,
		Channels:   b.channels,
		Start:      b.durationAt(b.startBytes),
	}

	keep := b.overlapBytes
	if keep > len(b.buf) {
		keep = len(b.buf)
	}
	advanced := len(b.buf) - keep
	b.startBytes += int64(advanced)
	tail := append([]byte(nil), b.buf[advanced:]...)
	b.buf = tail
	b.retained = keep
	return seg, true
}

// Flush returns whatever remains at shutdown, or false when the
// remainder is below the minimum usable duration or holds nothing
// beyond the already-emitted overlap.
func (b *Buffer) Flush() (Segment, bool) {
	if len(b.buf) <= b.retained {
		return Segment{}, false
	}
	if len(b.buf) < b.minDrainBytes {
		return Segment{}, false
	}
	seg := Segment{
		PCM:        append([]byte(nil), b.buf...),
		SampleRate: b.sampleRate,
		Channels:   b.channels,
		Start:      b.durationAt(b.startBytes),
	}
	b.startBytes += int64(len(b.buf))
	b.buf = nil
	b.retained = 0
	return seg, true
}

// Buffered returns the duration currently held.
func (b *Buffer) Buffered() time.Duration {
	return b.durationAt(int64(len(b.buf)))
}

func (b *Buffer) durationAt(bytes int64) time.Duration {
	frames := bytes / int64(2*b.channels)
	return time.Duration(frames) * time.Second / time.Duration(b.sampleRate)
}

func bytesForDuration(ms, sampleRate, channels int) int {
	frames := sampleRate * ms / 1000
	return frames * channels * 2
}
