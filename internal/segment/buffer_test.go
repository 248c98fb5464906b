package segment

import (
	"testing"
	"time"

	"github.com/loqalabs/loqa-scribe/internal/audio"
	"github.com/loqalabs/loqa-scribe/internal/config"
)

const (
	testRate     = 16000
	testChannels = 1
)

func chunkOf(ms int) audio.Chunk {
	return audio.Chunk{
		PCM:        make([]byte, testRate*ms/1000*2),
		SampleRate: testRate,
		Channels:   testChannels,
	}
}

func newTestBuffer(windowMS, overlapMS, minDrainMS int) *Buffer {
	cfg := config.SegmenterConfig{WindowMS: windowMS, OverlapMS: overlapMS, MinDrainMS: minDrainMS}
	return NewBuffer(cfg, testRate, testChannels)
}

func TestNotReadyUntilWindowFull(t *testing.T) {
	b := newTestBuffer(4000, 500, 1000)
	for i := 0; i < 3; i++ {
		b.Push(chunkOf(1000))
		if b.Ready() {
			t.Fatalf("ready after %ds of a 4s window", i+1)
		}
	}
	b.Push(chunkOf(1000))
	if !b.Ready() {
		t.Fatal("expected ready at 4s")
	}
}

func TestDrainKeepsFixedOverlap(t *testing.T) {
	b := newTestBuffer(4000, 500, 1000)
	b.Push(chunkOf(4000))

	seg, ok := b.Drain()
	if !ok {
		t.Fatal("expected drain to succeed")
	}
	if seg.Duration() != 4*time.Second {
		t.Fatalf("expected 4s segment, got %v", seg.Duration())
	}
	if seg.Start != 0 {
		t.Fatalf("expected first segment to start at 0, got %v", seg.Start)
	}
	if b.Buffered() != 500*time.Millisecond {
		t.Fatalf("expected 500ms retained, got %v", b.Buffered())
	}

	// second window begins exactly one overlap before the previous end
	b.Push(chunkOf(3500))
	seg2, ok := b.Drain()
	if !ok {
		t.Fatal("expected second drain")
	}
	if seg2.Start != 3500*time.Millisecond {
		t.Fatalf("expected second segment to start at 3.5s, got %v", seg2.Start)
	}
	if seg2.Duration() != 4*time.Second {
		t.Fatalf("expected 4s segment, got %v", seg2.Duration())
	}
}

func TestDrainWithoutWindowFails(t *testing.T) {
	b := newTestBuffer(4000, 500, 1000)
	b.Push(chunkOf(1000))
	if _, ok := b.Drain(); ok {
		t.Fatal("expected drain to fail before window full")
	}
}

func TestFlushDiscardsShortTail(t *testing.T) {
	b := newTestBuffer(4000, 500, 1000)
	b.Push(chunkOf(600))
	if _, ok := b.Flush(); ok {
		t.Fatal("expected 600ms tail below 1s minimum to be discarded")
	}
}

func TestFlushReturnsUsableTail(t *testing.T) {
	b := newTestBuffer(4000, 500, 1000)
	b.Push(chunkOf(4000))
	if _, ok := b.Drain(); !ok {
		t.Fatal("drain failed")
	}
	b.Push(chunkOf(1500))

	seg, ok := b.Flush()
	if !ok {
		t.Fatal("expected flush to return the 2s tail")
	}
	if seg.Duration() != 2*time.Second {
		t.Fatalf("expected 2s tail (500ms overlap + 1.5s new), got %v", seg.Duration())
	}
	if seg.Start != 3500*time.Millisecond {
		t.Fatalf("expected tail to start at 3.5s, got %v", seg.Start)
	}
	if _, ok := b.Flush(); ok {
		t.Fatal("expected buffer empty after flush")
	}
}

func TestFlushSkipsOverlapOnlyRemainder(t *testing.T) {
	b := newTestBuffer(4000, 2000, 1000)
	b.Push(chunkOf(4000))
	if _, ok := b.Drain(); !ok {
		t.Fatal("drain failed")
	}
	// only the retained overlap is left; nothing new to transcribe
	if _, ok := b.Flush(); ok {
		t.Fatal("expected flush to skip an overlap-only remainder")
	}
}

func TestTenSecondsOfAudioProducesTwoFiveSecondWindows(t *testing.T) {
	b := newTestBuffer(5000, 0, 1000)
	segments := 0
	for i := 0; i < 10; i++ {
		b.Push(chunkOf(1000))
		if b.Ready() {
			if _, ok := b.Drain(); ok {
				segments++
			}
		}
	}
	if segments != 2 {
		t.Fatalf("expected 2 segments from 10s at a 5s window, got %d", segments)
	}
	if _, ok := b.Flush(); ok {
		t.Fatal("expected nothing left to flush")
	}
}
