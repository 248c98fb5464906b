package vad

import (
	"testing"

	"github.com/loqalabs/loqa-scribe/internal/config"
)

func TestDisabledGatePassesEverything(t *testing.T) {
	gate, err := New(config.VADConfig{Enabled: false}, 16000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer gate.Close()

	ok, err := gate.HasSpeech(make([]byte, 320), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("disabled gate must pass every segment")
	}
}

func TestMonoFloat32DownmixesStereo(t *testing.T) {
	// one stereo frame: left 16384, right -16384 averages to 0
	pcm := []byte{0x00, 0x40, 0x00, 0xC0}
	samples, err := monoFloat32(pcm, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(samples))
	}
	if samples[0] != 0 {
		t.Fatalf("expected 0 after downmix, got %v", samples[0])
	}
}

func TestMonoFloat32RejectsUnaligned(t *testing.T) {
	if _, err := monoFloat32([]byte{1, 2, 3}, 1); err == nil {
		t.Fatal("expected error for unaligned pcm")
	}
}
