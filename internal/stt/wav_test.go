package stt

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWavRoundTrip(t *testing.T) {
	pcm := make([]byte, 0, 8)
	for _, s := range []int16{0, 1000, -1000, 32000} {
		pcm = append(pcm, byte(uint16(s)), byte(uint16(s)>>8))
	}

	path := filepath.Join(t.TempDir(), "roundtrip.wav")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := writePCMToWav(file, pcm, 16000, 1); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	file.Close()

	got, rate, channels, err := ReadWAVFile(path)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}
	if rate != 16000 || channels != 1 {
		t.Fatalf("unexpected format: rate=%d channels=%d", rate, channels)
	}
	if len(got) != len(pcm) {
		t.Fatalf("expected %d bytes, got %d", len(pcm), len(got))
	}
	for i := range pcm {
		if got[i] != pcm[i] {
			t.Fatalf("byte %d differs: %d != %d", i, got[i], pcm[i])
		}
	}
}

func TestWritePCMRejectsUnaligned(t *testing.T) {
	file, err := os.Create(filepath.Join(t.TempDir(), "bad.wav"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer file.Close()
	if err := writePCMToWav(file, []byte{1, 2, 3}, 16000, 1); err == nil {
		t.Fatal("expected error for unaligned pcm")
	}
}

func TestPCMToFloat32(t *testing.T) {
	// -32768 and 32767 map to the float32 extremes
	pcm := []byte{0x00, 0x80, 0xFF, 0x7F}
	samples, err := pcmToFloat32(pcm, 1)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[0] != -1.0 {
		t.Fatalf("expected -1.0, got %v", samples[0])
	}
	if samples[1] <= 0.999 || samples[1] > 1.0 {
		t.Fatalf("expected ~1.0, got %v", samples[1])
	}
}

func TestPCMToFloat32Unaligned(t *testing.T) {
	if _, err := pcmToFloat32([]byte{1}, 1); err == nil {
		t.Fatal("expected error for unaligned pcm")
	}
}
