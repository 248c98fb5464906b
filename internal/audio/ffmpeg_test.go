package audio

import (
	"testing"
	"time"
)

const avfListing = `[AVFoundation indev @ 0x7f8] AVFoundation video devices:
[AVFoundation indev @ 0x7f8] [0] FaceTime HD Camera
[AVFoundation indev @ 0x7f8] AVFoundation audio devices:
[AVFoundation indev @ 0x7f8] [0] Built-in Microphone
[AVFoundation indev @ 0x7f8] [1] QuickTime Player Input
`

func TestParseAVFoundationDevices(t *testing.T) {
	devices := parseAVFoundationDevices(avfListing)
	if len(devices) != 2 {
		t.Fatalf("expected 2 audio devices, got %d: %+v", len(devices), devices)
	}
	if devices[0].Index != 0 || devices[0].Name != "Built-in Microphone" {
		t.Fatalf("unexpected first device: %+v", devices[0])
	}
	if devices[1].Index != 1 || devices[1].Name != "QuickTime Player Input" {
		t.Fatalf("unexpected second device: %+v", devices[1])
	}
}

func TestParseAVFoundationSkipsVideoSection(t *testing.T) {
	for _, d := range parseAVFoundationDevices(avfListing) {
		if d.Name == "FaceTime HD Camera" {
			t.Fatal("video device leaked into audio listing")
		}
	}
}

func TestParseSourceList(t *testing.T) {
	out := `Auto-detected sources for pulse:
* alsa_output.pci-0000.analog-stereo.monitor [Monitor of Built-in Audio]
  alsa_input.pci-0000.analog-stereo [Built-in Audio]
`
	devices := parseSourceList(out)
	if len(devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(devices))
	}
	if devices[0].Name != "Monitor of Built-in Audio" || devices[0].Index != 0 {
		t.Fatalf("unexpected first device: %+v", devices[0])
	}
	if devices[1].Name != "Built-in Audio" || devices[1].Index != 1 {
		t.Fatalf("unexpected second device: %+v", devices[1])
	}
}

func TestFindDevice(t *testing.T) {
	devices := []Device{
		{Index: 0, Name: "Built-in Microphone"},
		{Index: 1, Name: "QuickTime Player Input"},
	}
	dev, ok := FindDevice(devices, "quicktime")
	if !ok || dev.Index != 1 {
		t.Fatalf("expected to find QuickTime device, got %+v ok=%v", dev, ok)
	}
	if _, ok := FindDevice(devices, "BlackHole"); ok {
		t.Fatal("expected no match for BlackHole")
	}
}

func TestChunkDuration(t *testing.T) {
	// 16000 frames of mono s16le is exactly one second
	c := Chunk{PCM: make([]byte, 32000), SampleRate: 16000, Channels: 1}
	if c.Frames() != 16000 {
		t.Fatalf("expected 16000 frames, got %d", c.Frames())
	}
	if c.Duration() != time.Second {
		t.Fatalf("expected 1s, got %v", c.Duration())
	}
}
