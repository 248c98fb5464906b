package vad

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/loqalabs/loqa-scribe/internal/config"
	"github.com/streamer45/silero-vad-go/speech"
)

// Gate decides whether a segment contains speech worth transcribing.
// Segments rejected by the gate never reach the recognizer.
type Gate interface {
	HasSpeech(pcm []byte, channels int) (bool, error)
	Close() error
}

// New returns the silero gate when enabled, otherwise a pass-through.
func New(cfg config.VADConfig, sampleRate int) (Gate, error) {
	if !cfg.Enabled {
		return noopGate{}, nil
	}
	return newSileroGate(cfg, sampleRate)
}

type noopGate struct{}

func (noopGate) HasSpeech(_ []byte, _ int) (bool, error) { return true, nil }
func (noopGate) Close() error                            { return nil }

type sileroGate struct {
	detector *speech.Detector
	mu       sync.Mutex
}

func newSileroGate(cfg config.VADConfig, sampleRate int) (Gate, error) {
	detector, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:            cfg.ModelPath,
		SampleRate:           sampleRate,
		Threshold:            float32(cfg.Threshold),
		MinSilenceDurationMs: 0,
		SpeechPadMs:          0,
	})
	if err != nil {
		return nil, fmt.Errorf("create silero detector: %w", err)
	}
	return &sileroGate{detector: detector}, nil
}

func (g *sileroGate) HasSpeech(pcm []byte, channels int) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	samples, err := monoFloat32(pcm, channels)
	if err != nil {
		return false, err
	}
	segments, err := g.detector.Detect(samples)
	if err != nil {
		return false, fmt.Errorf("detect speech: %w", err)
	}
	if err := g.detector.Reset(); err != nil {
		return false, fmt.Errorf("reset detector: %w", err)
	}
	return len(segments) > 0, nil
}

func (g *sileroGate) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.detector.Destroy()
}

func monoFloat32(pcm []byte, channels int) ([]float32, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("pcm payload not aligned")
	}
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	frames := len(pcm) / 2 / channels
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			off := (i*channels + c) * 2
			sum += float32(int16(binary.LittleEndian.Uint16(pcm[off:]))) / 32768.0
		}
		samples[i] = sum / float32(channels)
	}
	return samples, nil
}
