package stt

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/loqalabs/loqa-scribe/internal/config"
)

// ErrInference marks a failed recognition call. A single failed segment
// is skipped by the caller; it never aborts the run.
var ErrInference = errors.New("inference failed")

// ResultSegment carries per-segment timing when the backend reports it.
type ResultSegment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Result captures recognizer output for one audio span.
type Result struct {
	Text       string
	Confidence float64
	Segments   []ResultSegment
}

// Recognizer abstracts STT backends. The model is loaded once when the
// recognizer is constructed and released by Close.
type Recognizer interface {
	Transcribe(ctx context.Context, pcm []byte, sampleRate int, channels int) (Result, error)
	Close() error
}

// New selects a recognizer backend from config.
func New(cfg config.STTConfig) (Recognizer, error) {
	switch cfg.Mode {
	case "whisper":
		return NewWhisperRecognizer(cfg)
	case "exec":
		return NewExecRecognizer(cfg)
	case "openai":
		return NewOpenAIRecognizer(cfg)
	case "mock":
		return &MockRecognizer{}, nil
	default:
		return nil, fmt.Errorf("unknown stt mode %q", cfg.Mode)
	}
}

// ModelPath resolves a model variant to its ggml weight file.
func ModelPath(dir, variant string) string {
	return filepath.Join(dir, "ggml-"+variant+".bin")
}
