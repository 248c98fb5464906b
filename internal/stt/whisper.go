package stt

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/loqalabs/loqa-scribe/internal/config"
)

// whisperRecognizer runs whisper.cpp in-process. The model is loaded
// once and shared across calls; whisper contexts are not reentrant, so
// calls are serialized.
type whisperRecognizer struct {
	model whisper.Model
	wctx  whisper.Context
	mu    sync.Mutex
}

func NewWhisperRecognizer(cfg config.STTConfig) (Recognizer, error) {
	path := ModelPath(cfg.ModelDir, cfg.Model)
	model, err := whisper.New(path)
	if err != nil {
		return nil, fmt.Errorf("load whisper model %s: %w", path, err)
	}
	wctx, err := model.NewContext()
	if err != nil {
		model.Close()
		return nil, fmt.Errorf("create whisper context: %w", err)
	}
	if cfg.Language != "" {
		if err := wctx.SetLanguage(cfg.Language); err != nil {
			model.Close()
			return nil, fmt.Errorf("set language %q: %w", cfg.Language, err)
		}
	}
	if cfg.Threads > 0 {
		wctx.SetThreads(uint(cfg.Threads))
	}
	wctx.SetTranslate(false)
	return &whisperRecognizer{model: model, wctx: wctx}, nil
}

func (r *whisperRecognizer) Transcribe(ctx context.Context, pcm []byte, sampleRate int, channels int) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	samples, err := pcmToFloat32(pcm, channels)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInference, err)
	}
	if len(samples) == 0 {
		return Result{}, nil
	}

	var segments []ResultSegment
	err = r.wctx.Process(samples, nil, func(seg whisper.Segment) {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			return
		}
		segments = append(segments, ResultSegment{Start: seg.Start, End: seg.End, Text: text})
	}, nil)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInference, err)
	}

	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		parts = append(parts, s.Text)
	}
	return Result{Text: strings.Join(parts, " "), Segments: segments}, nil
}

func (r *whisperRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.model.Close()
}

// pcmToFloat32 converts s16le PCM to mono float32 samples in [-1, 1),
// averaging channels when the input is not mono.
func pcmToFloat32(pcm []byte, channels int) ([]float32, error) {
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
