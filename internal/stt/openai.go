package stt

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/loqalabs/loqa-scribe/internal/config"
	openai "github.com/sashabaranov/go-openai"
)

// openaiRecognizer sends segments to the hosted transcription API.
// Useful when no local model is installed; each call uploads one
// segment as a WAV file.
type openaiRecognizer struct {
	client   *openai.Client
	language string
}

func NewOpenAIRecognizer(cfg config.STTConfig) (Recognizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("stt api key is empty")
	}
	return &openaiRecognizer{
		client:   openai.NewClient(cfg.APIKey),
		language: cfg.Language,
	}, nil
}

func (r *openaiRecognizer) Transcribe(ctx context.Context, pcm []byte, sampleRate int, channels int) (Result, error) {
	file, err := os.CreateTemp(os.TempDir(), "scribe_stt_*.wav")
	if err != nil {
		return Result{}, fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(file.Name())
	defer file.Close()

	if err := writePCMToWav(file, pcm, sampleRate, channels); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInference, err)
	}

	resp, err := r.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: file.Name(),
		Language: r.language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: transcription request: %v", ErrInference, err)
	}

	result := Result{Text: strings.TrimSpace(resp.Text)}
	for _, seg := range resp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		result.Segments = append(result.Segments, ResultSegment{
			Start: time.Duration(seg.Start * float64(time.Second)),
			End:   time.Duration(seg.End * float64(time.Second)),
			Text:  text,
		})
	}
	return result, nil
}

func (r *openaiRecognizer) Close() error {
	return nil
}
