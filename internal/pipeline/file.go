package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/loqalabs/loqa-scribe/internal/stt"
	"github.com/loqalabs/loqa-scribe/internal/transcript"
)

// TranscribeFile runs one-shot recognition over a WAV file instead of a
// live device. When the backend reports per-segment timings each
// segment becomes its own line; otherwise the whole file is one line.
func TranscribeFile(ctx context.Context, path string, rec stt.Recognizer, outPath string, timestamps bool, echo io.Writer, log *slog.Logger) error {
	pcm, sampleRate, channels, err := stt.ReadWAVFile(path)
	if err != nil {
		return err
	}
	log.Info("transcribing file",
		slog.String("input", path),
		slog.Int("sample_rate", sampleRate),
		slog.Int("channels", channels))

	result, err := rec.Transcribe(ctx, pcm, sampleRate, channels)
	if err != nil {
		return fmt.Errorf("transcribe %s: %w", path, err)
	}

	writer, err := transcript.Open(outPath, timestamps, echo)
	if err != nil {
		return err
	}
	defer writer.Close()

	seq := 0
	if len(result.Segments) > 0 {
		for _, seg := range result.Segments {
			seq++
			line := transcript.Line{Seq: seq, Start: seg.Start, End: seg.End, Text: seg.Text}
			if err := writer.WriteLine(line); err != nil {
				return err
			}
		}
	} else if text := strings.TrimSpace(result.Text); text != "" {
		seq++
		if err := writer.WriteLine(transcript.Line{Seq: seq, Text: text}); err != nil {
			return err
		}
	}

	log.Info("file transcription finished",
		slog.Int("lines", writer.Lines()),
		slog.String("output", writer.Path()))
	return nil
}
