package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/loqalabs/loqa-scribe/internal/config"
	"github.com/mattn/go-shellwords"
)

// FFmpegSource enumerates and captures devices through an ffmpeg
// subprocess. Decoding and resampling stay inside ffmpeg; this side only
// ever sees s16le PCM on the pipe.
type FFmpegSource struct {
	cfg config.AudioConfig
	log *slog.Logger
}

func NewFFmpegSource(cfg config.AudioConfig, log *slog.Logger) *FFmpegSource {
	return &FFmpegSource{cfg: cfg, log: log}
}

func (f *FFmpegSource) ListDevices(ctx context.Context) ([]Device, error) {
	if f.cfg.Backend == "avfoundation" {
		cmd := exec.CommandContext(ctx, f.cfg.FFmpegPath,
			"-hide_banner", "-f", "avfoundation", "-list_devices", "true", "-i", "")
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		// ffmpeg exits non-zero after listing; the output is still complete
		_ = cmd.Run()
		devices := parseAVFoundationDevices(stderr.String())
		if len(devices) == 0 {
			return nil, fmt.Errorf("no audio devices reported by ffmpeg: %w", ErrDeviceNotFound)
		}
		return devices, nil
	}

	cmd := exec.CommandContext(ctx, f.cfg.FFmpegPath, "-hide_banner", "-sources", f.cfg.Backend)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("list %s sources: %w: %s", f.cfg.Backend, err, strings.TrimSpace(stderr.String()))
	}
	devices := parseSourceList(stdout.String())
	if len(devices) == 0 {
		return nil, fmt.Errorf("no audio devices reported by ffmpeg: %w", ErrDeviceNotFound)
	}
	return devices, nil
}

func (f *FFmpegSource) Open(ctx context.Context, device Device) (Stream, error) {
	args, err := f.captureArgs(device)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("capture stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start capture command: %w", err)
	}

	f.log.Info("capture stream opened",
		slog.Int("device", device.Index),
		slog.String("name", device.Name),
		slog.Int("sample_rate", f.cfg.SampleRate),
		slog.Int("chunk_frames", f.cfg.ChunkFrames))

	return &ffmpegStream{
		cmd:        cmd,
		stdout:     stdout,
		stderr:     &stderr,
		sampleRate: f.cfg.SampleRate,
		channels:   f.cfg.Channels,
		chunkBytes: f.cfg.ChunkFrames * f.cfg.Channels * 2,
	}, nil
}

func (f *FFmpegSource) captureArgs(device Device) ([]string, error) {
	if f.cfg.CaptureCommand != "" {
		expanded := strings.NewReplacer(
			"{device}", strconv.Itoa(device.Index),
			"{sample_rate}", strconv.Itoa(f.cfg.SampleRate),
			"{channels}", strconv.Itoa(f.cfg.Channels),
		).Replace(f.cfg.CaptureCommand)
		parser := shellwords.NewParser()
		args, err := parser.Parse(expanded)
		if err != nil {
			return nil, fmt.Errorf("parse capture command: %w", err)
		}
		if len(args) == 0 {
			return nil, fmt.Errorf("capture command is empty")
		}
		return args, nil
	}

	var input string
	switch f.cfg.Backend {
	case "avfoundation":
		input = ":" + strconv.Itoa(device.Index)
	case "alsa":
		input = fmt.Sprintf("hw:%d", device.Index)
	default:
		input = strconv.Itoa(device.Index)
	}
	return []string{
		f.cfg.FFmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-f", f.cfg.Backend, "-i", input,
		"-ac", strconv.Itoa(f.cfg.Channels),
		"-ar", strconv.Itoa(f.cfg.SampleRate),
		"-f", "s16le",
		"pipe:1",
	}, nil
}

type ffmpegStream struct {
	cmd        *exec.Cmd
	stdout     io.ReadCloser
	stderr     *bytes.Buffer
	sampleRate int
	channels   int
	chunkBytes int

	mu     sync.Mutex
	closed bool
}

func (s *ffmpegStream) ReadChunk(ctx context.Context) (Chunk, error) {
	if err := ctx.Err(); err != nil {
		return Chunk{}, err
	}
	buf := make([]byte, s.chunkBytes)
	if _, err := io.ReadFull(s.stdout, buf); err != nil {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed || ctx.Err() != nil {
			return Chunk{}, context.Canceled
		}
		detail := strings.TrimSpace(s.stderr.String())
		if detail != "" {
			return Chunk{}, fmt.Errorf("capture ended (%s): %w", detail, ErrDeviceUnavailable)
		}
		return Chunk{}, fmt.Errorf("capture ended: %w", ErrDeviceUnavailable)
	}
	return Chunk{PCM: buf, SampleRate: s.sampleRate, Channels: s.channels}, nil
}

func (s *ffmpegStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.stdout.Close()
	_ = s.cmd.Wait()
	return nil
}

var avfDeviceLine = regexp.MustCompile(`\[(\d+)\]\s+(.+)$`)

// parseAVFoundationDevices extracts the audio device section from
// ffmpeg's -list_devices stderr output.
func parseAVFoundationDevices(output string) []Device {
	var devices []Device
	inAudio := false
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, "audio devices:") {
			inAudio = true
			continue
		}
		if strings.Contains(line, "video devices:") {
			inAudio = false
			continue
		}
		if !inAudio {
			continue
		}
		m := avfDeviceLine.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		index, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		devices = append(devices, Device{Index: index, Name: strings.TrimSpace(m[2])})
	}
	return devices
}

// parseSourceList handles `ffmpeg -sources <backend>` output, one device
// per line with an optional [description] suffix.
func parseSourceList(output string) []Device {
	var devices []Device
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "*"))
		if trimmed == "" || strings.HasPrefix(trimmed, "Auto-detected") {
			continue
		}
		name := trimmed
		if open := strings.Index(trimmed, "["); open >= 0 {
			if end := strings.LastIndex(trimmed, "]"); end > open {
				name = strings.TrimSpace(trimmed[open+1 : end])
			}
		}
		devices = append(devices, Device{Index: len(devices), Name: name})
	}
	return devices
}
