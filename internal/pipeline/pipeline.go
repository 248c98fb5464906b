package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/loqalabs/loqa-scribe/internal/audio"
	"github.com/loqalabs/loqa-scribe/internal/config"
	"github.com/loqalabs/loqa-scribe/internal/segment"
	"github.com/loqalabs/loqa-scribe/internal/stt"
	"github.com/loqalabs/loqa-scribe/internal/transcript"
	"github.com/loqalabs/loqa-scribe/internal/vad"
)

// State tracks the control loop through its lifecycle.
type State int

const (
	StateStarting State = iota
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Pipeline drives capture → buffer → infer → write until the context is
// cancelled. Every stage runs on the calling goroutine; each resource
// has exactly one owner for the whole run.
type Pipeline struct {
	cfg     config.Config
	log     *slog.Logger
	source  audio.Source
	rec     stt.Recognizer
	gate    vad.Gate
	outPath string
	echo    io.Writer

	state   State
	seq     int
	metrics *metrics
}

func New(cfg config.Config, log *slog.Logger, source audio.Source, rec stt.Recognizer, gate vad.Gate, outPath string, echo io.Writer) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		log:     log,
		source:  source,
		rec:     rec,
		gate:    gate,
		outPath: outPath,
		echo:    echo,
		metrics: newMetrics(),
	}
}

// Run executes the full Starting → Running → Draining → Stopped cycle.
// A nil return means clean shutdown, interrupt included.
func (p *Pipeline) Run(ctx context.Context) error {
	p.setState(StateStarting)
	defer p.setState(StateStopped)

	metricsSrv := p.serveMetrics()
	if metricsSrv != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	device, err := p.resolveDevice(ctx)
	if err != nil {
		return err
	}

	stream, err := p.source.Open(ctx, device)
	if err != nil {
		return fmt.Errorf("open capture stream: %w", err)
	}
	defer stream.Close()
	// unblock an in-flight read when the run is interrupted
	stopClose := context.AfterFunc(ctx, func() { _ = stream.Close() })
	defer stopClose()

	// the output file is created only after every other startup step
	// succeeded, so startup failures leave no file behind
	writer, err := transcript.Open(p.outPath, p.cfg.Output.Timestamps, p.echo)
	if err != nil {
		return err
	}
	defer writer.Close()

	p.log.Info("transcribing",
		slog.Int("device", device.Index),
		slog.String("device_name", device.Name),
		slog.String("output", writer.Path()),
		slog.String("model", p.cfg.STT.Model))

	buffer := segment.NewBuffer(p.cfg.Segmenter, p.cfg.Audio.SampleRate, p.cfg.Audio.Channels)
	p.setState(StateRunning)

	for {
		if ctx.Err() != nil {
			break
		}
		chunk, err := stream.ReadChunk(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				break
			}
			// the device disappeared; everything flushed so far stays valid
			p.log.Error("capture stream lost", slog.String("error", err.Error()))
			return err
		}
		p.metrics.chunksRead.Add(ctx, 1)
		buffer.Push(chunk)

		if buffer.Ready() {
			seg, ok := buffer.Drain()
			if !ok {
				continue
			}
			if err := p.processSegment(ctx, seg, writer); err != nil {
				return err
			}
		}
	}

	p.setState(StateDraining)
	if seg, ok := buffer.Flush(); ok {
		// best effort: the run context is already cancelled
		drainCtx := context.WithoutCancel(ctx)
		if err := p.processSegment(drainCtx, seg, writer); err != nil {
			return err
		}
	}

	p.log.Info("transcription finished",
		slog.Int("lines", writer.Lines()),
		slog.String("output", writer.Path()))
	return nil
}

// processSegment runs one segment through the gate, the recognizer and
// the writer. Inference failures skip the segment; write failures are
// fatal.
func (p *Pipeline) processSegment(ctx context.Context, seg segment.Segment, writer *transcript.Writer) error {
	p.metrics.segmentsDrained.Add(ctx, 1)

	speech, err := p.gate.HasSpeech(seg.PCM, seg.Channels)
	if err != nil {
		// fail open: the recognizer sees the segment anyway
		p.log.Warn("vad gate failed", slog.String("error", err.Error()))
		speech = true
	}
	if !speech {
		p.metrics.segmentsSkipped.Add(ctx, 1)
		return nil
	}

	start := time.Now()
	result, err := p.rec.Transcribe(ctx, seg.PCM, seg.SampleRate, seg.Channels)
	p.metrics.inferenceSeconds.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		// non-fatal: the loop keeps consuming audio
		p.metrics.inferenceErrors.Add(ctx, 1)
		p.log.Warn("segment skipped",
			slog.String("error", err.Error()),
			slog.String("offset", seg.Start.String()))
		return nil
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return nil
	}

	p.seq++
	line := transcript.Line{
		Seq:   p.seq,
		Start: seg.Start,
		End:   seg.Start + seg.Duration(),
		Text:  text,
	}
	if err := writer.WriteLine(line); err != nil {
		p.log.Error("transcript write failed", slog.String("error", err.Error()))
		return err
	}
	p.metrics.linesWritten.Add(ctx, 1)
	return nil
}

// resolveDevice picks the capture device: an explicit index wins,
// otherwise the first device matching the configured name pattern.
func (p *Pipeline) resolveDevice(ctx context.Context) (audio.Device, error) {
	if idx := p.cfg.Audio.DeviceIndex; idx >= 0 {
		if devices, err := p.source.ListDevices(ctx); err == nil {
			for _, d := range devices {
				if d.Index == idx {
					return d, nil
				}
			}
		}
		// listing is best effort when the index is explicit
		return audio.Device{Index: idx, Name: fmt.Sprintf("device %d", idx)}, nil
	}

	devices, err := p.source.ListDevices(ctx)
	if err != nil {
		return audio.Device{}, err
	}
	device, ok := audio.FindDevice(devices, p.cfg.Audio.DevicePattern)
	if !ok {
		return audio.Device{}, fmt.Errorf("no device matching %q: %w", p.cfg.Audio.DevicePattern, audio.ErrDeviceNotFound)
	}
	return device, nil
}

func (p *Pipeline) serveMetrics() *http.Server {
	bind := p.cfg.Telemetry.PrometheusBind
	if bind == "" || metricsHandler == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsHandler)
	srv := &http.Server{Addr: bind, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			p.log.Error("metrics server failed", slog.String("error", err.Error()))
		}
	}()
	return srv
}

func (p *Pipeline) setState(s State) {
	p.state = s
	p.log.Debug("state changed", slog.String("state", s.String()))
}

// CurrentState is exposed for tests.
func (p *Pipeline) CurrentState() State {
	return p.state
}

// PrintDevices renders the device listing for --list-devices.
func PrintDevices(w io.Writer, devices []audio.Device) {
	for _, d := range devices {
		if d.Inputs > 0 {
			fmt.Fprintf(w, "%d: %s (inputs=%d)\n", d.Index, d.Name, d.Inputs)
		} else {
			fmt.Fprintf(w, "%d: %s\n", d.Index, d.Name)
		}
	}
}
