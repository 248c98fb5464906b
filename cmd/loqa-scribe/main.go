package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/loqalabs/loqa-scribe/internal/audio"
	"github.com/loqalabs/loqa-scribe/internal/config"
	"github.com/loqalabs/loqa-scribe/internal/pipeline"
	"github.com/loqalabs/loqa-scribe/internal/stt"
	"github.com/loqalabs/loqa-scribe/internal/vad"
)

var version = "0.1.0-dev"

func main() {
	var (
		configPath   string
		showVersion  bool
		listDevices  bool
		inputDevice  int
		inputFile    string
		outputFile   string
		model        string
		sampleRate   int
		noTimestamps bool
	)

	// a .env next to the binary is a convenience, not a requirement
	_ = godotenv.Load()

	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.BoolVar(&listDevices, "list-devices", false, "List available audio input devices and exit")
	flag.IntVar(&inputDevice, "input-device", -1, "Capture device index (bypasses auto-detection)")
	flag.StringVar(&inputFile, "input-file", "", "Transcribe a WAV file instead of capturing live audio")
	flag.StringVar(&outputFile, "output-file", "", "Transcript output path (default: Desktop, timestamped)")
	flag.StringVar(&model, "model", "", "Model variant: tiny.en|base.en|tiny|base|small|medium|large")
	flag.IntVar(&sampleRate, "sample-rate", 0, "Capture sample rate in Hz")
	flag.BoolVar(&noTimestamps, "no-timestamps", false, "Omit [HH:MM:SS] offsets from written lines")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// flags passed explicitly win over file and environment
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input-device":
			cfg.Audio.DeviceIndex = inputDevice
		case "model":
			cfg.STT.Model = model
		case "sample-rate":
			cfg.Audio.SampleRate = sampleRate
		case "output-file":
			cfg.Output.Path = outputFile
		case "no-timestamps":
			cfg.Output.Timestamps = !noTimestamps
		}
	})
	if err := config.Validate(cfg); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.Telemetry.LogLevel)}))
	logger = logger.With(slog.String("run_id", uuid.NewString()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source := audio.NewFFmpegSource(cfg.Audio, logger)

	if listDevices {
		devices, err := source.ListDevices(ctx)
		if err != nil {
			logger.Error("device listing failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		pipeline.PrintDevices(os.Stdout, devices)
		return
	}

	shutdownTelemetry, err := pipeline.SetupTelemetry(cfg, logger)
	if err != nil {
		logger.Error("failed to setup telemetry", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}()

	logger.Info("loading model", slog.String("mode", cfg.STT.Mode), slog.String("model", cfg.STT.Model))
	recognizer, err := stt.New(cfg.STT)
	if err != nil {
		logger.Error("failed to load recognizer", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer recognizer.Close()

	outPath := cfg.Output.Path
	if outPath == "" {
		outPath = config.DefaultOutputPath(time.Now())
	}
	var echo io.Writer
	if cfg.Output.Echo {
		echo = os.Stdout
	}

	if inputFile != "" {
		if err := pipeline.TranscribeFile(ctx, inputFile, recognizer, outPath, cfg.Output.Timestamps, echo, logger); err != nil {
			logger.Error("file transcription failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	gate, err := vad.New(cfg.VAD, cfg.Audio.SampleRate)
	if err != nil {
		logger.Error("failed to setup vad gate", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer gate.Close()

	p := pipeline.New(cfg, logger, source, recognizer, gate, outPath, echo)
	if err := p.Run(ctx); err != nil {
		logger.Error("pipeline exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
