package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type AudioConfig struct {
	DeviceIndex    int    `yaml:"device_index"`
	DevicePattern  string `yaml:"device_pattern"`
	SampleRate     int    `yaml:"sample_rate"`
	Channels       int    `yaml:"channels"`
	ChunkFrames    int    `yaml:"chunk_frames"`
	Backend        string `yaml:"backend"`
	FFmpegPath     string `yaml:"ffmpeg_path"`
	CaptureCommand string `yaml:"capture_command"`
}

type SegmenterConfig struct {
	WindowMS   int `yaml:"window_ms"`
	OverlapMS  int `yaml:"overlap_ms"`
	MinDrainMS int `yaml:"min_drain_ms"`
}

type STTConfig struct {
	Mode     string `yaml:"mode"`
	Model    string `yaml:"model"`
	ModelDir string `yaml:"model_dir"`
	Language string `yaml:"language"`
	Threads  int    `yaml:"threads"`
	Command  string `yaml:"command"`
	APIKey   string `yaml:"api_key"`
}

type VADConfig struct {
	Enabled   bool    `yaml:"enabled"`
	ModelPath string  `yaml:"model_path"`
	Threshold float64 `yaml:"threshold"`
}

type OutputConfig struct {
	Path       string `yaml:"path"`
	Timestamps bool   `yaml:"timestamps"`
	Echo       bool   `yaml:"echo"`
}

type Config struct {
	AppName     string          `yaml:"app_name"`
	Environment string          `yaml:"environment"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Audio       AudioConfig     `yaml:"audio"`
	Segmenter   SegmenterConfig `yaml:"segmenter"`
	STT         STTConfig       `yaml:"stt"`
	VAD         VADConfig       `yaml:"vad"`
	Output      OutputConfig    `yaml:"output"`
}

// ModelVariants is the fixed set of recognizer model variants, fastest first.
var ModelVariants = []string{"tiny.en", "base.en", "tiny", "base", "small", "medium", "large"}

func Default() Config {
	return Config{
		AppName:     "loqa-scribe",
		Environment: "development",
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
			// empty disables the metrics listener
			PrometheusBind: "",
		},
		Audio: AudioConfig{
			DeviceIndex:   -1,
			DevicePattern: "QuickTime Player Input",
			SampleRate:    16000,
			Channels:      1,
			ChunkFrames:   4096,
			Backend:       defaultCaptureBackend(),
			FFmpegPath:    "ffmpeg",
		},
		Segmenter: SegmenterConfig{
			WindowMS:   4000,
			OverlapMS:  500,
			MinDrainMS: 1000,
		},
		STT: STTConfig{
			Mode:     "whisper",
			Model:    "tiny.en",
			ModelDir: "./models",
			Language: "en",
		},
		VAD: VADConfig{
			Enabled:   false,
			Threshold: 0.5,
		},
		Output: OutputConfig{
			Path:       "",
			Timestamps: true,
			Echo:       true,
		},
	}
}

func defaultCaptureBackend() string {
	if runtime.GOOS == "darwin" {
		return "avfoundation"
	}
	return "pulse"
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// DefaultOutputPath returns the Desktop-timestamped transcript path used
// when no output file is configured.
func DefaultOutputPath(now time.Time) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	name := fmt.Sprintf("transcript-%s.txt", now.Format("20060102-150405"))
	return filepath.Join(home, "Desktop", name)
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.AppName, "SCRIBE_APP_NAME")
	overrideString(&cfg.Environment, "SCRIBE_ENVIRONMENT")
	overrideString(&cfg.Telemetry.LogLevel, "SCRIBE_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "SCRIBE_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "SCRIBE_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "SCRIBE_TELEMETRY_PROMETHEUS_BIND")
	overrideInt(&cfg.Audio.DeviceIndex, "SCRIBE_AUDIO_DEVICE_INDEX")
	overrideString(&cfg.Audio.DevicePattern, "SCRIBE_AUDIO_DEVICE_PATTERN")
	overrideInt(&cfg.Audio.SampleRate, "SCRIBE_AUDIO_SAMPLE_RATE")
	overrideInt(&cfg.Audio.Channels, "SCRIBE_AUDIO_CHANNELS")
	overrideInt(&cfg.Audio.ChunkFrames, "SCRIBE_AUDIO_CHUNK_FRAMES")
	overrideString(&cfg.Audio.Backend, "SCRIBE_AUDIO_BACKEND")
	overrideString(&cfg.Audio.FFmpegPath, "SCRIBE_AUDIO_FFMPEG_PATH")
	overrideString(&cfg.Audio.CaptureCommand, "SCRIBE_AUDIO_CAPTURE_COMMAND")
	overrideInt(&cfg.Segmenter.WindowMS, "SCRIBE_SEGMENTER_WINDOW_MS")
	overrideInt(&cfg.Segmenter.OverlapMS, "SCRIBE_SEGMENTER_OVERLAP_MS")
	overrideInt(&cfg.Segmenter.MinDrainMS, "SCRIBE_SEGMENTER_MIN_DRAIN_MS")
	overrideString(&cfg.STT.Mode, "SCRIBE_STT_MODE")
	overrideString(&cfg.STT.Model, "SCRIBE_STT_MODEL")
	overrideString(&cfg.STT.ModelDir, "SCRIBE_STT_MODEL_DIR")
	overrideString(&cfg.STT.Language, "SCRIBE_STT_LANGUAGE")
	overrideInt(&cfg.STT.Threads, "SCRIBE_STT_THREADS")
	overrideString(&cfg.STT.Command, "SCRIBE_STT_COMMAND")
	overrideString(&cfg.STT.APIKey, "SCRIBE_STT_API_KEY")
	overrideBool(&cfg.VAD.Enabled, "SCRIBE_VAD_ENABLED")
	overrideString(&cfg.VAD.ModelPath, "SCRIBE_VAD_MODEL_PATH")
	overrideFloat(&cfg.VAD.Threshold, "SCRIBE_VAD_THRESHOLD")
	overrideString(&cfg.Output.Path, "SCRIBE_OUTPUT_PATH")
	overrideBool(&cfg.Output.Timestamps, "SCRIBE_OUTPUT_TIMESTAMPS")
	overrideBool(&cfg.Output.Echo, "SCRIBE_OUTPUT_ECHO")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

// Validate reports the first constraint the configuration violates.
func Validate(cfg Config) error {
	if cfg.AppName == "" {
		return errors.New("app_name must not be empty")
	}
	if cfg.Audio.SampleRate <= 0 {
		return errors.New("audio.sample_rate must be positive")
	}
	if cfg.Audio.Channels <= 0 {
		return errors.New("audio.channels must be positive")
	}
	if cfg.Audio.ChunkFrames <= 0 {
		return errors.New("audio.chunk_frames must be positive")
	}
	if cfg.Audio.DeviceIndex < 0 && cfg.Audio.DevicePattern == "" && cfg.Audio.CaptureCommand == "" {
		return errors.New("audio.device_pattern must be set when audio.device_index is not")
	}
	switch cfg.Audio.Backend {
	case "avfoundation", "alsa", "pulse":
	default:
		return errors.New("audio.backend must be one of avfoundation|alsa|pulse")
	}
	if cfg.Segmenter.WindowMS <= 0 {
		return errors.New("segmenter.window_ms must be positive")
	}
	if cfg.Segmenter.OverlapMS < 0 {
		return errors.New("segmenter.overlap_ms must be >= 0")
	}
	if cfg.Segmenter.OverlapMS >= cfg.Segmenter.WindowMS {
		return errors.New("segmenter.overlap_ms must be smaller than segmenter.window_ms")
	}
	if cfg.Segmenter.MinDrainMS < 0 || cfg.Segmenter.MinDrainMS > cfg.Segmenter.WindowMS {
		return errors.New("segmenter.min_drain_ms must be between 0 and segmenter.window_ms")
	}
	switch cfg.STT.Mode {
	case "whisper", "exec", "openai", "mock":
	default:
		return errors.New("stt.mode must be one of whisper|exec|openai|mock")
	}
	if !validModelVariant(cfg.STT.Model) {
		return fmt.Errorf("stt.model must be one of %s", strings.Join(ModelVariants, "|"))
	}
	if cfg.STT.Mode == "whisper" && cfg.STT.ModelDir == "" {
		return errors.New("stt.model_dir must be set when mode=whisper")
	}
	if cfg.STT.Mode == "exec" && cfg.STT.Command == "" {
		return errors.New("stt.command must be set when mode=exec")
	}
	if cfg.STT.Mode == "openai" && cfg.STT.APIKey == "" {
		return errors.New("stt.api_key must be set when mode=openai")
	}
	if cfg.STT.Threads < 0 {
		return errors.New("stt.threads must be >= 0")
	}
	if cfg.VAD.Enabled {
		if cfg.VAD.ModelPath == "" {
			return errors.New("vad.model_path must be set when vad is enabled")
		}
		if cfg.VAD.Threshold <= 0 || cfg.VAD.Threshold >= 1 {
			return errors.New("vad.threshold must be between 0 and 1")
		}
	}
	return nil
}

func validModelVariant(name string) bool {
	for _, v := range ModelVariants {
		if v == name {
			return true
		}
	}
	return false
}
