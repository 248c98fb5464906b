package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Fatalf("expected default sample rate 16000, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Audio.DeviceIndex != -1 {
		t.Fatalf("expected auto device index, got %d", cfg.Audio.DeviceIndex)
	}
	if cfg.STT.Model != "tiny.en" {
		t.Fatalf("expected default model tiny.en, got %s", cfg.STT.Model)
	}
	if !cfg.Output.Timestamps {
		t.Fatal("expected timestamps enabled by default")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SCRIBE_AUDIO_DEVICE_INDEX", "3")
	t.Setenv("SCRIBE_AUDIO_DEVICE_PATTERN", "Loopback")
	t.Setenv("SCRIBE_AUDIO_SAMPLE_RATE", "44100")
	t.Setenv("SCRIBE_SEGMENTER_WINDOW_MS", "5000")
	t.Setenv("SCRIBE_SEGMENTER_OVERLAP_MS", "250")
	t.Setenv("SCRIBE_STT_MODE", "mock")
	t.Setenv("SCRIBE_STT_MODEL", "base.en")
	t.Setenv("SCRIBE_OUTPUT_TIMESTAMPS", "false")
	t.Setenv("SCRIBE_VAD_THRESHOLD", "0.7")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Audio.DeviceIndex != 3 {
		t.Fatalf("expected device index override, got %d", cfg.Audio.DeviceIndex)
	}
	if cfg.Audio.DevicePattern != "Loopback" {
		t.Fatalf("expected device pattern override, got %s", cfg.Audio.DevicePattern)
	}
	if cfg.Audio.SampleRate != 44100 {
		t.Fatalf("expected sample rate override, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Segmenter.WindowMS != 5000 || cfg.Segmenter.OverlapMS != 250 {
		t.Fatalf("expected segmenter overrides, got %+v", cfg.Segmenter)
	}
	if cfg.STT.Mode != "mock" || cfg.STT.Model != "base.en" {
		t.Fatalf("expected stt overrides, got %+v", cfg.STT)
	}
	if cfg.Output.Timestamps {
		t.Fatal("expected timestamps override false")
	}
	if cfg.VAD.Threshold != 0.7 {
		t.Fatalf("expected vad threshold override, got %v", cfg.VAD.Threshold)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad model", func(c *Config) { c.STT.Model = "huge" }, "stt.model"},
		{"bad mode", func(c *Config) { c.STT.Mode = "grpc" }, "stt.mode"},
		{"exec without command", func(c *Config) { c.STT.Mode = "exec" }, "stt.command"},
		{"openai without key", func(c *Config) { c.STT.Mode = "openai" }, "stt.api_key"},
		{"overlap >= window", func(c *Config) { c.Segmenter.OverlapMS = c.Segmenter.WindowMS }, "overlap_ms"},
		{"zero sample rate", func(c *Config) { c.Audio.SampleRate = 0 }, "sample_rate"},
		{"bad backend", func(c *Config) { c.Audio.Backend = "jack" }, "audio.backend"},
		{"vad without model", func(c *Config) { c.VAD.Enabled = true }, "vad.model_path"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestDefaultOutputPath(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	path := DefaultOutputPath(now)
	if filepath.Base(path) != "transcript-20250314-092653.txt" {
		t.Fatalf("unexpected output path: %s", path)
	}
	if !strings.Contains(path, "Desktop") {
		t.Fatalf("expected Desktop path, got %s", path)
	}
}
