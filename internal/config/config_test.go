package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Capture.SampleRate != 16000 {
		t.Errorf("capture sample rate = %v, want 16000", cfg.Capture.SampleRate)
	}
	if cfg.Playback.SampleRate != 24000 {
		t.Errorf("playback sample rate = %v, want 24000", cfg.Playback.SampleRate)
	}
	if cfg.Playback.TickInterval != 40*time.Millisecond {
		t.Errorf("tick interval = %v, want 40ms", cfg.Playback.TickInterval)
	}
	if cfg.Heartbeat.PingInterval != 30*time.Second {
		t.Errorf("ping interval = %v, want 30s", cfg.Heartbeat.PingInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults error = %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() on missing file error = %v", err)
	}
	if cfg.Capture.SampleRate != 16000 {
		t.Errorf("defaults not applied, sample rate = %v", cfg.Capture.SampleRate)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voicelink.yaml")
	data := []byte(`
endpoint: wss://assistant.example.com/ws
log_level: debug
capture:
  sample_rate: 48000
playback:
  max_queued_frames: 64
dashboard:
  enabled: true
  port: "9000"
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Endpoint != "wss://assistant.example.com/ws" {
		t.Errorf("endpoint = %q", cfg.Endpoint)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug", cfg.LogLevel)
	}
	if cfg.Capture.SampleRate != 48000 {
		t.Errorf("capture sample rate = %v, want 48000", cfg.Capture.SampleRate)
	}
	if cfg.Playback.MaxQueuedFrames != 64 {
		t.Errorf("max queued frames = %v, want 64", cfg.Playback.MaxQueuedFrames)
	}
	if !cfg.Dashboard.Enabled || cfg.Dashboard.Port != "9000" {
		t.Errorf("dashboard = %+v", cfg.Dashboard)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VOICELINK_ENDPOINT", "wss://env.example.com/ws")
	t.Setenv("VOICELINK_AUTH_TOKEN", "env-token")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Endpoint != "wss://env.example.com/ws" {
		t.Errorf("endpoint = %q, env override not applied", cfg.Endpoint)
	}
	if cfg.Auth.Token != "env-token" {
		t.Errorf("token = %q, env override not applied", cfg.Auth.Token)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() on invalid yaml should error")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero capture rate", func(c *Config) { c.Capture.SampleRate = 0 }},
		{"zero channels", func(c *Config) { c.Capture.Channels = 0 }},
		{"zero tick", func(c *Config) { c.Playback.TickInterval = 0 }},
		{"zero queue bound", func(c *Config) { c.Playback.MaxQueuedFrames = 0 }},
		{"zero ping interval", func(c *Config) { c.Heartbeat.PingInterval = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should have failed")
			}
		})
	}
}
