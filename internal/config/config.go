// Package config loads voicelink configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for the voice session engine.
const (
	DefaultCaptureRate     = 16000
	DefaultPlaybackRate    = 24000
	DefaultTickInterval    = 40 * time.Millisecond
	DefaultPingInterval    = 30 * time.Second
	DefaultMaxQueuedFrames = 256
	DefaultDashboardPort   = "8090"
)

// Config holds all settings for a voicelink client.
type Config struct {
	// Endpoint is the WebSocket URL of the remote assistant.
	Endpoint string `yaml:"endpoint"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level"`

	Auth      AuthConfig      `yaml:"auth"`
	Capture   CaptureConfig   `yaml:"capture"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

// AuthConfig configures the external auth collaborator.
type AuthConfig struct {
	// CheckURL is the session-check endpoint. Empty means static token auth.
	CheckURL string `yaml:"check_url"`

	// Token is the bearer token presented to the session check.
	Token string `yaml:"token"`
}

// CaptureConfig configures the microphone capture engine.
type CaptureConfig struct {
	// SampleRate is the requested capture rate in Hz. The device may
	// negotiate a different rate; frames report the actual one.
	SampleRate int `yaml:"sample_rate"`

	// Channels is the number of capture channels (1 = mono).
	Channels int `yaml:"channels"`

	// ChunkDuration is the duration of each captured frame.
	ChunkDuration time.Duration `yaml:"chunk_duration"`
}

// PlaybackConfig configures the playback scheduler.
type PlaybackConfig struct {
	// SampleRate is the expected assistant audio rate in Hz.
	SampleRate int `yaml:"sample_rate"`

	// TickInterval is the jitter-buffer drain period.
	TickInterval time.Duration `yaml:"tick_interval"`

	// MaxQueuedFrames bounds the jitter buffer. Oldest frames are
	// dropped past this depth.
	MaxQueuedFrames int `yaml:"max_queued_frames"`

	// Immediate selects the immediate-play fallback policy instead of
	// the buffered-interval default.
	Immediate bool `yaml:"immediate"`
}

// HeartbeatConfig configures connection liveness.
type HeartbeatConfig struct {
	// PingInterval is the ping period; a missing pong within one
	// interval closes the session.
	PingInterval time.Duration `yaml:"ping_interval"`
}

// DashboardConfig configures the local status dashboard.
type DashboardConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		LogLevel: "info",
		Capture: CaptureConfig{
			SampleRate:    DefaultCaptureRate,
			Channels:      1,
			ChunkDuration: 128 * time.Millisecond, // ~2048 samples at 16kHz
		},
		Playback: PlaybackConfig{
			SampleRate:      DefaultPlaybackRate,
			TickInterval:    DefaultTickInterval,
			MaxQueuedFrames: DefaultMaxQueuedFrames,
		},
		Heartbeat: HeartbeatConfig{
			PingInterval: DefaultPingInterval,
		},
		Dashboard: DashboardConfig{
			Port: DefaultDashboardPort,
		},
	}
}

// Load reads configuration from the given YAML file, if it exists, and
// applies environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides settings from VOICELINK_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("VOICELINK_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv("VOICELINK_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("VOICELINK_AUTH_URL"); v != "" {
		c.Auth.CheckURL = v
	}
	if v := os.Getenv("VOICELINK_AUTH_TOKEN"); v != "" {
		c.Auth.Token = v
	}
	if v := os.Getenv("VOICELINK_DASHBOARD_PORT"); v != "" {
		c.Dashboard.Port = v
		c.Dashboard.Enabled = true
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Capture.SampleRate <= 0 {
		return fmt.Errorf("capture sample_rate must be positive, got %d", c.Capture.SampleRate)
	}
	if c.Capture.Channels <= 0 {
		return fmt.Errorf("capture channels must be positive, got %d", c.Capture.Channels)
	}
	if c.Capture.ChunkDuration <= 0 {
		return fmt.Errorf("capture chunk_duration must be positive, got %v", c.Capture.ChunkDuration)
	}
	if c.Playback.SampleRate <= 0 {
		return fmt.Errorf("playback sample_rate must be positive, got %d", c.Playback.SampleRate)
	}
	if c.Playback.TickInterval <= 0 {
		return fmt.Errorf("playback tick_interval must be positive, got %v", c.Playback.TickInterval)
	}
	if c.Playback.MaxQueuedFrames <= 0 {
		return fmt.Errorf("playback max_queued_frames must be positive, got %d", c.Playback.MaxQueuedFrames)
	}
	if c.Heartbeat.PingInterval <= 0 {
		return fmt.Errorf("heartbeat ping_interval must be positive, got %v", c.Heartbeat.PingInterval)
	}
	return nil
}

// EndpointRequired returns the endpoint, exiting with a usage message if
// it is not configured.
func (c *Config) EndpointRequired() string {
	if c.Endpoint == "" {
		fmt.Fprintln(os.Stderr, "Error: assistant endpoint is required")
		fmt.Fprintln(os.Stderr, "Set VOICELINK_ENDPOINT or the endpoint key in voicelink.yaml")
		os.Exit(1)
	}
	return c.Endpoint
}
