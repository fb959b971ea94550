// Package capture provides microphone audio capture.
//
// This package supports multiple backends:
//   - malgo (miniaudio) - Production use on Linux/macOS/Windows
//   - Mock - CI/Testing without hardware
//
// The backend is selected via configuration; "auto" picks malgo when
// hardware is available.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/voicelink/voicelink/pkg/audio"
)

// Backend represents the capture backend type.
type Backend string

const (
	// BackendAuto automatically selects the best available backend.
	BackendAuto Backend = "auto"
	// BackendMalgo uses miniaudio for cross-platform capture.
	BackendMalgo Backend = "malgo"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

var (
	// ErrPermissionDenied indicates the OS refused microphone access.
	ErrPermissionDenied = errors.New("capture: microphone permission denied")

	// ErrAlreadyStarted indicates Start was called on a running engine.
	ErrAlreadyStarted = errors.New("capture: already started")

	// ErrClosed indicates the engine has been closed and cannot restart.
	ErrClosed = errors.New("capture: engine closed")
)

// Config holds capture configuration.
type Config struct {
	// Backend specifies which capture backend to use.
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the capture sample rate in Hz.
	// Default: 16000
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is the number of capture channels.
	// Default: 1 (mono)
	Channels int `yaml:"channels" json:"channels"`

	// ChunkDuration is how much audio each emitted frame carries.
	// Default: 128ms
	ChunkDuration time.Duration `yaml:"chunk_duration" json:"chunk_duration"`

	// Device is the platform-specific device identifier.
	// Empty selects the system default.
	Device string `yaml:"device" json:"device"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:       BackendAuto,
		SampleRate:    16000,
		Channels:      1,
		ChunkDuration: 128 * time.Millisecond,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.ChunkDuration <= 0 {
		return fmt.Errorf("chunk_duration must be positive, got %v", c.ChunkDuration)
	}
	return nil
}

// ChunkSamples returns the number of samples per emitted frame.
func (c *Config) ChunkSamples() int {
	return int(float64(c.SampleRate) * c.ChunkDuration.Seconds())
}

// ChunkBytes returns the size of an emitted frame in bytes.
func (c *Config) ChunkBytes() int {
	return c.ChunkSamples() * c.Channels * 2
}

// Engine captures audio from a microphone or other input device.
type Engine interface {
	// Start begins audio capture.
	// After calling Start, frames are available via Stream.
	Start(ctx context.Context) error

	// Stop halts audio capture and closes the stream channel.
	// It is safe to call Stop multiple times.
	Stop() error

	// Stream returns a channel that receives captured frames.
	// The channel is closed when the engine is stopped.
	Stream() <-chan audio.Frame

	// Config returns the current capture configuration.
	Config() Config

	// Name returns the backend name (e.g., "malgo", "mock").
	Name() string

	// Close releases all resources.
	// After Close, the engine cannot be restarted.
	io.Closer
}

// Stats contains statistics about a capture engine.
type Stats struct {
	// FramesCaptured is the total number of frames emitted.
	FramesCaptured int64 `json:"frames_captured"`

	// SamplesCaptured is the total number of samples emitted.
	SamplesCaptured int64 `json:"samples_captured"`

	// Overruns is the number of frames dropped because the consumer
	// fell behind.
	Overruns int64 `json:"overruns"`

	// Running indicates if the engine is currently capturing.
	Running bool `json:"running"`

	// Backend is the name of the capture backend.
	Backend string `json:"backend"`
}

// EngineWithStats extends Engine with statistics.
type EngineWithStats interface {
	Engine
	Stats() Stats
}
