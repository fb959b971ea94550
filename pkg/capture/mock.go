package capture

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voicelink/voicelink/pkg/audio"
)

// MockEngine is a mock capture engine for testing.
// It generates synthetic audio (silence or a sine wave).
type MockEngine struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan audio.Frame
	stopCh   chan struct{}

	framesCaptured  atomic.Int64
	samplesCaptured atomic.Int64
	overruns        atomic.Int64

	// Synthetic audio generation
	frequency float64 // Hz, 0 = silence
	amplitude float64 // 0.0 to 1.0

	// startErr, if set, is returned by Start. Used to simulate
	// device failures such as denied microphone access.
	startErr error
}

// MockEngineOption configures a MockEngine.
type MockEngineOption func(*MockEngine)

// WithSineWave configures the mock to generate a sine wave.
func WithSineWave(frequency, amplitude float64) MockEngineOption {
	return func(m *MockEngine) {
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// WithStartError makes Start fail with the given error.
func WithStartError(err error) MockEngineOption {
	return func(m *MockEngine) {
		m.startErr = err
	}
}

// NewMockEngine creates a new mock capture engine.
func NewMockEngine(cfg Config, logger *slog.Logger, opts ...MockEngineOption) *MockEngine {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MockEngine{
		cfg:       cfg,
		logger:    logger,
		streamCh:  make(chan audio.Frame, 16),
		stopCh:    make(chan struct{}),
		frequency: 0, // Silence by default
		amplitude: 0.5,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start begins generating audio.
func (m *MockEngine) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.startErr != nil {
		return m.startErr
	}
	if m.running {
		return ErrAlreadyStarted
	}

	m.running = true
	m.stopCh = make(chan struct{})
	m.streamCh = make(chan audio.Frame, 16)

	go m.generateLoop(ctx, m.stopCh, m.streamCh)

	m.logger.Info("mock capture started",
		"sample_rate", m.cfg.SampleRate,
		"frequency", m.frequency,
	)

	return nil
}

// generateLoop is the sole owner of streamCh: it alone sends on the
// channel and closes it on exit, so a concurrent Stop can never race
// a send against the close.
func (m *MockEngine) generateLoop(ctx context.Context, stopCh chan struct{}, streamCh chan audio.Frame) {
	ticker := time.NewTicker(m.cfg.ChunkDuration)
	defer ticker.Stop()
	defer close(streamCh)

	var phase float64
	for {
		select {
		case <-ctx.Done():
			m.Stop()
			return
		case <-stopCh:
			return
		case <-ticker.C:
			frame := m.generateFrame(&phase)
			select {
			case streamCh <- frame:
				m.framesCaptured.Add(1)
				m.samplesCaptured.Add(int64(len(frame.Data) / 2))
			default:
				m.overruns.Add(1)
				m.logger.Debug("mock capture: stream full, dropping frame")
			}
		}
	}
}

func (m *MockEngine) generateFrame(phase *float64) audio.Frame {
	chunkSamples := m.cfg.ChunkSamples()
	samples := make([]int16, chunkSamples*m.cfg.Channels)

	if m.frequency > 0 {
		for i := 0; i < chunkSamples; i++ {
			sample := m.amplitude * math.Sin(2*math.Pi*m.frequency*(*phase)/float64(m.cfg.SampleRate))
			sampleInt := int16(sample * 32767)

			for ch := 0; ch < m.cfg.Channels; ch++ {
				samples[i*m.cfg.Channels+ch] = sampleInt
			}

			*phase++
			if *phase >= float64(m.cfg.SampleRate) {
				*phase = 0
			}
		}
	}
	// else: samples are already zero (silence)

	return audio.NewFrame(audio.SamplesToBytes(samples), m.cfg.SampleRate, m.cfg.Channels)
}

// Stop halts audio generation. The generator closes the stream
// channel on its way out.
func (m *MockEngine) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	m.running = false
	close(m.stopCh)

	m.logger.Info("mock capture stopped")

	return nil
}

// Stream returns the frame channel.
func (m *MockEngine) Stream() <-chan audio.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamCh
}

// Config returns the capture configuration.
func (m *MockEngine) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockEngine) Name() string {
	return "mock"
}

// Close releases resources.
func (m *MockEngine) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.Stop()
	return nil
}

// Stats returns capture statistics.
func (m *MockEngine) Stats() Stats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()

	return Stats{
		FramesCaptured:  m.framesCaptured.Load(),
		SamplesCaptured: m.samplesCaptured.Load(),
		Overruns:        m.overruns.Load(),
		Running:         running,
		Backend:         "mock",
	}
}

// Ensure MockEngine implements EngineWithStats.
var _ EngineWithStats = (*MockEngine)(nil)
