package capture

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/voicelink/voicelink/pkg/audio"
)

// MalgoEngine captures microphone audio through miniaudio.
type MalgoEngine struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan audio.Frame

	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device

	// Accumulates device callback data until a full chunk is ready.
	pending []byte

	framesCaptured  atomic.Int64
	samplesCaptured atomic.Int64
	overruns        atomic.Int64
}

// NewMalgoEngine creates a miniaudio-backed capture engine.
// The audio context is initialized lazily on Start so that permission
// failures surface there, not at construction.
func NewMalgoEngine(cfg Config, logger *slog.Logger) *MalgoEngine {
	if logger == nil {
		logger = slog.Default()
	}

	return &MalgoEngine{
		cfg:      cfg,
		logger:   logger,
		streamCh: make(chan audio.Frame, 16),
	}
}

// Start opens the capture device and begins streaming frames.
func (e *MalgoEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.running {
		return ErrAlreadyStarted
	}

	if e.malgoCtx == nil {
		ctxConfig := malgo.ContextConfig{}
		ctxConfig.ThreadPriority = malgo.ThreadPriorityRealtime

		mctx, err := malgo.InitContext(nil, ctxConfig, nil)
		if err != nil {
			return wrapDeviceError("init audio context", err)
		}
		e.malgoCtx = mctx
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(e.cfg.Channels)
	deviceConfig.SampleRate = uint32(e.cfg.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			e.onDeviceData(input)
		},
	}

	device, err := malgo.InitDevice(e.malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		return wrapDeviceError("init capture device", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return wrapDeviceError("start capture device", err)
	}

	e.device = device
	e.running = true
	e.pending = e.pending[:0]
	e.streamCh = make(chan audio.Frame, 16)

	e.logger.Info("microphone capture started",
		"sample_rate", e.cfg.SampleRate,
		"channels", e.cfg.Channels,
		"chunk_duration", e.cfg.ChunkDuration,
	)

	return nil
}

// onDeviceData runs on the miniaudio callback thread. It buffers input
// and emits frames of exactly ChunkBytes.
func (e *MalgoEngine) onDeviceData(input []byte) {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}

	e.pending = append(e.pending, input...)
	chunkBytes := e.cfg.ChunkBytes()

	var frames []audio.Frame
	for len(e.pending) >= chunkBytes {
		data := make([]byte, chunkBytes)
		copy(data, e.pending[:chunkBytes])
		e.pending = e.pending[chunkBytes:]
		frames = append(frames, audio.NewFrame(data, e.cfg.SampleRate, e.cfg.Channels))
	}
	ch := e.streamCh
	e.mu.Unlock()

	for _, frame := range frames {
		select {
		case ch <- frame:
			e.framesCaptured.Add(1)
			e.samplesCaptured.Add(int64(len(frame.Data) / 2))
		default:
			// Consumer fell behind; drop rather than block the
			// audio callback thread.
			e.overruns.Add(1)
		}
	}
}

// Stop halts capture and closes the stream channel. The device is
// stopped outside the mutex so an in-flight data callback can finish,
// and the channel is closed only after the device thread has quiesced.
func (e *MalgoEngine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	device := e.device
	streamCh := e.streamCh
	e.device = nil
	e.mu.Unlock()

	if device != nil {
		device.Stop()
		device.Uninit()
	}
	close(streamCh)

	e.logger.Info("microphone capture stopped")

	return nil
}

// Stream returns the captured frame channel.
func (e *MalgoEngine) Stream() <-chan audio.Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.streamCh
}

// Config returns the capture configuration.
func (e *MalgoEngine) Config() Config {
	return e.cfg
}

// Name returns "malgo".
func (e *MalgoEngine) Name() string {
	return "malgo"
}

// Close releases the device and audio context.
func (e *MalgoEngine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.Stop()

	e.mu.Lock()
	if e.malgoCtx != nil {
		e.malgoCtx.Uninit()
		e.malgoCtx = nil
	}
	e.mu.Unlock()

	return nil
}

// Stats returns capture statistics.
func (e *MalgoEngine) Stats() Stats {
	e.mu.Lock()
	running := e.running
	e.mu.Unlock()

	return Stats{
		FramesCaptured:  e.framesCaptured.Load(),
		SamplesCaptured: e.samplesCaptured.Load(),
		Overruns:        e.overruns.Load(),
		Running:         running,
		Backend:         "malgo",
	}
}

// wrapDeviceError maps OS access failures to ErrPermissionDenied so
// callers can distinguish them from transient device errors.
func wrapDeviceError(op string, err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "access denied") || strings.Contains(msg, "permission") {
		return fmt.Errorf("capture: %s: %w", op, ErrPermissionDenied)
	}
	return fmt.Errorf("capture: %s: %w", op, err)
}

// Ensure MalgoEngine implements EngineWithStats.
var _ EngineWithStats = (*MalgoEngine)(nil)
