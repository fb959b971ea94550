package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voicelink/voicelink/pkg/audio"
)

// Policy selects how enqueued frames reach the sink.
type Policy string

const (
	// PolicyBuffered queues frames and drains one per tick. This is
	// the canonical policy; it absorbs network jitter.
	PolicyBuffered Policy = "buffered"

	// PolicyImmediate plays each frame synchronously on Enqueue.
	PolicyImmediate Policy = "immediate"
)

// Config holds scheduler configuration.
type Config struct {
	// Policy selects buffered or immediate playback.
	Policy Policy `yaml:"policy" json:"policy"`

	// TickInterval is the drain period for the buffered policy.
	// Default: 40ms
	TickInterval time.Duration `yaml:"tick_interval" json:"tick_interval"`

	// MaxQueuedFrames bounds the queue; the oldest frame is dropped
	// on overflow. Default: 256
	MaxQueuedFrames int `yaml:"max_queued_frames" json:"max_queued_frames"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Policy:          PolicyBuffered,
		TickInterval:    40 * time.Millisecond,
		MaxQueuedFrames: 256,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Policy != PolicyBuffered && c.Policy != PolicyImmediate {
		return fmt.Errorf("unknown policy %q", c.Policy)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %v", c.TickInterval)
	}
	if c.MaxQueuedFrames <= 0 {
		return fmt.Errorf("max_queued_frames must be positive, got %d", c.MaxQueuedFrames)
	}
	return nil
}

// Stats contains scheduler statistics.
type Stats struct {
	// QueueDepth is the number of frames waiting to play.
	QueueDepth int `json:"queue_depth"`

	// ActiveCount is the number of frames currently playing.
	ActiveCount int `json:"active_count"`

	// FramesPlayed is the total number of frames handed to the sink.
	FramesPlayed int64 `json:"frames_played"`

	// FramesDropped is the total number of frames dropped on
	// queue overflow.
	FramesDropped int64 `json:"frames_dropped"`
}

// Scheduler owns the playback queue and the active set of playing
// frames. Enqueue and Tick are safe to call from any goroutine.
type Scheduler struct {
	cfg    Config
	sink   Sink
	logger *slog.Logger

	mu       sync.Mutex
	queue    []audio.Frame
	active   map[int64]Handle
	finished map[int64]struct{}
	nextID   int64

	framesPlayed  atomic.Int64
	framesDropped atomic.Int64
}

// NewScheduler creates a scheduler draining into the given sink.
func NewScheduler(cfg Config, sink Sink, logger *slog.Logger) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("playback: invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		cfg:      cfg,
		sink:     sink,
		logger:   logger,
		active:   make(map[int64]Handle),
		finished: make(map[int64]struct{}),
	}, nil
}

// Enqueue accepts an assistant audio frame. Under the buffered policy
// it joins the queue; under the immediate policy it plays at once.
func (s *Scheduler) Enqueue(frame audio.Frame) {
	if s.cfg.Policy == PolicyImmediate {
		s.play(frame)
		return
	}

	s.mu.Lock()
	s.queue = append(s.queue, frame)
	if len(s.queue) > s.cfg.MaxQueuedFrames {
		s.queue = s.queue[1:]
		s.framesDropped.Add(1)
		s.logger.Warn("playback queue full, dropped oldest frame",
			"max", s.cfg.MaxQueuedFrames,
		)
	}
	s.mu.Unlock()
}

// Tick drains one frame from the queue and starts it playing.
// No-op on an empty queue.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	frame := s.queue[0]
	s.queue = s.queue[1:]
	s.mu.Unlock()

	s.play(frame)
}

// Run ticks at the configured interval until the context ends.
func (s *Scheduler) Run(ctx context.Context) {
	if s.cfg.Policy == PolicyImmediate {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

func (s *Scheduler) play(frame audio.Frame) {
	samples := audio.ToFloat32(frame.Samples())

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.mu.Unlock()

	handle, err := s.sink.Play(samples, frame.SampleRate, func() {
		s.onSinkDone(id)
	})
	if err != nil {
		s.logger.Error("failed to start playback", "error", err)
		return
	}

	s.mu.Lock()
	if _, done := s.finished[id]; done {
		// Completed before we could register it.
		delete(s.finished, id)
	} else {
		s.active[id] = handle
	}
	s.mu.Unlock()

	s.framesPlayed.Add(1)
}

// onSinkDone removes a naturally finished frame from the active set.
func (s *Scheduler) onSinkDone(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[id]; ok {
		delete(s.active, id)
		return
	}
	s.finished[id] = struct{}{}
}

// Flush stops every playing frame and empties the queue. Safe to call
// at any time, including when nothing is queued or playing.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	handles := make([]Handle, 0, len(s.active))
	for _, h := range s.active {
		handles = append(handles, h)
	}
	s.active = make(map[int64]Handle)
	s.finished = make(map[int64]struct{})
	dropped := len(s.queue)
	s.queue = nil
	s.mu.Unlock()

	for _, h := range handles {
		h.Stop()
	}

	if len(handles) > 0 || dropped > 0 {
		s.logger.Debug("playback flushed",
			"stopped", len(handles),
			"discarded", dropped,
		)
	}
}

// Stats returns scheduler statistics.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	depth := len(s.queue)
	activeCount := len(s.active)
	s.mu.Unlock()

	return Stats{
		QueueDepth:    depth,
		ActiveCount:   activeCount,
		FramesPlayed:  s.framesPlayed.Load(),
		FramesDropped: s.framesDropped.Load(),
	}
}
