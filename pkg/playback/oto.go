package playback

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/voicelink/voicelink/pkg/audio"
)

// OtoSink plays audio through the system speaker via oto.
// The oto context runs at a fixed sample rate; frames at other rates
// are resampled before playback.
type OtoSink struct {
	sampleRate int
	logger     *slog.Logger

	mu     sync.Mutex
	otoCtx *oto.Context
	closed bool
}

// NewOtoSink opens a speaker context at the given sample rate.
func NewOtoSink(sampleRate int, logger *slog.Logger) (*OtoSink, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		// ~100ms buffer keeps latency low without glitching.
		BufferSize: 100 * time.Millisecond,
	}

	otoCtx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("playback: init speaker: %w", err)
	}
	<-ready

	return &OtoSink{
		sampleRate: sampleRate,
		logger:     logger,
		otoCtx:     otoCtx,
	}, nil
}

// Play quantizes the samples to PCM16 and streams them to the speaker.
func (s *OtoSink) Play(samples []float32, sampleRate int, done func()) (Handle, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("playback: sink closed")
	}
	otoCtx := s.otoCtx
	s.mu.Unlock()

	pcm := audio.Quantize(samples)
	if sampleRate != s.sampleRate {
		pcm = audio.Resample(pcm, sampleRate, s.sampleRate)
	}

	player := otoCtx.NewPlayer(bytes.NewReader(audio.SamplesToBytes(pcm)))
	player.Play()

	h := &otoHandle{player: player}
	go h.watch(done)

	return h, nil
}

// Name returns "oto".
func (s *OtoSink) Name() string {
	return "oto"
}

// Close releases the speaker. Active players finish on their own.
func (s *OtoSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type otoHandle struct {
	player *oto.Player

	mu      sync.Mutex
	stopped bool
}

// watch polls the player until it drains, then fires done.
func (h *otoHandle) watch(done func()) {
	for {
		h.mu.Lock()
		if h.stopped {
			h.mu.Unlock()
			return
		}
		playing := h.player.IsPlaying()
		h.mu.Unlock()

		if !playing {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	h.mu.Lock()
	stopped := h.stopped
	if !stopped {
		h.stopped = true
		h.player.Close()
	}
	h.mu.Unlock()

	if !stopped && done != nil {
		done()
	}
}

// Stop cancels playback immediately.
func (h *otoHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return
	}
	h.stopped = true
	h.player.Pause()
	h.player.Close()
}

var _ Sink = (*OtoSink)(nil)
