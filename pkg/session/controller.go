// Package session coordinates turn-taking between microphone capture,
// the transport session, and playback. It owns two independent flags,
// user speaking and assistant speaking, so the user can barge in while
// the assistant is still talking.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/voicelink/voicelink/pkg/audio"
	"github.com/voicelink/voicelink/pkg/capture"
	"github.com/voicelink/voicelink/pkg/playback"
	"github.com/voicelink/voicelink/pkg/wire"
)

// DefaultAssistantRate is assumed for inbound audio that does not
// declare a sample rate.
const DefaultAssistantRate = 24000

// Sender is the outbound half of the transport used by the controller.
type Sender interface {
	Send(msg *wire.Message) error
}

// Controller drives one voice conversation. Wire its HandleMessage and
// HandleDisconnect into the transport callbacks, then call StartTalking
// and StopTalking from the UI.
type Controller struct {
	engine    capture.Engine
	scheduler *playback.Scheduler
	sender    Sender
	metrics   *MetricsCollector
	logger    *slog.Logger

	mu                sync.Mutex
	userSpeaking      bool
	assistantSpeaking bool
	pumpDone          chan struct{}

	// OnTranscript receives assistant text as it streams in.
	OnTranscript func(text string)

	// OnSpeakingChange fires whenever either speaking flag flips.
	OnSpeakingChange func(user, assistant bool)
}

// NewController creates a controller over the given pipeline pieces.
func NewController(engine capture.Engine, scheduler *playback.Scheduler, sender Sender, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		engine:    engine,
		scheduler: scheduler,
		sender:    sender,
		metrics:   NewMetricsCollector(),
		logger:    logger,
	}
}

// Metrics returns the per-turn metrics collector.
func (c *Controller) Metrics() *MetricsCollector {
	return c.metrics
}

// UserSpeaking reports whether the microphone is live.
func (c *Controller) UserSpeaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userSpeaking
}

// AssistantSpeaking reports whether assistant audio is in flight.
func (c *Controller) AssistantSpeaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.assistantSpeaking
}

// StartTalking opens the microphone and streams chunks upstream.
// No-op while already talking. The assistant keeps playing; stopping
// it is the remote end's call when it hears the user.
func (c *Controller) StartTalking(ctx context.Context) error {
	c.mu.Lock()
	if c.userSpeaking {
		c.mu.Unlock()
		return nil
	}
	bargeIn := c.assistantSpeaking
	c.mu.Unlock()

	if err := c.engine.Start(ctx); err != nil {
		// Device refused; the user stays in the not-talking state.
		return err
	}

	c.mu.Lock()
	c.userSpeaking = true
	c.pumpDone = make(chan struct{})
	pumpDone := c.pumpDone
	c.mu.Unlock()

	c.metrics.MarkTurnStart()
	if bargeIn {
		c.metrics.IncrementInterruptions()
	}

	go c.pump(pumpDone)

	c.notifySpeaking()
	c.logger.Info("user turn started", "barge_in", bargeIn)

	return nil
}

// pump forwards captured frames upstream until the stream closes.
func (c *Controller) pump(done chan struct{}) {
	defer close(done)

	for frame := range c.engine.Stream() {
		msg := wire.NewAudioMessage(frame.Data, frame.SampleRate)
		if err := c.sender.Send(msg); err != nil {
			c.logger.Warn("failed to send audio chunk", "error", err)
			continue
		}
		c.metrics.IncrementSent()
	}
}

// StopTalking closes the microphone and signals end of turn.
// No-op while not talking.
func (c *Controller) StopTalking() error {
	c.mu.Lock()
	if !c.userSpeaking {
		c.mu.Unlock()
		return nil
	}
	c.userSpeaking = false
	pumpDone := c.pumpDone
	c.mu.Unlock()

	c.engine.Stop()
	if pumpDone != nil {
		<-pumpDone
	}

	c.metrics.MarkEndTurn()

	if err := c.sender.Send(wire.NewEndTurnMessage()); err != nil {
		c.logger.Warn("failed to send end of turn", "error", err)
	}

	c.notifySpeaking()
	c.logger.Info("user turn ended")

	return nil
}

// HandleMessage processes one inbound message from the transport.
// Heartbeat traffic never reaches here; the transport consumes it.
func (c *Controller) HandleMessage(msg *wire.Message) {
	switch msg.Type {
	case wire.TypeAudio:
		c.handleAudio(msg)

	case wire.TypeText:
		c.setAssistantSpeaking(true)
		if c.OnTranscript != nil {
			c.OnTranscript(msg.Text)
		}

	case wire.TypeTurnComplete:
		// Unconditional flush; anything still queued belongs to a
		// turn that is over.
		c.scheduler.Flush()
		c.setAssistantSpeaking(false)
		c.metrics.MarkTurnDone()
		c.logger.Debug("assistant turn complete")

	case wire.TypeEndTurn:
		// Our own end_turn echoed back confirms the remote cut off
		// the previous response.
		c.scheduler.Flush()
		c.setAssistantSpeaking(false)

	default:
		c.logger.Debug("ignoring message", "type", msg.Type)
	}
}

func (c *Controller) handleAudio(msg *wire.Message) {
	pcm, err := msg.AudioBytes()
	if err != nil {
		c.logger.Warn("dropping audio message", "error", err)
		return
	}

	rate := msg.SampleRate
	if rate == 0 {
		rate = DefaultAssistantRate
	}

	c.scheduler.Enqueue(audio.NewFrame(pcm, rate, 1))
	c.setAssistantSpeaking(true)
	c.metrics.MarkFirstAudio()
	c.metrics.IncrementReceived()
}

// HandleDisconnect tears the conversation down after the transport
// closes. Pending playback is cut and the microphone released.
func (c *Controller) HandleDisconnect(err error) {
	c.scheduler.Flush()

	c.mu.Lock()
	wasTalking := c.userSpeaking
	c.userSpeaking = false
	c.assistantSpeaking = false
	c.mu.Unlock()

	if wasTalking {
		c.engine.Stop()
	}

	c.notifySpeaking()

	if err != nil {
		c.logger.Warn("conversation ended", "error", err)
	} else {
		c.logger.Info("conversation ended")
	}
}

func (c *Controller) setAssistantSpeaking(v bool) {
	c.mu.Lock()
	changed := c.assistantSpeaking != v
	c.assistantSpeaking = v
	c.mu.Unlock()

	if changed {
		c.notifySpeaking()
	}
}

func (c *Controller) notifySpeaking() {
	if c.OnSpeakingChange == nil {
		return
	}
	c.mu.Lock()
	user, assistant := c.userSpeaking, c.assistantSpeaking
	c.mu.Unlock()
	c.OnSpeakingChange(user, assistant)
}
