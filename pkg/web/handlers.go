package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/voicelink/voicelink/pkg/hub"
)

// handleStatus returns the current session state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return c.JSON(s.state)
}

// handleGetTranscript returns the recent transcript
func (s *Server) handleGetTranscript(c *fiber.Ctx) error {
	s.transcriptMu.RLock()
	defer s.transcriptMu.RUnlock()
	return c.JSON(s.transcript)
}

// handleMetrics returns current and averaged turn metrics
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	if s.metrics == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "metrics not configured",
		})
	}

	current := s.metrics.Current()
	average := s.metrics.Average()

	return c.JSON(fiber.Map{
		"current": fiber.Map{
			"chunks_sent":         current.ChunksSent,
			"chunks_received":     current.ChunksReceived,
			"interruptions":       current.Interruptions,
			"first_audio_latency": current.FirstAudioLatency.String(),
			"turn_duration":       current.TurnDuration.String(),
		},
		"average": fiber.Map{
			"first_audio_latency": average.FirstAudioLatency.String(),
			"turn_duration":       average.TurnDuration.String(),
		},
	})
}

// handleStatusWS streams state changes to a dashboard client
func (s *Server) handleStatusWS(c *websocket.Conn) {
	// Send current status before joining the broadcast set
	s.stateMu.RLock()
	c.WriteJSON(s.state)
	s.stateMu.RUnlock()

	hub.NewClient(s.statusHub, c).Run()
}

// handleTranscriptWS streams transcript entries to a dashboard client
func (s *Server) handleTranscriptWS(c *websocket.Conn) {
	// Replay the recent transcript first
	s.transcriptMu.RLock()
	for _, entry := range s.transcript {
		c.WriteJSON(entry)
	}
	s.transcriptMu.RUnlock()

	hub.NewClient(s.transcriptHub, c).Run()
}
