// Package web provides a real-time dashboard for a voice session:
// connection state, speaking flags, live transcript, and turn metrics.
package web

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/voicelink/voicelink/pkg/hub"
	"github.com/voicelink/voicelink/pkg/session"
)

// SessionState is the dashboard's view of the conversation.
type SessionState struct {
	Connected         bool   `json:"connected"`
	Endpoint          string `json:"endpoint"`
	UserSpeaking      bool   `json:"user_speaking"`
	AssistantSpeaking bool   `json:"assistant_speaking"`
	QueueDepth        int    `json:"queue_depth"`
	LastTranscript    string `json:"last_transcript"`
}

// TranscriptEntry is one line of assistant text with its arrival time.
type TranscriptEntry struct {
	Time string `json:"time"`
	Text string `json:"text"`
}

// Server is the web dashboard server
type Server struct {
	app    *fiber.App
	port   string
	logger *slog.Logger

	// State
	state   SessionState
	stateMu sync.RWMutex

	// Transcript buffer (last 200 entries)
	transcript   []TranscriptEntry
	transcriptMu sync.RWMutex

	// Metrics source, set by the host process
	metrics *session.MetricsCollector

	// Hubs for websocket broadcast (thread-safe!)
	statusHub     *hub.Hub
	transcriptHub *hub.Hub
}

// NewServer creates a new web dashboard server
func NewServer(port string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		port:          port,
		logger:        logger,
		transcript:    make([]TranscriptEntry, 0, 200),
		statusHub:     hub.New("status", logger),
		transcriptHub: hub.New("transcript", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Voicelink Dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/transcript", s.handleGetTranscript)
	api.Get("/metrics", s.handleMetrics)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/transcript", websocket.New(s.handleTranscriptWS))

	s.app = app
	return s
}

// SetMetrics wires the per-turn metrics collector into /api/metrics.
func (s *Server) SetMetrics(m *session.MetricsCollector) {
	s.metrics = m
}

// Start starts the web server
func (s *Server) Start() error {
	s.logger.Info("dashboard listening", "addr", "http://localhost:"+s.port)

	go s.statusHub.Run()
	go s.transcriptHub.Run()

	return s.app.Listen(":" + s.port)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("dashboard server failed", "error", err)
		}
	}()
}

// UpdateState updates the session state and broadcasts to clients
func (s *Server) UpdateState(update func(*SessionState)) {
	s.stateMu.Lock()
	update(&s.state)
	state := s.state // Copy for broadcast
	s.stateMu.Unlock()

	s.statusHub.BroadcastJSON(state)
}

// AddTranscript appends assistant text and broadcasts it
func (s *Server) AddTranscript(text string) {
	entry := TranscriptEntry{
		Time: time.Now().Format("15:04:05"),
		Text: text,
	}

	s.transcriptMu.Lock()
	s.transcript = append(s.transcript, entry)
	if len(s.transcript) > 200 {
		s.transcript = s.transcript[1:]
	}
	s.transcriptMu.Unlock()

	s.UpdateState(func(st *SessionState) {
		st.LastTranscript = text
	})

	s.transcriptHub.BroadcastJSON(entry)
}

// Shutdown gracefully stops the web server and its broadcast hubs
func (s *Server) Shutdown() error {
	s.statusHub.Stop()
	s.transcriptHub.Stop()
	return s.app.Shutdown()
}
