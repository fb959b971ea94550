// Package transport maintains the duplex WebSocket session to the
// remote assistant. It owns the connection lifecycle, the application
// heartbeat, and inbound message dispatch. There is no automatic
// reconnect; a dropped session stays Closed until the caller builds a
// new one.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voicelink/voicelink/pkg/auth"
	"github.com/voicelink/voicelink/pkg/wire"
)

// State is the session lifecycle state.
type State int32

const (
	// StateIdle is the initial state before Connect.
	StateIdle State = iota
	// StateConnecting covers the dial and handshake.
	StateConnecting
	// StateOpen means the session can send and receive.
	StateOpen
	// StateClosed is terminal; a closed session never reopens.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrNotOpen is returned by Send when the session is not open.
// Messages are never silently queued.
var ErrNotOpen = errors.New("transport: session not open")

// ConnError indicates a connection-level failure: dial, read, or
// heartbeat timeout.
type ConnError struct {
	Reason string
	Err    error
}

func (e *ConnError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("transport: %s", e.Reason)
}

func (e *ConnError) Unwrap() error {
	return e.Err
}

// Config holds transport configuration.
type Config struct {
	// Endpoint is the WebSocket URL of the remote assistant.
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// PingInterval is the application heartbeat period. A ping left
	// unanswered for a full interval closes the session.
	// Default: 30s
	PingInterval time.Duration `yaml:"ping_interval" json:"ping_interval"`

	// HandshakeTimeout bounds the WebSocket dial.
	// Default: 10s
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" json:"handshake_timeout"`

	// WriteTimeout bounds each outbound write.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:         endpoint,
		PingInterval:     30 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
	}
}

// Session is a single WebSocket session to the remote assistant.
//
// Callbacks must be set before Connect and are invoked from the read
// loop goroutine. OnClose fires exactly once, with nil for a local
// Close and a *ConnError for a failure.
type Session struct {
	cfg    Config
	authn  auth.Authenticator
	logger *slog.Logger

	ws   *websocket.Conn
	wsMu sync.Mutex

	mu          sync.Mutex
	state       State
	pendingPing string

	stopCh    chan struct{}
	closeOnce sync.Once

	// OnMessage receives every decoded inbound message except
	// heartbeat pings and pongs, which the transport consumes.
	OnMessage func(msg *wire.Message)

	// OnClose is invoked once when the session ends.
	OnClose func(err error)
}

// NewSession creates a session. It does not dial.
func NewSession(cfg Config, authn auth.Authenticator, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	return &Session{
		cfg:    cfg,
		authn:  authn,
		logger: logger,
		state:  StateIdle,
		stopCh: make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect authenticates and dials the remote assistant. It fails with
// *auth.Error when no user session is active and *ConnError when the
// dial fails; in both cases the session ends up Closed.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("transport: connect from %s state", state)
	}
	s.mu.Unlock()

	// An authenticated user session is a precondition for entering
	// the Connecting state, not something checked during it.
	ok, err := s.authn.Authenticated(ctx)
	if err != nil {
		s.setClosed()
		return &auth.Error{Reason: "session check", Err: err}
	}
	if !ok {
		s.setClosed()
		return &auth.Error{Reason: "no active user session"}
	}

	token, err := s.authn.Token(ctx)
	if err != nil {
		s.setClosed()
		return err
	}

	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("transport: connect from %s state", state)
	}
	s.state = StateConnecting
	s.mu.Unlock()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	dialer := websocket.Dialer{
		HandshakeTimeout: s.cfg.HandshakeTimeout,
	}

	ws, _, err := dialer.DialContext(ctx, s.cfg.Endpoint, header)
	if err != nil {
		s.setClosed()
		return &ConnError{Reason: "dial " + s.cfg.Endpoint, Err: err}
	}

	s.mu.Lock()
	s.ws = ws
	s.state = StateOpen
	s.mu.Unlock()

	go s.readLoop()
	go s.heartbeat()

	s.logger.Info("session connected", "endpoint", s.cfg.Endpoint)

	return nil
}

// Send transmits a message. Valid only while Open.
func (s *Session) Send(msg *wire.Message) error {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return ErrNotOpen
	}
	ws := s.ws
	s.mu.Unlock()

	data, err := wire.Encode(msg)
	if err != nil {
		return fmt.Errorf("transport: encode: %w", err)
	}

	s.wsMu.Lock()
	defer s.wsMu.Unlock()

	ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return &ConnError{Reason: "write", Err: err}
	}
	return nil
}

// Close shuts the session down locally. Safe to call multiple times.
func (s *Session) Close() error {
	s.closeWith(nil)
	return nil
}

// readLoop decodes inbound messages and dispatches them. Heartbeat
// traffic is consumed here; everything else goes to OnMessage.
func (s *Session) readLoop() {
	for {
		s.mu.Lock()
		ws := s.ws
		closed := s.state == StateClosed
		s.mu.Unlock()
		if closed {
			return
		}

		_, data, err := ws.ReadMessage()
		if err != nil {
			select {
			case <-s.stopCh:
				// Local close already in progress.
			default:
				s.closeWith(&ConnError{Reason: "read", Err: err})
			}
			return
		}

		msg, err := wire.Decode(data)
		if err != nil {
			// Malformed frames are dropped; one bad message must
			// not take the session down.
			s.logger.Warn("dropping undecodable message", "error", err)
			continue
		}

		switch msg.Type {
		case wire.TypePing:
			if err := s.Send(wire.NewPongMessage(msg.ID)); err != nil {
				s.logger.Warn("failed to answer ping", "error", err)
			}
		case wire.TypePong:
			s.mu.Lock()
			if msg.ID == s.pendingPing || msg.ID == "" {
				s.pendingPing = ""
			}
			s.mu.Unlock()
		default:
			if s.OnMessage != nil {
				s.OnMessage(msg)
			}
		}
	}
}

// heartbeat pings the peer at the configured interval. A ping still
// unanswered at the next tick means the peer is gone.
func (s *Session) heartbeat() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.mu.Lock()
			stale := s.pendingPing
			s.mu.Unlock()

			if stale != "" {
				s.closeWith(&ConnError{Reason: "heartbeat timeout"})
				return
			}

			id := uuid.NewString()
			s.mu.Lock()
			s.pendingPing = id
			s.mu.Unlock()

			if err := s.Send(wire.NewPingMessage(id)); err != nil {
				select {
				case <-s.stopCh:
				default:
					s.closeWith(&ConnError{Reason: "heartbeat send", Err: err})
				}
				return
			}
		}
	}
}

// setClosed marks a session that failed before the socket opened.
func (s *Session) setClosed() {
	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
}

// closeWith transitions to Closed, tears down the socket, and fires
// OnClose exactly once.
func (s *Session) closeWith(cause error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		ws := s.ws
		s.mu.Unlock()

		close(s.stopCh)

		if ws != nil {
			s.wsMu.Lock()
			ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			s.wsMu.Unlock()
			ws.Close()
		}

		if cause != nil {
			s.logger.Warn("session closed", "error", cause)
		} else {
			s.logger.Info("session closed")
		}

		if s.OnClose != nil {
			s.OnClose(cause)
		}
	})
}
