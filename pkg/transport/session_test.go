package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voicelink/voicelink/pkg/auth"
	"github.com/voicelink/voicelink/pkg/wire"
)

var upgrader = websocket.Upgrader{}

// echoServer upgrades connections and passes them to handler.
func echoServer(t *testing.T, handler func(ws *websocket.Conn)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		handler(ws)
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConnectRequiresAuth(t *testing.T) {
	s := NewSession(DefaultConfig("ws://unused.invalid"), auth.NewStatic(""), nil)

	err := s.Connect(context.Background())
	var authErr *auth.Error
	if !errors.As(err, &authErr) {
		t.Fatalf("Connect() error = %v, want *auth.Error", err)
	}
	if s.State() != StateClosed {
		t.Errorf("state = %v, want closed", s.State())
	}
}

// stateAuth records the session state observed during the auth check.
type stateAuth struct {
	session *Session
	seen    State
	allow   bool
}

func (a *stateAuth) Authenticated(ctx context.Context) (bool, error) {
	a.seen = a.session.State()
	return a.allow, nil
}

func (a *stateAuth) Token(ctx context.Context) (string, error) {
	return "tok", nil
}

func TestConnectChecksAuthBeforeConnecting(t *testing.T) {
	a := &stateAuth{}
	s := NewSession(DefaultConfig("ws://unused.invalid"), a, nil)
	a.session = s

	err := s.Connect(context.Background())
	var authErr *auth.Error
	if !errors.As(err, &authErr) {
		t.Fatalf("Connect() error = %v, want *auth.Error", err)
	}
	if a.seen != StateIdle {
		t.Errorf("state during auth check = %v, want idle", a.seen)
	}
}

func TestConnectDialFailure(t *testing.T) {
	cfg := DefaultConfig("ws://127.0.0.1:1") // nothing listens here
	cfg.HandshakeTimeout = 500 * time.Millisecond
	s := NewSession(cfg, auth.NewStatic("tok"), nil)

	err := s.Connect(context.Background())
	var connErr *ConnError
	if !errors.As(err, &connErr) {
		t.Fatalf("Connect() error = %v, want *ConnError", err)
	}
	if s.State() != StateClosed {
		t.Errorf("state = %v, want closed", s.State())
	}
}

func TestSendBeforeConnect(t *testing.T) {
	s := NewSession(DefaultConfig("ws://unused.invalid"), auth.NewStatic("tok"), nil)
	if err := s.Send(wire.NewTextMessage("hi")); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Send() error = %v, want ErrNotOpen", err)
	}
}

func TestSendAndReceive(t *testing.T) {
	received := make(chan *wire.Message, 1)

	srv := echoServer(t, func(ws *websocket.Conn) {
		// Verify the bearer credential arrived, then relay one
		// message back.
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		msg, err := wire.Decode(data)
		if err != nil {
			return
		}
		received <- msg

		reply, _ := wire.Encode(wire.NewTextMessage("hello back"))
		ws.WriteMessage(websocket.TextMessage, reply)

		// Hold the connection open
		ws.ReadMessage()
	})
	defer srv.Close()

	s := NewSession(DefaultConfig(wsURL(srv)), auth.NewStatic("tok"), nil)

	inbound := make(chan *wire.Message, 1)
	s.OnMessage = func(msg *wire.Message) {
		inbound <- msg
	}

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer s.Close()

	if s.State() != StateOpen {
		t.Fatalf("state = %v, want open", s.State())
	}

	if err := s.Send(wire.NewAudioMessage([]byte{1, 2, 3, 4}, 16000)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case msg := <-received:
		if msg.Type != wire.TypeAudio {
			t.Errorf("server received type = %v, want audio", msg.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the message")
	}

	select {
	case msg := <-inbound:
		if msg.Type != wire.TypeText || msg.Text != "hello back" {
			t.Errorf("inbound = %+v, want text hello back", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnMessage never fired")
	}
}

func TestPingAnsweredWithPong(t *testing.T) {
	gotPong := make(chan *wire.Message, 1)

	srv := echoServer(t, func(ws *websocket.Conn) {
		ping, _ := wire.Encode(wire.NewPingMessage("srv-1"))
		ws.WriteMessage(websocket.TextMessage, ping)

		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if msg, err := wire.Decode(data); err == nil {
			gotPong <- msg
		}
		ws.ReadMessage()
	})
	defer srv.Close()

	s := NewSession(DefaultConfig(wsURL(srv)), auth.NewStatic("tok"), nil)
	var dispatched []wire.MessageType
	var mu sync.Mutex
	s.OnMessage = func(msg *wire.Message) {
		mu.Lock()
		dispatched = append(dispatched, msg.Type)
		mu.Unlock()
	}

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer s.Close()

	select {
	case msg := <-gotPong:
		if msg.Type != wire.TypePong || msg.ID != "srv-1" {
			t.Errorf("reply = %+v, want pong srv-1", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no pong reply to server ping")
	}

	// Heartbeat traffic must not reach the handler
	mu.Lock()
	defer mu.Unlock()
	for _, typ := range dispatched {
		if typ == wire.TypePing || typ == wire.TypePong {
			t.Errorf("heartbeat message %v leaked to OnMessage", typ)
		}
	}
}

func TestHeartbeatTimeout(t *testing.T) {
	srv := echoServer(t, func(ws *websocket.Conn) {
		// Read pings but never answer them
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	cfg := DefaultConfig(wsURL(srv))
	cfg.PingInterval = 50 * time.Millisecond
	s := NewSession(cfg, auth.NewStatic("tok"), nil)

	closed := make(chan error, 1)
	s.OnClose = func(err error) {
		closed <- err
	}

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	select {
	case err := <-closed:
		var connErr *ConnError
		if !errors.As(err, &connErr) {
			t.Errorf("close cause = %v, want *ConnError", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session did not close on missed pong")
	}

	if s.State() != StateClosed {
		t.Errorf("state = %v, want closed", s.State())
	}
	if err := s.Send(wire.NewTextMessage("late")); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Send() after timeout error = %v, want ErrNotOpen", err)
	}
}

func TestUndecodableMessageDropped(t *testing.T) {
	srv := echoServer(t, func(ws *websocket.Conn) {
		ws.WriteMessage(websocket.TextMessage, []byte("garbage"))

		good, _ := wire.Encode(wire.NewTextMessage("still here"))
		ws.WriteMessage(websocket.TextMessage, good)
		ws.ReadMessage()
	})
	defer srv.Close()

	s := NewSession(DefaultConfig(wsURL(srv)), auth.NewStatic("tok"), nil)
	inbound := make(chan *wire.Message, 1)
	s.OnMessage = func(msg *wire.Message) {
		inbound <- msg
	}

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer s.Close()

	select {
	case msg := <-inbound:
		if msg.Text != "still here" {
			t.Errorf("inbound text = %q, want still here", msg.Text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session died on undecodable message")
	}
}

func TestCloseIdempotent(t *testing.T) {
	srv := echoServer(t, func(ws *websocket.Conn) {
		ws.ReadMessage()
	})
	defer srv.Close()

	s := NewSession(DefaultConfig(wsURL(srv)), auth.NewStatic("tok"), nil)

	var closeCount int
	var mu sync.Mutex
	s.OnClose = func(err error) {
		mu.Lock()
		closeCount++
		mu.Unlock()
		if err != nil {
			t.Errorf("local close cause = %v, want nil", err)
		}
	}

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	s.Close()
	s.Close()

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if closeCount != 1 {
		t.Errorf("OnClose fired %d times, want 1", closeCount)
	}

	if err := s.Connect(context.Background()); err == nil {
		t.Error("Connect() on closed session should error")
	}
}
