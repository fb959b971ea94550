package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	// clientWriteWait bounds each outbound write.
	clientWriteWait = 10 * time.Second

	// clientPongWait is how long a client may go silent before it
	// is considered dead; pings go out at a fraction of this.
	clientPongWait   = 60 * time.Second
	clientPingPeriod = (clientPongWait * 9) / 10

	// clientReadLimit caps inbound frames. Dashboard clients only
	// listen, so anything beyond a control frame is suspect.
	clientReadLimit = 4 * 1024

	// clientSendBuffer is the per-client backlog before the hub
	// declares the client too slow and drops it.
	clientSendBuffer = 64
)

// Client is one dashboard websocket subscriber.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// NewClient wraps a websocket connection and registers it with the hub.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	client := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan Message, clientSendBuffer),
	}
	hub.register <- client
	return client
}

// Run pumps messages until the connection drops. Call it from the
// websocket handler; it blocks for the life of the connection.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump drains the connection. Subscribers never send anything we
// act on; reading serves only to surface disconnects and pongs.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(clientReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(clientPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(clientPongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the sole writer on the connection: it relays broadcast
// messages and keeps the client alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(clientPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(clientWriteWait))
			if !ok {
				// Hub dropped us; say goodbye properly
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			frameType := websocket.TextMessage
			if message.Type == BinaryMessage {
				frameType = websocket.BinaryMessage
			}
			if err := c.conn.WriteMessage(frameType, message.Data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(clientWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
