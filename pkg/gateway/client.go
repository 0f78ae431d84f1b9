package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// clientState is a client connection's position in the
// connecting → connected → {idle ↔ serving} → closed state machine.
type clientState int

const (
	stateConnecting clientState = iota
	stateIdle
	stateServing
	stateClosed
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 256 * 1024
)

// client wraps one /ws connection: its own mutex-guarded state, a
// session binding, and the send/read pumps that move Envelopes to and
// from the socket: a read pump decodes and dispatches, a write pump owns
// the connection and multiplexes a buffered outbound channel plus ping
// ticks, one request per task in flight at a time.
type client struct {
	id        string
	sessionID string
	conn      *websocket.Conn
	send      chan Envelope
	gw        *Gateway
	logger    *slog.Logger

	mu         sync.Mutex
	state      clientState
	lastPong   time.Time
	activeTask string
}

func newClient(conn *websocket.Conn, gw *Gateway, logger *slog.Logger) *client {
	return &client{
		id:       uuid.New().String(),
		conn:     conn,
		send:     make(chan Envelope, 64),
		gw:       gw,
		logger:   logger,
		state:    stateConnecting,
		lastPong: time.Now(),
	}
}

func (c *client) setState(s clientState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *client) getState() clientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// staleSince reports how long it has been since the last pong, used by
// the Gateway's heartbeat sweep.
func (c *client) staleSince() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.lastPong)
}

func (c *client) touchPong() {
	c.mu.Lock()
	c.lastPong = time.Now()
	c.mu.Unlock()
}

// readPump decodes incoming frames and hands each request to the
// Gateway's dispatch logic. It owns the connection's lifetime: once it
// returns, the client is unregistered and the socket is closed.
func (c *client) readPump(ctx context.Context) {
	defer func() {
		c.gw.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.touchPong()
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.setState(stateIdle)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNoStatusReceived, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", "client_id", c.id, "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.sendEnvelope(Envelope{Type: MsgError, Error: "invalid message format"})
			continue
		}
		if env.Type != MsgRequest {
			c.sendEnvelope(Envelope{Type: MsgError, Error: "unsupported message type"})
			continue
		}
		c.gw.handleRequest(ctx, c, env)
	}
}

// writePump is the connection's sole writer, serializing Envelopes and
// periodic pings onto the socket.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendEnvelope queues env for delivery, dropping it if the client's
// buffer is full rather than blocking the caller.
func (c *client) sendEnvelope(env Envelope) bool {
	select {
	case c.send <- env:
		return true
	default:
		c.logger.Warn("client send buffer full, dropping frame", "client_id", c.id)
		return false
	}
}

func (c *client) close() {
	c.setState(stateClosed)
}
