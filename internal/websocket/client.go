package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	ws "github.com/coder/websocket"

	"github.com/mclemens/timekeep/internal/model"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 5 * time.Second
)

// SessionResolver maps an opaque session token to its user. A nil user with
// a nil error means the token is not valid.
type SessionResolver interface {
	Resolve(token string) (*model.User, error)
}

// authMessage is the only message a client may usefully send. Anything else
// received before authentication is ignored.
type authMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

// Client is a single WebSocket channel. It starts unauthenticated, owns no
// user, and receives nothing. A valid auth message moves it into the hub
// under the resolved user; an invalid one closes it. Once closed it never
// comes back.
type Client struct {
	hub        *Hub
	conn       *ws.Conn
	resolver   SessionResolver
	dispatcher *Dispatcher
	logger     *slog.Logger

	send chan []byte

	// userID is empty until the handshake succeeds. Written under the hub
	// lock in Register; read under the same lock in Unregister.
	userID        string
	authenticated bool
}

// NewClient creates a Client tied to the given hub and connection.
func NewClient(hub *Hub, conn *ws.Conn, resolver SessionResolver, dispatcher *Dispatcher, logger *slog.Logger) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		resolver:   resolver,
		dispatcher: dispatcher,
		logger:     logger,
		send:       make(chan []byte, sendBufferSize),
	}
}

// Run starts the write pump and runs the read pump. It blocks until the
// connection is closed from either side, then unregisters the client.
func (c *Client) Run(ctx context.Context) {
	defer c.hub.Unregister(c)
	defer c.conn.Close(ws.StatusNormalClosure, "")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx)
	c.readPump(ctx)
}

// readPump drives the handshake. Before authentication only an auth message
// does anything; other messages are discarded without effect. After
// authentication all incoming traffic is drained and ignored — the channel
// is server-push only. Returning closes the connection.
func (c *Client) readPump(ctx context.Context) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		if c.authenticated {
			continue
		}
		if !c.handleAuth(data) {
			return
		}
	}
}

// handleAuth processes one pre-auth message. It reports false when the
// channel must be closed: a bad token terminates the connection with no
// error payload. Malformed frames and non-auth messages are ignored and
// leave the channel connected but unregistered.
func (c *Client) handleAuth(data []byte) bool {
	var msg authMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Debug("discarding unparseable pre-auth message", "error", err)
		return true
	}
	if msg.Type != "auth" {
		return true
	}

	user, err := c.resolver.Resolve(msg.SessionID)
	if err != nil {
		c.logger.Error("resolve session", "error", err)
		return false
	}
	if user == nil {
		c.logger.Info("auth rejected, closing channel")
		return false
	}

	c.authenticated = true
	c.hub.Register(user.ID, c)
	c.logger.Info("channel authenticated", "user_id", user.ID)

	// Newly authenticated devices get the current state right away.
	c.dispatcher.BroadcastAll(user.ID)
	return true
}

// writePump drains the send channel and writes messages to the WebSocket.
// It also sends periodic pings to detect stale connections. Each write is
// bounded so a wedged peer cannot hold the pump forever.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				// Hub closed the channel — connection is done
				return
			}
			if err := c.write(ctx, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) write(ctx context.Context, msg []byte) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(wctx, ws.MessageText, msg)
}
