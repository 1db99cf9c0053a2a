package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/typerace-go/internal/model"
)

// MessageTypeProgress is the client message carrying typing progress
const MessageTypeProgress = "progress"

// ClientMessage is a message read from a WebSocket client
type ClientMessage struct {
	Type         string `json:"type"`
	CharsTyped   int    `json:"charsTyped"`
	CharsCorrect int    `json:"charsCorrect"`
}

// errorMessage is written back to the client when its message is rejected
type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// MessageHandler applies a client message on behalf of the connected player
type MessageHandler func(ctx context.Context, msg ClientMessage) error

// connection is one upgraded WebSocket following a session
type connection struct {
	gateway *Gateway
	conn    *websocket.Conn
	sub     *Subscription
	replies chan []byte
	logger  *slog.Logger
}

// ServeWS upgrades the request and streams session events over the socket.
// Client messages are passed to handle; rejected messages get an error reply.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request, id model.SessionID, playerID model.PlayerID, handle MessageHandler) error {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &connection{
		gateway: g,
		conn:    conn,
		sub:     g.Subscribe(id, playerID),
		replies: make(chan []byte, 16),
		logger: g.logger.With(
			slog.String("session_id", string(id)),
			slog.String("player_id", string(playerID)),
		),
	}
	c.logger.Info("websocket connection established")

	done := make(chan struct{})
	go c.writePump(done)
	c.readPump(r.Context(), handle)
	close(done)

	g.Unsubscribe(c.sub)
	return nil
}

// writePump sends events, replies and pings. It owns all writes to the socket.
func (c *connection) writePump(done <-chan struct{}) {
	ticker := time.NewTicker(c.gateway.cfg.KeepAlive)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.sub.Messages():
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.gateway.cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg.Data); err != nil {
				c.logger.Warn("failed to write event", slog.String("error", err.Error()))
				return
			}

		case reply := <-c.replies:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.gateway.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, reply); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.gateway.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}

// readPump reads client messages until the socket closes
func (c *connection) readPump(ctx context.Context, handle MessageHandler) {
	defer func() { _ = c.conn.Close() }()

	c.conn.SetReadLimit(c.gateway.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.gateway.cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.gateway.cfg.ReadTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("unexpected websocket close", slog.String("error", err.Error()))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.gateway.cfg.ReadTimeout))

		if err := c.handleClientMessage(ctx, data, handle); err != nil {
			c.reply(err)
		}
	}
}

func (c *connection) handleClientMessage(ctx context.Context, data []byte, handle MessageHandler) error {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return model.Invalidf("malformed message: %v", err)
	}
	if msg.Type != MessageTypeProgress {
		return model.Invalidf("unknown message type %q", msg.Type)
	}
	if handle == nil {
		return errors.New("messages are not accepted on this connection")
	}
	return handle(ctx, msg)
}

func (c *connection) reply(err error) {
	data, _ := json.Marshal(errorMessage{Type: "error", Message: err.Error()})
	select {
	case c.replies <- data:
	default:
		c.logger.Warn("reply dropped - buffer full")
	}
}
