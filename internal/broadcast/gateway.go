package broadcast

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/typerace-go/internal/dependencies/clock"
	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/services/session"
)

// Config holds gateway buffer and transport settings
type Config struct {
	SubscriberBuffer int
	HubBuffer        int

	// KeepAlive is the SSE comment interval and the WebSocket ping interval
	KeepAlive      time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	MaxMessageSize int64
	CheckOrigin    func(r *http.Request) bool
}

// DefaultConfig returns default gateway configuration
func DefaultConfig() Config {
	return Config{
		SubscriberBuffer: 64,
		HubBuffer:        256,
		KeepAlive:        30 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
		MaxMessageSize:   1024,
		CheckOrigin:      func(r *http.Request) bool { return true },
	}
}

// Gateway owns one hub per session and publishes session events to them
type Gateway struct {
	hubs     map[model.SessionID]*Hub
	mu       sync.RWMutex
	cfg      Config
	clock    clock.Clock
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

var _ session.Publisher = (*Gateway)(nil)

// New creates a Gateway
func New(cfg Config, clock clock.Clock, logger *slog.Logger) *Gateway {
	defaults := DefaultConfig()
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = defaults.SubscriberBuffer
	}
	if cfg.HubBuffer <= 0 {
		cfg.HubBuffer = defaults.HubBuffer
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = defaults.KeepAlive
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}
	if cfg.CheckOrigin == nil {
		cfg.CheckOrigin = defaults.CheckOrigin
	}
	return &Gateway{
		hubs:  make(map[model.SessionID]*Hub),
		cfg:   cfg,
		clock: clock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
		logger: logger.With(slog.String("component", "broadcast")),
	}
}

// getOrCreateHub returns the hub for a session, starting one if needed
func (g *Gateway) getOrCreateHub(id model.SessionID) *Hub {
	g.mu.Lock()
	defer g.mu.Unlock()

	if hub, ok := g.hubs[id]; ok {
		return hub
	}
	hub := newHub(id, g.cfg.HubBuffer, g.clock, g.logger)
	g.hubs[id] = hub
	go hub.Run()
	return hub
}

func (g *Gateway) getHub(id model.SessionID) *Hub {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hubs[id]
}

// Subscribe registers a new subscriber for the session's events
func (g *Gateway) Subscribe(id model.SessionID, playerID model.PlayerID) *Subscription {
	hub := g.getOrCreateHub(id)
	sub := &Subscription{
		hub:         hub,
		sessionID:   id,
		playerID:    playerID,
		send:        make(chan Message, g.cfg.SubscriberBuffer),
		connectedAt: g.clock.Now(),
	}
	hub.Register(sub)
	return sub
}

// Unsubscribe removes a subscriber. It is safe to call more than once.
func (g *Gateway) Unsubscribe(sub *Subscription) {
	sub.hub.Unregister(sub)
}

// Publish sends an event to every subscriber of the session. Sessions
// nobody is watching have no hub and the event is discarded.
func (g *Gateway) Publish(id model.SessionID, event model.Event) {
	hub := g.getHub(id)
	if hub == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		g.logger.Error("failed to encode event",
			slog.String("session_id", string(id)),
			slog.String("event_type", string(event.Type)),
			slog.String("error", err.Error()))
		return
	}
	hub.Broadcast(Message{Event: event, Data: data})
}

// RemoveHub stops a session's hub, disconnecting its subscribers
func (g *Gateway) RemoveHub(id model.SessionID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if hub, ok := g.hubs[id]; ok {
		hub.Close()
		delete(g.hubs, id)
		g.logger.Info("hub removed", slog.String("session_id", string(id)))
	}
}

// SubscriberCount returns the number of subscribers for a session
func (g *Gateway) SubscriberCount(id model.SessionID) int {
	hub := g.getHub(id)
	if hub == nil {
		return 0
	}
	return hub.SubscriberCount()
}

// Close stops every hub
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, hub := range g.hubs {
		hub.Close()
		delete(g.hubs, id)
	}
}
