package broadcast

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/typerace-go/internal/dependencies/clock"
	"github.com/mcoot/typerace-go/internal/model"
)

// Message is an event ready for delivery. Data is the event encoded once as JSON.
type Message struct {
	Event model.Event
	Data  []byte
}

// Subscription receives the events of one session
type Subscription struct {
	hub         *Hub
	sessionID   model.SessionID
	playerID    model.PlayerID
	send        chan Message
	connectedAt time.Time
}

// Messages returns the delivery channel. It is closed when the subscriber
// is unsubscribed, dropped for falling behind, or the hub stops.
func (s *Subscription) Messages() <-chan Message {
	return s.send
}

// SessionID returns the session this subscription follows
func (s *Subscription) SessionID() model.SessionID {
	return s.sessionID
}

// Hub fans events out to the subscribers of a single session. One goroutine
// per hub delivers events, so each subscriber sees them in publish order.
type Hub struct {
	sessionID   model.SessionID
	subscribers map[*Subscription]bool
	mu          sync.RWMutex
	clock       clock.Clock
	logger      *slog.Logger

	register   chan *Subscription
	unregister chan *Subscription
	broadcast  chan Message
	done       chan struct{}
	closeOnce  sync.Once
}

func newHub(sessionID model.SessionID, bufferSize int, clock clock.Clock, logger *slog.Logger) *Hub {
	return &Hub{
		sessionID:   sessionID,
		subscribers: make(map[*Subscription]bool),
		clock:       clock,
		logger:      logger.With(slog.String("session_id", string(sessionID))),
		register:    make(chan *Subscription),
		unregister:  make(chan *Subscription),
		broadcast:   make(chan Message, bufferSize),
		done:        make(chan struct{}),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	h.logger.Debug("hub started")
	for {
		select {
		case sub := <-h.register:
			h.mu.Lock()
			h.subscribers[sub] = true
			count := len(h.subscribers)
			h.mu.Unlock()
			h.logger.Info("subscriber registered",
				slog.String("player_id", string(sub.playerID)),
				slog.Int("total_subscribers", count))

		case sub := <-h.unregister:
			h.remove(sub, "subscriber unregistered")

		case msg := <-h.broadcast:
			h.deliver(msg)

		case <-h.done:
			h.mu.Lock()
			count := len(h.subscribers)
			for sub := range h.subscribers {
				close(sub.send)
				delete(h.subscribers, sub)
			}
			h.mu.Unlock()
			h.logger.Info("hub stopped", slog.Int("disconnected_subscribers", count))
			return
		}
	}
}

func (h *Hub) remove(sub *Subscription, reason string) {
	h.mu.Lock()
	if !h.subscribers[sub] {
		h.mu.Unlock()
		return
	}
	delete(h.subscribers, sub)
	close(sub.send)
	count := len(h.subscribers)
	h.mu.Unlock()

	h.logger.Info(reason,
		slog.String("player_id", string(sub.playerID)),
		slog.Duration("connection_duration", h.clock.Now().Sub(sub.connectedAt)),
		slog.Int("total_subscribers", count))
}

// deliver hands msg to every subscriber without blocking. A subscriber whose
// buffer is full is dropped.
func (h *Hub) deliver(msg Message) {
	h.mu.RLock()
	var slow []*Subscription
	for sub := range h.subscribers {
		select {
		case sub.send <- msg:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		h.remove(sub, "subscriber dropped - buffer full")
	}
}

// Register adds a subscriber. If the hub has stopped the subscription is closed immediately.
func (h *Hub) Register(sub *Subscription) {
	select {
	case h.register <- sub:
	case <-h.done:
		close(sub.send)
	}
}

// Unregister removes a subscriber
func (h *Hub) Unregister(sub *Subscription) {
	select {
	case h.unregister <- sub:
	case <-h.done:
	}
}

// Broadcast queues a message for delivery. It never blocks; when the hub is
// backed up the message is dropped.
func (h *Hub) Broadcast(msg Message) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast dropped - hub buffer full",
			slog.String("event_type", string(msg.Event.Type)))
	}
}

// Close shuts down the hub and closes every subscription
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// SubscriberCount returns the number of connected subscribers
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
