package registry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/typerace-go/internal/dependencies/random"
	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/services/session"
)

const (
	// SessionIDLength is the length of generated session IDs
	SessionIDLength = 6
	// SessionIDAlphabet is the characters used in session IDs (avoid confusing chars)
	SessionIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// DefaultResultGrace is how long a finished session stays queryable
const DefaultResultGrace = 5 * time.Minute

// Config holds registry settings
type Config struct {
	// Defaults fill in session settings a caller leaves at zero
	Defaults model.SessionConfig
	// ResultGrace is the delay between a session finishing and its removal
	ResultGrace time.Duration
	// OnRemove is called after a session leaves the registry
	OnRemove func(id model.SessionID)
}

// indexEntry records which session a player belongs to. An unconfirmed
// entry is a join still in flight.
type indexEntry struct {
	sessionID model.SessionID
	confirmed bool
}

// Registry maps session IDs to live session machines and keeps each player
// in at most one unfinished session. Its lock guards only the maps; work on
// a session is serialized by that session's Machine.
type Registry struct {
	mu       sync.RWMutex
	sessions map[model.SessionID]*session.Machine
	players  map[model.PlayerID]indexEntry

	cfg    Config
	deps   session.Deps
	random random.Random
	logger *slog.Logger
}

// New creates a Registry. deps is the template used for every session machine.
func New(cfg Config, deps session.Deps, rnd random.Random) *Registry {
	if cfg.ResultGrace <= 0 {
		cfg.ResultGrace = DefaultResultGrace
	}
	return &Registry{
		sessions: make(map[model.SessionID]*session.Machine),
		players:  make(map[model.PlayerID]indexEntry),
		cfg:      cfg,
		deps:     deps,
		random:   rnd,
		logger:   deps.Logger.With(slog.String("component", "registry")),
	}
}

// withDefaults fills zero fields of cfg from the registry defaults
func (r *Registry) withDefaults(cfg model.SessionConfig) model.SessionConfig {
	d := r.cfg.Defaults
	if cfg.MaxPlayers == 0 {
		cfg.MaxPlayers = d.MaxPlayers
	}
	if cfg.MinPlayers == 0 {
		cfg.MinPlayers = min(d.MinPlayers, cfg.MaxPlayers)
	}
	if cfg.TimeLimit == 0 {
		cfg.TimeLimit = d.TimeLimit
	}
	if cfg.PromptCount == 0 {
		cfg.PromptCount = d.PromptCount
	}
	return cfg
}

func (r *Registry) newMachine(id model.SessionID, cfg model.SessionConfig) *session.Machine {
	deps := r.deps
	deps.OnFinish = func(view *model.Session) { r.onFinish(view) }
	return session.New(id, cfg, deps)
}

// Create starts a new pending session with a fresh ID
func (r *Registry) Create(ctx context.Context, cfg model.SessionConfig) (*session.Machine, error) {
	cfg = r.withDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	var id model.SessionID
	for {
		id = model.SessionID(r.random.String(SessionIDLength, SessionIDAlphabet))
		if _, exists := r.sessions[id]; !exists {
			break
		}
	}
	m := r.newMachine(id, cfg)
	r.sessions[id] = m
	r.mu.Unlock()

	r.logger.Info("session created",
		slog.String("session_id", string(id)),
		slog.Int("max_players", cfg.MaxPlayers),
		slog.Duration("time_limit", cfg.TimeLimit),
	)
	return m, nil
}

// GetOrCreate returns the session with the given ID, creating it if needed.
// It reports whether the session was created.
func (r *Registry) GetOrCreate(ctx context.Context, id model.SessionID, cfg model.SessionConfig) (*session.Machine, bool, error) {
	if id == "" {
		return nil, false, model.Invalidf("session id is required")
	}
	if m, err := r.Get(id); err == nil {
		return m, false, nil
	}

	cfg = r.withDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.sessions[id]; ok {
		return m, false, nil
	}
	m := r.newMachine(id, cfg)
	r.sessions[id] = m
	return m, true, nil
}

// Get returns the live session with the given ID
func (r *Registry) Get(id model.SessionID) (*session.Machine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.sessions[id]
	if !ok {
		return nil, &model.SessionError{Op: "get", SessionID: id, Err: model.ErrSessionNotFound}
	}
	return m, nil
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Remove drops a session and any player index entries pointing at it
func (r *Registry) Remove(id model.SessionID) {
	r.mu.Lock()
	m, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
		for pid, entry := range r.players {
			if entry.sessionID == id {
				delete(r.players, pid)
			}
		}
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	m.Close()
	if r.cfg.OnRemove != nil {
		r.cfg.OnRemove(id)
	}
	r.logger.Info("session removed", slog.String("session_id", string(id)))
}

// holdsPlayer reports whether entry still ties its player to an unfinished
// session. Callers hold mu.
func (r *Registry) holdsPlayer(pid model.PlayerID, entry indexEntry) bool {
	if !entry.confirmed {
		return true
	}
	m, ok := r.sessions[entry.sessionID]
	if !ok {
		return false
	}
	view := m.View()
	return view.Status != model.StatusFinished && view.Member(pid) != nil
}

// Join adds the player to a session, refusing if they are still in another
// unfinished session
func (r *Registry) Join(ctx context.Context, id model.SessionID, player model.PlayerRef) (*model.Session, error) {
	m, err := r.Get(id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	prev, hadPrev := r.players[player.ID]
	if hadPrev && prev.sessionID != id && r.holdsPlayer(player.ID, prev) {
		r.mu.Unlock()
		return nil, &model.SessionError{Op: "join", SessionID: id, PlayerID: player.ID, Err: model.ErrAlreadyInSession}
	}
	r.players[player.ID] = indexEntry{sessionID: id}
	r.mu.Unlock()

	view, err := m.Join(ctx, player)

	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.players[player.ID]; ok && entry.sessionID == id {
		switch {
		case err == nil || errors.Is(err, model.ErrDuplicateMember) || m.View().Member(player.ID) != nil:
			// A refused re-join of a live session still holds the player there
			r.players[player.ID] = indexEntry{sessionID: id, confirmed: true}
		case hadPrev:
			r.players[player.ID] = prev
		default:
			delete(r.players, player.ID)
		}
	}
	return view, err
}

// Leave removes the player from a pending session
func (r *Registry) Leave(ctx context.Context, id model.SessionID, playerID model.PlayerID) (*model.Session, error) {
	m, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	view, err := m.Leave(ctx, playerID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if entry, ok := r.players[playerID]; ok && entry.sessionID == id {
		delete(r.players, playerID)
	}
	r.mu.Unlock()
	return view, nil
}

// SessionFor returns the unfinished session the player belongs to, if any
func (r *Registry) SessionFor(playerID model.PlayerID) (model.SessionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.players[playerID]
	if !ok || !entry.confirmed || !r.holdsPlayer(playerID, entry) {
		return "", false
	}
	return entry.sessionID, true
}

// onFinish releases the session's players and schedules its removal
func (r *Registry) onFinish(view *model.Session) {
	r.mu.Lock()
	for _, member := range view.Members {
		if entry, ok := r.players[member.Player.ID]; ok && entry.sessionID == view.ID {
			delete(r.players, member.Player.ID)
		}
	}
	r.mu.Unlock()

	r.scheduleRemoval(view.ID)
}

func (r *Registry) scheduleRemoval(id model.SessionID) {
	r.deps.Clock.AfterFunc(r.cfg.ResultGrace, func() { r.expire(id) })
}

// expire removes a finished session once its result is safely stored,
// otherwise it tries again after another grace period
func (r *Registry) expire(id model.SessionID) {
	m, err := r.Get(id)
	if err != nil {
		return
	}
	if err := m.SaveResult(context.Background()); err != nil {
		r.logger.Warn("result still unsaved, keeping session",
			slog.String("session_id", string(id)),
			slog.String("error", err.Error()),
		)
		r.scheduleRemoval(id)
		return
	}
	r.Remove(id)
}
