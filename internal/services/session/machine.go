package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"

	"github.com/mcoot/typerace-go/internal/dependencies/clock"
	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/services/progress"
)

// PromptSource supplies the race text when a round starts
type PromptSource interface {
	Draw(ctx context.Context, total int) ([]model.Prompt, error)
}

// Publisher fans session events out to subscribers. Publish is called in
// commit order and must not block or call back into the Machine.
type Publisher interface {
	Publish(id model.SessionID, event model.Event)
}

// ResultRecorder persists the outcome of a finished session
type ResultRecorder interface {
	RecordResult(ctx context.Context, result *model.GameResult) error
}

// Deps are the collaborators a Machine needs
type Deps struct {
	Prompts   PromptSource
	Publisher Publisher
	Recorder  ResultRecorder
	Tracker   *progress.Tracker
	Clock     clock.Clock
	Logger    *slog.Logger

	// OnFinish is called once per session after it finishes, outside the lock
	OnFinish func(view *model.Session)
}

// Machine owns the lifecycle of one session. Every mutation runs under mu;
// readers use the snapshot in view and never block writers.
type Machine struct {
	id model.SessionID

	mu    sync.Mutex
	state *model.Session
	timer clockwork.Timer

	view atomic.Pointer[model.Session]

	// pubMu orders event publication without holding mu
	pubMu sync.Mutex

	// saveMu serializes result persistence so a result is recorded once
	saveMu sync.Mutex

	deps   Deps
	logger *slog.Logger
}

// New creates a pending session
func New(id model.SessionID, cfg model.SessionConfig, deps Deps) *Machine {
	if deps.Tracker == nil {
		deps.Tracker = progress.New()
	}
	m := &Machine{
		id:    id,
		state: &model.Session{
			ID:        id,
			Status:    model.StatusPending,
			Config:    cfg,
			Members:   []model.Membership{},
			CreatedAt: deps.Clock.Now(),
		},
		deps:   deps,
		logger: deps.Logger.With(slog.String("component", "session"), slog.String("session_id", string(id))),
	}
	m.commit()
	return m
}

// ID returns the session identifier
func (m *Machine) ID() model.SessionID {
	return m.id
}

// View returns the latest committed snapshot. It is shared and must not be modified.
func (m *Machine) View() *model.Session {
	return m.view.Load()
}

// Standings returns final standings once finished, live standings otherwise
func (m *Machine) Standings() []model.Standing {
	view := m.View()
	if view.Status == model.StatusFinished {
		return view.Standings
	}
	return m.deps.Tracker.Standings(view)
}

// commit publishes a deep copy of the working state to readers. Callers hold mu.
func (m *Machine) commit() *model.Session {
	snap := m.state.Clone()
	m.view.Store(snap)
	return snap
}

func (m *Machine) fail(op string, playerID model.PlayerID, err error) error {
	return &model.SessionError{Op: op, SessionID: m.id, PlayerID: playerID, Err: err}
}

func (m *Machine) event(t model.EventType, playerID model.PlayerID, payload any) model.Event {
	return model.Event{
		Type:      t,
		Timestamp: m.deps.Clock.Now(),
		SessionID: m.id,
		PlayerID:  playerID,
		Payload:   payload,
	}
}

// handoff releases mu while holding pubMu, so events reach the publisher in
// commit order. Callers must follow with publish.
func (m *Machine) handoff() {
	m.pubMu.Lock()
	m.mu.Unlock()
}

func (m *Machine) publish(events ...model.Event) {
	defer m.pubMu.Unlock()
	if m.deps.Publisher == nil {
		return
	}
	for _, ev := range events {
		m.deps.Publisher.Publish(ev.SessionID, ev)
	}
}

// Join adds a player to a pending session. Status, duplicate membership and
// capacity are checked together with the insert.
func (m *Machine) Join(ctx context.Context, player model.PlayerRef) (*model.Session, error) {
	m.mu.Lock()
	switch {
	case m.state.Status != model.StatusPending:
		m.mu.Unlock()
		return nil, m.fail("join", player.ID, model.ErrSessionNotJoinable)
	case m.state.Member(player.ID) != nil:
		m.mu.Unlock()
		return nil, m.fail("join", player.ID, model.ErrDuplicateMember)
	case len(m.state.Members) >= m.state.Config.MaxPlayers:
		m.mu.Unlock()
		return nil, m.fail("join", player.ID, model.ErrSessionFull)
	}

	m.state.Members = append(m.state.Members, model.Membership{
		Player:   player,
		JoinedAt: m.deps.Clock.Now(),
	})
	ev := m.event(model.EventPlayerJoined, player.ID, model.PlayerJoinedPayload{
		Player:      player,
		MemberCount: len(m.state.Members),
		MaxPlayers:  m.state.Config.MaxPlayers,
	})
	snap := m.commit()
	m.handoff()

	m.logger.Info("player joined",
		slog.String("player_id", string(player.ID)),
		slog.Int("member_count", len(snap.Members)),
	)
	m.publish(ev)
	return snap, nil
}

// Leave removes a player before the round starts. If the host leaves, the
// next member to have joined becomes host.
func (m *Machine) Leave(ctx context.Context, playerID model.PlayerID) (*model.Session, error) {
	m.mu.Lock()
	switch m.state.Status {
	case model.StatusActive:
		m.mu.Unlock()
		return nil, m.fail("leave", playerID, model.ErrSessionNotJoinable)
	case model.StatusFinished:
		m.mu.Unlock()
		return nil, m.fail("leave", playerID, model.ErrSessionClosed)
	}

	idx := -1
	for i := range m.state.Members {
		if m.state.Members[i].Player.ID == playerID {
			idx = i
			break
		}
	}
	if idx == -1 {
		m.mu.Unlock()
		return nil, m.fail("leave", playerID, model.ErrNotMember)
	}

	left := m.state.Members[idx].Player
	m.state.Members = append(m.state.Members[:idx], m.state.Members[idx+1:]...)
	ev := m.event(model.EventPlayerLeft, playerID, model.PlayerLeftPayload{
		PlayerID:    playerID,
		DisplayName: left.DisplayName,
		MemberCount: len(m.state.Members),
	})
	snap := m.commit()
	m.handoff()

	m.logger.Info("player left", slog.String("player_id", string(playerID)))
	m.publish(ev)
	return snap, nil
}

// checkStartable reports why the session cannot start. Callers hold mu.
// An empty by means the system is starting the round.
func (m *Machine) checkStartable(by model.PlayerID) error {
	switch m.state.Status {
	case model.StatusFinished:
		return model.ErrSessionClosed
	case model.StatusActive:
		return model.ErrAlreadyStarted
	}
	if by != "" {
		if host := m.state.Host(); host == nil || host.Player.ID != by {
			return model.ErrNotHost
		}
	}
	if len(m.state.Members) < m.state.Config.MinPlayers {
		return model.ErrInsufficientPlayers
	}
	return nil
}

// Start assigns prompts, moves the session to active and arms the round timer.
// Prompts are drawn without holding the lock; the preconditions are checked
// again before the transition is applied.
func (m *Machine) Start(ctx context.Context, by model.PlayerID) (*model.Session, error) {
	m.mu.Lock()
	if err := m.checkStartable(by); err != nil {
		m.mu.Unlock()
		return nil, m.fail("start", by, err)
	}
	count := m.state.Config.PromptCount
	m.mu.Unlock()

	prompts, err := m.deps.Prompts.Draw(ctx, count)
	if err != nil {
		m.logger.Warn("prompt draw failed", slog.String("error", err.Error()))
		return nil, m.fail("start", by, err)
	}

	m.mu.Lock()
	if err := m.checkStartable(by); err != nil {
		m.mu.Unlock()
		return nil, m.fail("start", by, err)
	}
	if !m.state.Status.CanTransitionTo(model.StatusActive) {
		m.mu.Unlock()
		return nil, m.fail("start", by, model.ErrAlreadyStarted)
	}

	now := m.deps.Clock.Now()
	m.state.Status = model.StatusActive
	m.state.Round = 1
	m.state.Prompts = prompts
	m.state.StartedAt = &now
	m.timer = m.deps.Clock.AfterFunc(m.state.Config.TimeLimit, m.onTimeout)

	ev := m.event(model.EventRoundStarted, by, model.RoundStartedPayload{
		Round:        m.state.Round,
		Prompts:      append([]model.Prompt(nil), prompts...),
		TargetLength: m.state.TargetLength(),
		StartedAt:    now,
		EndsAt:       m.state.EndsAt(),
	})
	snap := m.commit()
	m.handoff()

	m.logger.Info("round started",
		slog.Int("member_count", len(snap.Members)),
		slog.Int("prompt_count", len(snap.Prompts)),
		slog.Duration("time_limit", snap.Config.TimeLimit),
	)
	m.publish(ev)
	return snap, nil
}

// SubmitProgress records a player's typing progress and returns live standings.
// When the last member completes the text the session finishes in the same step.
func (m *Machine) SubmitProgress(ctx context.Context, playerID model.PlayerID, snap progress.Snapshot) ([]model.Standing, error) {
	m.mu.Lock()
	switch m.state.Status {
	case model.StatusPending:
		m.mu.Unlock()
		return nil, m.fail("progress", playerID, model.ErrRoundNotStarted)
	case model.StatusFinished:
		m.mu.Unlock()
		return nil, m.fail("progress", playerID, model.ErrSessionClosed)
	}

	// The deadline passed before the timer callback ran
	if deadline := m.state.EndsAt(); snap.At.After(deadline) && !m.deps.Clock.Now().Before(deadline) {
		ev := m.finishLocked(model.FinishTimeout)
		view := m.commit()
		m.handoff()

		m.publish(ev)
		if err := m.afterFinish(ctx, view); err != nil {
			return nil, m.fail("progress", playerID, errors.Join(model.ErrSessionClosed, err))
		}
		return nil, m.fail("progress", playerID, model.ErrSessionClosed)
	}

	if _, err := m.deps.Tracker.Update(m.state, playerID, snap); err != nil {
		m.mu.Unlock()
		return nil, m.fail("progress", playerID, err)
	}

	standings := m.deps.Tracker.Standings(m.state)
	events := []model.Event{m.event(model.EventProgressUpdated, playerID, model.ProgressUpdatedPayload{
		PlayerID:  playerID,
		Standings: standings,
	})}

	finished := m.state.AllFinished()
	if finished {
		events = append(events, m.finishLocked(model.FinishCompleted))
		standings = m.state.Standings
	}
	view := m.commit()
	m.handoff()

	m.publish(events...)
	if finished {
		if err := m.afterFinish(ctx, view); err != nil {
			return standings, m.fail("progress", playerID, err)
		}
	}
	return standings, nil
}

// Finish ends an active round early. An empty by means the system is finishing it.
func (m *Machine) Finish(ctx context.Context, by model.PlayerID, reason model.FinishReason) (*model.Session, error) {
	m.mu.Lock()
	switch m.state.Status {
	case model.StatusPending:
		m.mu.Unlock()
		return nil, m.fail("finish", by, model.ErrRoundNotStarted)
	case model.StatusFinished:
		m.mu.Unlock()
		return nil, m.fail("finish", by, model.ErrSessionClosed)
	}
	if by != "" {
		if host := m.state.Host(); host == nil || host.Player.ID != by {
			m.mu.Unlock()
			return nil, m.fail("finish", by, model.ErrNotHost)
		}
	}

	ev := m.finishLocked(reason)
	view := m.commit()
	m.handoff()

	m.publish(ev)
	if err := m.afterFinish(ctx, view); err != nil {
		return view, m.fail("finish", by, err)
	}
	return m.View(), nil
}

// finishLocked computes final standings and moves the session to finished.
// Callers hold mu and have checked the session is active.
func (m *Machine) finishLocked(reason model.FinishReason) model.Event {
	now := m.deps.Clock.Now()
	final := m.deps.Tracker.FinalStandings(m.state)

	m.state.Status = model.StatusFinished
	m.state.FinishedAt = &now
	m.state.FinishReason = reason
	m.state.Standings = final
	m.state.WinnerID = progress.Winner(final)
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}

	return m.event(model.EventRoundFinished, "", model.RoundFinishedPayload{
		Standings: final,
		WinnerID:  m.state.WinnerID,
		Reason:    reason,
	})
}

func (m *Machine) onTimeout() {
	_, err := m.Finish(context.Background(), "", model.FinishTimeout)
	if err != nil && !errors.Is(err, model.ErrSessionClosed) {
		m.logger.Error("timeout finish failed", slog.String("error", err.Error()))
	}
}

func (m *Machine) afterFinish(ctx context.Context, view *model.Session) error {
	m.logger.Info("round finished",
		slog.String("reason", string(view.FinishReason)),
		slog.String("winner_id", string(view.WinnerID)),
	)
	err := m.SaveResult(ctx)
	if m.deps.OnFinish != nil {
		m.deps.OnFinish(m.View())
	}
	return err
}

// SaveResult persists the result of a finished session if it has not been
// saved yet. It is safe to call repeatedly.
func (m *Machine) SaveResult(ctx context.Context) error {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	view := m.View()
	if view.Status != model.StatusFinished || view.ResultSaved {
		return nil
	}

	if m.deps.Recorder != nil {
		result := model.NewGameResult(view, view.Standings)
		if err := m.deps.Recorder.RecordResult(ctx, result); err != nil {
			m.logger.Error("failed to save game result", slog.String("error", err.Error()))
			return err
		}
	}

	m.mu.Lock()
	m.state.ResultSaved = true
	m.commit()
	m.mu.Unlock()
	return nil
}

// Close stops the round timer without finishing the session
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
