package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcoot/typerace-go/internal/broadcast"
	"github.com/mcoot/typerace-go/internal/dependencies/clock"
	"github.com/mcoot/typerace-go/internal/dependencies/random"
	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/services/progress"
	"github.com/mcoot/typerace-go/internal/services/registry"
	"github.com/mcoot/typerace-go/internal/services/session"
)

const (
	// MaxWPM is the fastest pace a bot may be given
	MaxWPM = 300
	// DefaultTick is the interval between bot progress reports
	DefaultTick = time.Second

	nameSuffixAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	nameSuffixLength   = 4
)

// Creator registers bot players
type Creator interface {
	CreateBot(ctx context.Context, displayName string) (*model.Player, error)
}

// Options describe a bot to add to a session
type Options struct {
	Name     string
	Strategy string
	Pace     Pace
}

// Service adds pace bots to sessions and drives their progress during a round
type Service struct {
	players  Creator
	registry *registry.Registry
	gateway  *broadcast.Gateway
	clock    clock.Clock
	random   random.Random
	tick     time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	runners map[model.PlayerID]*runner
}

// NewService creates a new bot Service
func NewService(
	players Creator,
	reg *registry.Registry,
	gateway *broadcast.Gateway,
	clk clock.Clock,
	rnd random.Random,
	tick time.Duration,
	logger *slog.Logger,
) *Service {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Service{
		players:  players,
		registry: reg,
		gateway:  gateway,
		clock:    clk,
		random:   rnd,
		tick:     tick,
		logger:   logger.With(slog.String("component", "bot-service")),
		runners:  make(map[model.PlayerID]*runner),
	}
}

func (s *Service) strategyFor(opts Options) (Strategy, error) {
	switch opts.Strategy {
	case "", StrategySteady:
		return NewSteadyStrategy(opts.Pace), nil
	case StrategyErratic:
		return NewErraticStrategy(opts.Pace, s.random), nil
	}
	return nil, model.Invalidf("unknown bot strategy %q", opts.Strategy)
}

// AddBot creates a bot player and joins it to a pending session.
// Only the session host can add bots.
func (s *Service) AddBot(ctx context.Context, id model.SessionID, requester model.PlayerID, opts Options) (*model.Player, error) {
	if opts.Pace.Accuracy == 0 {
		opts.Pace.Accuracy = 1
	}
	if err := opts.Pace.Validate(); err != nil {
		return nil, err
	}
	strategy, err := s.strategyFor(opts)
	if err != nil {
		return nil, err
	}

	m, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	view := m.View()
	if host := view.Host(); host == nil || host.Player.ID != requester {
		return nil, &model.SessionError{Op: "add bot", SessionID: id, PlayerID: requester, Err: model.ErrNotHost}
	}
	if view.Status != model.StatusPending {
		return nil, &model.SessionError{Op: "add bot", SessionID: id, PlayerID: requester, Err: model.ErrSessionNotJoinable}
	}

	name := opts.Name
	if name == "" {
		name = fmt.Sprintf("Bot %s", s.random.String(nameSuffixLength, nameSuffixAlphabet))
	}
	bot, err := s.players.CreateBot(ctx, name)
	if err != nil {
		return nil, err
	}

	// Subscribe before joining so the round start cannot be missed
	sub := s.gateway.Subscribe(id, bot.ID)
	if _, err := s.registry.Join(ctx, id, bot.Ref()); err != nil {
		s.gateway.Unsubscribe(sub)
		return nil, err
	}

	r := &runner{
		service:  s,
		machine:  m,
		botID:    bot.ID,
		strategy: strategy,
		logger: s.logger.With(
			slog.String("session_id", string(id)),
			slog.String("bot_id", string(bot.ID)),
		),
	}
	s.mu.Lock()
	s.runners[bot.ID] = r
	s.mu.Unlock()
	go r.run(sub)

	s.logger.Info("bot added to session",
		slog.String("session_id", string(id)),
		slog.String("bot_id", string(bot.ID)),
		slog.String("bot_name", bot.DisplayName),
		slog.Float64("wpm", opts.Pace.WPM),
	)
	return bot, nil
}

// Active returns the number of bots still following a session
func (s *Service) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runners)
}

// Close stops every bot
func (s *Service) Close() {
	s.mu.Lock()
	runners := make([]*runner, 0, len(s.runners))
	for _, r := range s.runners {
		runners = append(runners, r)
	}
	s.mu.Unlock()

	for _, r := range runners {
		r.stop()
	}
}

func (s *Service) forget(id model.PlayerID) {
	s.mu.Lock()
	delete(s.runners, id)
	s.mu.Unlock()
}

// runner follows one bot's session and reports its progress on every tick
type runner struct {
	service  *Service
	machine  *session.Machine
	botID    model.PlayerID
	strategy Strategy
	logger   *slog.Logger

	mu        sync.Mutex
	stopped   bool
	timer     clockwork.Timer
	startedAt time.Time
	target    int
}

func (r *runner) run(sub *broadcast.Subscription) {
	defer func() {
		r.stop()
		r.service.gateway.Unsubscribe(sub)
	}()

	for msg := range sub.Messages() {
		switch msg.Event.Type {
		case model.EventRoundStarted:
			payload, ok := msg.Event.Payload.(model.RoundStartedPayload)
			if !ok {
				return
			}
			r.begin(payload.StartedAt, payload.TargetLength)
		case model.EventPlayerLeft:
			if msg.Event.PlayerID == r.botID {
				return
			}
		case model.EventRoundFinished:
			return
		}
	}
}

func (r *runner) begin(startedAt time.Time, target int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped || r.timer != nil {
		return
	}
	r.startedAt = startedAt
	r.target = target
	r.timer = r.service.clock.AfterFunc(r.service.tick, r.step)
}

func (r *runner) step() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	now := r.service.clock.Now()
	typed, correct := r.strategy.Next(now.Sub(r.startedAt), r.target)
	target := r.target
	r.mu.Unlock()

	_, err := r.machine.SubmitProgress(context.Background(), r.botID, progress.Snapshot{
		CharsTyped:   typed,
		CharsCorrect: correct,
		At:           now,
	})
	switch {
	case errors.Is(err, model.ErrStaleUpdate):
		// Retry on the next tick
	case err != nil:
		r.logger.Debug("bot stopped", slog.String("error", err.Error()))
		r.stop()
		return
	case correct >= target:
		r.logger.Debug("bot finished")
		r.stop()
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.stopped {
		r.timer = r.service.clock.AfterFunc(r.service.tick, r.step)
	}
}

func (r *runner) stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	if r.timer != nil {
		r.timer.Stop()
	}
	r.mu.Unlock()
	r.service.forget(r.botID)
}
