package bot_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/typerace-go/internal/broadcast"
	"github.com/mcoot/typerace-go/internal/dependencies/mocks"
	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/services/bot"
	"github.com/mcoot/typerace-go/internal/services/player"
	"github.com/mcoot/typerace-go/internal/services/registry"
	"github.com/mcoot/typerace-go/internal/services/session"
	"github.com/mcoot/typerace-go/internal/storage/memory"
	"github.com/mcoot/typerace-go/internal/testutil"
)

// fivePerPrompt hands out prompts of five characters each
type fivePerPrompt struct{}

func (fivePerPrompt) Draw(ctx context.Context, total int) ([]model.Prompt, error) {
	prompts := make([]model.Prompt, total)
	for i := range prompts {
		prompts[i] = model.Prompt{ID: fmt.Sprintf("p%d", i), Text: "abcde", Active: true}
	}
	return prompts, nil
}

type ServiceSuite struct {
	suite.Suite
	store      *memory.Storage
	clock      *clockwork.FakeClock
	mockRandom *mocks.MockRandom
	gateway    *broadcast.Gateway
	players    *player.Service
	registry   *registry.Registry
	botService *bot.Service
	host       *model.Player
	ctx        context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = memory.New()
	s.clock = mocks.NewFakeClock()
	s.mockRandom = mocks.NewMockRandom()
	s.ctx = context.Background()
	logger := testutil.NopLogger()

	s.gateway = broadcast.New(broadcast.DefaultConfig(), s.clock, logger)
	s.players = player.New(s.store, s.clock, logger)
	s.registry = registry.New(registry.Config{
		Defaults: model.DefaultSessionConfig(),
		OnRemove: s.gateway.RemoveHub,
	}, session.Deps{
		Prompts:   fivePerPrompt{},
		Publisher: s.gateway,
		Recorder:  s.players,
		Clock:     s.clock,
		Logger:    logger,
	}, s.mockRandom)
	s.botService = bot.NewService(s.players, s.registry, s.gateway, s.clock, s.mockRandom, time.Second, logger)

	host, err := s.players.CreatePlayer(s.ctx, "Host")
	s.Require().NoError(err)
	s.host = host
}

func (s *ServiceSuite) TearDownTest() {
	s.botService.Close()
	s.gateway.Close()
}

func (s *ServiceSuite) hostedSession() *session.Machine {
	m, err := s.registry.Create(s.ctx, model.SessionConfig{})
	s.Require().NoError(err)
	_, err = s.registry.Join(s.ctx, m.ID(), s.host.Ref())
	s.Require().NoError(err)
	return m
}

// waitForTimers blocks until the fake clock has n pending timers
func (s *ServiceSuite) waitForTimers(n int) {
	ctx, cancel := context.WithTimeout(s.ctx, time.Second)
	defer cancel()
	s.Require().NoError(s.clock.BlockUntilContext(ctx, n))
}

func (s *ServiceSuite) TestAddBotJoinsSession() {
	m := s.hostedSession()

	b, err := s.botService.AddBot(s.ctx, m.ID(), s.host.ID, bot.Options{Name: "Speedy", Pace: bot.Pace{WPM: 60}})
	s.Require().NoError(err)

	s.True(b.IsBot)
	s.Equal("Speedy", b.DisplayName)
	member := m.View().Member(b.ID)
	s.Require().NotNil(member)
	s.True(member.Player.IsBot)
	s.Equal(1, s.botService.Active())
}

func (s *ServiceSuite) TestAddBotDefaultName() {
	m := s.hostedSession()
	s.mockRandom.QueueString("K7QZ")

	b, err := s.botService.AddBot(s.ctx, m.ID(), s.host.ID, bot.Options{Pace: bot.Pace{WPM: 60}})
	s.Require().NoError(err)
	s.Equal("Bot K7QZ", b.DisplayName)
}

func (s *ServiceSuite) TestAddBotRequiresHost() {
	m := s.hostedSession()
	guest, err := s.players.CreatePlayer(s.ctx, "Guest")
	s.Require().NoError(err)
	_, err = s.registry.Join(s.ctx, m.ID(), guest.Ref())
	s.Require().NoError(err)

	_, err = s.botService.AddBot(s.ctx, m.ID(), guest.ID, bot.Options{Pace: bot.Pace{WPM: 60}})
	s.ErrorIs(err, model.ErrNotHost)
}

func (s *ServiceSuite) TestAddBotRejectsBadInput() {
	m := s.hostedSession()

	_, err := s.botService.AddBot(s.ctx, m.ID(), s.host.ID, bot.Options{Pace: bot.Pace{WPM: 0}})
	s.ErrorIs(err, model.ErrValidation)

	_, err = s.botService.AddBot(s.ctx, m.ID(), s.host.ID, bot.Options{Strategy: "cheating", Pace: bot.Pace{WPM: 60}})
	s.ErrorIs(err, model.ErrValidation)

	_, err = s.botService.AddBot(s.ctx, "NOPE00", s.host.ID, bot.Options{Pace: bot.Pace{WPM: 60}})
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *ServiceSuite) TestAddBotOnlyWhilePending() {
	m := s.hostedSession()
	_, err := s.botService.AddBot(s.ctx, m.ID(), s.host.ID, bot.Options{Pace: bot.Pace{WPM: 60}})
	s.Require().NoError(err)
	_, err = m.Start(s.ctx, s.host.ID)
	s.Require().NoError(err)

	_, err = s.botService.AddBot(s.ctx, m.ID(), s.host.ID, bot.Options{Pace: bot.Pace{WPM: 60}})
	s.ErrorIs(err, model.ErrSessionNotJoinable)
}

func (s *ServiceSuite) TestBotTypesAtPace() {
	m := s.hostedSession()
	// 60 WPM is five characters a second; the 20 character race takes four ticks
	b, err := s.botService.AddBot(s.ctx, m.ID(), s.host.ID, bot.Options{Pace: bot.Pace{WPM: 60, Accuracy: 1}})
	s.Require().NoError(err)

	_, err = m.Start(s.ctx, s.host.ID)
	s.Require().NoError(err)

	for tick := 1; tick <= 4; tick++ {
		// Round timer plus the bot's next tick
		s.waitForTimers(2)
		s.clock.Advance(time.Second)

		want := tick * 5
		s.Eventually(func() bool {
			return m.View().Member(b.ID).Progress.CharsCorrect == want
		}, time.Second, 5*time.Millisecond, "tick %d", tick)
	}

	member := m.View().Member(b.ID)
	s.True(member.Progress.Finished())
	s.Equal(model.StatusActive, m.View().Status, "the host is still typing")
	s.Eventually(func() bool { return s.botService.Active() == 0 }, time.Second, 5*time.Millisecond)

	standings := m.Standings()
	s.Equal(b.ID, standings[0].PlayerID)
	s.InDelta(60, standings[0].WPM, 0.001)
}

func (s *ServiceSuite) TestBotStopsWhenRoundEnds() {
	m := s.hostedSession()
	_, err := s.botService.AddBot(s.ctx, m.ID(), s.host.ID, bot.Options{Pace: bot.Pace{WPM: 30}})
	s.Require().NoError(err)

	_, err = m.Start(s.ctx, s.host.ID)
	s.Require().NoError(err)
	s.waitForTimers(2)

	_, err = m.Finish(s.ctx, s.host.ID, model.FinishHost)
	s.Require().NoError(err)

	s.Eventually(func() bool { return s.botService.Active() == 0 }, time.Second, 5*time.Millisecond)

	// The bot never counts towards stats
	result, err := s.players.GetResult(s.ctx, m.ID())
	s.Require().NoError(err)
	s.Len(result.Standings, 2)
	host, err := s.players.GetPlayer(s.ctx, s.host.ID)
	s.Require().NoError(err)
	s.Equal(1, host.Stats.GamesPlayed)
}
