package factory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/typerace-go/internal/broadcast"
	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/services/progress"
)

type IntegrationSuite struct {
	suite.Suite
	app *TestApp
	ctx context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	s.ctx = context.Background()
	s.Require().NoError(s.app.LoadTestPrompts(2))
}

func (s *IntegrationSuite) TearDownTest() {
	s.NoError(s.app.Close())
}

func (s *IntegrationSuite) createPlayer(name string) *model.Player {
	p, err := s.app.PlayerService.CreatePlayer(s.ctx, name)
	s.Require().NoError(err)
	return p
}

func (s *IntegrationSuite) at(seconds int) time.Time {
	return s.app.FakeClock.Now().Add(time.Duration(seconds) * time.Second)
}

func (s *IntegrationSuite) next(sub *broadcast.Subscription) model.Event {
	select {
	case msg, ok := <-sub.Messages():
		s.Require().True(ok, "subscription closed")
		return msg.Event
	case <-time.After(time.Second):
		s.FailNow("no event received")
		return model.Event{}
	}
}

// Test: Complete race from session creation to result removal
func (s *IntegrationSuite) TestCompleteRaceFlow() {
	s.app.MockRandom.QueueString("RACE01")

	alice := s.createPlayer("Alice")
	bob := s.createPlayer("Bob")

	// Step 1: Create a session and watch it
	m, err := s.app.Registry.Create(s.ctx, model.SessionConfig{})
	s.Require().NoError(err)
	s.Equal(model.SessionID("RACE01"), m.ID())

	sub := s.app.Gateway.Subscribe(m.ID(), "watcher")
	defer s.app.Gateway.Unsubscribe(sub)

	// Step 2: Both players join
	_, err = s.app.Registry.Join(s.ctx, m.ID(), alice.Ref())
	s.Require().NoError(err)
	_, err = s.app.Registry.Join(s.ctx, m.ID(), bob.Ref())
	s.Require().NoError(err)
	s.Equal(model.EventPlayerJoined, s.next(sub).Type)
	s.Equal(model.EventPlayerJoined, s.next(sub).Type)

	// Step 3: Host starts; four prompts are drawn, one from each tier
	view, err := m.Start(s.ctx, alice.ID)
	s.Require().NoError(err)
	s.Equal(model.StatusActive, view.Status)
	s.Len(view.Prompts, 4)
	tiers := map[model.Tier]int{}
	for _, p := range view.Prompts {
		tiers[p.Tier]++
	}
	for _, tier := range model.Tiers() {
		s.Equal(1, tiers[tier], "tier %s", tier)
	}

	started := s.next(sub)
	s.Equal(model.EventRoundStarted, started.Type)
	target := started.Payload.(model.RoundStartedPayload).TargetLength
	s.Equal(4*len(TestPromptText), target)

	// Step 4: Type. Alice finishes in 30s, Bob in 50s.
	standings, err := m.SubmitProgress(s.ctx, bob.ID, progress.Snapshot{CharsTyped: 20, CharsCorrect: 20, At: s.at(10)})
	s.Require().NoError(err)
	s.Equal(bob.ID, standings[0].PlayerID)

	_, err = m.SubmitProgress(s.ctx, alice.ID, progress.Snapshot{CharsTyped: target + 4, CharsCorrect: target, At: s.at(30)})
	s.Require().NoError(err)
	standings, err = m.SubmitProgress(s.ctx, bob.ID, progress.Snapshot{CharsTyped: target, CharsCorrect: target, At: s.at(50)})
	s.Require().NoError(err)

	s.Equal(model.EventProgressUpdated, s.next(sub).Type)
	s.Equal(model.EventProgressUpdated, s.next(sub).Type)
	s.Equal(model.EventProgressUpdated, s.next(sub).Type)
	finished := s.next(sub)
	s.Require().Equal(model.EventRoundFinished, finished.Type)
	payload := finished.Payload.(model.RoundFinishedPayload)
	s.Equal(alice.ID, payload.WinnerID)
	s.Equal(model.FinishCompleted, payload.Reason)

	// Final standings returned by the completing update
	s.Require().Len(standings, 2)
	s.Equal(alice.ID, standings[0].PlayerID)
	s.Equal(1, standings[0].Rank)
	s.Equal(2, standings[1].Rank)

	// Step 5: Result persisted, stats applied
	result, err := s.app.PlayerService.GetResult(s.ctx, m.ID())
	s.Require().NoError(err)
	s.Equal(alice.ID, result.WinnerID)
	s.Len(result.PromptIDs, 4)

	a, err := s.app.PlayerService.GetPlayer(s.ctx, alice.ID)
	s.Require().NoError(err)
	s.Equal(1, a.Stats.GamesWon)
	s.InDelta(standings[0].WPM, a.Stats.BestWPM, 0.001)

	// Players are free to join another session straight away
	other, err := s.app.Registry.Create(s.ctx, model.SessionConfig{})
	s.Require().NoError(err)
	_, err = s.app.Registry.Join(s.ctx, other.ID(), alice.Ref())
	s.NoError(err)

	// Step 6: The finished session disappears after the grace period
	s.app.FakeClock.Advance(5 * time.Minute)
	s.Eventually(func() bool {
		_, err := s.app.Registry.Get(m.ID())
		return err != nil
	}, time.Second, 5*time.Millisecond)

	_, ok := <-sub.Messages()
	s.False(ok, "removing the session closes its subscriptions")
}

// Test: Timer expiry finishes a race nobody completed
func (s *IntegrationSuite) TestTimeoutFlow() {
	alice := s.createPlayer("Alice")
	bob := s.createPlayer("Bob")

	m, err := s.app.Registry.Create(s.ctx, model.SessionConfig{TimeLimit: 30 * time.Second})
	s.Require().NoError(err)
	_, err = s.app.Registry.Join(s.ctx, m.ID(), alice.Ref())
	s.Require().NoError(err)
	_, err = s.app.Registry.Join(s.ctx, m.ID(), bob.Ref())
	s.Require().NoError(err)
	_, err = m.Start(s.ctx, alice.ID)
	s.Require().NoError(err)

	_, err = m.SubmitProgress(s.ctx, alice.ID, progress.Snapshot{CharsTyped: 12, CharsCorrect: 10, At: s.at(5)})
	s.Require().NoError(err)

	s.app.FakeClock.Advance(30 * time.Second)
	s.Eventually(func() bool { return m.View().Status == model.StatusFinished }, time.Second, 5*time.Millisecond)

	view := m.View()
	s.Equal(model.FinishTimeout, view.FinishReason)
	s.Empty(view.WinnerID)
	s.Eventually(func() bool { return m.View().ResultSaved }, time.Second, 5*time.Millisecond)

	_, err = m.SubmitProgress(s.ctx, bob.ID, progress.Snapshot{CharsTyped: 1, CharsCorrect: 1, At: s.at(31)})
	s.ErrorIs(err, model.ErrSessionClosed)
}

// Test: Not enough prompts keeps the session pending
func (s *IntegrationSuite) TestStartWithTooFewPrompts() {
	alice := s.createPlayer("Alice")
	bob := s.createPlayer("Bob")

	m, err := s.app.Registry.Create(s.ctx, model.SessionConfig{PromptCount: 12})
	s.Require().NoError(err)
	_, _ = s.app.Registry.Join(s.ctx, m.ID(), alice.Ref())
	_, _ = s.app.Registry.Join(s.ctx, m.ID(), bob.Ref())

	_, err = m.Start(s.ctx, alice.ID)
	s.ErrorIs(err, model.ErrInsufficientPrompts)
	s.Equal(model.StatusPending, m.View().Status)
}
