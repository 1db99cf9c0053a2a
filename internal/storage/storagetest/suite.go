// Package storagetest holds the behavior every storage backend must share.
package storagetest

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/storage"
)

// ContractSuite runs the storage contract against a backend.
// Backends embed it and assign Storage in their SetupTest.
type ContractSuite struct {
	suite.Suite
	Storage storage.Storage
	Ctx     context.Context
}

var created = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func (s *ContractSuite) player(id, name string) *model.Player {
	return &model.Player{ID: model.PlayerID(id), DisplayName: name, CreatedAt: created}
}

// Player tests

func (s *ContractSuite) TestSaveAndGetPlayer() {
	s.Require().NoError(s.Storage.SavePlayer(s.Ctx, s.player("player-1", "Alice")))

	retrieved, err := s.Storage.GetPlayer(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("player-1"), retrieved.ID)
	s.Equal("Alice", retrieved.DisplayName)
	s.True(created.Equal(retrieved.CreatedAt))
}

func (s *ContractSuite) TestGetPlayerNotFound() {
	_, err := s.Storage.GetPlayer(s.Ctx, "nonexistent")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *ContractSuite) TestSavePlayerDuplicateID() {
	s.Require().NoError(s.Storage.SavePlayer(s.Ctx, s.player("player-1", "Alice")))

	err := s.Storage.SavePlayer(s.Ctx, s.player("player-1", "Bob"))
	s.ErrorIs(err, model.ErrDuplicatePlayer)
}

func (s *ContractSuite) TestSavePlayerDuplicateNameIgnoresCase() {
	s.Require().NoError(s.Storage.SavePlayer(s.Ctx, s.player("player-1", "Alice")))

	err := s.Storage.SavePlayer(s.Ctx, s.player("player-2", "ALICE"))
	s.ErrorIs(err, model.ErrDuplicatePlayer)

	_, err = s.Storage.GetPlayer(s.Ctx, "player-2")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *ContractSuite) TestUpdatePlayerStats() {
	p := s.player("player-1", "Alice")
	s.Require().NoError(s.Storage.SavePlayer(s.Ctx, p))

	p.Stats.Apply(72.5, true)
	s.Require().NoError(s.Storage.UpdatePlayer(s.Ctx, p))

	retrieved, err := s.Storage.GetPlayer(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(1, retrieved.Stats.GamesPlayed)
	s.Equal(1, retrieved.Stats.GamesWon)
	s.InDelta(72.5, retrieved.Stats.BestWPM, 0.001)
}

func (s *ContractSuite) TestUpdatePlayerNotFound() {
	err := s.Storage.UpdatePlayer(s.Ctx, s.player("ghost", "Ghost"))
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *ContractSuite) TestListPlayers() {
	s.Require().NoError(s.Storage.SavePlayer(s.Ctx, s.player("b", "Bob")))
	s.Require().NoError(s.Storage.SavePlayer(s.Ctx, s.player("a", "Alice")))

	players, err := s.Storage.ListPlayers(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(players, 2)
	s.Equal(model.PlayerID("a"), players[0].ID)
	s.Equal(model.PlayerID("b"), players[1].ID)
}

// Prompt tests

func (s *ContractSuite) TestLoadPromptPoolFiltersInactive() {
	s.Require().NoError(s.Storage.SavePrompts(s.Ctx, []model.Prompt{
		{ID: "e1", Tier: model.TierEasy, Text: "the cat sat", Language: "en", Active: true},
		{ID: "h1", Tier: model.TierHard, Text: "quixotic zephyrs", Language: "en", Active: false},
	}))

	active, err := s.Storage.LoadPromptPool(s.Ctx, true)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal("e1", active[0].ID)
	s.Equal(model.TierEasy, active[0].Tier)

	all, err := s.Storage.LoadPromptPool(s.Ctx, false)
	s.Require().NoError(err)
	s.Len(all, 2)
}

func (s *ContractSuite) TestSavePromptsUpserts() {
	s.Require().NoError(s.Storage.SavePrompts(s.Ctx, []model.Prompt{
		{ID: "e1", Tier: model.TierEasy, Text: "old", Language: "en", Active: true},
	}))
	s.Require().NoError(s.Storage.SavePrompts(s.Ctx, []model.Prompt{
		{ID: "e1", Tier: model.TierMedium, Text: "new", Language: "en", Active: true},
	}))

	pool, err := s.Storage.LoadPromptPool(s.Ctx, false)
	s.Require().NoError(err)
	s.Require().Len(pool, 1)
	s.Equal("new", pool[0].Text)
	s.Equal(model.TierMedium, pool[0].Tier)
}

func (s *ContractSuite) TestLoadPromptPoolEmpty() {
	pool, err := s.Storage.LoadPromptPool(s.Ctx, true)
	s.Require().NoError(err)
	s.Empty(pool)
}

// Result tests

func (s *ContractSuite) TestSaveAndGetGameResult() {
	finished := created.Add(time.Minute)
	result := &model.GameResult{
		SessionID: "ABC123",
		WinnerID:  "a",
		Reason:    model.FinishCompleted,
		PromptIDs: []string{"e1", "m1"},
		Standings: []model.Standing{
			{PlayerID: "a", DisplayName: "Alice", Rank: 1, WPM: 80, Accuracy: 1, Finished: true, FinishedAt: &finished},
			{PlayerID: "b", DisplayName: "Bob", Rank: 2, WPM: 40, Accuracy: 0.9},
		},
		StartedAt:  created,
		FinishedAt: finished,
	}
	s.Require().NoError(s.Storage.SaveGameResult(s.Ctx, result))

	retrieved, err := s.Storage.GetGameResult(s.Ctx, "ABC123")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("a"), retrieved.WinnerID)
	s.Equal(model.FinishCompleted, retrieved.Reason)
	s.Equal([]string{"e1", "m1"}, retrieved.PromptIDs)
	s.Require().Len(retrieved.Standings, 2)
	s.Equal(1, retrieved.Standings[0].Rank)
	s.True(finished.Equal(retrieved.FinishedAt))
}

func (s *ContractSuite) TestGetGameResultNotFound() {
	_, err := s.Storage.GetGameResult(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrResultNotFound)
	s.ErrorIs(err, model.ErrNotFound)
}
