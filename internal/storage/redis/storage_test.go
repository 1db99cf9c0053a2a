package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/storage/storagetest"
)

type StorageSuite struct {
	storagetest.ContractSuite
	mini    *miniredis.Miniredis
	storage *Storage
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	client := redis.NewClient(&redis.Options{
		Addr: s.mini.Addr(),
	})

	cfg := DefaultConfig()
	cfg.ResultTTL = time.Hour

	s.storage = NewWithClient(client, cfg)
	s.Storage = s.storage
	s.Ctx = context.Background()
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

func (s *StorageSuite) TestGameResultHasTTL() {
	err := s.storage.SaveGameResult(s.Ctx, &model.GameResult{SessionID: "ABC123"})
	s.Require().NoError(err)

	ttl := s.mini.TTL(resultKey("ABC123"))
	s.Equal(time.Hour, ttl)
}

func (s *StorageSuite) TestPlayersHaveNoTTL() {
	err := s.storage.SavePlayer(s.Ctx, &model.Player{ID: "p1", DisplayName: "Alice"})
	s.Require().NoError(err)

	s.Equal(time.Duration(0), s.mini.TTL(playerKey("p1")))
	s.True(s.mini.Exists(playerNameIndexKey("alice")))
}

func (s *StorageSuite) TestDuplicateIDReleasesNameClaim() {
	s.Require().NoError(s.storage.SavePlayer(s.Ctx, &model.Player{ID: "p1", DisplayName: "Alice"}))

	err := s.storage.SavePlayer(s.Ctx, &model.Player{ID: "p1", DisplayName: "Bob"})
	s.ErrorIs(err, model.ErrDuplicatePlayer)
	s.False(s.mini.Exists(playerNameIndexKey("Bob")))
}

func (s *StorageSuite) TestBackendFailureIsUnavailable() {
	s.mini.Close()

	_, err := s.storage.LoadPromptPool(s.Ctx, true)
	s.ErrorIs(err, model.ErrStorageUnavailable)

	err = s.storage.SaveGameResult(s.Ctx, &model.GameResult{SessionID: "ABC123"})
	s.ErrorIs(err, model.ErrStorageUnavailable)
}
