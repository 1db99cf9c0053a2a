package player

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mcoot/typerace-go/internal/dependencies/clock"
	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/storage"
)

// MaxDisplayNameLength is the longest display name accepted, in characters
const MaxDisplayNameLength = 32

// LeaderboardSort selects the leaderboard ordering
type LeaderboardSort string

const (
	SortBestWPM     LeaderboardSort = "best_wpm"
	SortGamesPlayed LeaderboardSort = "games_played"
	SortGamesWon    LeaderboardSort = "games_won"
)

// DefaultLeaderboardLimit is used when no limit is requested
const DefaultLeaderboardLimit = 10

// ParseLeaderboardSort converts a query value to a LeaderboardSort. Empty means best WPM.
func ParseLeaderboardSort(s string) (LeaderboardSort, error) {
	switch LeaderboardSort(s) {
	case "":
		return SortBestWPM, nil
	case SortBestWPM, SortGamesPlayed, SortGamesWon:
		return LeaderboardSort(s), nil
	}
	return "", model.Invalidf("unknown leaderboard sort %q", s)
}

// Service manages player profiles and their race statistics
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	logger  *slog.Logger

	// statsMu serializes read-modify-write of player stats
	statsMu sync.Mutex
}

// New creates a new player service
func New(storage storage.Storage, clock clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		storage: storage,
		clock:   clock,
		logger:  logger.With(slog.String("component", "player")),
	}
}

func normalizeName(displayName string) (string, error) {
	name := strings.Join(strings.Fields(displayName), " ")
	if name == "" {
		return "", model.Invalidf("display name is required")
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return "", model.Invalidf("display name must be at most %d characters", MaxDisplayNameLength)
	}
	return name, nil
}

// CreatePlayer registers a new human player
func (s *Service) CreatePlayer(ctx context.Context, displayName string) (*model.Player, error) {
	return s.create(ctx, displayName, false)
}

// CreateBot registers a server-driven player
func (s *Service) CreateBot(ctx context.Context, displayName string) (*model.Player, error) {
	return s.create(ctx, displayName, true)
}

func (s *Service) create(ctx context.Context, displayName string, isBot bool) (*model.Player, error) {
	name, err := normalizeName(displayName)
	if err != nil {
		return nil, err
	}

	player := &model.Player{
		ID:          model.PlayerID(uuid.NewString()),
		DisplayName: name,
		IsBot:       isBot,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.storage.SavePlayer(ctx, player); err != nil {
		return nil, err
	}

	s.logger.Info("player created",
		slog.String("player_id", string(player.ID)),
		slog.String("display_name", name),
		slog.Bool("bot", isBot),
	)
	return player, nil
}

// GetPlayer returns the player with the given ID
func (s *Service) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	if id == "" {
		return nil, model.ErrPlayerNotFound
	}
	return s.storage.GetPlayer(ctx, id)
}

// Leaderboard returns human players ordered by the requested stat
func (s *Service) Leaderboard(ctx context.Context, by LeaderboardSort, limit int) ([]*model.Player, error) {
	if limit < 0 {
		return nil, model.Invalidf("limit must not be negative, got %d", limit)
	}
	if limit == 0 {
		limit = DefaultLeaderboardLimit
	}

	all, err := s.storage.ListPlayers(ctx)
	if err != nil {
		return nil, err
	}

	players := make([]*model.Player, 0, len(all))
	for _, p := range all {
		if !p.IsBot {
			players = append(players, p)
		}
	}

	key := func(p *model.Player) float64 {
		switch by {
		case SortGamesPlayed:
			return float64(p.Stats.GamesPlayed)
		case SortGamesWon:
			return float64(p.Stats.GamesWon)
		default:
			return p.Stats.BestWPM
		}
	}
	sort.SliceStable(players, func(i, j int) bool {
		ki, kj := key(players[i]), key(players[j])
		if ki != kj {
			return ki > kj
		}
		return strings.ToLower(players[i].DisplayName) < strings.ToLower(players[j].DisplayName)
	})

	if len(players) > limit {
		players = players[:limit]
	}
	return players, nil
}

// RecordResult stores a finished session's result and then folds it into
// each human player's stats. Only the result write can fail the call, so a
// retry never applies stats twice.
func (s *Service) RecordResult(ctx context.Context, result *model.GameResult) error {
	if err := s.storage.SaveGameResult(ctx, result); err != nil {
		return err
	}

	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	for _, standing := range result.Standings {
		if err := s.applyStanding(ctx, result, standing); err != nil {
			s.logger.Warn("failed to update player stats",
				slog.String("session_id", string(result.SessionID)),
				slog.String("player_id", string(standing.PlayerID)),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

func (s *Service) applyStanding(ctx context.Context, result *model.GameResult, standing model.Standing) error {
	player, err := s.storage.GetPlayer(ctx, standing.PlayerID)
	if errors.Is(err, model.ErrPlayerNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if player.IsBot {
		return nil
	}
	player.Stats.Apply(standing.WPM, result.Winner(standing.PlayerID))
	return s.storage.UpdatePlayer(ctx, player)
}

// GetResult returns the stored result of a finished session
func (s *Service) GetResult(ctx context.Context, id model.SessionID) (*model.GameResult, error) {
	return s.storage.GetGameResult(ctx, id)
}
