package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	players   map[model.PlayerID]*model.Player
	nameIndex map[string]model.PlayerID
	prompts   map[string]model.Prompt
	results   map[model.SessionID]*model.GameResult
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		players:   make(map[model.PlayerID]*model.Player),
		nameIndex: make(map[string]model.PlayerID),
		prompts:   make(map[string]model.Prompt),
		results:   make(map[model.SessionID]*model.GameResult),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func nameKey(displayName string) string {
	return strings.ToLower(strings.TrimSpace(displayName))
}

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[player.ID]; ok {
		return model.ErrDuplicatePlayer
	}
	key := nameKey(player.DisplayName)
	if _, ok := s.nameIndex[key]; ok {
		return model.ErrDuplicatePlayer
	}
	stored := *player
	s.players[player.ID] = &stored
	s.nameIndex[key] = player.ID
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	out := *player
	return &out, nil
}

func (s *Storage) UpdatePlayer(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.players[player.ID]
	if !ok {
		return model.ErrPlayerNotFound
	}
	updated := *player
	updated.DisplayName = existing.DisplayName
	s.players[player.ID] = &updated
	return nil
}

func (s *Storage) ListPlayers(ctx context.Context) ([]*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	players := make([]*model.Player, 0, len(s.players))
	for _, p := range s.players {
		out := *p
		players = append(players, &out)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	return players, nil
}

// Prompt operations

func (s *Storage) SavePrompts(ctx context.Context, prompts []model.Prompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range prompts {
		s.prompts[p.ID] = p
	}
	return nil
}

func (s *Storage) LoadPromptPool(ctx context.Context, activeOnly bool) ([]model.Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pool := make([]model.Prompt, 0, len(s.prompts))
	for _, p := range s.prompts {
		if activeOnly && !p.Active {
			continue
		}
		pool = append(pool, p)
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i].ID < pool[j].ID })
	return pool, nil
}

// Result operations

func (s *Storage) SaveGameResult(ctx context.Context, result *model.GameResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *result
	stored.Standings = append([]model.Standing(nil), result.Standings...)
	stored.PromptIDs = append([]string(nil), result.PromptIDs...)
	s.results[result.SessionID] = &stored
	return nil
}

func (s *Storage) GetGameResult(ctx context.Context, id model.SessionID) (*model.GameResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[id]
	if !ok {
		return nil, model.ErrResultNotFound
	}
	out := *result
	out.Standings = append([]model.Standing(nil), result.Standings...)
	return &out, nil
}
