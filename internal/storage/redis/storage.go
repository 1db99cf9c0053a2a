package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, model.Unavailable("ping", err)
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	data, err := json.Marshal(player)
	if err != nil {
		return err
	}

	// Claim the name first so two players racing for one name cannot both win
	nameKey := playerNameIndexKey(player.DisplayName)
	claimed, err := s.client.SetNX(ctx, nameKey, string(player.ID), 0).Result()
	if err != nil {
		return model.Unavailable("save player", err)
	}
	if !claimed {
		return model.ErrDuplicatePlayer
	}

	created, err := s.client.SetNX(ctx, playerKey(player.ID), data, 0).Result()
	if err != nil || !created {
		s.client.Del(ctx, nameKey)
		if err != nil {
			return model.Unavailable("save player", err)
		}
		return model.ErrDuplicatePlayer
	}

	if err := s.client.SAdd(ctx, playerSetKey(), string(player.ID)).Err(); err != nil {
		return model.Unavailable("save player", err)
	}
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	data, err := s.client.Get(ctx, playerKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, model.Unavailable("get player", err)
	}

	var player model.Player
	if err := json.Unmarshal(data, &player); err != nil {
		return nil, err
	}
	return &player, nil
}

func (s *Storage) UpdatePlayer(ctx context.Context, player *model.Player) error {
	existing, err := s.GetPlayer(ctx, player.ID)
	if err != nil {
		return err
	}

	// Display names are immutable; the name index is never rewritten
	updated := *player
	updated.DisplayName = existing.DisplayName
	data, err := json.Marshal(&updated)
	if err != nil {
		return err
	}

	ok, err := s.client.SetXX(ctx, playerKey(player.ID), data, redis.KeepTTL).Result()
	if err != nil {
		return model.Unavailable("update player", err)
	}
	if !ok {
		return model.ErrPlayerNotFound
	}
	return nil
}

func (s *Storage) ListPlayers(ctx context.Context) ([]*model.Player, error) {
	ids, err := s.client.SMembers(ctx, playerSetKey()).Result()
	if err != nil {
		return nil, model.Unavailable("list players", err)
	}
	if len(ids) == 0 {
		return []*model.Player{}, nil
	}
	sort.Strings(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = playerKey(model.PlayerID(id))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, model.Unavailable("list players", err)
	}

	players := make([]*model.Player, 0, len(values))
	for _, val := range values {
		raw, ok := val.(string)
		if !ok {
			continue
		}
		var player model.Player
		if err := json.Unmarshal([]byte(raw), &player); err != nil {
			continue // Skip invalid data
		}
		players = append(players, &player)
	}
	return players, nil
}

// Prompt operations

func (s *Storage) SavePrompts(ctx context.Context, prompts []model.Prompt) error {
	if len(prompts) == 0 {
		return nil
	}

	fields := make([]any, 0, len(prompts)*2)
	for _, p := range prompts {
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		fields = append(fields, p.ID, string(data))
	}

	if err := s.client.HSet(ctx, promptsKey(), fields...).Err(); err != nil {
		return model.Unavailable("save prompts", err)
	}
	return nil
}

func (s *Storage) LoadPromptPool(ctx context.Context, activeOnly bool) ([]model.Prompt, error) {
	entries, err := s.client.HGetAll(ctx, promptsKey()).Result()
	if err != nil {
		return nil, model.Unavailable("load prompt pool", err)
	}

	pool := make([]model.Prompt, 0, len(entries))
	for _, raw := range entries {
		var p model.Prompt
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, err
		}
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
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, resultKey(result.SessionID), data, s.cfg.ResultTTL).Err(); err != nil {
		return model.Unavailable("save game result", err)
	}
	return nil
}

func (s *Storage) GetGameResult(ctx context.Context, id model.SessionID) (*model.GameResult, error) {
	data, err := s.client.Get(ctx, resultKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrResultNotFound
		}
		return nil, model.Unavailable("get game result", err)
	}

	var result model.GameResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
