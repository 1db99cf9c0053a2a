package factory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/mcoot/typerace-go/internal/broadcast"
	"github.com/mcoot/typerace-go/internal/config"
	"github.com/mcoot/typerace-go/internal/dependencies/clock"
	"github.com/mcoot/typerace-go/internal/dependencies/random"
	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/services/bot"
	"github.com/mcoot/typerace-go/internal/services/player"
	"github.com/mcoot/typerace-go/internal/services/progress"
	"github.com/mcoot/typerace-go/internal/services/prompt"
	"github.com/mcoot/typerace-go/internal/services/registry"
	"github.com/mcoot/typerace-go/internal/services/session"
	"github.com/mcoot/typerace-go/internal/storage"
	"github.com/mcoot/typerace-go/internal/storage/memory"
	redisstorage "github.com/mcoot/typerace-go/internal/storage/redis"
	"github.com/mcoot/typerace-go/internal/storage/sqlite"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random
	Logger *slog.Logger

	// Services
	PromptService *prompt.Service
	PlayerService *player.Service
	Tracker       *progress.Tracker
	Gateway       *broadcast.Gateway
	Registry      *registry.Registry
	BotService    *bot.Service
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "sqlite")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// SQLitePath is the database file (required if StorageType is "sqlite")
	SQLitePath string
	// ReadRetryDelay is the pause before retrying a failed prompt pool read
	ReadRetryDelay time.Duration
	// Seed makes prompt selection and generated IDs reproducible when set
	Seed *uint64

	Services Services
}

// Services holds the tunables passed through to the services
type Services struct {
	SessionDefaults model.SessionConfig
	ResultGrace     time.Duration
	BotTick         time.Duration
	Broadcast       broadcast.Config
}

// DefaultServices returns the default service settings
func DefaultServices() Services {
	return Services{
		SessionDefaults: model.DefaultSessionConfig(),
		ResultGrace:     registry.DefaultResultGrace,
		BotTick:         bot.DefaultTick,
		Broadcast:       broadcast.DefaultConfig(),
	}
}

// FromConfig builds a factory Config from the server configuration
func FromConfig(cfg config.Config, logger *slog.Logger) Config {
	out := Config{
		Logger:         logger,
		StorageType:    cfg.StorageType,
		SQLitePath:     cfg.SQLitePath,
		ReadRetryDelay: cfg.ReadRetryDelay,
		Services: Services{
			SessionDefaults: cfg.SessionDefaults(),
			ResultGrace:     cfg.Session.ResultGrace,
			BotTick:         cfg.Bot.Tick,
			Broadcast:       broadcast.DefaultConfig(),
		},
	}
	if cfg.StorageType == config.StorageTypeRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		out.RedisConfig = &redisCfg
	}
	return out
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store = storage.WithReadRetry(store, cfg.ReadRetryDelay)

	// Create external dependencies
	clk := clock.New()
	var rnd random.Random = random.New()
	if cfg.Seed != nil {
		rnd = random.NewSeeded(*cfg.Seed)
	}

	services := cfg.Services
	if services.SessionDefaults == (model.SessionConfig{}) {
		services = DefaultServices()
	}

	return newWithDependencies(store, clk, rnd, services, logger), nil
}

func openStorage(ctx context.Context, cfg Config) (storage.Storage, error) {
	switch cfg.StorageType {
	case "", config.StorageTypeMemory:
		return memory.New(), nil
	case config.StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(*cfg.RedisConfig)
	case config.StorageTypeSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath)
	default:
		return nil, errors.New("invalid StorageType: must be 'memory', 'redis' or 'sqlite'")
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, services Services, logger *slog.Logger) *App {
	promptService := prompt.New(store, rnd, logger)
	playerService := player.New(store, clk, logger)
	tracker := progress.New()
	gateway := broadcast.New(services.Broadcast, clk, logger)

	reg := registry.New(registry.Config{
		Defaults:    services.SessionDefaults,
		ResultGrace: services.ResultGrace,
		OnRemove:    gateway.RemoveHub,
	}, session.Deps{
		Prompts:   promptService,
		Publisher: gateway,
		Recorder:  playerService,
		Tracker:   tracker,
		Clock:     clk,
		Logger:    logger,
	}, rnd)

	botService := bot.NewService(playerService, reg, gateway, clk, rnd, services.BotTick, logger)

	return &App{
		Storage:       store,
		Clock:         clk,
		Random:        rnd,
		Logger:        logger,
		PromptService: promptService,
		PlayerService: playerService,
		Tracker:       tracker,
		Gateway:       gateway,
		Registry:      reg,
		BotService:    botService,
	}
}

// Close stops background work and releases the storage backend
func (a *App) Close() error {
	a.BotService.Close()
	a.Gateway.Close()

	store := a.Storage
	if r, ok := store.(*storage.RetryingStorage); ok {
		store = r.Unwrap()
	}
	if c, ok := store.(storage.Closer); ok {
		return c.Close()
	}
	return nil
}
