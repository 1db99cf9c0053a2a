package config

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mcoot/typerace-go/internal/model"
)

// Storage backends
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
	StorageTypeSQLite = "sqlite"
)

// Config is the server configuration, read from the environment
type Config struct {
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Port int    `env:"PORT" envDefault:"8080"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	StorageType     string        `env:"STORAGE_TYPE" envDefault:"memory"`
	RedisURL        string        `env:"REDIS_URL"`
	SQLitePath      string        `env:"SQLITE_PATH" envDefault:"typerace.db"`
	ReadRetryDelay  time.Duration `env:"STORAGE_READ_RETRY_DELAY" envDefault:"200ms"`
	PromptsPath     string        `env:"PROMPTS_PATH" envDefault:"data/prompts.yaml"`
	AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Session SessionConfig `envPrefix:"SESSION_"`
	Bot     BotConfig     `envPrefix:"BOT_"`
}

// SessionConfig holds the defaults for new sessions
type SessionConfig struct {
	MaxPlayers  int           `env:"MAX_PLAYERS" envDefault:"2"`
	MinPlayers  int           `env:"MIN_PLAYERS" envDefault:"2"`
	TimeLimit   time.Duration `env:"TIME_LIMIT" envDefault:"60s"`
	PromptCount int           `env:"PROMPT_COUNT" envDefault:"4"`
	ResultGrace time.Duration `env:"RESULT_GRACE" envDefault:"5m"`
}

// BotConfig holds pace bot settings
type BotConfig struct {
	Tick time.Duration `env:"TICK" envDefault:"1s"`
}

// Load reads the configuration from the environment and validates it
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration is consistent
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return model.Invalidf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return model.Invalidf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	switch c.StorageType {
	case StorageTypeMemory:
	case StorageTypeRedis:
		if c.RedisURL == "" {
			return model.Invalidf("REDIS_URL required when STORAGE_TYPE=redis")
		}
	case StorageTypeSQLite:
		if c.SQLitePath == "" {
			return model.Invalidf("SQLITE_PATH required when STORAGE_TYPE=sqlite")
		}
	default:
		return model.Invalidf("STORAGE_TYPE must be memory, redis or sqlite, got %q", c.StorageType)
	}
	if c.Session.ResultGrace <= 0 {
		return model.Invalidf("SESSION_RESULT_GRACE must be positive, got %s", c.Session.ResultGrace)
	}
	if c.Bot.Tick <= 0 {
		return model.Invalidf("BOT_TICK must be positive, got %s", c.Bot.Tick)
	}
	return c.SessionDefaults().Validate()
}

// Addr returns the listen address
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SessionDefaults returns the settings applied to new sessions
func (c Config) SessionDefaults() model.SessionConfig {
	return model.SessionConfig{
		MaxPlayers:  c.Session.MaxPlayers,
		MinPlayers:  c.Session.MinPlayers,
		TimeLimit:   c.Session.TimeLimit,
		PromptCount: c.Session.PromptCount,
	}
}

// ParseLogLevel converts a level name to a slog.Level
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, model.Invalidf("LOG_LEVEL must be debug, info, warn or error, got %q", s)
	}
	return level, nil
}

// NewLogger builds the application logger
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLogLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
