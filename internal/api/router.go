package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/mcoot/typerace-go/internal/api/handler"
	"github.com/mcoot/typerace-go/internal/api/middleware"
	"github.com/mcoot/typerace-go/internal/api/response"
	"github.com/mcoot/typerace-go/internal/factory"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger         *slog.Logger
	App            *factory.App
	AllowedOrigins []string
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	app := cfg.App

	// Create handlers
	playerHandler := handler.NewPlayerHandler(app.PlayerService)
	gameHandler := handler.NewGameHandler(
		app.Registry,
		app.PlayerService,
		app.PromptService,
		app.BotService,
		app.Gateway,
		app.Clock,
		cfg.Logger,
	)

	// Create middleware
	identify := middleware.Identify(app.PlayerService)
	optionalIdentify := middleware.OptionalIdentify(app.PlayerService)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	protected := func(h http.HandlerFunc) http.Handler { return identify(h) }

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Health check endpoint
	api.HandleFunc("/health", healthHandler(app)).Methods(http.MethodGet)

	// Player routes
	api.HandleFunc("/players", playerHandler.Create).Methods(http.MethodPost)
	api.Handle("/players/me", protected(playerHandler.GetMe)).Methods(http.MethodGet)
	api.HandleFunc("/players/{id}", playerHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/leaderboard", playerHandler.Leaderboard).Methods(http.MethodGet)

	// Game routes
	api.Handle("/games", protected(gameHandler.Create)).Methods(http.MethodPost)
	api.HandleFunc("/games/{id}", gameHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/games/{id}/prompts", gameHandler.Prompts).Methods(http.MethodGet)
	api.HandleFunc("/games/{id}/standings", gameHandler.Standings).Methods(http.MethodGet)
	api.HandleFunc("/games/{id}/result", gameHandler.Result).Methods(http.MethodGet)
	api.Handle("/games/{id}/join", protected(gameHandler.Join)).Methods(http.MethodPost)
	api.Handle("/games/{id}/leave", protected(gameHandler.Leave)).Methods(http.MethodPost)
	api.Handle("/games/{id}/start", protected(gameHandler.Start)).Methods(http.MethodPost)
	api.Handle("/games/{id}/finish", protected(gameHandler.Finish)).Methods(http.MethodPost)
	api.Handle("/games/{id}/progress", protected(gameHandler.Progress)).Methods(http.MethodPost)
	api.Handle("/games/{id}/bots", protected(gameHandler.AddBot)).Methods(http.MethodPost)

	// Streaming routes. Spectators may watch events without a player id.
	api.Handle("/games/{id}/events", optionalIdentify(http.HandlerFunc(gameHandler.Events))).Methods(http.MethodGet)
	api.Handle("/games/{id}/ws", protected(gameHandler.WebSocket)).Methods(http.MethodGet)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: origins,
		AllowedHeaders: []string{"Content-Type", middleware.PlayerIDHeader},
	})
	return c.Handler(r)
}

func healthHandler(app *factory.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, response.Health{Status: "ok", Sessions: app.Registry.Len()})
	}
}
