package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mcoot/typerace-go/internal/api/middleware"
	"github.com/mcoot/typerace-go/internal/api/request"
	"github.com/mcoot/typerace-go/internal/api/response"
	"github.com/mcoot/typerace-go/internal/broadcast"
	"github.com/mcoot/typerace-go/internal/dependencies/clock"
	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/services/bot"
	"github.com/mcoot/typerace-go/internal/services/player"
	"github.com/mcoot/typerace-go/internal/services/progress"
	"github.com/mcoot/typerace-go/internal/services/prompt"
	"github.com/mcoot/typerace-go/internal/services/registry"
	"github.com/mcoot/typerace-go/internal/services/session"
)

// GameHandler handles race session endpoints
type GameHandler struct {
	registry *registry.Registry
	players  *player.Service
	prompts  *prompt.Service
	bots     *bot.Service
	gateway  *broadcast.Gateway
	clock    clock.Clock
	logger   *slog.Logger
}

// NewGameHandler creates a new game handler
func NewGameHandler(
	reg *registry.Registry,
	players *player.Service,
	prompts *prompt.Service,
	bots *bot.Service,
	gateway *broadcast.Gateway,
	clk clock.Clock,
	logger *slog.Logger,
) *GameHandler {
	return &GameHandler{
		registry: reg,
		players:  players,
		prompts:  prompts,
		bots:     bots,
		gateway:  gateway,
		clock:    clk,
		logger:   logger.With(slog.String("component", "game-handler")),
	}
}

func sessionID(r *http.Request) model.SessionID {
	return model.SessionID(strings.ToUpper(mux.Vars(r)["id"]))
}

// decodeOptional decodes a JSON body, allowing it to be empty
func decodeOptional(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return NewInvalidRequestError("invalid request body")
	}
	return nil
}

func (h *GameHandler) machine(w http.ResponseWriter, r *http.Request) (*session.Machine, bool) {
	m, err := h.registry.Get(sessionID(r))
	if err != nil {
		WriteError(w, err)
		return nil, false
	}
	return m, true
}

// Create handles POST /api/v1/games. The caller joins the new game as host.
func (h *GameHandler) Create(w http.ResponseWriter, r *http.Request) {
	p := middleware.MustGetPlayer(r.Context())

	var req request.CreateGameRequest
	if err := decodeOptional(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	cfg, err := req.SessionConfig()
	if err != nil {
		WriteError(w, err)
		return
	}

	var (
		m       *session.Machine
		created = true
	)
	if req.ID != "" {
		m, created, err = h.registry.GetOrCreate(r.Context(), model.SessionID(strings.ToUpper(req.ID)), cfg)
	} else {
		m, err = h.registry.Create(r.Context(), cfg)
	}
	if err != nil {
		WriteError(w, err)
		return
	}

	view, err := h.registry.Join(r.Context(), m.ID(), p.Ref())
	if err != nil {
		if created {
			h.registry.Remove(m.ID())
		}
		WriteError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	response.JSON(w, status, response.SessionFromModel(view))
}

// Get handles GET /api/v1/games/{id}
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}
	response.JSON(w, http.StatusOK, response.SessionFromModel(m.View()))
}

// Prompts handles GET /api/v1/games/{id}/prompts. It draws a fresh selection
// from the active pool without assigning it to the game.
func (h *GameHandler) Prompts(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}

	count := m.View().Config.PromptCount
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			WriteError(w, NewInvalidRequestError("count must be an integer"))
			return
		}
		count = n
	}

	prompts, err := h.prompts.Draw(r.Context(), count)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.PromptsFromModel(prompts))
}

// Join handles POST /api/v1/games/{id}/join
func (h *GameHandler) Join(w http.ResponseWriter, r *http.Request) {
	p := middleware.MustGetPlayer(r.Context())

	view, err := h.registry.Join(r.Context(), sessionID(r), p.Ref())
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.SessionFromModel(view))
}

// Leave handles POST /api/v1/games/{id}/leave
func (h *GameHandler) Leave(w http.ResponseWriter, r *http.Request) {
	p := middleware.MustGetPlayer(r.Context())

	view, err := h.registry.Leave(r.Context(), sessionID(r), p.ID)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.SessionFromModel(view))
}

// Start handles POST /api/v1/games/{id}/start
func (h *GameHandler) Start(w http.ResponseWriter, r *http.Request) {
	p := middleware.MustGetPlayer(r.Context())
	m, ok := h.machine(w, r)
	if !ok {
		return
	}

	view, err := m.Start(r.Context(), p.ID)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.SessionFromModel(view))
}

// Finish handles POST /api/v1/games/{id}/finish
func (h *GameHandler) Finish(w http.ResponseWriter, r *http.Request) {
	p := middleware.MustGetPlayer(r.Context())
	m, ok := h.machine(w, r)
	if !ok {
		return
	}

	view, err := m.Finish(r.Context(), p.ID, model.FinishHost)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.SessionFromModel(view))
}

// Progress handles POST /api/v1/games/{id}/progress
func (h *GameHandler) Progress(w http.ResponseWriter, r *http.Request) {
	p := middleware.MustGetPlayer(r.Context())

	var req request.ProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	m, ok := h.machine(w, r)
	if !ok {
		return
	}

	snap := progress.Snapshot{
		CharsTyped:   req.CharsTyped,
		CharsCorrect: req.CharsCorrect,
		At:           h.clock.Now(),
	}
	if req.Timestamp != nil {
		snap.At = *req.Timestamp
	}

	standings, err := m.SubmitProgress(r.Context(), p.ID, snap)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.Standings{
		SessionID: string(m.ID()),
		Status:    string(m.View().Status),
		Standings: response.StandingsFromModel(standings),
	})
}

// Standings handles GET /api/v1/games/{id}/standings
func (h *GameHandler) Standings(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}
	response.JSON(w, http.StatusOK, response.Standings{
		SessionID: string(m.ID()),
		Status:    string(m.View().Status),
		Standings: response.StandingsFromModel(m.Standings()),
	})
}

// Result handles GET /api/v1/games/{id}/result. Results outlive the session.
func (h *GameHandler) Result(w http.ResponseWriter, r *http.Request) {
	result, err := h.players.GetResult(r.Context(), sessionID(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.ResultFromModel(result))
}

// AddBot handles POST /api/v1/games/{id}/bots
func (h *GameHandler) AddBot(w http.ResponseWriter, r *http.Request) {
	p := middleware.MustGetPlayer(r.Context())

	var req request.AddBotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	b, err := h.bots.AddBot(r.Context(), sessionID(r), p.ID, bot.Options{
		Name:     req.Name,
		Strategy: req.Strategy,
		Pace:     bot.Pace{WPM: req.WPM, Accuracy: req.Accuracy},
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, response.PlayerFromModel(b))
}

// Events handles GET /api/v1/games/{id}/events as a server-sent event stream
func (h *GameHandler) Events(w http.ResponseWriter, r *http.Request) {
	m, ok := h.machine(w, r)
	if !ok {
		return
	}

	var playerID model.PlayerID
	if p := middleware.GetPlayer(r.Context()); p != nil {
		playerID = p.ID
	}
	h.gateway.ServeSSE(w, r, m.ID(), playerID)
}

// WebSocket handles GET /api/v1/games/{id}/ws. Progress messages on the
// socket are stamped with the server clock.
func (h *GameHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	p := middleware.MustGetPlayer(r.Context())
	m, ok := h.machine(w, r)
	if !ok {
		return
	}

	handle := func(ctx context.Context, msg broadcast.ClientMessage) error {
		_, err := m.SubmitProgress(ctx, p.ID, progress.Snapshot{
			CharsTyped:   msg.CharsTyped,
			CharsCorrect: msg.CharsCorrect,
			At:           h.clock.Now(),
		})
		return err
	}

	if err := h.gateway.ServeWS(w, r, m.ID(), p.ID, handle); err != nil {
		h.logger.Warn("websocket upgrade failed",
			slog.String("session_id", string(m.ID())),
			slog.String("player_id", string(p.ID)),
			slog.String("error", err.Error()),
		)
	}
}
