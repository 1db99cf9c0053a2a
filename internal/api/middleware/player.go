package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/mcoot/typerace-go/internal/api/apierr"
	"github.com/mcoot/typerace-go/internal/model"
)

type contextKey string

const playerContextKey contextKey = "player"

// PlayerIDHeader carries the caller's player id
const PlayerIDHeader = "X-Player-ID"

// PlayerIDParam is the query parameter fallback for clients that cannot set
// headers, such as EventSource and browser WebSockets
const PlayerIDParam = "player_id"

// PlayerLookup resolves a player id to a profile
type PlayerLookup interface {
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)
}

// Identify creates middleware that requires a known player on the request
func Identify(players PlayerLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := extractPlayerID(r)
			if id == "" {
				apierr.WriteError(w, apierr.NewUnauthorizedError("X-Player-ID header is required"))
				return
			}

			player, err := players.GetPlayer(r.Context(), id)
			if errors.Is(err, model.ErrPlayerNotFound) {
				apierr.WriteError(w, apierr.NewUnauthorizedError("unknown player "+string(id)))
				return
			}
			if err != nil {
				apierr.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPlayer(r.Context(), player)))
		})
	}
}

// OptionalIdentify attaches the player if a known id is present but doesn't require it
func OptionalIdentify(players PlayerLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := extractPlayerID(r); id != "" {
				if player, err := players.GetPlayer(r.Context(), id); err == nil {
					r = r.WithContext(WithPlayer(r.Context(), player))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractPlayerID(r *http.Request) model.PlayerID {
	if id := strings.TrimSpace(r.Header.Get(PlayerIDHeader)); id != "" {
		return model.PlayerID(id)
	}
	return model.PlayerID(strings.TrimSpace(r.URL.Query().Get(PlayerIDParam)))
}

// WithPlayer returns a context carrying the player
func WithPlayer(ctx context.Context, player *model.Player) context.Context {
	return context.WithValue(ctx, playerContextKey, player)
}

// GetPlayer returns the identified player from the request context
func GetPlayer(ctx context.Context) *model.Player {
	player, _ := ctx.Value(playerContextKey).(*model.Player)
	return player
}

// MustGetPlayer returns the identified player or panics
func MustGetPlayer(ctx context.Context) *model.Player {
	player := GetPlayer(ctx)
	if player == nil {
		panic("no player in context - identify middleware not applied?")
	}
	return player
}
