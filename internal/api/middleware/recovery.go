package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mcoot/typerace-go/internal/api/apierr"
	"github.com/mcoot/typerace-go/internal/middleware"
)

// Recovery creates panic recovery middleware that answers with the JSON
// internal error and logs the race the request was for
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, func(w http.ResponseWriter, _ *http.Request, _ any) {
		apierr.WriteError(w, apierr.NewInternalError())
	}, raceAttrs)
}

// Logging creates request logging middleware tagged with the race and player
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Logging(logger, raceAttrs)
}

// raceAttrs tags a request with the session and player it concerns
func raceAttrs(r *http.Request) []slog.Attr {
	var attrs []slog.Attr
	if id, ok := mux.Vars(r)["id"]; ok && strings.Contains(r.URL.Path, "/games/") {
		attrs = append(attrs, slog.String("session_id", strings.ToUpper(id)))
	}
	if pid := extractPlayerID(r); pid != "" {
		attrs = append(attrs, slog.String("player_id", string(pid)))
	}
	return attrs
}
