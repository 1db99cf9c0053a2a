package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// PanicHandler writes the response for a request whose handler panicked
type PanicHandler func(w http.ResponseWriter, r *http.Request, err any)

// Recovery turns handler panics into a logged error and a response from
// onPanic. A nil onPanic writes a plain 500.
func Recovery(logger *slog.Logger, onPanic PanicHandler, attrs RequestAttrs) func(http.Handler) http.Handler {
	if onPanic == nil {
		onPanic = plainPanicResponse
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				fields := []slog.Attr{
					slog.Any("error", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				}
				if attrs != nil {
					fields = append(fields, attrs(r)...)
				}
				fields = append(fields, slog.String("stack", string(debug.Stack())))
				logger.LogAttrs(r.Context(), slog.LevelError, "panic recovered", fields...)

				onPanic(w, r, rec)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func plainPanicResponse(w http.ResponseWriter, _ *http.Request, _ any) {
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}
