package broadcast

import (
	"net/http"
	"strings"
	"time"

	"github.com/mcoot/typerace-go/internal/model"
)

// ServeSSE streams a session's events to the client as server-sent events
// until the client disconnects or the session's hub stops.
func (g *Gateway) ServeSSE(w http.ResponseWriter, r *http.Request, id model.SessionID, playerID model.PlayerID) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	// Streams outlive the server's write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	sub := g.Subscribe(id, playerID)
	defer g.Unsubscribe(sub)

	_, _ = w.Write(formatSSEMessage("connected", `{"sessionId":"`+string(id)+`"}`))
	flusher.Flush()

	ticker := time.NewTicker(g.cfg.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			if _, err := w.Write(formatSSEMessage(string(msg.Event.Type), string(msg.Data))); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// formatSSEMessage formats an SSE message with event name and data.
// Each line of data gets its own "data: " prefix.
func formatSSEMessage(eventName, data string) []byte {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(eventName)
	b.WriteByte('\n')
	for _, line := range splitLines(data) {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

// splitLines splits on newlines, dropping carriage returns and a trailing empty line
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}
