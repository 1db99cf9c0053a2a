package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/typerace-go/internal/api/middleware"
	"github.com/mcoot/typerace-go/internal/model"
)

func newEventsCmd() *cobra.Command {
	var (
		jsonOutput    bool
		untilFinished bool
	)

	cmd := &cobra.Command{
		Use:   "events <id>",
		Short: "Follow a race's live events",
		Long: `Follow a race over its SSE stream and print each event as it arrives.

Events include:
  - player_joined: A player joined the race
  - player_left: A player left the race
  - round_started: Prompts assigned and the clock is running
  - progress_updated: A player reported progress, with live standings
  - round_finished: Final standings and winner

Press Ctrl+C to disconnect.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return followRace(ctx, args[0], jsonOutput, untilFinished)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print raw events as JSON lines")
	cmd.Flags().BoolVar(&untilFinished, "until-finished", false, "Exit once the race finishes")

	return cmd
}

// sseFrame is one dispatched server-sent event
type sseFrame struct {
	name string
	data string
}

func followRace(ctx context.Context, sessionID string, jsonOutput, untilFinished bool) error {
	url := strings.TrimSuffix(cfg.ServerURL, "/") + gamePath(sessionID, "events")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if cfg.PlayerID != "" {
		req.Header.Set(middleware.PlayerIDHeader, cfg.PlayerID)
	}

	// The stream stays open for the whole race
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	err = readFrames(resp.Body, func(f sseFrame) bool {
		if jsonOutput {
			fmt.Println(f.data)
		} else {
			printFrame(f)
		}
		return !(untilFinished && f.name == string(model.EventRoundFinished))
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream error: %w", err)
	}

	if !jsonOutput {
		fmt.Println("Disconnected")
	}
	return nil
}

// readFrames parses an SSE stream and calls fn for each complete frame
// until fn returns false or the stream ends.
func readFrames(r io.Reader, fn func(sseFrame) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		frame sseFrame
		data  []string
	)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, ":"):
			// keepalive
		case strings.HasPrefix(line, "event:"):
			frame.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case line == "":
			if frame.name != "" {
				frame.data = strings.Join(data, "\n")
				if !fn(frame) {
					return nil
				}
			}
			frame, data = sseFrame{}, nil
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func printFrame(f sseFrame) {
	stamp := time.Now().Format("15:04:05")

	if f.name == "connected" {
		fmt.Printf("[%s] connected\n", stamp)
		return
	}

	var event model.Event
	if err := json.Unmarshal([]byte(f.data), &event); err != nil {
		fmt.Printf("[%s] %s: %s\n", stamp, f.name, f.data)
		return
	}
	payload, _ := json.Marshal(event.Payload)

	switch event.Type {
	case model.EventPlayerJoined:
		var p model.PlayerJoinedPayload
		_ = json.Unmarshal(payload, &p)
		fmt.Printf("[%s] %s joined (%d/%d)\n", stamp, p.Player.DisplayName, p.MemberCount, p.MaxPlayers)
	case model.EventPlayerLeft:
		var p model.PlayerLeftPayload
		_ = json.Unmarshal(payload, &p)
		fmt.Printf("[%s] %s left (%d remaining)\n", stamp, p.DisplayName, p.MemberCount)
	case model.EventRoundStarted:
		var p model.RoundStartedPayload
		_ = json.Unmarshal(payload, &p)
		fmt.Printf("[%s] race started: %d prompts, %d chars, ends %s\n",
			stamp, len(p.Prompts), p.TargetLength, p.EndsAt.Local().Format("15:04:05"))
	case model.EventProgressUpdated:
		var p model.ProgressUpdatedPayload
		_ = json.Unmarshal(payload, &p)
		if len(p.Standings) > 0 {
			lead := p.Standings[0]
			fmt.Printf("[%s] progress from %s, leader %s at %.2f wpm\n", stamp, p.PlayerID, lead.DisplayName, lead.WPM)
		}
	case model.EventRoundFinished:
		var p model.RoundFinishedPayload
		_ = json.Unmarshal(payload, &p)
		fmt.Printf("[%s] race finished (%s)\n", stamp, p.Reason)
		for _, st := range p.Standings {
			fmt.Printf("    %d. %-20s %6.2f wpm  %5.1f%%\n", st.Rank, st.DisplayName, st.WPM, st.Accuracy*100)
		}
		if p.WinnerID != "" {
			fmt.Printf("    winner: %s\n", p.WinnerID)
		}
	default:
		fmt.Printf("[%s] %s\n", stamp, event.Type)
	}
}
