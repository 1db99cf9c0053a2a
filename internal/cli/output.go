package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mcoot/typerace-go/internal/api/response"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Println(string(data))
	} else {
		fmt.Println(msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case response.Player:
		o.printPlayer(v)
	case response.Leaderboard:
		o.printLeaderboard(v)
	case response.Session:
		o.printSession(v)
	case response.Standings:
		fmt.Printf("Race: %s (%s)\n", v.SessionID, v.Status)
		o.printStandings(v.Standings)
	case response.Result:
		o.printResult(v)
	case []response.Prompt:
		o.printPrompts(v)
	case response.Health:
		fmt.Printf("Status: %s\n", v.Status)
		fmt.Printf("Live races: %d\n", v.Sessions)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printPlayer(p response.Player) {
	kind := "player"
	if p.IsBot {
		kind = "bot"
	}
	fmt.Printf("Player: %s (%s) [%s]\n", p.DisplayName, p.ID, kind)
	fmt.Printf("Races: %d played, %d won\n", p.Stats.GamesPlayed, p.Stats.GamesWon)
	fmt.Printf("WPM: best %.2f, average %.2f\n", p.Stats.BestWPM, p.Stats.AverageWPM)
}

func (o *Output) printLeaderboard(l response.Leaderboard) {
	fmt.Printf("Leaderboard by %s:\n", l.Sort)
	if len(l.Entries) == 0 {
		fmt.Println("  (no players yet)")
		return
	}
	for _, e := range l.Entries {
		fmt.Printf("  %2d. %-20s best %6.2f wpm  %3d played  %3d won\n",
			e.Rank, e.DisplayName, e.Stats.BestWPM, e.Stats.GamesPlayed, e.Stats.GamesWon)
	}
}

func (o *Output) printSession(s response.Session) {
	fmt.Printf("Race: %s\n", s.ID)
	fmt.Printf("Status: %s\n", s.Status)
	fmt.Printf("Players: %d-%d, time limit %ds, %d prompts\n",
		s.Config.MinPlayers, s.Config.MaxPlayers, s.Config.TimeLimitSeconds, s.Config.PromptCount)
	if s.EndsAt != nil && s.Status == "active" {
		fmt.Printf("Ends at: %s\n", s.EndsAt.Format("15:04:05"))
	}

	fmt.Printf("Members (%d):\n", len(s.Members))
	for _, m := range s.Members {
		tags := []string{}
		if m.IsHost {
			tags = append(tags, "host")
		}
		if m.IsBot {
			tags = append(tags, "bot")
		}
		if m.FinishedAt != nil {
			tags = append(tags, "finished")
		}
		suffix := ""
		if len(tags) > 0 {
			suffix = " [" + strings.Join(tags, ", ") + "]"
		}
		if s.TargetLength > 0 {
			fmt.Printf("  - %s (%s) %d/%d%s\n", m.DisplayName, m.PlayerID, m.CharsCorrect, s.TargetLength, suffix)
		} else {
			fmt.Printf("  - %s (%s)%s\n", m.DisplayName, m.PlayerID, suffix)
		}
	}

	if len(s.Prompts) > 0 {
		fmt.Println("\nPrompts:")
		o.printPrompts(s.Prompts)
	}

	if s.Status == "finished" {
		fmt.Printf("\nFinished: %s\n", s.FinishReason)
		o.printStandings(s.Standings)
		if s.WinnerID != "" {
			fmt.Printf("Winner: %s\n", s.WinnerID)
		}
	}
}

func (o *Output) printStandings(standings []response.Standing) {
	for _, st := range standings {
		done := ""
		if st.Finished {
			done = " done"
		}
		fmt.Printf("  %d. %-20s %6.2f wpm  %5.1f%%  %d chars%s\n",
			st.Rank, st.DisplayName, st.WPM, st.Accuracy*100, st.CharsCorrect, done)
	}
}

func (o *Output) printResult(r response.Result) {
	fmt.Printf("Race: %s\n", r.SessionID)
	fmt.Printf("Finished: %s at %s\n", r.Reason, r.FinishedAt.Format("2006-01-02 15:04:05"))
	o.printStandings(r.Standings)
	if r.WinnerID != "" {
		fmt.Printf("Winner: %s\n", r.WinnerID)
	}
}

func (o *Output) printPrompts(prompts []response.Prompt) {
	for i, p := range prompts {
		fmt.Printf("  %d. [%s] %s\n", i+1, p.Tier, p.Text)
	}
}
