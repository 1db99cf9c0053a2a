package cli

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/typerace-go/internal/api/request"
	"github.com/mcoot/typerace-go/internal/api/response"
)

func newGameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "game",
		Short: "Race commands",
	}

	cmd.AddCommand(newGameCreateCmd())
	cmd.AddCommand(newGameGetCmd())
	cmd.AddCommand(newGameActionCmd("join", "Join a pending race"))
	cmd.AddCommand(newGameActionCmd("leave", "Leave a pending race"))
	cmd.AddCommand(newGameActionCmd("start", "Start the race (host only)"))
	cmd.AddCommand(newGameActionCmd("finish", "End the race early (host only)"))
	cmd.AddCommand(newGameProgressCmd())
	cmd.AddCommand(newGameStandingsCmd())
	cmd.AddCommand(newGameResultCmd())
	cmd.AddCommand(newGamePromptsCmd())
	cmd.AddCommand(newGameBotCmd())

	return cmd
}

func gamePath(id string, parts ...string) string {
	path := "/api/v1/games/" + url.PathEscape(id)
	for _, p := range parts {
		path += "/" + p
	}
	return path
}

func newGameCreateCmd() *cobra.Command {
	var (
		req       request.CreateGameRequest
		timeLimit time.Duration
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a race and join it as host",
		RunE: func(cmd *cobra.Command, args []string) error {
			req.TimeLimitSeconds = int(timeLimit / time.Second)

			var result response.Session
			if err := client.Post("/api/v1/games", req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.ID, "id", "", "Named race id to create or join")
	cmd.Flags().IntVar(&req.MaxPlayers, "max-players", 0, "Maximum players (server default if unset)")
	cmd.Flags().IntVar(&req.MinPlayers, "min-players", 0, "Players required to start (server default if unset)")
	cmd.Flags().DurationVar(&timeLimit, "time-limit", 0, "Round time limit, e.g. 90s")
	cmd.Flags().IntVar(&req.PromptCount, "prompts", 0, "Number of prompts in the race")

	return cmd
}

func newGameGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get the race summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Session

			if err := client.Get(gamePath(args[0]), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

// newGameActionCmd builds a command that posts to a body-less race action
func newGameActionCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Session

			if err := client.Post(gamePath(args[0], action), nil, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newGameProgressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progress <id> <typed> <correct>",
		Short: "Report typing progress",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			typed, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid typed count: %w", err)
			}
			correct, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid correct count: %w", err)
			}

			req := request.ProgressRequest{CharsTyped: typed, CharsCorrect: correct}
			var result response.Standings

			if err := client.Post(gamePath(args[0], "progress"), req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newGameStandingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "standings <id>",
		Short: "Show live standings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Standings

			if err := client.Get(gamePath(args[0], "standings"), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newGameResultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "result <id>",
		Short: "Show the saved result of a finished race",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Result

			if err := client.Get(gamePath(args[0], "result"), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newGamePromptsCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "prompts <id>",
		Short: "Preview a prompt selection for the race",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := gamePath(args[0], "prompts")
			if count > 0 {
				path += "?count=" + strconv.Itoa(count)
			}

			var result []response.Prompt
			if err := client.Get(path, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 0, "Number of prompts (race setting if unset)")

	return cmd
}

func newGameBotCmd() *cobra.Command {
	var req request.AddBotRequest

	cmd := &cobra.Command{
		Use:   "bot <id>",
		Short: "Add a pace bot to the race (host only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Player

			if err := client.Post(gamePath(args[0], "bots"), req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().Float64Var(&req.WPM, "wpm", 60, "Typing speed in words per minute")
	cmd.Flags().Float64Var(&req.Accuracy, "accuracy", 1, "Share of typed characters that are correct")
	cmd.Flags().StringVar(&req.Name, "name", "", "Bot display name")
	cmd.Flags().StringVar(&req.Strategy, "strategy", "", "Pacing strategy: steady or erratic")

	return cmd
}
