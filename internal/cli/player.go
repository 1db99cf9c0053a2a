package cli

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mcoot/typerace-go/internal/api/request"
	"github.com/mcoot/typerace-go/internal/api/response"
)

func newPlayerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "player",
		Short: "Player management commands",
	}

	cmd.AddCommand(newPlayerCreateCmd())
	cmd.AddCommand(newPlayerMeCmd())
	cmd.AddCommand(newPlayerGetCmd())

	return cmd
}

func newPlayerCreateCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a player and remember it for later commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Player

			if err := client.Post("/api/v1/players", request.CreatePlayerRequest{DisplayName: name}, &result); err != nil {
				return err
			}

			if err := cfg.SavePlayerID(result.ID); err != nil {
				return fmt.Errorf("failed to save player id: %w", err)
			}
			client.SetPlayerID(result.ID)

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name (required)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newPlayerMeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show current player info",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Player

			if err := client.Get("/api/v1/players/me", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newPlayerGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a player's profile and stats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Player

			if err := client.Get("/api/v1/players/"+url.PathEscape(args[0]), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newLeaderboardCmd() *cobra.Command {
	var (
		sortBy string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the top human players",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			if sortBy != "" {
				query.Set("sort", sortBy)
			}
			if limit > 0 {
				query.Set("limit", strconv.Itoa(limit))
			}

			path := "/api/v1/leaderboard"
			if len(query) > 0 {
				path += "?" + query.Encode()
			}

			var result response.Leaderboard
			if err := client.Get(path, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&sortBy, "sort", "", "Sort by best_wpm, games_played or games_won")
	cmd.Flags().IntVar(&limit, "limit", 0, "Number of players to show")

	return cmd
}
