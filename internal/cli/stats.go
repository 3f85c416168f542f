package cli

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Player statistics commands",
	}

	cmd.AddCommand(newStatsShowCmd())

	return cmd
}

func newStatsShowCmd() *cobra.Command {
	var playerID string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show your stats, or another player's with --player",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/players/me/stats"
			if playerID != "" {
				path = fmt.Sprintf("/api/v1/players/%s/stats", url.PathEscape(playerID))
			}

			var result Profile
			if err := client.Get(cmd.Context(), path, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&playerID, "player", "", "Player ID (default: yourself)")

	return cmd
}

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Play session commands",
	}

	cmd.AddCommand(newSessionSubmitCmd())

	return cmd
}

func newSessionSubmitCmd() *cobra.Command {
	var score, games, playTime, coins, xp int64

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Report a finished play session",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]int64{
				"score":             score,
				"games_played":      games,
				"play_time":         playTime,
				"coins_earned":      coins,
				"experience_earned": xp,
			}

			var result SessionResult
			if err := client.Post(cmd.Context(), "/api/v1/sessions", req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().Int64Var(&score, "score", 0, "Score reached in the session (required)")
	cmd.Flags().Int64Var(&games, "games", 1, "Games played in the session")
	cmd.Flags().Int64Var(&playTime, "play-time", 0, "Session length in seconds")
	cmd.Flags().Int64Var(&coins, "coins", 0, "Coins earned")
	cmd.Flags().Int64Var(&xp, "xp", 0, "Experience earned")
	_ = cmd.MarkFlagRequired("score")

	return cmd
}

func newLeaderboardCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the high score leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/leaderboard"
			if limit > 0 {
				path += "?limit=" + strconv.Itoa(limit)
			}

			var result Leaderboard
			if err := client.Get(cmd.Context(), path, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Number of entries (default: server default)")

	return cmd
}
