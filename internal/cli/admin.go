package cli

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrator commands",
	}

	cmd.AddCommand(newAdminDashboardCmd())
	cmd.AddCommand(newAdminPlayersCmd())
	cmd.AddCommand(newAdminDeleteCmd())
	cmd.AddCommand(newAdminResetStatsCmd())
	cmd.AddCommand(newAdminClearSessionsCmd())

	return cmd
}

func newAdminDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show player and game totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Dashboard
			if err := client.Get(cmd.Context(), "/api/v1/admin/dashboard", &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newAdminPlayersCmd() *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "players",
		Short: "List players, optionally filtered by username or email",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/admin/players"
			if query != "" {
				path += "?q=" + url.QueryEscape(query)
			}

			var result PlayerList
			if err := client.Get(cmd.Context(), path, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "Case-insensitive username or email filter")

	return cmd
}

func newAdminDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <player-id>",
		Short: "Delete a player and all their data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Delete(cmd.Context(), "/api/v1/admin/players/"+url.PathEscape(args[0])); err != nil {
				return err
			}

			output(cmd).PrintMessage(fmt.Sprintf("Deleted player %s", args[0]))
			return nil
		},
	}
}

var errNotConfirmed = errors.New("destructive operation, pass --yes to confirm")

func newAdminResetStatsCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset-stats",
		Short: "Reset every player's stats to the baseline",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errNotConfirmed
			}

			var result StatsReset
			if err := client.Post(cmd.Context(), "/api/v1/admin/stats/reset", nil, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the reset")

	return cmd
}

func newAdminClearSessionsCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear-sessions",
		Short: "Delete the recorded game session history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errNotConfirmed
			}

			var result SessionsCleared
			if err := client.Do(cmd.Context(), http.MethodDelete, "/api/v1/admin/sessions", nil, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the purge")

	return cmd
}
