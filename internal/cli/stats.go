package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLeaderboardCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the top players by kills",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			top, err := a.store.TopPlayers(cmd.Context(), limit)
			if err != nil {
				return err
			}
			a.print(Leaderboard(top))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of players to show")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <userID>",
		Short: "Show a user's lifetime totals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			totals, err := a.store.GetStats(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.print(totals)
			return nil
		},
	}
}
