// Package cli implements arenactl, an operator tool that talks to the stats
// store directly.
package cli

import (
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"arena/internal/config"
	"arena/internal/store"
	"arena/internal/store/backend"
)

// app carries state shared by every subcommand
type app struct {
	stats  config.StatsConfig
	output string
	out    io.Writer

	open  func(config.StatsConfig) (store.Store, error)
	store store.Store
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{
		stats: config.StatsFromEnv(),
		out:   os.Stdout,
		open:  backend.Open,
	})
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "arenactl",
		Short: "Operator tool for the arena stats store",
		Long: `arenactl reads and edits the arena's long-term stats store.

It opens the same backend the server uses (STATS_BACKEND, SQLITE_PATH,
REDIS_URL), so run it against a live redis or a copy of the sqlite file.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(a.stats)
			if err != nil {
				return err
			}
			if s == nil {
				return errors.New("stats backend is \"none\"; set --backend")
			}
			a.store = s
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.store == nil {
				return nil
			}
			return a.store.Close()
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&a.stats.Backend, "backend", a.stats.Backend, "Stats backend: memory, sqlite, redis (env: STATS_BACKEND)")
	rootCmd.PersistentFlags().StringVar(&a.stats.SQLitePath, "sqlite-path", a.stats.SQLitePath, "SQLite database file (env: SQLITE_PATH)")
	rootCmd.PersistentFlags().StringVar(&a.stats.RedisURL, "redis-url", a.stats.RedisURL, "Redis URL (env: REDIS_URL)")
	rootCmd.PersistentFlags().StringVarP(&a.output, "output", "o", "text", "Output format: text, json")

	// Add subcommands
	rootCmd.AddCommand(newLeaderboardCmd(a))
	rootCmd.AddCommand(newStatsCmd(a))
	rootCmd.AddCommand(newUserCmd(a))

	return rootCmd
}

func (a *app) print(data any) {
	NewOutput(a.output, a.out).Print(data)
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
