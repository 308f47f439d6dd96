package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"market-rankings/app"
	"market-rankings/config"
	"market-rankings/logging"
	"market-rankings/ranking"
)

// Shared by every subcommand; set in PersistentPreRunE
var (
	cfg         *config.Config
	application *app.App
)

// rootCmd is the base command for the ranking engine CLI
var rootCmd = &cobra.Command{
	Use:   "market-rankings",
	Short: "Relative-strength, group ranking and distribution-day batch jobs",
	Long: `market-rankings computes momentum scores and RS ratings for the latest
technical snapshot, ranks sectors and industries with 1/4/12 week rank deltas,
and counts distribution days on benchmark indexes.

Configuration comes from the environment (and .env when present).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		logging.Setup(cfg.LogLevel, cfg.LogFormat)

		application = app.New(cfg)
		return application.Connect()
	},
}

func main() {
	err := rootCmd.Execute()
	// PersistentPostRun is skipped when RunE fails, so close here
	if application != nil {
		application.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// commandContext is cancelled on SIGINT or SIGTERM
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// parseDay parses YYYY-MM-DD; empty means nil
func parseDay(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return &t, nil
}

// granularities resolves a --granularity flag, falling back to the configured list
func granularities(flag string) ([]ranking.Granularity, error) {
	if flag == "" {
		return application.Granularities()
	}
	g, err := ranking.ParseGranularity(flag)
	if err != nil {
		return nil, err
	}
	return []ranking.Granularity{g}, nil
}

// rankerOverrides applies --key and --tie-break to the configured ranker
func rankerOverrides(key, tieBreak string) (*ranking.Ranker, error) {
	r, err := cfg.Ranking.Ranker()
	if err != nil {
		return nil, err
	}
	if key != "" {
		if r.Key, err = ranking.ParseSortKey(key); err != nil {
			return nil, err
		}
	}
	if tieBreak != "" {
		if r.TieBreak, err = ranking.ParseTieBreak(tieBreak); err != nil {
			return nil, err
		}
	}
	return r, nil
}
