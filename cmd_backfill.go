package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"market-rankings/app"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Rebuild ranking history for every trading date",
	Long: `Rank every distinct price_daily date in [--from, --to] in parallel
(RANKING_WORKERS). Failed dates or groups are reported at the end and never
abort the run. The checkpoint advances to the last date such that it and every
earlier date succeeded; --resume starts after it and --reset clears it.

Examples:
  market-rankings backfill --granularity sector
  market-rankings backfill --from 2023-01-01 --to 2023-12-31 --preload
  market-rankings backfill --fast --resume`,
	RunE: runBackfill,
}

var (
	backfillGranularity string
	backfillFrom        string
	backfillTo          string
	backfillResume      bool
	backfillReset       bool
	backfillPreload     bool
	backfillFast        bool
	backfillKey         string
	backfillTieBreak    string
)

func init() {
	rootCmd.AddCommand(backfillCmd)

	backfillCmd.Flags().StringVar(&backfillGranularity, "granularity", "", "sector or industry (default: RANKING_GRANULARITIES)")
	backfillCmd.Flags().StringVar(&backfillFrom, "from", "", "First date YYYY-MM-DD")
	backfillCmd.Flags().StringVar(&backfillTo, "to", "", "Last date YYYY-MM-DD")
	backfillCmd.Flags().BoolVar(&backfillResume, "resume", false, "Start after the stored checkpoint")
	backfillCmd.Flags().BoolVar(&backfillReset, "reset", false, "Clear the stored checkpoint before running")
	backfillCmd.Flags().BoolVar(&backfillPreload, "preload", false, "Load the group series once and resolve lookups in memory")
	backfillCmd.Flags().BoolVar(&backfillFast, "fast", false, "Rank by aggregate closing-price sums")
	backfillCmd.Flags().StringVar(&backfillKey, "key", "", "Ranking key (default: RANKING_KEY)")
	backfillCmd.Flags().StringVar(&backfillTieBreak, "tie-break", "", "key, recency or source (default: RANKING_TIE_BREAK)")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	from, err := parseDay(backfillFrom)
	if err != nil {
		return err
	}
	to, err := parseDay(backfillTo)
	if err != nil {
		return err
	}
	if from != nil && to != nil && to.Before(*from) {
		return fmt.Errorf("--to %s is before --from %s", backfillTo, backfillFrom)
	}
	gs, err := granularities(backfillGranularity)
	if err != nil {
		return err
	}
	ranker, err := rankerOverrides(backfillKey, backfillTieBreak)
	if err != nil {
		return err
	}

	opts := app.BackfillOptions{
		From:    from,
		To:      to,
		Resume:  backfillResume,
		Reset:   backfillReset,
		Preload: backfillPreload,
		Variant: app.VariantCurrent,
	}
	if backfillFast {
		opts.Variant = app.VariantFast
	}

	calc := application.Rankings.WithRanker(ranker)
	var errs []error
	for _, g := range gs {
		report, err := calc.Backfill(ctx, g, opts)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", g, err))
			continue
		}
		watermark := "none"
		if report.Watermark != nil {
			watermark = report.Watermark.Format("2006-01-02")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d/%d dates, %d rows, %d failures, checkpoint %s\n",
			g, report.Succeeded, report.Dates, report.RowsWritten, len(report.Failures), watermark)
		for _, f := range report.Failures {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %v\n", f)
		}
		if err := report.Err(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", g, err))
		}
	}
	return errors.Join(errs...)
}
