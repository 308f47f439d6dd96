package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"market-rankings/app"
)

var momentumCmd = &cobra.Command{
	Use:   "momentum",
	Short: "Score the latest technical snapshot",
	Long: `Compute RS ratings and momentum scores for every instrument with complete
ROC history on the most recent technical date, then write rs_rating_history,
momentum_scores and stock_scores.momentum_score.

Examples:
  market-rankings momentum
  market-rankings momentum --symbols AAPL,MSFT`,
	RunE: runMomentum,
}

var rankingsCmd = &cobra.Command{
	Use:   "rankings",
	Short: "Rank groups for a single reference date",
	Long: `Rank sectors and/or industries as of a reference date (default today) and
record their ranks 1, 4 and 12 weeks earlier.

Examples:
  market-rankings rankings
  market-rankings rankings --granularity industry --date 2024-03-29
  market-rankings rankings --variant fast
  market-rankings rankings --key relative_strength --tie-break recency`,
	RunE: runRankings,
}

var distributionCmd = &cobra.Command{
	Use:   "distribution",
	Short: "Detect distribution days on benchmark indexes",
	RunE:  runDistribution,
}

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Run momentum, rankings and distribution once",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()
		return application.RunOnce(ctx)
	},
}

var (
	momentumSymbols     []string
	rankingsGranularity string
	rankingsDate        string
	rankingsVariant     string
	rankingsKey         string
	rankingsTieBreak    string
	distributionSymbols []string
)

func init() {
	rootCmd.AddCommand(momentumCmd, rankingsCmd, distributionCmd, allCmd)

	momentumCmd.Flags().StringSliceVar(&momentumSymbols, "symbols", nil, "Only write these symbols (the cross-section is unchanged)")

	rankingsCmd.Flags().StringVar(&rankingsGranularity, "granularity", "", "sector or industry (default: RANKING_GRANULARITIES)")
	rankingsCmd.Flags().StringVar(&rankingsDate, "date", "", "Reference date YYYY-MM-DD (default: today)")
	rankingsCmd.Flags().StringVar(&rankingsVariant, "variant", string(app.VariantCurrent), "current or fast")
	rankingsCmd.Flags().StringVar(&rankingsKey, "key", "", "Ranking key (default: RANKING_KEY)")
	rankingsCmd.Flags().StringVar(&rankingsTieBreak, "tie-break", "", "key, recency or source (default: RANKING_TIE_BREAK)")

	distributionCmd.Flags().StringSliceVar(&distributionSymbols, "symbols", nil, "Index symbols (default: DISTRIBUTION_SYMBOLS)")
}

func runMomentum(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	res, err := application.Momentum.Run(ctx, momentumSymbols)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res)
	return nil
}

func runRankings(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	variant, err := app.ParseVariant(rankingsVariant)
	if err != nil {
		return err
	}
	gs, err := granularities(rankingsGranularity)
	if err != nil {
		return err
	}
	date := time.Now()
	if d, err := parseDay(rankingsDate); err != nil {
		return err
	} else if d != nil {
		date = *d
	}
	ranker, err := rankerOverrides(rankingsKey, rankingsTieBreak)
	if err != nil {
		return err
	}

	calc := application.Rankings.WithRanker(ranker)
	var errs []error
	for _, g := range gs {
		snaps, err := calc.RunDate(ctx, g, date, variant)
		if err != nil {
			log.Error().Err(err).Str("granularity", string(g)).Msg("❌ Ranking failed")
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d groups ranked\n", g, date.Format("2006-01-02"), len(snaps))
	}
	return errors.Join(errs...)
}

func runDistribution(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	symbols := distributionSymbols
	if len(symbols) == 0 {
		symbols = cfg.Distribution.Symbols
	}
	report, err := application.Distribution.Run(ctx, symbols)
	for _, sym := range symbols {
		if res, ok := report.Results[sym]; ok {
			fmt.Fprintf(cmd.OutOrStdout(), "%-6s %-17s %d\n", sym, res.Signal, res.Count)
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), report)
	return err
}
