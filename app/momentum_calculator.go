package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"market-rankings/cache"
	"market-rankings/database"
	models "market-rankings/database/models_pkg"
	"market-rankings/momentum"
	"market-rankings/ranking"
)

// ErrNoQualifyingInstruments aborts a momentum run before any write
var ErrNoQualifyingInstruments = errors.New("no instruments with complete ROC history")

// MomentumCalculator scores the latest technical snapshot and persists the results
type MomentumCalculator struct {
	tech    TechnicalReader
	scores  ScoreWriter
	weights momentum.Weights
	topN    int
	rec     *Recorder
}

// MomentumResult summarizes one run
type MomentumResult struct {
	RunID              string           `json:"run_id"`
	Date               time.Time        `json:"date"`
	Universe           int              `json:"universe"`
	Written            int              `json:"written"`
	StockScoresUpdated int64            `json:"stock_scores_updated"`
	Top                []momentum.Score `json:"top"`
}

// NewMomentumCalculator creates a new momentum calculator
func NewMomentumCalculator(tech TechnicalReader, scores ScoreWriter, weights momentum.Weights, topN int, rec *Recorder) *MomentumCalculator {
	return &MomentumCalculator{
		tech:    tech,
		scores:  scores,
		weights: weights,
		topN:    topN,
		rec:     rec,
	}
}

// Run scores the full qualifying universe. symbols, when non-empty, restricts which
// rows are written; percentiles and z-scores always use the whole cross-section.
func (mc *MomentumCalculator) Run(ctx context.Context, symbols []string) (res *MomentumResult, err error) {
	ru := mc.rec.start(JobMomentum)
	defer func() {
		written := 0
		if res != nil {
			written = res.Written
		}
		ru.finish(ctx, statusOf(err), written, res)
	}()

	log.Info().Str("run_id", ru.id).Msg("📈 Calculating momentum scores...")

	rows, err := mc.tech.GetLatestTechnicalSnapshots(ctx)
	if err != nil {
		return nil, err
	}

	snaps := make([]momentum.Snapshot, 0, len(rows))
	var date time.Time
	for _, row := range rows {
		snaps = append(snaps, momentum.NewSnapshot(row.Symbol,
			row.ROC60D, row.ROC120D, row.ROC189D, row.ROC252D,
			row.MansfieldRS, row.RSI, row.SMA200, row.Close, row.VolumeSurge))
		if row.Date.After(date) {
			date = row.Date
		}
	}
	date = ranking.Date(date)

	universe := momentum.Qualifying(snaps)
	if len(universe) == 0 {
		log.Error().Int("rows", len(rows)).Msg("❌ No qualifying instruments, nothing written")
		return nil, ErrNoQualifyingInstruments
	}
	mc.rec.crossSection(JobMomentum, len(universe))

	ratings := momentum.CalculateRSRatings(universe, mc.weights.RS)
	scored := momentum.CalculateMomentumScores(universe, ratings, mc.weights)

	keep := symbolFilter(symbols)
	now := time.Now()
	history := make([]models.RSRatingHistory, 0, len(ratings))
	scoreRows := make([]models.MomentumScore, 0, len(scored))
	stockScores := make(map[string]float64, len(scored))
	for _, sym := range sortedKeys(scored) {
		if keep != nil && !keep[sym] {
			continue
		}
		s := scored[sym]
		if s.RSRating != nil {
			history = append(history, models.RSRatingHistory{Symbol: sym, Date: date, RSRating: *s.RSRating})
		}
		scoreRows = append(scoreRows, models.MomentumScore{
			Symbol:        sym,
			Date:          date,
			MomentumScore: s.MomentumScore,
			RSRating:      s.RSRating,
			CoreMomentum:  s.CoreMomentum,
			RegimeBoost:   s.RegimeBoost,
			CreatedAt:     now,
		})
		stockScores[sym] = s.MomentumScore
	}

	if err := mc.scores.UpsertRSRatingHistory(ctx, history); err != nil {
		return nil, err
	}
	mc.rec.rows(database.TableRSRatingHistory, len(history))

	if err := mc.scores.UpsertMomentumScores(ctx, scoreRows); err != nil {
		return nil, err
	}
	mc.rec.rows(database.TableMomentumScores, len(scoreRows))

	updated, err := mc.scores.UpdateStockScores(ctx, stockScores)
	if err != nil {
		return nil, err
	}
	mc.rec.rows(database.TableStockScores, int(updated))

	res = &MomentumResult{
		RunID:              ru.id,
		Date:               date,
		Universe:           len(universe),
		Written:            len(scoreRows),
		StockScoresUpdated: updated,
		Top:                topScores(scored, mc.topN),
	}
	mc.rec.cacheJSON(ctx, cache.MomentumLatestKey, res)

	log.Info().
		Str("date", date.Format("2006-01-02")).
		Int("universe", res.Universe).
		Int64("stock_scores", updated).
		Msgf("✅ Momentum scores written for %d symbols", res.Written)
	return res, nil
}

// topScores orders by score descending, then symbol
func topScores(scored map[string]momentum.Score, n int) []momentum.Score {
	out := make([]momentum.Score, 0, len(scored))
	for _, s := range scored {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MomentumScore != out[j].MomentumScore {
			return out[i].MomentumScore > out[j].MomentumScore
		}
		return out[i].Symbol < out[j].Symbol
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func sortedKeys(m map[string]momentum.Score) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// symbolFilter returns nil when every symbol should be kept
func symbolFilter(symbols []string) map[string]bool {
	var keep map[string]bool
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if keep == nil {
			keep = make(map[string]bool)
		}
		keep[s] = true
	}
	return keep
}

func (r *MomentumResult) String() string {
	return fmt.Sprintf("momentum %s: %d/%d symbols written", r.Date.Format("2006-01-02"), r.Written, r.Universe)
}
