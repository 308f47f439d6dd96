package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"market-rankings/cache"
	"market-rankings/database"
	"market-rankings/ranking"
)

// Variant selects the observation source of a ranking run
type Variant string

const (
	// VariantCurrent ranks the loaders' group performance series
	VariantCurrent Variant = "current"
	// VariantFast ranks aggregate closing-price sums and records their CAGR
	VariantFast Variant = "fast"
)

// ParseVariant accepts "current" or "fast"
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case VariantCurrent, VariantFast:
		return v, nil
	case "":
		return VariantCurrent, nil
	default:
		return "", fmt.Errorf("unknown variant %q", s)
	}
}

// RankingCalculator builds and persists ranking snapshots
type RankingCalculator struct {
	store       RankingStore
	dates       DateReader
	checkpoints CheckpointStore
	ranker      *ranking.Ranker
	workers     int
	unitTimeout time.Duration
	rec         *Recorder
}

// NewRankingCalculator creates a new ranking calculator
func NewRankingCalculator(store RankingStore, dates DateReader, checkpoints CheckpointStore, ranker *ranking.Ranker, workers int, unitTimeout time.Duration, rec *Recorder) *RankingCalculator {
	if workers <= 0 {
		workers = 1
	}
	return &RankingCalculator{
		store:       store,
		dates:       dates,
		checkpoints: checkpoints,
		ranker:      ranker,
		workers:     workers,
		unitTimeout: unitTimeout,
		rec:         rec,
	}
}

// WithRanker returns a copy using a different ranker
func (rc *RankingCalculator) WithRanker(r *ranking.Ranker) *RankingCalculator {
	cp := *rc
	cp.ranker = r
	return &cp
}

// rankerFor pins the fast variant to the price-sum key
func (rc *RankingCalculator) rankerFor(v Variant) *ranking.Ranker {
	if v != VariantFast {
		return rc.ranker
	}
	r := *rc.ranker
	r.Key = ranking.ByPriceSum
	return &r
}

// RunDate ranks every group of g as of date and upserts the cross-section.
// Storage failures are returned to the caller.
func (rc *RankingCalculator) RunDate(ctx context.Context, g ranking.Granularity, date time.Time, v Variant) (snaps []ranking.Snapshot, err error) {
	ru := rc.rec.start(JobRankings)
	defer func() {
		ru.finish(ctx, statusOf(err), len(snaps), map[string]interface{}{
			"granularity": g, "date": ranking.Date(date).Format("2006-01-02"), "variant": v, "groups": len(snaps),
		})
	}()

	log.Info().Str("granularity", string(g)).Str("date", ranking.Date(date).Format("2006-01-02")).Str("variant", string(v)).Msg("🏁 Ranking groups...")

	r := rc.rankerFor(v)
	snaps, err = r.RankGroupsAsOf(ctx, rc.store.Source(g, v == VariantFast), date)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		log.Warn().Str("granularity", string(g)).Msg("⚠️ No groups with a ranking value on this date")
		return snaps, nil
	}

	if err := rc.store.UpsertSnapshots(ctx, g, snaps); err != nil {
		return nil, err
	}
	rc.rec.rows(tableFor(g), len(snaps))
	rc.rec.crossSection(JobRankings+":"+string(g), len(snaps))
	rc.rec.cacheJSON(ctx, cache.RankingsKey(g), snaps)

	log.Info().Str("granularity", string(g)).Msgf("✅ Ranked %d groups", len(snaps))
	return snaps, nil
}

func tableFor(g ranking.Granularity) string {
	if g == ranking.Industry {
		return database.TableIndustryRanking
	}
	return database.TableSectorRanking
}
