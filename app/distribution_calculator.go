package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"market-rankings/cache"
	"market-rankings/database"
	models "market-rankings/database/models_pkg"
	"market-rankings/database/types"
	"market-rankings/distribution"
	"market-rankings/metrics"
)

// DistributionCalculator detects distribution days for a list of index symbols
type DistributionCalculator struct {
	bars        BarReader
	events      EventWriter
	rules       distribution.Rules
	historyRows int
	rec         *Recorder
}

// DistributionReport holds per-symbol results of one run
type DistributionReport struct {
	RunID    string                         `json:"run_id"`
	Results  map[string]distribution.Result `json:"results"`
	Failures map[string]error               `json:"-"`
}

// NewDistributionCalculator creates a new distribution calculator
func NewDistributionCalculator(bars BarReader, events EventWriter, rules distribution.Rules, historyRows int, rec *Recorder) *DistributionCalculator {
	return &DistributionCalculator{
		bars:        bars,
		events:      events,
		rules:       rules,
		historyRows: historyRows,
		rec:         rec,
	}
}

// Run evaluates each symbol independently. A failing symbol is logged and the
// rest proceed; the joined failures are returned after every symbol ran.
func (dc *DistributionCalculator) Run(ctx context.Context, symbols []string) (report *DistributionReport, err error) {
	ru := dc.rec.start(JobDistribution)
	report = &DistributionReport{
		RunID:    ru.id,
		Results:  make(map[string]distribution.Result, len(symbols)),
		Failures: make(map[string]error),
	}
	defer func() {
		status := statusOf(err)
		if err != nil && len(report.Results) > 0 {
			status = metrics.StatusPartial
		}
		written := 0
		for _, res := range report.Results {
			written += res.Count
		}
		dc.rec.failures(JobDistribution, len(report.Failures))
		ru.finish(ctx, status, written, report.Results)
	}()

	var errs []error
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := dc.runSymbol(ctx, symbol)
		if err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("❌ Distribution day detection failed")
			report.Failures[symbol] = err
			errs = append(errs, err)
			continue
		}
		report.Results[symbol] = res
	}

	return report, errors.Join(errs...)
}

func (dc *DistributionCalculator) runSymbol(ctx context.Context, symbol string) (distribution.Result, error) {
	rows, err := dc.bars.GetRecentBars(ctx, symbol, dc.historyRows)
	if err != nil {
		return distribution.Result{}, err
	}

	res := distribution.Detect(toBars(rows), dc.rules)
	if res.Signal == distribution.InsufficientData {
		log.Warn().Str("symbol", symbol).Int("bars", len(rows)).Msg("⚠️ Insufficient history, stored events left unchanged")
		return res, nil
	}

	now := time.Now()
	days := make([]models.DistributionDay, len(res.Days))
	for i, d := range res.Days {
		days[i] = models.DistributionDay{
			Symbol:      symbol,
			Date:        d.Date,
			ClosePrice:  d.Close,
			ChangePct:   d.ChangePct,
			Volume:      d.Volume,
			VolumeRatio: d.VolumeRatio,
			DaysAgo:     d.DaysAgo,
			Signal:      string(res.Signal),
			EvaluatedAt: now,
		}
	}
	if err := dc.events.ReplaceDistributionDays(ctx, symbol, days); err != nil {
		return distribution.Result{}, err
	}

	dc.rec.rows(database.TableDistributionDays, len(days))
	dc.rec.distributionCount(symbol, res.Count)
	dc.rec.cacheJSON(ctx, cache.DistributionKey(symbol), res)

	log.Info().Str("symbol", symbol).Str("signal", string(res.Signal)).Msgf("📉 %d distribution days in the last %d sessions", res.Count, dc.rules.LookbackDays)
	return res, nil
}

// toBars treats a NULL volume as zero, which never qualifies as a distribution day
func toBars(rows []types.PriceBar) []distribution.Bar {
	bars := make([]distribution.Bar, len(rows))
	for i, r := range rows {
		var vol int64
		if r.Volume != nil {
			vol = *r.Volume
		}
		bars[i] = distribution.Bar{Date: r.Date, Close: r.Close, Volume: vol}
	}
	return bars
}

func (r *DistributionReport) String() string {
	return fmt.Sprintf("distribution: %d symbols evaluated, %d failed", len(r.Results), len(r.Failures))
}
