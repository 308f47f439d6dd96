package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"market-rankings/database"
	"market-rankings/metrics"
	"market-rankings/ranking"
)

// UnitFailure is a reference date, or one group on that date, that could not be written.
// Group is empty when the whole date failed.
type UnitFailure struct {
	Date  time.Time
	Group string
	Err   error
}

func (f UnitFailure) Error() string {
	if f.Group == "" {
		return fmt.Sprintf("%s: %v", f.Date.Format("2006-01-02"), f.Err)
	}
	return fmt.Sprintf("%s %s: %v", f.Date.Format("2006-01-02"), f.Group, f.Err)
}

func (f UnitFailure) Unwrap() error { return f.Err }

// BackfillOptions bounds and tunes a historical run
type BackfillOptions struct {
	From    *time.Time
	To      *time.Time
	Resume  bool // start after the stored checkpoint
	Reset   bool // clear the stored checkpoint first
	Preload bool // load the group series once and resolve as-of lookups in memory
	Variant Variant
}

// BackfillReport summarizes a historical run. Failures never abort the batch.
type BackfillReport struct {
	RunID       string
	Granularity ranking.Granularity
	Variant     Variant
	Dates       int
	Succeeded   int
	RowsWritten int
	Failures    []UnitFailure
	Watermark   *time.Time // latest date such that it and every earlier date of the run succeeded
}

// Failed reports whether any unit failed
func (r *BackfillReport) Failed() bool { return len(r.Failures) > 0 }

// Err joins the unit failures, or returns nil
func (r *BackfillReport) Err() error {
	if !r.Failed() {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return fmt.Errorf("%d backfill units failed: %w", len(r.Failures), errors.Join(errs...))
}

func checkpointJob(v Variant) string {
	if v == VariantFast {
		return database.JobRankingFastBackfill
	}
	return database.JobRankingBackfill
}

// Backfill ranks every distinct trading date in [From, To] in parallel.
// Each date is an independent unit with its own deadline; a failed unit is recorded
// and the rest proceed. The checkpoint advances to the contiguous watermark.
func (rc *RankingCalculator) Backfill(ctx context.Context, g ranking.Granularity, opts BackfillOptions) (report *BackfillReport, err error) {
	if opts.Variant == "" {
		opts.Variant = VariantCurrent
	}
	if opts.Preload && opts.Variant == VariantFast {
		return nil, fmt.Errorf("preload is only supported for the %s variant", VariantCurrent)
	}
	if opts.Reset && opts.Resume {
		return nil, errors.New("reset and resume are mutually exclusive")
	}

	ru := rc.rec.start(JobBackfill)
	report = &BackfillReport{RunID: ru.id, Granularity: g, Variant: opts.Variant}
	defer func() {
		status := statusOf(err)
		if err == nil && report.Failed() {
			status = metrics.StatusPartial
		}
		rc.rec.failures(JobBackfill, len(report.Failures))
		ru.finish(ctx, status, report.RowsWritten, map[string]interface{}{
			"granularity": g, "variant": opts.Variant, "dates": report.Dates,
			"succeeded": report.Succeeded, "failures": len(report.Failures),
		})
	}()

	job := checkpointJob(opts.Variant)
	from := opts.From
	if opts.Reset {
		if err := rc.checkpoints.ClearCheckpoint(ctx, job, string(g)); err != nil {
			return report, err
		}
		log.Info().Str("job", job).Str("granularity", string(g)).Msg("🧹 Checkpoint cleared")
	}
	if opts.Resume {
		cp, err := rc.checkpoints.GetCheckpoint(ctx, job, string(g))
		switch {
		case err == nil:
			next := ranking.Date(cp.LastDate).AddDate(0, 0, 1)
			if from == nil || next.After(*from) {
				from = &next
			}
			log.Info().Str("checkpoint", cp.LastDate.Format("2006-01-02")).Msg("⏩ Resuming backfill after checkpoint")
		case database.IsNotFound(err):
			log.Info().Str("job", job).Msg("No checkpoint found, starting from the beginning")
		default:
			return report, err
		}
	}

	dates, err := rc.dates.GetDistinctDates(ctx, from, opts.To)
	if err != nil {
		return report, err
	}
	report.Dates = len(dates)
	if len(dates) == 0 {
		log.Info().Str("granularity", string(g)).Msg("Nothing to backfill")
		return report, nil
	}

	src := rc.store.Source(g, opts.Variant == VariantFast)
	if opts.Preload {
		obs, err := rc.store.LoadSeries(ctx, g, dates[len(dates)-1])
		if err != nil {
			return report, err
		}
		series := ranking.NewSeries(obs)
		src = series
		log.Info().Int("observations", len(obs)).Int("groups", series.Len()).Msg("📦 Preloaded group series")
	}

	log.Info().
		Str("run_id", ru.id).
		Str("granularity", string(g)).
		Str("variant", string(opts.Variant)).
		Int("workers", rc.workers).
		Msgf("🔄 Backfilling %d dates (%s → %s)", len(dates), dates[0].Format("2006-01-02"), dates[len(dates)-1].Format("2006-01-02"))

	r := rc.rankerFor(opts.Variant)
	ok := make([]bool, len(dates))
	var mu sync.Mutex

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(rc.workers)
	for i, d := range dates {
		i, d := i, ranking.Date(d)
		eg.Go(func() error {
			written, fails := rc.backfillUnit(egCtx, r, src, g, d)

			mu.Lock()
			report.RowsWritten += written
			report.Failures = append(report.Failures, fails...)
			mu.Unlock()

			for _, f := range fails {
				ru.unitFailed(f)
				log.Warn().Err(f.Err).Str("date", d.Format("2006-01-02")).Str("group", f.Group).Msg("⚠️ Backfill unit failed")
			}
			ok[i] = len(fails) == 0
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return report, err
	}

	var watermark *time.Time
	for i, d := range dates {
		if !ok[i] {
			break
		}
		wm := ranking.Date(d)
		watermark = &wm
	}
	for _, good := range ok {
		if good {
			report.Succeeded++
		}
	}
	report.Watermark = watermark
	rc.rec.rows(tableFor(g), report.RowsWritten)

	if watermark != nil {
		if err := rc.checkpoints.SaveCheckpoint(ctx, job, string(g), *watermark, ru.id); err != nil {
			return report, err
		}
	}

	log.Info().
		Int("succeeded", report.Succeeded).
		Int("failures", len(report.Failures)).
		Int("rows", report.RowsWritten).
		Msgf("✅ Backfill complete for %s", g)
	return report, nil
}

// backfillUnit ranks and writes one date. A failed batch upsert is retried row by
// row so one bad group does not cost the whole date.
func (rc *RankingCalculator) backfillUnit(ctx context.Context, r *ranking.Ranker, src ranking.Source, g ranking.Granularity, d time.Time) (int, []UnitFailure) {
	if rc.unitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rc.unitTimeout)
		defer cancel()
	}

	snaps, err := r.RankGroupsAsOf(ctx, src, d)
	if err != nil {
		return 0, []UnitFailure{{Date: d, Err: err}}
	}
	if len(snaps) == 0 {
		return 0, nil
	}

	if err := rc.store.UpsertSnapshots(ctx, g, snaps); err == nil {
		return len(snaps), nil
	} else if ctx.Err() != nil {
		return 0, []UnitFailure{{Date: d, Err: err}}
	}

	written := 0
	var fails []UnitFailure
	for _, s := range snaps {
		if err := rc.store.UpsertSnapshot(ctx, g, s); err != nil {
			fails = append(fails, UnitFailure{Date: d, Group: s.Key.String(), Err: err})
			continue
		}
		written++
	}
	return written, fails
}
