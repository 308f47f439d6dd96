package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"market-rankings/cache"
	"market-rankings/metrics"
	"market-rankings/notifications"
	"market-rankings/realtime"
)

// Job names used in metrics, events and logs
const (
	JobMomentum     = "momentum"
	JobRankings     = "rankings"
	JobBackfill     = "rankings_backfill"
	JobDistribution = "distribution"
)

// Recorder reports run progress to metrics, the event broker and the result cache.
// Every sink is optional.
type Recorder struct {
	metrics *metrics.Registry
	broker  *realtime.Broker
	cache   ResultCache

	notifier RunNotifier
}

// RunNotifier receives finished-run outcomes, e.g. a webhook
type RunNotifier interface {
	Notify(p notifications.RunPayload)
}

// NewRecorder creates a recorder; nil sinks are skipped
func NewRecorder(m *metrics.Registry, broker *realtime.Broker, c ResultCache) *Recorder {
	return &Recorder{metrics: m, broker: broker, cache: c}
}

// WithNotifier sets the outcome notifier and returns r
func (r *Recorder) WithNotifier(n RunNotifier) *Recorder {
	r.notifier = n
	return r
}

// run tracks one calculator invocation
type run struct {
	rec     *Recorder
	job     string
	id      string
	started time.Time
}

func (r *Recorder) start(job string) *run {
	ru := &run{rec: r, job: job, id: uuid.NewString(), started: time.Now()}
	if r != nil && r.broker != nil {
		r.broker.Publish(realtime.Event{Type: realtime.EventRunStarted, Job: job, RunID: ru.id})
	}
	return ru
}

// finish records the outcome. rows is the number of rows written by the run.
func (ru *run) finish(ctx context.Context, status string, rows int, detail interface{}) {
	r := ru.rec
	if r == nil {
		return
	}
	if r.metrics != nil {
		r.metrics.ObserveRun(ru.job, status, ru.started)
	}
	if r.broker != nil {
		r.broker.Publish(realtime.Event{Type: realtime.EventRunFinished, Job: ru.job, RunID: ru.id, Status: status, Detail: detail})
	}
	if r.cache != nil {
		msg := map[string]interface{}{"job": ru.job, "run_id": ru.id, "status": status, "rows": rows}
		if err := r.cache.Publish(ctx, cache.EventsChannel, msg); err != nil {
			log.Warn().Err(err).Str("job", ru.job).Msg("⚠️ Failed to publish run event")
		}
	}
	if r.notifier != nil {
		r.notifier.Notify(notifications.RunPayload{Job: ru.job, RunID: ru.id, Status: status, Rows: rows, FinishedAt: time.Now()})
	}
}

func (ru *run) unitFailed(f UnitFailure) {
	r := ru.rec
	if r == nil || r.broker == nil {
		return
	}
	r.broker.Publish(realtime.Event{
		Type:   realtime.EventUnitFailed,
		Job:    ru.job,
		RunID:  ru.id,
		Detail: map[string]string{"date": f.Date.Format("2006-01-02"), "group": f.Group, "error": f.Err.Error()},
	})
}

func (r *Recorder) cacheJSON(ctx context.Context, key string, value interface{}) {
	if r == nil || r.cache == nil {
		return
	}
	if err := r.cache.SetJSON(ctx, key, value); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("⚠️ Failed to cache result")
	}
}

func (r *Recorder) rows(table string, n int) {
	if r != nil && r.metrics != nil {
		r.metrics.AddRows(table, n)
	}
}

func (r *Recorder) failures(job string, n int) {
	if r != nil && r.metrics != nil {
		r.metrics.AddFailures(job, n)
	}
}

func (r *Recorder) crossSection(job string, n int) {
	if r != nil && r.metrics != nil {
		r.metrics.SetCrossSection(job, n)
	}
}

func (r *Recorder) distributionCount(symbol string, n int) {
	if r != nil && r.metrics != nil {
		r.metrics.SetDistributionCount(symbol, n)
	}
}

func statusOf(err error) string {
	if err != nil {
		return metrics.StatusFailed
	}
	return metrics.StatusSuccess
}
