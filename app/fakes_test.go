package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"market-rankings/database"
	models "market-rankings/database/models_pkg"
	"market-rankings/database/types"
	"market-rankings/ranking"
)

func f64(v float64) *float64 { return &v }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fakeTech struct {
	rows []types.TechnicalRow
	err  error
}

func (f *fakeTech) GetLatestTechnicalSnapshots(context.Context) ([]types.TechnicalRow, error) {
	return f.rows, f.err
}

type fakeScores struct {
	history     []models.RSRatingHistory
	scores      []models.MomentumScore
	stockScores map[string]float64
	err         error
}

func (f *fakeScores) UpsertRSRatingHistory(_ context.Context, rows []models.RSRatingHistory) error {
	if f.err != nil {
		return f.err
	}
	f.history = append(f.history, rows...)
	return nil
}

func (f *fakeScores) UpsertMomentumScores(_ context.Context, rows []models.MomentumScore) error {
	f.scores = append(f.scores, rows...)
	return nil
}

func (f *fakeScores) UpdateStockScores(_ context.Context, scores map[string]float64) (int64, error) {
	f.stockScores = scores
	return int64(len(scores)), nil
}

// fakeRankingStore serves observations from memory and records writes
type fakeRankingStore struct {
	obs     []ranking.Observation
	fastObs []ranking.Observation

	failBatch map[time.Time]bool
	failGroup map[string]bool

	mu          sync.Mutex
	sourceCalls map[bool]int
	seriesCalls int
	written     map[time.Time][]ranking.Snapshot
}

func newFakeRankingStore(obs []ranking.Observation) *fakeRankingStore {
	return &fakeRankingStore{
		obs:         obs,
		failBatch:   map[time.Time]bool{},
		failGroup:   map[string]bool{},
		sourceCalls: map[bool]int{},
		written:     map[time.Time][]ranking.Snapshot{},
	}
}

func (f *fakeRankingStore) Source(_ ranking.Granularity, fast bool) ranking.Source {
	f.mu.Lock()
	f.sourceCalls[fast]++
	f.mu.Unlock()
	if fast {
		return ranking.NewSeries(f.fastObs)
	}
	return ranking.NewSeries(f.obs)
}

func (f *fakeRankingStore) LoadSeries(context.Context, ranking.Granularity, time.Time) ([]ranking.Observation, error) {
	f.mu.Lock()
	f.seriesCalls++
	f.mu.Unlock()
	return f.obs, nil
}

func (f *fakeRankingStore) UpsertSnapshots(_ context.Context, _ ranking.Granularity, snaps []ranking.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := snaps[0].SnapshotDate
	if f.failBatch[d] {
		return errors.New("deadlock detected")
	}
	f.written[d] = append(f.written[d], snaps...)
	return nil
}

func (f *fakeRankingStore) UpsertSnapshot(_ context.Context, _ ranking.Granularity, snap ranking.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGroup[snap.Key.String()] {
		return errors.New("value out of range")
	}
	f.written[snap.SnapshotDate] = append(f.written[snap.SnapshotDate], snap)
	return nil
}

type fakeDates struct {
	dates []time.Time
	from  *time.Time
	to    *time.Time
}

func (f *fakeDates) GetDistinctDates(_ context.Context, from, to *time.Time) ([]time.Time, error) {
	f.from, f.to = from, to
	var out []time.Time
	for _, d := range f.dates {
		if from != nil && d.Before(*from) {
			continue
		}
		if to != nil && d.After(*to) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

type fakeCheckpoints struct {
	stored map[string]database.RankingCheckpoint
	saved  []database.RankingCheckpoint
}

func newFakeCheckpoints() *fakeCheckpoints {
	return &fakeCheckpoints{stored: map[string]database.RankingCheckpoint{}}
}

func (f *fakeCheckpoints) GetCheckpoint(_ context.Context, job, granularity string) (*database.RankingCheckpoint, error) {
	cp, ok := f.stored[job+"/"+granularity]
	if !ok {
		return nil, database.NewNotFoundErrorWithID("checkpoint", job+"/"+granularity)
	}
	return &cp, nil
}

func (f *fakeCheckpoints) SaveCheckpoint(_ context.Context, job, granularity string, lastDate time.Time, runID string) error {
	cp := database.RankingCheckpoint{Job: job, Granularity: granularity, LastDate: lastDate, RunID: runID}
	f.stored[job+"/"+granularity] = cp
	f.saved = append(f.saved, cp)
	return nil
}

func (f *fakeCheckpoints) ClearCheckpoint(_ context.Context, job, granularity string) error {
	delete(f.stored, job+"/"+granularity)
	return nil
}

type fakeBars struct {
	bars map[string][]types.PriceBar
	errs map[string]error
}

func (f *fakeBars) GetRecentBars(_ context.Context, symbol string, _ int) ([]types.PriceBar, error) {
	if err := f.errs[symbol]; err != nil {
		return nil, err
	}
	return f.bars[symbol], nil
}

type fakeEvents struct {
	replaced map[string][]models.DistributionDay
}

func (f *fakeEvents) ReplaceDistributionDays(_ context.Context, symbol string, days []models.DistributionDay) error {
	if f.replaced == nil {
		f.replaced = map[string][]models.DistributionDay{}
	}
	f.replaced[symbol] = days
	return nil
}

type fakeCache struct {
	mu        sync.Mutex
	values    map[string]interface{}
	published []interface{}
}

func (f *fakeCache) SetJSON(_ context.Context, key string, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values == nil {
		f.values = map[string]interface{}{}
	}
	f.values[key] = value
	return nil
}

func (f *fakeCache) Publish(_ context.Context, _ string, message interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, message)
	return nil
}

func (f *fakeCache) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.values))
	for k := range f.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
