package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-rankings/config"
	"market-rankings/database/types"
	"market-rankings/distribution"
	"market-rankings/momentum"
	"market-rankings/ranking"
)

func testApp(t *testing.T, tech *fakeTech) (*App, *fakeRankingStore, *fakeEvents) {
	t.Helper()
	cfg := config.LoadFromEnv()
	cfg.Ranking.Granularities = []string{"sector"}
	cfg.Distribution.Symbols = []string{"SPY"}

	store := newFakeRankingStore(sectorSeries())
	evs := &fakeEvents{}
	bars := &fakeBars{bars: map[string][]types.PriceBar{"SPY": {
		{Date: day(2024, 3, 27), Close: 100, Volume: i64(1000)},
		{Date: day(2024, 3, 28), Close: 101, Volume: i64(1000)},
	}}}

	a := New(cfg)
	a.Momentum = NewMomentumCalculator(tech, &fakeScores{}, momentum.DefaultWeights(), 10, nil)
	a.Rankings = newRankingCalc(store, newFakeCheckpoints(), nil)
	a.Distribution = NewDistributionCalculator(bars, evs, distribution.DefaultRules(), 90, nil)
	return a, store, evs
}

func TestRunOnceRunsEveryJob(t *testing.T) {
	a, store, evs := testApp(t, &fakeTech{rows: technicalRows()})

	require.NoError(t, a.RunOnce(context.Background()))
	assert.Equal(t, 1, store.sourceCalls[false])
	assert.Contains(t, evs.replaced, "SPY")
}

func TestRunOnceContinuesAfterFailure(t *testing.T) {
	a, _, evs := testApp(t, &fakeTech{})

	err := a.RunOnce(context.Background(), JobMomentum, JobDistribution)
	require.ErrorIs(t, err, ErrNoQualifyingInstruments)
	assert.Contains(t, err.Error(), "momentum:")
	assert.Contains(t, evs.replaced, "SPY")
}

func TestRunOnceUnknownJob(t *testing.T) {
	a, _, _ := testApp(t, &fakeTech{})
	assert.Error(t, a.RunOnce(context.Background(), "fundamentals"))
}

func TestJobsFromPayload(t *testing.T) {
	tests := []struct {
		payload string
		want    []string
		wantErr bool
	}{
		{payload: "", want: nil},
		{payload: "all", want: nil},
		{payload: "momentum", want: []string{JobMomentum}},
		{payload: " Rankings , distribution", want: []string{JobRankings, JobDistribution}},
		{payload: "prices", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			got, err := jobsFromPayload(tt.payload)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSchedule(t *testing.T) {
	a, _, _ := testApp(t, &fakeTech{})
	a.config.Schedule.Distribution = ""

	c, err := a.schedule(context.Background())
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 2)

	a.config.Schedule.Momentum = "every tuesday"
	_, err = a.schedule(context.Background())
	assert.Error(t, err)
}

func TestGranularities(t *testing.T) {
	a, _, _ := testApp(t, &fakeTech{})
	gs, err := a.Granularities()
	require.NoError(t, err)
	assert.Equal(t, []ranking.Granularity{ranking.Sector}, gs)
}
