package app

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-rankings/cache"
	"market-rankings/database/types"
	"market-rankings/metrics"
	"market-rankings/momentum"
)

func technicalRows() []types.TechnicalRow {
	date := day(2024, 3, 28)
	row := func(sym string, roc60, roc120, roc189, roc252 *float64) types.TechnicalRow {
		return types.TechnicalRow{
			Symbol: sym, Date: date,
			ROC60D: roc60, ROC120D: roc120, ROC189D: roc189, ROC252D: roc252,
			MansfieldRS: f64(1.2), RSI: f64(62), SMA200: f64(90), Close: f64(100), VolumeSurge: f64(1.4),
		}
	}
	return []types.TechnicalRow{
		row("AAA", f64(5), f64(10), f64(15), f64(40)),
		row("BBB", f64(2), f64(4), f64(6), f64(12)),
		row("CCC", f64(-3), f64(-6), f64(-2), f64(-10)),
		row("DDD", nil, f64(4), f64(6), f64(30)),
	}
}

func TestMomentumRunWritesQualifyingUniverse(t *testing.T) {
	store := &fakeScores{}
	c := &fakeCache{}
	m := metrics.New()
	calc := NewMomentumCalculator(&fakeTech{rows: technicalRows()}, store, momentum.DefaultWeights(), 2, NewRecorder(m, nil, c))

	res, err := calc.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, day(2024, 3, 28), res.Date)
	assert.Equal(t, 3, res.Universe)
	assert.Equal(t, 3, res.Written)
	assert.Len(t, store.history, 3)
	assert.Len(t, store.scores, 3)
	assert.NotContains(t, store.stockScores, "DDD")

	for _, row := range store.history {
		assert.GreaterOrEqual(t, row.RSRating, 0)
		assert.LessOrEqual(t, row.RSRating, 99)
	}

	require.Len(t, res.Top, 2)
	assert.GreaterOrEqual(t, res.Top[0].MomentumScore, res.Top[1].MomentumScore)
	assert.Equal(t, []string{cache.MomentumLatestKey}, c.keys())
	assert.Len(t, c.published, 1)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.CrossSectionSize.WithLabelValues(JobMomentum)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(JobMomentum, metrics.StatusSuccess)))
}

func TestMomentumSymbolFilterLimitsWritesOnly(t *testing.T) {
	full := &fakeScores{}
	_, err := NewMomentumCalculator(&fakeTech{rows: technicalRows()}, full, momentum.DefaultWeights(), 10, nil).Run(context.Background(), nil)
	require.NoError(t, err)

	filtered := &fakeScores{}
	res, err := NewMomentumCalculator(&fakeTech{rows: technicalRows()}, filtered, momentum.DefaultWeights(), 10, nil).Run(context.Background(), []string{" bbb "})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Universe)
	assert.Equal(t, 1, res.Written)
	require.Len(t, filtered.scores, 1)
	assert.Equal(t, "BBB", filtered.scores[0].Symbol)
	assert.Equal(t, full.stockScores["BBB"], filtered.stockScores["BBB"])
}

func TestMomentumNoQualifyingInstruments(t *testing.T) {
	rows := []types.TechnicalRow{{Symbol: "ZZZ", ROC60D: f64(1)}}
	store := &fakeScores{}
	m := metrics.New()

	_, err := NewMomentumCalculator(&fakeTech{rows: rows}, store, momentum.DefaultWeights(), 10, NewRecorder(m, nil, nil)).Run(context.Background(), nil)

	require.ErrorIs(t, err, ErrNoQualifyingInstruments)
	assert.Empty(t, store.history)
	assert.Empty(t, store.scores)
	assert.Nil(t, store.stockScores)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(JobMomentum, metrics.StatusFailed)))
}

func TestMomentumStorageErrorPropagates(t *testing.T) {
	boom := errors.New("connection reset")

	_, err := NewMomentumCalculator(&fakeTech{err: boom}, &fakeScores{}, momentum.DefaultWeights(), 10, nil).Run(context.Background(), nil)
	require.ErrorIs(t, err, boom)

	_, err = NewMomentumCalculator(&fakeTech{rows: technicalRows()}, &fakeScores{err: boom}, momentum.DefaultWeights(), 10, nil).Run(context.Background(), nil)
	require.ErrorIs(t, err, boom)
}
