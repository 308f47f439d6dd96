package ranking

import (
	"context"
	"errors"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func obs(sector, fetched string, perf1d float64) Observation {
	return Observation{Key: GroupKey{Sector: sector}, FetchedAt: day(fetched), Performance1D: f(perf1d)}
}

func TestRankDenseInvariant(t *testing.T) {
	cross := []Observation{
		obs("Energy", "2024-03-01", 1.5),
		obs("Technology", "2024-03-01", 3.2),
		obs("Utilities", "2024-03-01", -0.4),
		obs("Financials", "2024-03-01", 0.9),
		obs("Healthcare", "2024-03-01", 3.2),
		{Key: GroupKey{Sector: "Materials"}, FetchedAt: day("2024-03-01")}, // NULL key value
	}

	ranked := Rank(cross, ByPerformance1D, TieBreakKey)
	require.Len(t, ranked, 5)

	ranks := make([]int, len(ranked))
	for i, r := range ranked {
		ranks[i] = r.Rank
		assert.NotEqual(t, "Materials", r.Key.Sector)
	}
	sort.Ints(ranks)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ranks)

	// tie on 3.2 broken lexicographically
	assert.Equal(t, "Healthcare", ranked[0].Key.Sector)
	assert.Equal(t, "Technology", ranked[1].Key.Sector)
	assert.Equal(t, "Utilities", ranked[4].Key.Sector)
}

func TestRankExcludesNonFiniteKeys(t *testing.T) {
	cross := []Observation{
		obs("A", "2024-03-01", 1),
		obs("B", "2024-03-01", math.NaN()),
		obs("C", "2024-03-01", 3),
		obs("D", "2024-03-01", 2),
		obs("E", "2024-03-01", math.Inf(1)),
	}

	ranked := Rank(cross, ByPerformance1D, TieBreakKey)
	require.Len(t, ranked, 3)
	for i, want := range []string{"C", "D", "A"} {
		assert.Equal(t, want, ranked[i].Key.Sector)
		assert.Equal(t, i+1, ranked[i].Rank)
	}
}

func TestFinite(t *testing.T) {
	assert.Nil(t, Finite(nil))
	assert.Nil(t, Finite(f(math.NaN())))
	assert.Nil(t, Finite(f(math.Inf(-1))))

	v := f(2.5)
	got := Finite(v)
	require.NotNil(t, got)
	assert.Equal(t, 2.5, *got)
	assert.NotSame(t, v, got)
}

func TestRankKeys(t *testing.T) {
	one, two, three := 1, 2, 3
	cross := []Observation{
		{Key: GroupKey{Sector: "A"}, OverallRank: &three, PriceSum: f(300)},
		{Key: GroupKey{Sector: "B"}, OverallRank: &one, PriceSum: f(100)},
		{Key: GroupKey{Sector: "C"}, OverallRank: &two, PriceSum: f(200)},
	}

	t.Run("overall_rank ascending", func(t *testing.T) {
		ranked := Rank(cross, ByOverallRank, TieBreakKey)
		require.Len(t, ranked, 3)
		assert.Equal(t, []string{"B", "C", "A"}, sectors(ranked))
	})

	t.Run("price_sum descending", func(t *testing.T) {
		ranked := Rank(cross, ByPriceSum, TieBreakKey)
		assert.Equal(t, []string{"A", "C", "B"}, sectors(ranked))
	})

	t.Run("missing metric excludes every group", func(t *testing.T) {
		assert.Empty(t, Rank(cross, ByMomentum, TieBreakKey))
	})
}

func TestRankTieBreaks(t *testing.T) {
	cross := []Observation{
		{Key: GroupKey{Sector: "Zeta"}, FetchedAt: day("2024-03-01"), Performance1D: f(1)},
		{Key: GroupKey{Sector: "Alpha"}, FetchedAt: day("2024-02-28"), Performance1D: f(1)},
		{Key: GroupKey{Sector: "Mid"}, FetchedAt: day("2024-03-01"), Performance1D: f(1)},
	}

	tests := []struct {
		tb   TieBreak
		want []string
	}{
		{tb: TieBreakKey, want: []string{"Alpha", "Mid", "Zeta"}},
		{tb: TieBreakRecency, want: []string{"Mid", "Zeta", "Alpha"}},
		{tb: TieBreakSource, want: []string{"Zeta", "Alpha", "Mid"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.tb), func(t *testing.T) {
			assert.Equal(t, tt.want, sectors(Rank(cross, ByPerformance1D, tt.tb)))
		})
	}
}

func TestParseSortKeyAndTieBreak(t *testing.T) {
	k, err := ParseSortKey(" Performance_5D ")
	require.NoError(t, err)
	assert.Equal(t, ByPerformance5D, k)

	_, err = ParseSortKey("volume")
	assert.True(t, errors.Is(err, ErrUnknownSortKey))

	tb, err := ParseTieBreak("recency")
	require.NoError(t, err)
	assert.Equal(t, TieBreakRecency, tb)

	_, err = ParseTieBreak("random")
	assert.True(t, errors.Is(err, ErrUnknownTieBreak))

	g, err := ParseGranularity("INDUSTRY")
	require.NoError(t, err)
	assert.Equal(t, Industry, g)

	_, err = ParseGranularity("country")
	assert.ErrorIs(t, err, ErrUnknownGranularity)
}

func TestLatestAsOf(t *testing.T) {
	rows := []Observation{
		obs("Energy", "2024-01-01", 1),
		obs("Energy", "2024-01-20", 3),
		obs("Energy", "2024-01-10", 2),
	}

	got, ok := LatestAsOf(rows, day("2024-01-15"))
	require.True(t, ok)
	assert.Equal(t, day("2024-01-10"), got.FetchedAt)

	// a later intraday fetch on the target date still counts
	intraday := append(rows, Observation{Key: GroupKey{Sector: "Energy"}, FetchedAt: day("2024-01-15").Add(15 * time.Hour), Performance1D: f(9)})
	got, ok = LatestAsOf(intraday, day("2024-01-15"))
	require.True(t, ok)
	assert.Equal(t, 9.0, *got.Performance1D)

	_, ok = LatestAsOf(rows, day("2023-12-31"))
	assert.False(t, ok)
}

func TestReferenceDates(t *testing.T) {
	dates := DefaultLookbackWindows().ReferenceDates(day("2024-03-29").Add(13 * time.Hour))
	assert.Equal(t, []time.Time{
		day("2024-03-29"),
		day("2024-03-22"),
		day("2024-03-01"),
		day("2024-01-05"),
	}, dates)
}

func TestLookbackWindowsFromDays(t *testing.T) {
	w, err := LookbackWindowsFromDays([]int{7, 28, 84})
	require.NoError(t, err)
	assert.Equal(t, DefaultLookbackWindows(), w)

	_, err = LookbackWindowsFromDays([]int{28, 7, 84})
	assert.Error(t, err)
	_, err = LookbackWindowsFromDays([]int{7, 28})
	assert.Error(t, err)
}

func TestRankGroupsAsOf(t *testing.T) {
	// Energy was 5th a week ago and is 2nd today
	series := NewSeries([]Observation{
		obs("Energy", "2024-03-22", -1.0),
		obs("Technology", "2024-03-22", 4.0),
		obs("Financials", "2024-03-22", 3.0),
		obs("Healthcare", "2024-03-22", 2.0),
		obs("Utilities", "2024-03-22", 1.0),

		obs("Energy", "2024-03-29", 3.5),
		obs("Technology", "2024-03-29", 4.0),
		obs("Financials", "2024-03-29", 0.5),
		obs("Healthcare", "2024-03-29", 0.2),
		obs("Utilities", "2024-03-29", 0.1),
		obs("Materials", "2024-03-29", 0.0),
	})
	r := NewRanker(ByPerformance1D, TieBreakKey)

	snaps, err := r.RankGroupsAsOf(context.Background(), series, day("2024-03-29"))
	require.NoError(t, err)
	require.Len(t, snaps, 6)

	byKey := map[string]Snapshot{}
	for _, s := range snaps {
		byKey[s.Key.Sector] = s
		assert.Equal(t, day("2024-03-29"), s.SnapshotDate)
		assert.Equal(t, "performance_1d", s.RankingKey)
	}

	energy := byKey["Energy"]
	assert.Equal(t, 2, energy.CurrentRank)
	require.NotNil(t, energy.Rank1WAgo)
	assert.Equal(t, 5, *energy.Rank1WAgo)
	require.NotNil(t, energy.RankChange1W)
	assert.Equal(t, 3, *energy.RankChange1W)

	// no history 4 and 12 weeks back
	assert.Nil(t, energy.Rank4WAgo)
	assert.Nil(t, energy.RankChange4W)
	assert.Nil(t, energy.Rank12WAgo)

	// absent a week ago
	assert.Nil(t, byKey["Materials"].Rank1WAgo)
	assert.Nil(t, byKey["Materials"].RankChange1W)

	t.Run("idempotent", func(t *testing.T) {
		again, err := r.RankGroupsAsOf(context.Background(), series, day("2024-03-29"))
		require.NoError(t, err)
		assert.Equal(t, snaps, again)
	})

	t.Run("no groups before the first fetch", func(t *testing.T) {
		none, err := r.RankGroupsAsOf(context.Background(), series, day("2024-01-01"))
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

type failingSource struct{}

func (failingSource) ObservationsAsOf(context.Context, []time.Time) (map[time.Time][]Observation, error) {
	return nil, errors.New("connection reset")
}

func TestRankGroupsAsOfSourceError(t *testing.T) {
	_, err := NewRanker(ByPerformance1D, TieBreakKey).RankGroupsAsOf(context.Background(), failingSource{}, day("2024-03-29"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2024-03-29")
}

func TestBuildSnapshotsTrendCAGR(t *testing.T) {
	target := day("2024-03-29")
	w := DefaultLookbackWindows()
	dates := w.ReferenceDates(target)

	asOf := map[time.Time][]Observation{
		dates[0]: {
			{Key: GroupKey{Sector: "Tech", Industry: "Semis"}, PriceSum: f(1210)},
			{Key: GroupKey{Sector: "Tech", Industry: "Software"}, PriceSum: f(900)},
		},
		dates[3]: {
			{Key: GroupKey{Sector: "Tech", Industry: "Semis"}, PriceSum: f(1000)},
		},
	}

	snaps := (&Ranker{Key: ByPriceSum, TieBreak: TieBreakKey, Windows: w}).BuildSnapshots(target, asOf)
	require.Len(t, snaps, 2)

	semis := snaps[0]
	assert.Equal(t, "Semis", semis.Key.Industry)
	require.NotNil(t, semis.Rank12WAgo)
	assert.Equal(t, 1, *semis.Rank12WAgo)
	assert.Equal(t, 0, *semis.RankChange12W)
	require.NotNil(t, semis.TrendCAGR)
	assert.Greater(t, *semis.TrendCAGR, 21.0)

	assert.Nil(t, snaps[1].TrendCAGR)
}

func sectors(ranked []Ranked) []string {
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.Key.Sector
	}
	return out
}
