// Package ranking computes point-in-time dense rankings of sector and industry groups
// and their rank deltas against calendar-day lookback windows.
package ranking

import (
	"context"
	"fmt"
	"time"

	"market-rankings/stats"
)

// LookbackWindows are the rank-delta offsets in calendar days, not trading days
type LookbackWindows struct {
	OneWeekCalendarDays    int
	FourWeekCalendarDays   int
	TwelveWeekCalendarDays int
}

// DefaultLookbackWindows returns the 1/4/12 week offsets (7/28/84 calendar days)
func DefaultLookbackWindows() LookbackWindows {
	return LookbackWindows{
		OneWeekCalendarDays:    7,
		FourWeekCalendarDays:   28,
		TwelveWeekCalendarDays: 84,
	}
}

// LookbackWindowsFromDays builds windows from an ascending 3-element list
func LookbackWindowsFromDays(days []int) (LookbackWindows, error) {
	if len(days) != 3 {
		return LookbackWindows{}, fmt.Errorf("expected 3 lookback windows, got %d", len(days))
	}
	if days[0] <= 0 || days[0] >= days[1] || days[1] >= days[2] {
		return LookbackWindows{}, fmt.Errorf("lookback windows must be positive and strictly increasing: %v", days)
	}
	return LookbackWindows{
		OneWeekCalendarDays:    days[0],
		FourWeekCalendarDays:   days[1],
		TwelveWeekCalendarDays: days[2],
	}, nil
}

// ReferenceDates returns the target date followed by its three lookback dates
func (w LookbackWindows) ReferenceDates(target time.Time) []time.Time {
	t := Date(target)
	return []time.Time{
		t,
		t.AddDate(0, 0, -w.OneWeekCalendarDays),
		t.AddDate(0, 0, -w.FourWeekCalendarDays),
		t.AddDate(0, 0, -w.TwelveWeekCalendarDays),
	}
}

// Source resolves as-of observations for a batch of reference dates.
// The result maps each requested date (UTC midnight) to the latest observation
// per group at or before that date. Groups with no such row are absent.
type Source interface {
	ObservationsAsOf(ctx context.Context, dates []time.Time) (map[time.Time][]Observation, error)
}

// Ranker ranks a group cross-section and derives lookback rank deltas
type Ranker struct {
	Key      SortKey
	TieBreak TieBreak
	Windows  LookbackWindows
}

// NewRanker creates a ranker with the default lookback windows
func NewRanker(key SortKey, tb TieBreak) *Ranker {
	return &Ranker{Key: key, TieBreak: tb, Windows: DefaultLookbackWindows()}
}

// RankGroupsAsOf resolves the target date and its lookback dates in one source call,
// ranks each cross-section independently and returns one snapshot per group present on target.
func (r *Ranker) RankGroupsAsOf(ctx context.Context, src Source, target time.Time) ([]Snapshot, error) {
	dates := r.Windows.ReferenceDates(target)
	asOf, err := src.ObservationsAsOf(ctx, dates)
	if err != nil {
		return nil, fmt.Errorf("RankGroupsAsOf %s: %w", dates[0].Format("2006-01-02"), err)
	}
	return r.BuildSnapshots(dates[0], asOf), nil
}

// BuildSnapshots ranks already-resolved as-of cross-sections.
// Output is ordered by current rank.
func (r *Ranker) BuildSnapshots(target time.Time, asOf map[time.Time][]Observation) []Snapshot {
	dates := r.Windows.ReferenceDates(target)

	current := Rank(asOf[dates[0]], r.Key, r.TieBreak)
	if len(current) == 0 {
		return nil
	}

	prior := make([]map[GroupKey]Ranked, 3)
	for i, d := range dates[1:] {
		prior[i] = indexByKey(Rank(asOf[d], r.Key, r.TieBreak))
	}

	years := float64(r.Windows.TwelveWeekCalendarDays) / 365.25

	snaps := make([]Snapshot, 0, len(current))
	for _, cur := range current {
		s := Snapshot{
			Key:              cur.Key,
			SnapshotDate:     dates[0],
			CurrentRank:      cur.Rank,
			Performance1D:    cur.Performance1D,
			Performance5D:    cur.Performance5D,
			Performance20D:   cur.Performance20D,
			RelativeStrength: cur.RelativeStrength,
			Momentum:         cur.Momentum,
			RankingKey:       string(r.Key),
		}
		s.Rank1WAgo, s.RankChange1W = delta(prior[0], cur)
		s.Rank4WAgo, s.RankChange4W = delta(prior[1], cur)
		s.Rank12WAgo, s.RankChange12W = delta(prior[2], cur)

		if old, ok := prior[2][cur.Key]; ok && old.PriceSum != nil && cur.PriceSum != nil {
			if g, ok := stats.CAGR(*old.PriceSum, *cur.PriceSum, years); ok {
				g = stats.Round(g, 4)
				s.TrendCAGR = &g
			}
		}
		snaps = append(snaps, s)
	}
	return snaps
}

func indexByKey(ranked []Ranked) map[GroupKey]Ranked {
	m := make(map[GroupKey]Ranked, len(ranked))
	for _, r := range ranked {
		m[r.Key] = r
	}
	return m
}

// delta returns the prior rank and prior-current, or nils when the group was absent
func delta(prior map[GroupKey]Ranked, cur Ranked) (*int, *int) {
	old, ok := prior[cur.Key]
	if !ok {
		return nil, nil
	}
	ago := old.Rank
	change := old.Rank - cur.Rank
	return &ago, &change
}
