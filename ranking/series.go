package ranking

import (
	"context"
	"sort"
	"time"
)

// LatestAsOf returns the most recent observation whose fetch date is on or before target.
// ok is false when every observation is later than target.
func LatestAsOf(obs []Observation, target time.Time) (Observation, bool) {
	cutoff := Date(target)
	var (
		best  Observation
		found bool
	)
	for _, o := range obs {
		if Date(o.FetchedAt).After(cutoff) {
			continue
		}
		if !found || o.FetchedAt.After(best.FetchedAt) {
			best = o
			found = true
		}
	}
	return best, found
}

// Series is an in-memory group performance history used when the full
// series is preloaded instead of queried per reference date.
type Series struct {
	groups map[GroupKey][]Observation
	order  []GroupKey
}

// NewSeries indexes observations per group, sorted by fetch time
func NewSeries(obs []Observation) *Series {
	s := &Series{groups: make(map[GroupKey][]Observation)}
	for _, o := range obs {
		if _, ok := s.groups[o.Key]; !ok {
			s.order = append(s.order, o.Key)
		}
		s.groups[o.Key] = append(s.groups[o.Key], o)
	}
	for _, rows := range s.groups {
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].FetchedAt.Before(rows[j].FetchedAt) })
	}
	return s
}

// Len returns the number of distinct groups
func (s *Series) Len() int { return len(s.order) }

// At returns the as-of cross-section for a single date, in first-seen group order
func (s *Series) At(target time.Time) []Observation {
	out := make([]Observation, 0, len(s.order))
	for _, k := range s.order {
		if o, ok := LatestAsOf(s.groups[k], target); ok {
			out = append(out, o)
		}
	}
	return out
}

// ObservationsAsOf implements Source over the in-memory series
func (s *Series) ObservationsAsOf(ctx context.Context, dates []time.Time) (map[time.Time][]Observation, error) {
	out := make(map[time.Time][]Observation, len(dates))
	for _, d := range dates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[Date(d)] = s.At(d)
	}
	return out, nil
}
