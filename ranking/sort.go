package ranking

import (
	"fmt"
	"sort"
	"strings"
)

// SortKey names the metric a cross-section is ordered by
type SortKey string

const (
	ByPerformance1D    SortKey = "performance_1d"
	ByPerformance5D    SortKey = "performance_5d"
	ByPerformance20D   SortKey = "performance_20d"
	ByRelativeStrength SortKey = "relative_strength"
	ByMomentum         SortKey = "momentum"
	ByOverallRank      SortKey = "overall_rank"
	ByPriceSum         SortKey = "price_sum"
)

// ParseSortKey validates a ranking key name
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case ByPerformance1D, ByPerformance5D, ByPerformance20D, ByRelativeStrength, ByMomentum, ByOverallRank, ByPriceSum:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSortKey, s)
	}
}

// Ascending reports whether smaller values rank first
func (k SortKey) Ascending() bool {
	return k == ByOverallRank
}

// Value extracts the key's metric from an observation; ok is false when it is NULL or not finite
func (k SortKey) Value(o Observation) (float64, bool) {
	var p *float64
	switch k {
	case ByPerformance1D:
		p = o.Performance1D
	case ByPerformance5D:
		p = o.Performance5D
	case ByPerformance20D:
		p = o.Performance20D
	case ByRelativeStrength:
		p = o.RelativeStrength
	case ByMomentum:
		p = o.Momentum
	case ByPriceSum:
		p = o.PriceSum
	case ByOverallRank:
		if o.OverallRank == nil {
			return 0, false
		}
		return float64(*o.OverallRank), true
	}
	if p = Finite(p); p == nil {
		return 0, false
	}
	return *p, true
}

// TieBreak orders observations whose ranking key values are equal
type TieBreak string

const (
	// TieBreakKey orders ties lexicographically by group key
	TieBreakKey TieBreak = "key"
	// TieBreakRecency puts the most recently fetched observation first, then by key
	TieBreakRecency TieBreak = "recency"
	// TieBreakSource keeps the input order of tied observations
	TieBreakSource TieBreak = "source"
)

// ParseTieBreak validates a tie-break name
func ParseTieBreak(s string) (TieBreak, error) {
	switch tb := TieBreak(strings.ToLower(strings.TrimSpace(s))); tb {
	case TieBreakKey, TieBreakRecency, TieBreakSource:
		return tb, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTieBreak, s)
	}
}

// Rank orders the cross-section by key and assigns dense 1-based ranks by position.
// Observations without a key value are excluded; the result ranks form exactly {1..N}.
func Rank(obs []Observation, key SortKey, tb TieBreak) []Ranked {
	type entry struct {
		obs   Observation
		value float64
	}

	entries := make([]entry, 0, len(obs))
	for _, o := range obs {
		if v, ok := key.Value(o); ok {
			entries = append(entries, entry{obs: o, value: v})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.value != b.value {
			if key.Ascending() {
				return a.value < b.value
			}
			return a.value > b.value
		}
		switch tb {
		case TieBreakRecency:
			if !a.obs.FetchedAt.Equal(b.obs.FetchedAt) {
				return a.obs.FetchedAt.After(b.obs.FetchedAt)
			}
			return a.obs.Key.Less(b.obs.Key)
		case TieBreakSource:
			return false
		default:
			return a.obs.Key.Less(b.obs.Key)
		}
	})

	ranked := make([]Ranked, len(entries))
	for i, e := range entries {
		ranked[i] = Ranked{Observation: e.obs, Rank: i + 1}
	}
	return ranked
}
