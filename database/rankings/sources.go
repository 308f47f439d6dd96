package rankings

import (
	"context"
	"time"

	"market-rankings/ranking"
)

// PerformanceSource resolves as-of group performance from the database
type PerformanceSource struct {
	repo        *Repository
	granularity ranking.Granularity
}

// PerformanceSource returns a ranking.Source over the performance table of g
func (r *Repository) PerformanceSource(g ranking.Granularity) *PerformanceSource {
	return &PerformanceSource{repo: r, granularity: g}
}

// ObservationsAsOf implements ranking.Source
func (s *PerformanceSource) ObservationsAsOf(ctx context.Context, dates []time.Time) (map[time.Time][]ranking.Observation, error) {
	rows, err := s.repo.GetPerformanceAsOf(ctx, s.granularity, dates)
	if err != nil {
		return nil, err
	}
	out := make(map[time.Time][]ranking.Observation, len(dates))
	for _, row := range rows {
		d := ranking.Date(row.RefDate)
		out[d] = append(out[d], performanceObservation(row))
	}
	return out, nil
}

// PriceSumSource resolves aggregate closing-price sums per group
type PriceSumSource struct {
	repo        *Repository
	granularity ranking.Granularity
}

// PriceSumSource returns a ranking.Source keyed by group price sums
func (r *Repository) PriceSumSource(g ranking.Granularity) *PriceSumSource {
	return &PriceSumSource{repo: r, granularity: g}
}

// ObservationsAsOf implements ranking.Source
func (s *PriceSumSource) ObservationsAsOf(ctx context.Context, dates []time.Time) (map[time.Time][]ranking.Observation, error) {
	rows, err := s.repo.GetPriceSumsAsOf(ctx, s.granularity, dates)
	if err != nil {
		return nil, err
	}
	out := make(map[time.Time][]ranking.Observation, len(dates))
	for _, row := range rows {
		d := ranking.Date(row.RefDate)
		out[d] = append(out[d], ranking.Observation{
			Key:       ranking.GroupKey{Sector: row.Sector, Industry: row.Industry},
			FetchedAt: row.PriceDate,
			PriceSum:  ranking.Finite(row.PriceSum),
		})
	}
	return out, nil
}

// Source returns the price-sum source when fast is set, otherwise the performance source
func (r *Repository) Source(g ranking.Granularity, fast bool) ranking.Source {
	if fast {
		return r.PriceSumSource(g)
	}
	return r.PerformanceSource(g)
}
