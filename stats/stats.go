// Package stats holds the cross-sectional numeric helpers shared by the scorers and rankers:
// moments, z-scores, strict percentile ranks and compound growth.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Epsilon guards standard deviations of degenerate cross-sections.
const Epsilon = 1e-10

// MaxPercentile is the highest percentile rank ever emitted.
const MaxPercentile = 99

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation (n-1).
// Fewer than two observations have no dispersion and return 0.
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Moments bundles a cross-section's mean and standard deviation
type Moments struct {
	Mean   float64
	StdDev float64
	Count  int
}

// NewMoments computes the moments of data
func NewMoments(data []float64) Moments {
	return Moments{
		Mean:   Mean(data),
		StdDev: StdDev(data),
		Count:  len(data),
	}
}

// ZScore returns (value - mean) / (stdev + Epsilon)
func (m Moments) ZScore(value float64) float64 {
	return (value - m.Mean) / (m.StdDev + Epsilon)
}

// ZScore is the free-function form of Moments.ZScore
func ZScore(value, mean, stdDev float64) float64 {
	return (value - mean) / (stdDev + Epsilon)
}

// PercentileRanks assigns each value the share of OTHER values strictly below it,
// scaled to 0-100, floored and clamped to [0, MaxPercentile].
// Ties share a rank. The result is index-aligned with values.
func PercentileRanks(values []float64) []int {
	n := len(values)
	ranks := make([]int, n)
	if n == 0 {
		return ranks
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	for i, v := range values {
		below := sort.SearchFloat64s(sorted, v) // first index >= v
		pct := int(math.Floor(float64(below) / float64(n) * 100))
		ranks[i] = ClampInt(pct, 0, MaxPercentile)
	}
	return ranks
}

// CAGR returns the compound annual growth rate in percent between start and end over years.
// ok is false when the inputs cannot describe compound growth (non-positive start/end or years).
func CAGR(start, end, years float64) (float64, bool) {
	if start <= 0 || end <= 0 || years <= 0 {
		return 0, false
	}
	rate := (math.Pow(end/start, 1/years) - 1) * 100
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0, false
	}
	return rate, true
}

// Round rounds x half away from zero to the given number of decimal places
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

// Clamp bounds x to [lo, hi]
func Clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// ClampInt bounds x to [lo, hi]
func ClampInt(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Finite reports whether v is neither NaN nor infinite
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
