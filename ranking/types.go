package ranking

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	// ErrUnknownSortKey is returned for an unrecognized ranking key name
	ErrUnknownSortKey = errors.New("unknown ranking key")
	// ErrUnknownTieBreak is returned for an unrecognized tie-break name
	ErrUnknownTieBreak = errors.New("unknown tie-break")
	// ErrUnknownGranularity is returned for an unrecognized group granularity
	ErrUnknownGranularity = errors.New("unknown granularity")
)

// Granularity selects which group identity a ranking is computed over
type Granularity string

const (
	Sector   Granularity = "sector"
	Industry Granularity = "industry"
)

// ParseGranularity validates a granularity name
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case Sector, Industry:
		return g, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownGranularity, s)
	}
}

// GroupKey identifies a group. Industry is empty at sector granularity.
type GroupKey struct {
	Sector   string `json:"sector"`
	Industry string `json:"industry,omitempty"`
}

// String renders the key as "sector" or "sector/industry"
func (k GroupKey) String() string {
	if k.Industry == "" {
		return k.Sector
	}
	return k.Sector + "/" + k.Industry
}

// Less orders keys lexicographically by sector, then industry
func (k GroupKey) Less(o GroupKey) bool {
	if k.Sector != o.Sector {
		return k.Sector < o.Sector
	}
	return k.Industry < o.Industry
}

// Observation is one as-of row of a group's performance series.
// Metric pointers are nil when the source column was NULL.
type Observation struct {
	Key              GroupKey
	FetchedAt        time.Time
	Performance1D    *float64
	Performance5D    *float64
	Performance20D   *float64
	RelativeStrength *float64
	Momentum         *float64
	RSI              *float64
	OverallRank      *int
	PriceSum         *float64
}

// Finite returns a copy of v, or nil when v is nil, NaN or infinite
func Finite(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	out := *v
	return &out
}

// Ranked is an observation with its dense 1-based position in the cross-section
type Ranked struct {
	Observation
	Rank int
}

// Snapshot is the persisted ranking of one group on one reference date
type Snapshot struct {
	Key          GroupKey  `json:"group"`
	SnapshotDate time.Time `json:"snapshot_date"`
	CurrentRank  int       `json:"current_rank"`

	Rank1WAgo  *int `json:"rank_1w_ago"`
	Rank4WAgo  *int `json:"rank_4w_ago"`
	Rank12WAgo *int `json:"rank_12w_ago"`

	RankChange1W  *int `json:"rank_change_1w"`
	RankChange4W  *int `json:"rank_change_4w"`
	RankChange12W *int `json:"rank_change_12w"`

	Performance1D    *float64 `json:"performance_1d,omitempty"`
	Performance5D    *float64 `json:"performance_5d,omitempty"`
	Performance20D   *float64 `json:"performance_20d,omitempty"`
	RelativeStrength *float64 `json:"relative_strength,omitempty"`
	Momentum         *float64 `json:"momentum,omitempty"`
	TrendCAGR        *float64 `json:"trend_cagr,omitempty"`
	RankingKey       string   `json:"ranking_key"`
}

// Date truncates t to its UTC calendar day
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
