// Package momentum computes the cross-sectional RS Rating and the blended momentum score
// for the latest technical snapshot of every instrument.
package momentum

import (
	"math"

	"market-rankings/stats"
)

// Snapshot is one instrument's indicator row for the scoring date.
// Nil means the upstream value was NULL (or NaN, see NewSnapshot).
type Snapshot struct {
	Symbol      string
	ROC60       *float64
	ROC120      *float64
	ROC189      *float64
	ROC252      *float64
	MansfieldRS *float64
	RSI         *float64
	SMA200      *float64
	Close       *float64
	VolumeSurge *float64
}

// NewSnapshot builds a Snapshot, normalizing NaN/Inf inputs to nil
func NewSnapshot(symbol string, roc60, roc120, roc189, roc252, mansfield, rsi, sma200, closePrice, volumeSurge *float64) Snapshot {
	return Snapshot{
		Symbol:      symbol,
		ROC60:       finite(roc60),
		ROC120:      finite(roc120),
		ROC189:      finite(roc189),
		ROC252:      finite(roc252),
		MansfieldRS: finite(mansfield),
		RSI:         finite(rsi),
		SMA200:      finite(sma200),
		Close:       finite(closePrice),
		VolumeSurge: finite(volumeSurge),
	}
}

func finite(v *float64) *float64 {
	if v == nil || !stats.Finite(*v) {
		return nil
	}
	out := *v
	return &out
}

// Complete reports whether all four ROC horizons are present
func (s Snapshot) Complete() bool {
	return s.ROC60 != nil && s.ROC120 != nil && s.ROC189 != nil && s.ROC252 != nil
}

// Composite returns the weighted ROC composite. Only valid on complete snapshots.
func (s Snapshot) Composite(w RSWeights) float64 {
	return w.ROC252*(*s.ROC252) +
		w.ROC189*(*s.ROC189) +
		w.ROC120*(*s.ROC120) +
		w.ROC60*(*s.ROC60)
}

// Qualifying filters snapshots down to those with every ROC horizon present
func Qualifying(snaps []Snapshot) []Snapshot {
	out := make([]Snapshot, 0, len(snaps))
	for _, s := range snaps {
		if s.Complete() {
			out = append(out, s)
		}
	}
	return out
}

// CalculateRSRatings maps each complete snapshot's symbol to its 0-99 percentile RS Rating.
// Incomplete snapshots are excluded; the percentile denominator is the filtered count.
func CalculateRSRatings(snaps []Snapshot, w RSWeights) map[string]int {
	universe := Qualifying(snaps)
	ratings := make(map[string]int, len(universe))
	if len(universe) == 0 {
		return ratings
	}

	composites := make([]float64, len(universe))
	for i, s := range universe {
		composites[i] = s.Composite(w)
	}

	for i, pct := range stats.PercentileRanks(composites) {
		ratings[universe[i].Symbol] = pct
	}
	return ratings
}

// Score is the per-instrument momentum output
type Score struct {
	Symbol        string  `json:"symbol"`
	MomentumScore float64 `json:"momentum_score"`
	RSRating      *int    `json:"rs_rating,omitempty"`
	CoreMomentum  float64 `json:"core_momentum"`
	RegimeBoost   float64 `json:"regime_boost"`
}

// CalculateMomentumScores blends z-scored momentum with the regime confirmation boost.
// The batch is the complete-snapshot cross-section; rsRatings is carried through unchanged.
func CalculateMomentumScores(snaps []Snapshot, rsRatings map[string]int, w Weights) map[string]Score {
	universe := Qualifying(snaps)
	scores := make(map[string]Score, len(universe))
	if len(universe) == 0 {
		return scores
	}

	roc252 := make([]float64, 0, len(universe))
	roc120 := make([]float64, 0, len(universe))
	mansfield := make([]float64, 0, len(universe))
	for _, s := range universe {
		roc252 = append(roc252, *s.ROC252)
		roc120 = append(roc120, *s.ROC120)
		if s.MansfieldRS != nil {
			mansfield = append(mansfield, *s.MansfieldRS)
		}
	}
	m252 := stats.NewMoments(roc252)
	m120 := stats.NewMoments(roc120)
	mRS := stats.NewMoments(mansfield)

	for _, s := range universe {
		zMansfield := 0.0
		if s.MansfieldRS != nil {
			zMansfield = mRS.ZScore(*s.MansfieldRS)
		}
		core := w.Core.ROC252*m252.ZScore(*s.ROC252) +
			w.Core.ROC120*m120.ZScore(*s.ROC120) +
			w.Core.MansfieldRS*zMansfield

		boost := RegimeBoost(s, w.Regime)
		raw := w.Blend.Core*core + w.Blend.Regime*boost

		score := Score{
			Symbol:        s.Symbol,
			MomentumScore: stats.Round(FinalScore(raw, w.Blend), 2),
			CoreMomentum:  stats.Round(core, 4),
			RegimeBoost:   stats.Round(boost, 4),
		}
		if rating, ok := rsRatings[s.Symbol]; ok {
			r := rating
			score.RSRating = &r
		}
		scores[s.Symbol] = score
	}
	return scores
}

// RegimeBoost blends the RSI, trend and volume-surge confirmations
func RegimeBoost(s Snapshot, cfg RegimeConfig) float64 {
	rsiRegime := cfg.Fail
	if s.RSI != nil && *s.RSI > cfg.RSIThreshold {
		rsiRegime = cfg.Pass
	}

	trend := cfg.Fail
	if s.Close != nil && s.SMA200 != nil && *s.Close > *s.SMA200 {
		trend = cfg.Pass
	}

	surge := cfg.Fail
	if s.VolumeSurge != nil && *s.VolumeSurge > cfg.VolumeSurgeThreshold {
		surge = cfg.Pass
	}

	return cfg.RSIWeight*rsiRegime + cfg.TrendWeight*trend + cfg.VolumeWeight*surge
}

// FinalScore remaps a raw blend from [RawFloor, RawCeiling] onto [0, 100], clamping outliers
func FinalScore(raw float64, b BlendConfig) float64 {
	span := b.RawCeiling - b.RawFloor
	if span <= 0 || math.IsNaN(raw) {
		return 0
	}
	return stats.Clamp((raw-b.RawFloor)/span*100, 0, 100)
}
