// Package distribution flags IBD-style distribution days on a benchmark index
// and classifies the resulting selling pressure.
package distribution

import (
	"sort"
	"time"

	"market-rankings/stats"
)

// Signal is the aggregate pressure category of a rolling window
type Signal string

const (
	UnderPressure    Signal = "UNDER_PRESSURE"
	Caution          Signal = "CAUTION"
	Elevated         Signal = "ELEVATED"
	Normal           Signal = "NORMAL"
	InsufficientData Signal = "INSUFFICIENT_DATA"
)

// tolerance absorbs floating error at the decline and rally thresholds
const tolerance = 1e-9

// Bar is one daily close/volume observation of the index
type Bar struct {
	Date   time.Time
	Close  float64
	Volume int64
}

// Rules parameterizes the detector
type Rules struct {
	LookbackDays          int
	DeclineThresholdPct   float64
	InvalidationRallyPct  float64
	UnderPressureMinCount int
	CautionMinCount       int
	ElevatedMinCount      int
}

// DefaultRules returns the IBD thresholds: 25 day window, -0.2% decline, 6% rally invalidation
func DefaultRules() Rules {
	return Rules{
		LookbackDays:          25,
		DeclineThresholdPct:   -0.2,
		InvalidationRallyPct:  0.06,
		UnderPressureMinCount: 6,
		CautionMinCount:       5,
		ElevatedMinCount:      3,
	}
}

// Day is a flagged distribution day that survived invalidation
type Day struct {
	Date        time.Time `json:"date"`
	Close       float64   `json:"close_price"`
	ChangePct   float64   `json:"change_pct"`
	Volume      int64     `json:"volume"`
	VolumeRatio float64   `json:"volume_ratio"`
	DaysAgo     int       `json:"days_ago"`
}

// Result is the detector output for one index
type Result struct {
	Days   []Day  `json:"days"`
	Count  int    `json:"count"`
	Signal Signal `json:"signal"`
}

// Detect scans the most recent LookbackDays bars, newest first, for distribution days.
// bars may be in any order; the caller's slice is not modified.
func Detect(bars []Bar, rules Rules) Result {
	if len(bars) < 2 {
		return Result{Signal: InsufficientData}
	}

	hist := make([]Bar, len(bars))
	copy(hist, bars)
	sort.SliceStable(hist, func(i, j int) bool { return hist[i].Date.Before(hist[j].Date) })

	last := len(hist) - 1
	window := rules.LookbackDays
	if window > last {
		window = last
	}

	days := make([]Day, 0)
	for back := 0; back < window; back++ {
		i := last - back
		cur, prev := hist[i], hist[i-1]
		if prev.Close <= 0 {
			continue
		}

		changePct := (cur.Close/prev.Close - 1) * 100
		if changePct > rules.DeclineThresholdPct+tolerance {
			continue
		}
		if cur.Volume <= 0 || cur.Volume <= prev.Volume {
			continue
		}
		if invalidated(hist[i+1:], cur.Close, rules.InvalidationRallyPct) {
			continue
		}

		ratio := 1.0
		if prev.Volume > 0 {
			ratio = float64(cur.Volume) / float64(prev.Volume)
		}
		days = append(days, Day{
			Date:        cur.Date,
			Close:       cur.Close,
			ChangePct:   stats.Round(changePct, 4),
			Volume:      cur.Volume,
			VolumeRatio: stats.Round(ratio, 4),
			DaysAgo:     back,
		})
	}

	return Result{
		Days:   days,
		Count:  len(days),
		Signal: ClassifySignal(len(days), rules),
	}
}

// invalidated reports whether any later close rallied at least pct above the flagged close
func invalidated(later []Bar, flaggedClose, pct float64) bool {
	if flaggedClose <= 0 {
		return false
	}
	for _, b := range later {
		if b.Close/flaggedClose-1 >= pct-tolerance {
			return true
		}
	}
	return false
}

// ClassifySignal maps a surviving distribution-day count to its signal
func ClassifySignal(count int, rules Rules) Signal {
	switch {
	case count >= rules.UnderPressureMinCount:
		return UnderPressure
	case count >= rules.CautionMinCount:
		return Caution
	case count >= rules.ElevatedMinCount:
		return Elevated
	default:
		return Normal
	}
}
