package distribution

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func series(closes []float64, volumes []int64) []Bar {
	bars := make([]Bar, len(closes))
	for i := range closes {
		bars[i] = Bar{Date: start.AddDate(0, 0, i), Close: closes[i], Volume: volumes[i]}
	}
	return bars
}

// pressure builds a history with n down days on rising volume, each followed by a quiet up day
func pressure(n int) []Bar {
	closes := []float64{100, 100}
	volumes := []int64{1000, 1000}
	for i := 0; i < n; i++ {
		prevClose := closes[len(closes)-1]
		prevVol := volumes[len(volumes)-1]
		closes = append(closes, prevClose*0.99)
		volumes = append(volumes, prevVol+200)
		closes = append(closes, closes[len(closes)-1]*1.001)
		volumes = append(volumes, prevVol)
	}
	return series(closes, volumes)
}

func TestDetectFlagCriterion(t *testing.T) {
	tests := []struct {
		name    string
		closes  []float64
		volumes []int64
		want    int
	}{
		{name: "down exactly 0.2% on higher volume", closes: []float64{100, 99.8}, volumes: []int64{1000, 1100}, want: 1},
		{name: "down 0.19% on higher volume", closes: []float64{100, 99.81}, volumes: []int64{1000, 1100}, want: 0},
		{name: "down 1% on lower volume", closes: []float64{100, 99}, volumes: []int64{1000, 900}, want: 0},
		{name: "down 1% on equal volume", closes: []float64{100, 99}, volumes: []int64{1000, 1000}, want: 0},
		{name: "up day on volume spike", closes: []float64{100, 101}, volumes: []int64{1000, 5000}, want: 0},
		{name: "zero volume", closes: []float64{100, 99}, volumes: []int64{0, 0}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Detect(series(tt.closes, tt.volumes), DefaultRules())
			assert.Equal(t, tt.want, res.Count)
			assert.Len(t, res.Days, tt.want)
		})
	}
}

func TestDetectVolumeRatio(t *testing.T) {
	res := Detect(series([]float64{100, 99}, []int64{1000, 1500}), DefaultRules())
	require.Equal(t, 1, res.Count)
	assert.Equal(t, 1.5, res.Days[0].VolumeRatio)
	assert.Equal(t, -1.0, res.Days[0].ChangePct)
	assert.Equal(t, 0, res.Days[0].DaysAgo)
	assert.Equal(t, 99.0, res.Days[0].Close)

	// prior day volume of zero defaults the ratio to 1.0
	res = Detect(series([]float64{100, 99}, []int64{0, 1500}), DefaultRules())
	require.Equal(t, 1, res.Count)
	assert.Equal(t, 1.0, res.Days[0].VolumeRatio)
}

func TestDetectInvalidation(t *testing.T) {
	tests := []struct {
		name  string
		rally float64
		want  int
	}{
		{name: "rally of exactly 6% invalidates", rally: 1.06, want: 0},
		{name: "rally of 5.99% keeps the day", rally: 1.0599, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flagged := 99.0
			bars := series(
				[]float64{100, flagged, flagged * 1.01, flagged * tt.rally, flagged},
				[]int64{1000, 1200, 900, 800, 700},
			)
			res := Detect(bars, DefaultRules())
			assert.Equal(t, tt.want, res.Count)
		})
	}
}

func TestDetectSignalThresholds(t *testing.T) {
	tests := []struct {
		days int
		want Signal
	}{
		{days: 0, want: Normal},
		{days: 2, want: Normal},
		{days: 3, want: Elevated},
		{days: 4, want: Elevated},
		{days: 5, want: Caution},
		{days: 6, want: UnderPressure},
		{days: 8, want: UnderPressure},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d days", tt.days), func(t *testing.T) {
			res := Detect(pressure(tt.days), DefaultRules())
			assert.Equal(t, tt.days, res.Count)
			assert.Equal(t, tt.want, res.Signal)
		})
	}
}

func TestDetectInsufficientData(t *testing.T) {
	assert.Equal(t, Result{Signal: InsufficientData}, Detect(nil, DefaultRules()))
	assert.Equal(t, Result{Signal: InsufficientData}, Detect(series([]float64{100}, []int64{10}), DefaultRules()))
}

func TestDetectLookbackCeiling(t *testing.T) {
	// a distribution day 30 bars back falls outside the 25 day window
	closes := []float64{100, 98}
	volumes := []int64{1000, 2000}
	for i := 0; i < 30; i++ {
		closes = append(closes, 98)
		volumes = append(volumes, 1000)
	}
	res := Detect(series(closes, volumes), DefaultRules())
	assert.Equal(t, 0, res.Count)

	rules := DefaultRules()
	rules.LookbackDays = 40
	res = Detect(series(closes, volumes), rules)
	require.Equal(t, 1, res.Count)
	assert.Equal(t, 30, res.Days[0].DaysAgo)
}

func TestDetectSortsWithoutMutatingInput(t *testing.T) {
	bars := pressure(3)
	reversed := make([]Bar, len(bars))
	for i, b := range bars {
		reversed[len(bars)-1-i] = b
	}
	first := reversed[0]

	assert.Equal(t, Detect(bars, DefaultRules()), Detect(reversed, DefaultRules()))
	assert.Equal(t, first, reversed[0])
}

func TestDetectMostRecentFirst(t *testing.T) {
	res := Detect(pressure(3), DefaultRules())
	require.Len(t, res.Days, 3)
	assert.Equal(t, 1, res.Days[0].DaysAgo)
	assert.Equal(t, 3, res.Days[1].DaysAgo)
	assert.Equal(t, 5, res.Days[2].DaysAgo)
	assert.True(t, res.Days[0].Date.After(res.Days[1].Date))
}
