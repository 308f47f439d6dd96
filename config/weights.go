package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"market-rankings/database"
	"market-rankings/momentum"
)

// LoadWeightsFile reads a YAML weights override. Keys absent from the file keep their defaults.
//
//	rs_rating:
//	  roc_252: 0.4
//	blend:
//	  core: 0.7
//	  regime: 0.3
func LoadWeightsFile(path string) (momentum.Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return momentum.Weights{}, fmt.Errorf("read weights file: %w", err)
	}
	return ParseWeights(data)
}

// ParseWeights decodes YAML over the default weights
func ParseWeights(data []byte) (momentum.Weights, error) {
	w := momentum.DefaultWeights()
	if err := yaml.Unmarshal(data, &w); err != nil {
		return momentum.Weights{}, fmt.Errorf("parse weights: %w", err)
	}
	if err := validateWeights(w); err != nil {
		return momentum.Weights{}, err
	}
	return w, nil
}

func validateWeights(w momentum.Weights) error {
	if w.Blend.RawCeiling <= w.Blend.RawFloor {
		return database.NewValidationErrorWithValue("blend.raw_ceiling", "must exceed raw_floor", w.Blend.RawCeiling)
	}
	// checked in file order so the reported field is stable
	all := []struct {
		field string
		v     float64
	}{
		{"rs_rating.roc_252", w.RS.ROC252},
		{"rs_rating.roc_189", w.RS.ROC189},
		{"rs_rating.roc_120", w.RS.ROC120},
		{"rs_rating.roc_60", w.RS.ROC60},
		{"core_momentum.roc_252", w.Core.ROC252},
		{"core_momentum.roc_120", w.Core.ROC120},
		{"core_momentum.mansfield_rs", w.Core.MansfieldRS},
		{"regime.rsi_weight", w.Regime.RSIWeight},
		{"regime.trend_weight", w.Regime.TrendWeight},
		{"regime.volume_weight", w.Regime.VolumeWeight},
		{"blend.core", w.Blend.Core},
		{"blend.regime", w.Blend.Regime},
	}
	for _, c := range all {
		if math.IsNaN(c.v) || math.IsInf(c.v, 0) || c.v < 0 {
			return database.NewValidationErrorWithValue(c.field, "must be a non-negative number", c.v)
		}
	}
	return nil
}
