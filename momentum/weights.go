package momentum

// RSWeights weights the rate-of-change horizons of the RS Rating composite
type RSWeights struct {
	ROC252 float64 `yaml:"roc_252"`
	ROC189 float64 `yaml:"roc_189"`
	ROC120 float64 `yaml:"roc_120"`
	ROC60  float64 `yaml:"roc_60"`
}

// CoreWeights weights the z-scored components of core momentum
type CoreWeights struct {
	ROC252      float64 `yaml:"roc_252"`
	ROC120      float64 `yaml:"roc_120"`
	MansfieldRS float64 `yaml:"mansfield_rs"`
}

// RegimeConfig describes the soft confirmation filters and their blend.
// A passing filter emits Pass, a failing or missing one emits Fail.
type RegimeConfig struct {
	RSIThreshold         float64 `yaml:"rsi_threshold"`
	VolumeSurgeThreshold float64 `yaml:"volume_surge_threshold"`
	Pass                 float64 `yaml:"pass"`
	Fail                 float64 `yaml:"fail"`
	RSIWeight            float64 `yaml:"rsi_weight"`
	TrendWeight          float64 `yaml:"trend_weight"`
	VolumeWeight         float64 `yaml:"volume_weight"`
}

// BlendConfig maps the raw blend onto the 0-100 score scale.
// Raw scores outside [RawFloor, RawCeiling] are clamped, not rescaled.
type BlendConfig struct {
	Core       float64 `yaml:"core"`
	Regime     float64 `yaml:"regime"`
	RawFloor   float64 `yaml:"raw_floor"`
	RawCeiling float64 `yaml:"raw_ceiling"`
}

// Weights is the immutable factor configuration of a scoring run
type Weights struct {
	RS     RSWeights    `yaml:"rs_rating"`
	Core   CoreWeights  `yaml:"core_momentum"`
	Regime RegimeConfig `yaml:"regime"`
	Blend  BlendConfig  `yaml:"blend"`
}

// DefaultWeights returns the IBD-style weighting
func DefaultWeights() Weights {
	return Weights{
		RS: RSWeights{
			ROC252: 0.40,
			ROC189: 0.20,
			ROC120: 0.20,
			ROC60:  0.20,
		},
		Core: CoreWeights{
			ROC252:      0.40,
			ROC120:      0.30,
			MansfieldRS: 0.30,
		},
		Regime: RegimeConfig{
			RSIThreshold:         60,
			VolumeSurgeThreshold: 1.0,
			Pass:                 1.0,
			Fail:                 0.5,
			RSIWeight:            0.4,
			TrendWeight:          0.3,
			VolumeWeight:         0.3,
		},
		Blend: BlendConfig{
			Core:       0.7,
			Regime:     0.3,
			RawFloor:   -3,
			RawCeiling: 3,
		},
	}
}
