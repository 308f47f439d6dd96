package types

import "time"

// TechnicalRow is one symbol's indicator snapshot joined with its close.
// Nullable columns scan into pointers.
type TechnicalRow struct {
	Symbol      string    `json:"symbol"`
	Date        time.Time `json:"date"`
	ROC60D      *float64  `gorm:"column:roc_60d" json:"roc_60d"`
	ROC120D     *float64  `gorm:"column:roc_120d" json:"roc_120d"`
	ROC189D     *float64  `gorm:"column:roc_189d" json:"roc_189d"`
	ROC252D     *float64  `gorm:"column:roc_252d" json:"roc_252d"`
	MansfieldRS *float64  `gorm:"column:mansfield_rs" json:"mansfield_rs"`
	RSI         *float64  `gorm:"column:rsi" json:"rsi"`
	SMA200      *float64  `gorm:"column:sma_200" json:"sma_200"`
	VolumeSurge *float64  `gorm:"column:volume_surge" json:"volume_surge"`
	Close       *float64  `gorm:"column:close" json:"close"`
}

// PriceBar is a daily close/volume observation
type PriceBar struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Close  float64   `json:"close"`
	Volume *int64    `json:"volume"`
}

// GroupPerformanceRow is one as-of performance row resolved for a reference date
type GroupPerformanceRow struct {
	RefDate          time.Time `gorm:"column:ref_date" json:"ref_date"`
	Sector           string    `gorm:"column:sector" json:"sector"`
	Industry         string    `gorm:"column:industry" json:"industry"`
	FetchedAt        time.Time `gorm:"column:fetched_at" json:"fetched_at"`
	Performance1D    *float64  `gorm:"column:performance_1d" json:"performance_1d"`
	Performance5D    *float64  `gorm:"column:performance_5d" json:"performance_5d"`
	Performance20D   *float64  `gorm:"column:performance_20d" json:"performance_20d"`
	RelativeStrength *float64  `gorm:"column:relative_strength" json:"relative_strength"`
	Momentum         *float64  `gorm:"column:momentum" json:"momentum"`
	RSI              *float64  `gorm:"column:rsi" json:"rsi"`
	OverallRank      *int      `gorm:"column:overall_rank" json:"overall_rank"`
}

// GroupPriceSumRow is a group's aggregate closing-price sum as of a reference date
type GroupPriceSumRow struct {
	RefDate   time.Time `gorm:"column:ref_date" json:"ref_date"`
	Sector    string    `gorm:"column:sector" json:"sector"`
	Industry  string    `gorm:"column:industry" json:"industry"`
	PriceDate time.Time `gorm:"column:price_date" json:"price_date"`
	PriceSum  *float64  `gorm:"column:price_sum" json:"price_sum"`
	Members   int64     `gorm:"column:members" json:"members"`
}
