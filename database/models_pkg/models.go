package models

import "time"

// RSRatingHistory is the per-run RS Rating of a symbol.
// One row per (symbol, date); reruns on the same date overwrite.
type RSRatingHistory struct {
	Symbol   string    `gorm:"size:20;primaryKey" json:"symbol"`
	Date     time.Time `gorm:"type:date;primaryKey" json:"date"`
	RSRating int       `gorm:"not null" json:"rs_rating"`
}

// TableName specifies the table name for RSRatingHistory
func (RSRatingHistory) TableName() string {
	return "rs_rating_history"
}

// MomentumScore holds the blended momentum score and its diagnostics.
//
// Key Fields:
//   - MomentumScore: 0-100, two decimals
//   - RSRating: pass-through percentile, nil when the symbol had no rating
//   - CoreMomentum / RegimeBoost: four decimal diagnostics
type MomentumScore struct {
	Symbol        string    `gorm:"size:20;primaryKey" json:"symbol"`
	Date          time.Time `gorm:"type:date;primaryKey" json:"date"`
	MomentumScore float64   `gorm:"type:decimal(6,2);not null" json:"momentum_score"`
	RSRating      *int      `json:"rs_rating,omitempty"`
	CoreMomentum  float64   `gorm:"type:decimal(12,4)" json:"core_momentum"`
	RegimeBoost   float64   `gorm:"type:decimal(8,4)" json:"regime_boost"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName specifies the table name for MomentumScore
func (MomentumScore) TableName() string {
	return "momentum_scores"
}

// RankingColumns are the ranking fields shared by sector and industry snapshots
type RankingColumns struct {
	CurrentRank      int      `gorm:"not null" json:"current_rank"`
	Rank1WAgo        *int     `gorm:"column:rank_1w_ago" json:"rank_1w_ago"`
	Rank4WAgo        *int     `gorm:"column:rank_4w_ago" json:"rank_4w_ago"`
	Rank12WAgo       *int     `gorm:"column:rank_12w_ago" json:"rank_12w_ago"`
	RankChange1W     *int     `gorm:"column:rank_change_1w" json:"rank_change_1w"`
	RankChange4W     *int     `gorm:"column:rank_change_4w" json:"rank_change_4w"`
	RankChange12W    *int     `gorm:"column:rank_change_12w" json:"rank_change_12w"`
	Performance1D    *float64 `gorm:"column:performance_1d;type:decimal(12,4)" json:"performance_1d"`
	Performance5D    *float64 `gorm:"column:performance_5d;type:decimal(12,4)" json:"performance_5d"`
	Performance20D   *float64 `gorm:"column:performance_20d;type:decimal(12,4)" json:"performance_20d"`
	RelativeStrength *float64 `gorm:"type:decimal(12,4)" json:"relative_strength"`
	Momentum         *float64 `gorm:"type:decimal(12,4)" json:"momentum"`
	RankingKey       string   `gorm:"size:32;not null" json:"ranking_key"`
	TrendCAGR        *float64 `gorm:"column:trend_cagr;type:decimal(14,4)" json:"trend_cagr"`
}

// SectorRanking is one sector's ranking snapshot on a reference date
type SectorRanking struct {
	Sector         string    `gorm:"size:100;primaryKey" json:"sector"`
	SnapshotDate   time.Time `gorm:"type:date;primaryKey;index" json:"snapshot_date"`
	RankingColumns `gorm:"embedded"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName specifies the table name for SectorRanking
func (SectorRanking) TableName() string {
	return "sector_ranking"
}

// IndustryRanking is one industry's ranking snapshot on a reference date
type IndustryRanking struct {
	Sector         string    `gorm:"size:100;primaryKey" json:"sector"`
	Industry       string    `gorm:"size:150;primaryKey" json:"industry"`
	SnapshotDate   time.Time `gorm:"type:date;primaryKey;index" json:"snapshot_date"`
	RankingColumns `gorm:"embedded"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName specifies the table name for IndustryRanking
func (IndustryRanking) TableName() string {
	return "industry_ranking"
}

// DistributionDay is a surviving distribution-day event of an index.
// Signal is the aggregate window signal at evaluation time, repeated per row.
type DistributionDay struct {
	Symbol      string    `gorm:"size:20;primaryKey" json:"symbol"`
	Date        time.Time `gorm:"type:date;primaryKey" json:"date"`
	ClosePrice  float64   `gorm:"type:decimal(15,4);not null" json:"close_price"`
	ChangePct   float64   `gorm:"type:decimal(10,4);not null" json:"change_pct"`
	Volume      int64     `gorm:"not null" json:"volume"`
	VolumeRatio float64   `gorm:"type:decimal(10,4);not null" json:"volume_ratio"`
	DaysAgo     int       `gorm:"not null" json:"days_ago"`
	Signal      string    `gorm:"size:20;not null" json:"signal"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// TableName specifies the table name for DistributionDay
func (DistributionDay) TableName() string {
	return "distribution_days"
}

// RankingCheckpoint records the backfill watermark of a job and granularity.
// LastDate is the latest date such that it and every earlier date of the run were written.
type RankingCheckpoint struct {
	Job         string    `gorm:"size:50;primaryKey" json:"job"`
	Granularity string    `gorm:"size:20;primaryKey" json:"granularity"`
	LastDate    time.Time `gorm:"type:date;not null" json:"last_date"`
	RunID       string    `gorm:"size:36" json:"run_id"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for RankingCheckpoint
func (RankingCheckpoint) TableName() string {
	return "ranking_checkpoints"
}
