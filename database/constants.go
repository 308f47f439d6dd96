package database

import (
	"context"
	"time"
)

// Tables read from the external loaders
const (
	TablePriceDaily          = "price_daily"
	TableCompanyProfile      = "company_profile"
	TableTechnicalDataDaily  = "technical_data_daily"
	TableSectorPerformance   = "sector_performance"
	TableIndustryPerformance = "industry_performance"
	TableStockScores         = "stock_scores"
)

// Tables owned by the engine
const (
	TableRSRatingHistory    = "rs_rating_history"
	TableMomentumScores     = "momentum_scores"
	TableSectorRanking      = "sector_ranking"
	TableIndustryRanking    = "industry_ranking"
	TableDistributionDays   = "distribution_days"
	TableRankingCheckpoints = "ranking_checkpoints"
)

// Checkpoint job names
const (
	JobRankingBackfill     = "ranking_backfill"
	JobRankingFastBackfill = "ranking_fast_backfill"
)

// Per-call timeouts applied by the repositories on top of the caller's context
const (
	QueryTimeout  = 30 * time.Second
	UpsertTimeout = 15 * time.Second
)

// WithQueryTimeout bounds a read by QueryTimeout; an earlier parent deadline still wins
func WithQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, QueryTimeout)
}

// WithUpsertTimeout bounds a write by UpsertTimeout
func WithUpsertTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, UpsertTimeout)
}

// UpsertBatchSize bounds the rows per multi-row INSERT
const UpsertBatchSize = 500
