package app

import (
	"context"
	"time"

	"market-rankings/database"
	models "market-rankings/database/models_pkg"
	"market-rankings/database/types"
	"market-rankings/ranking"
)

// TechnicalReader reads the latest indicator snapshot of every symbol
type TechnicalReader interface {
	GetLatestTechnicalSnapshots(ctx context.Context) ([]types.TechnicalRow, error)
}

// ScoreWriter persists momentum results
type ScoreWriter interface {
	UpsertRSRatingHistory(ctx context.Context, rows []models.RSRatingHistory) error
	UpsertMomentumScores(ctx context.Context, rows []models.MomentumScore) error
	UpdateStockScores(ctx context.Context, scores map[string]float64) (int64, error)
}

// RankingStore reads group observations and writes ranking snapshots
type RankingStore interface {
	Source(g ranking.Granularity, fast bool) ranking.Source
	LoadSeries(ctx context.Context, g ranking.Granularity, to time.Time) ([]ranking.Observation, error)
	UpsertSnapshots(ctx context.Context, g ranking.Granularity, snaps []ranking.Snapshot) error
	UpsertSnapshot(ctx context.Context, g ranking.Granularity, snap ranking.Snapshot) error
}

// DateReader lists the trading dates present in the price history
type DateReader interface {
	GetDistinctDates(ctx context.Context, from, to *time.Time) ([]time.Time, error)
}

// CheckpointStore keeps backfill watermarks
type CheckpointStore interface {
	GetCheckpoint(ctx context.Context, job, granularity string) (*database.RankingCheckpoint, error)
	SaveCheckpoint(ctx context.Context, job, granularity string, lastDate time.Time, runID string) error
	ClearCheckpoint(ctx context.Context, job, granularity string) error
}

// BarReader reads the most recent daily bars of a symbol
type BarReader interface {
	GetRecentBars(ctx context.Context, symbol string, limit int) ([]types.PriceBar, error)
}

// EventWriter replaces the stored distribution days of a symbol
type EventWriter interface {
	ReplaceDistributionDays(ctx context.Context, symbol string, days []models.DistributionDay) error
}

// ResultCache receives the latest results and run notifications
type ResultCache interface {
	SetJSON(ctx context.Context, key string, value interface{}) error
	Publish(ctx context.Context, channel string, message interface{}) error
}
