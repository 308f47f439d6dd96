package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository handles backfill checkpoints
type Repository struct {
	db *Database
}

// NewRepository creates a new repository
func NewRepository(db *Database) *Repository {
	return &Repository{db: db}
}

// GetCheckpoint returns the backfill watermark for a job and granularity
func (r *Repository) GetCheckpoint(ctx context.Context, job, granularity string) (*RankingCheckpoint, error) {
	ctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	var cp RankingCheckpoint
	err := r.db.db.WithContext(ctx).
		Where("job = ? AND granularity = ?", job, granularity).
		First(&cp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundErrorWithID("checkpoint", job+"/"+granularity)
		}
		return nil, WrapDBError("GetCheckpoint", err)
	}
	return &cp, nil
}

// SaveCheckpoint upserts the watermark. The stored date never moves backwards.
func (r *Repository) SaveCheckpoint(ctx context.Context, job, granularity string, lastDate time.Time, runID string) error {
	cp := RankingCheckpoint{
		Job:         job,
		Granularity: granularity,
		LastDate:    lastDate,
		RunID:       runID,
		UpdatedAt:   time.Now(),
	}
	ctx, cancel := WithUpsertTimeout(ctx)
	defer cancel()

	err := r.db.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "job"}, {Name: "granularity"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_date":  gorm.Expr("GREATEST(" + TableRankingCheckpoints + ".last_date, EXCLUDED.last_date)"),
			"run_id":     gorm.Expr("EXCLUDED.run_id"),
			"updated_at": gorm.Expr("EXCLUDED.updated_at"),
		}),
	}).Create(&cp).Error
	return WrapDBError("SaveCheckpoint", err)
}

// ClearCheckpoint removes a watermark so the next backfill starts from scratch
func (r *Repository) ClearCheckpoint(ctx context.Context, job, granularity string) error {
	ctx, cancel := WithUpsertTimeout(ctx)
	defer cancel()

	err := r.db.db.WithContext(ctx).
		Where("job = ? AND granularity = ?", job, granularity).
		Delete(&RankingCheckpoint{}).Error
	return WrapDBError("ClearCheckpoint", err)
}
