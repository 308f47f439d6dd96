package events

import (
	"context"
	"fmt"

	"market-rankings/database"
	models "market-rankings/database/models_pkg"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository handles distribution-day event persistence
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new events repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ReplaceDistributionDays deletes every stored event of the symbol and inserts days
// in one transaction. The insert still upserts on (symbol, date) in case the
// batch carries a date twice.
func (r *Repository) ReplaceDistributionDays(ctx context.Context, symbol string, days []models.DistributionDay) error {
	ctx, cancel := database.WithUpsertTimeout(ctx)
	defer cancel()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("symbol = ?", symbol).Delete(&models.DistributionDay{}).Error; err != nil {
			return err
		}
		if len(days) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}, {Name: "date"}},
			UpdateAll: true,
		}).Create(&days).Error
	})
	if err != nil {
		return fmt.Errorf("ReplaceDistributionDays %s: %w", symbol, err)
	}
	return nil
}
