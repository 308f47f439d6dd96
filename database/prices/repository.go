package prices

import (
	"context"
	"fmt"
	"time"

	"market-rankings/database"
	"market-rankings/database/types"

	"gorm.io/gorm"
)

// Repository reads the loader-owned price and indicator tables
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new prices repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetLatestTechnicalSnapshots returns every symbol's indicator row for the most
// recent technical date, joined with that day's close.
func (r *Repository) GetLatestTechnicalSnapshots(ctx context.Context) ([]types.TechnicalRow, error) {
	ctx, cancel := database.WithQueryTimeout(ctx)
	defer cancel()

	var rows []types.TechnicalRow
	err := r.db.WithContext(ctx).Raw(fmt.Sprintf(`
		SELECT
			t.symbol,
			t.date,
			t.roc_60d,
			t.roc_120d,
			t.roc_189d,
			t.roc_252d,
			t.mansfield_rs,
			t.rsi,
			t.sma_200,
			t.volume_surge,
			p.close
		FROM %[1]s t
		LEFT JOIN %[2]s p ON p.symbol = t.symbol AND p.date = t.date
		WHERE t.date = (SELECT MAX(date) FROM %[1]s)
		ORDER BY t.symbol
	`, database.TableTechnicalDataDaily, database.TablePriceDaily)).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("GetLatestTechnicalSnapshots: %w", err)
	}
	return rows, nil
}

// GetRecentBars returns up to limit of the most recent daily bars for a symbol, newest first
func (r *Repository) GetRecentBars(ctx context.Context, symbol string, limit int) ([]types.PriceBar, error) {
	ctx, cancel := database.WithQueryTimeout(ctx)
	defer cancel()

	var bars []types.PriceBar
	err := r.db.WithContext(ctx).
		Table(database.TablePriceDaily).
		Select("symbol, date, close, volume").
		Where("symbol = ? AND close IS NOT NULL", symbol).
		Order("date DESC").
		Limit(limit).
		Scan(&bars).Error
	if err != nil {
		return nil, fmt.Errorf("GetRecentBars: %w", err)
	}
	return bars, nil
}

// GetDistinctDates lists the distinct trading dates in price_daily, ascending.
// Nil bounds are open.
func (r *Repository) GetDistinctDates(ctx context.Context, from, to *time.Time) ([]time.Time, error) {
	ctx, cancel := database.WithQueryTimeout(ctx)
	defer cancel()

	q := r.db.WithContext(ctx).Table(database.TablePriceDaily).Distinct("date")
	if from != nil {
		q = q.Where("date >= ?", *from)
	}
	if to != nil {
		q = q.Where("date <= ?", *to)
	}

	var dates []time.Time
	if err := q.Order("date").Pluck("date", &dates).Error; err != nil {
		return nil, fmt.Errorf("GetDistinctDates: %w", err)
	}
	return dates, nil
}
