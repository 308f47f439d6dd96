package scores

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"market-rankings/database"
	models "market-rankings/database/models_pkg"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository handles momentum score persistence
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new scores repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// UpsertRSRatingHistory writes one rating per symbol for the run date; last write wins
func (r *Repository) UpsertRSRatingHistory(ctx context.Context, rows []models.RSRatingHistory) error {
	if len(rows) == 0 {
		return nil
	}
	ctx, cancel := database.WithUpsertTimeout(ctx)
	defer cancel()

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"rs_rating"}),
	}).CreateInBatches(rows, database.UpsertBatchSize).Error
	if err != nil {
		return fmt.Errorf("UpsertRSRatingHistory: %w", err)
	}
	return nil
}

// UpsertMomentumScores writes score rows keyed by (symbol, date)
func (r *Repository) UpsertMomentumScores(ctx context.Context, rows []models.MomentumScore) error {
	if len(rows) == 0 {
		return nil
	}
	ctx, cancel := database.WithUpsertTimeout(ctx)
	defer cancel()

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"momentum_score", "rs_rating", "core_momentum", "regime_boost", "created_at"}),
	}).CreateInBatches(rows, database.UpsertBatchSize).Error
	if err != nil {
		return fmt.Errorf("UpsertMomentumScores: %w", err)
	}
	return nil
}

// UpdateStockScores sets stock_scores.momentum_score for existing symbols only.
// The table is shared with other scorers; no other column is written.
func (r *Repository) UpdateStockScores(ctx context.Context, scores map[string]float64) (int64, error) {
	if len(scores) == 0 {
		return 0, nil
	}

	symbols := make([]string, 0, len(scores))
	for s := range scores {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	var updated int64
	for start := 0; start < len(symbols); start += database.UpsertBatchSize {
		end := start + database.UpsertBatchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		chunk := symbols[start:end]

		values := make([]string, len(chunk))
		args := make([]interface{}, 0, len(chunk)*2)
		for i, sym := range chunk {
			values[i] = "(?, ?::double precision)"
			args = append(args, sym, scores[sym])
		}

		stmtCtx, cancel := database.WithUpsertTimeout(ctx)
		res := r.db.WithContext(stmtCtx).Exec(`
			UPDATE `+database.TableStockScores+` AS s
			SET momentum_score = v.score
			FROM (VALUES `+strings.Join(values, ", ")+`) AS v(symbol, score)
			WHERE s.symbol = v.symbol
		`, args...)
		cancel()
		if res.Error != nil {
			return updated, fmt.Errorf("UpdateStockScores: %w", res.Error)
		}
		updated += res.RowsAffected
	}
	return updated, nil
}
