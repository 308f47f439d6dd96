// Package database provides the store boundary of the ranking engine.
//
// This package includes:
//   - Connection management using GORM and PostgreSQL
//   - Backfill checkpoints
//   - Typed errors for store operations
//
// Table access is split into sub-packages:
//
//	prices    reads price_daily and technical_data_daily (owned by external loaders)
//	rankings  as-of group reads and ranking snapshot upserts
//	scores    RS rating history, momentum scores and the shared stock_scores column
//	events    distribution-day replacement per index
//
// All persisted models live in models_pkg to avoid circular imports.
package database

import (
	"gorm.io/gorm"

	models "market-rankings/database/models_pkg"
)

// Database holds the GORM database connection and provides access to the underlying DB instance.
type Database struct {
	db *gorm.DB
}

// DB returns the underlying GORM database instance
func (d *Database) DB() *gorm.DB {
	return d.db
}

// RankingCheckpoint is aliased so callers can import the database package alone
type RankingCheckpoint = models.RankingCheckpoint
