package rankings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"market-rankings/database"
	models "market-rankings/database/models_pkg"
	"market-rankings/database/types"
	"market-rankings/ranking"
)

// groupSpec maps a granularity onto its performance table and group columns
type groupSpec struct {
	perfTable    string
	sectorCol    string
	industryCol  string // empty at sector granularity
	conflictCols []string
}

var specs = map[ranking.Granularity]groupSpec{
	ranking.Sector: {
		perfTable:    database.TableSectorPerformance,
		sectorCol:    "sector_name",
		conflictCols: []string{"sector", "snapshot_date"},
	},
	ranking.Industry: {
		perfTable:    database.TableIndustryPerformance,
		sectorCol:    "sector",
		industryCol:  "industry",
		conflictCols: []string{"sector", "industry", "snapshot_date"},
	},
}

func specFor(g ranking.Granularity) (groupSpec, error) {
	s, ok := specs[g]
	if !ok {
		return groupSpec{}, fmt.Errorf("%w: %q", ranking.ErrUnknownGranularity, g)
	}
	return s, nil
}

// sectorExpr and industryExpr select the group columns from alias p
func (s groupSpec) sectorExpr(alias string) string {
	return alias + "." + pq.QuoteIdentifier(s.sectorCol)
}

func (s groupSpec) industryExpr(alias string) string {
	if s.industryCol == "" {
		return "''"
	}
	return alias + "." + pq.QuoteIdentifier(s.industryCol)
}

// keyExprs lists the group columns for DISTINCT ON, GROUP BY and ORDER BY.
// Constant expressions are rejected there, so sector granularity lists one column.
func (s groupSpec) keyExprs(alias string) string {
	if s.industryCol == "" {
		return s.sectorExpr(alias)
	}
	return s.sectorExpr(alias) + ", " + s.industryExpr(alias)
}

// notNull filters out rows missing any group column
func (s groupSpec) notNull(alias string) string {
	if s.industryCol == "" {
		return s.sectorExpr(alias) + " IS NOT NULL"
	}
	return s.sectorExpr(alias) + " IS NOT NULL AND " + s.industryExpr(alias) + " IS NOT NULL"
}

// Repository handles group performance reads and ranking snapshot writes
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new rankings repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// refDatesCTE renders "ref(ref_date) AS (VALUES (?::date), ...)" with one arg per date
func refDatesCTE(dates []time.Time) (string, []interface{}) {
	parts := make([]string, len(dates))
	args := make([]interface{}, len(dates))
	for i, d := range dates {
		parts[i] = "(?::date)"
		args[i] = ranking.Date(d)
	}
	return "ref(ref_date) AS (VALUES " + strings.Join(parts, ", ") + ")", args
}

// GetPerformanceAsOf resolves, for every reference date, each group's latest
// performance row fetched on or before that date. One statement covers all dates.
func (r *Repository) GetPerformanceAsOf(ctx context.Context, g ranking.Granularity, dates []time.Time) ([]types.GroupPerformanceRow, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	spec, err := specFor(g)
	if err != nil {
		return nil, err
	}

	ctx, cancel := database.WithQueryTimeout(ctx)
	defer cancel()

	cte, args := refDatesCTE(dates)
	sector, industry, keys := spec.sectorExpr("p"), spec.industryExpr("p"), spec.keyExprs("p")
	query := fmt.Sprintf(`
		WITH %s
		SELECT DISTINCT ON (ref.ref_date, %s)
			ref.ref_date AS ref_date,
			%s AS sector,
			%s AS industry,
			p.fetched_at,
			p.performance_1d,
			p.performance_5d,
			p.performance_20d,
			p.relative_strength,
			p.momentum,
			p.rsi,
			p.overall_rank
		FROM ref
		JOIN %s p ON DATE(p.fetched_at) <= ref.ref_date
		WHERE %s
		ORDER BY ref.ref_date, %s, p.fetched_at DESC
	`, cte, keys, sector, industry, pq.QuoteIdentifier(spec.perfTable), spec.notNull("p"), keys)

	var rows []types.GroupPerformanceRow
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("GetPerformanceAsOf: %w", err)
	}
	return rows, nil
}

// GetPriceSumsAsOf aggregates member closes per group on the latest trading date
// at or before each reference date.
func (r *Repository) GetPriceSumsAsOf(ctx context.Context, g ranking.Granularity, dates []time.Time) ([]types.GroupPriceSumRow, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	if _, err := specFor(g); err != nil {
		return nil, err
	}

	industry, industryFilter, keys := "''", "", "cp.sector"
	if g == ranking.Industry {
		industry, industryFilter, keys = "cp.industry", "AND cp.industry IS NOT NULL", "cp.sector, cp.industry"
	}

	ctx, cancel := database.WithQueryTimeout(ctx)
	defer cancel()

	cte, args := refDatesCTE(dates)
	query := fmt.Sprintf(`
		WITH %[1]s,
		asof AS (
			SELECT ref.ref_date, MAX(pd.date) AS price_date
			FROM ref
			JOIN %[2]s pd ON pd.date <= ref.ref_date
			GROUP BY ref.ref_date
		)
		SELECT
			asof.ref_date AS ref_date,
			cp.sector AS sector,
			%[4]s AS industry,
			asof.price_date AS price_date,
			SUM(pd.close) AS price_sum,
			COUNT(*) AS members
		FROM asof
		JOIN %[2]s pd ON pd.date = asof.price_date
		JOIN %[3]s cp ON cp.symbol = pd.symbol
		WHERE cp.sector IS NOT NULL %[5]s AND pd.close IS NOT NULL
		GROUP BY asof.ref_date, asof.price_date, %[6]s
		ORDER BY asof.ref_date, %[6]s
	`, cte, database.TablePriceDaily, database.TableCompanyProfile, industry, industryFilter, keys)

	var rows []types.GroupPriceSumRow
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("GetPriceSumsAsOf: %w", err)
	}
	return rows, nil
}

// LoadSeries reads the full performance history of a granularity fetched on or before to
func (r *Repository) LoadSeries(ctx context.Context, g ranking.Granularity, to time.Time) ([]ranking.Observation, error) {
	spec, err := specFor(g)
	if err != nil {
		return nil, err
	}
	ctx, cancel := database.WithQueryTimeout(ctx)
	defer cancel()

	sector, industry := spec.sectorExpr("p"), spec.industryExpr("p")
	query := fmt.Sprintf(`
		SELECT
			%s AS sector,
			%s AS industry,
			p.fetched_at,
			p.performance_1d,
			p.performance_5d,
			p.performance_20d,
			p.relative_strength,
			p.momentum,
			p.rsi,
			p.overall_rank
		FROM %s p
		WHERE %s AND DATE(p.fetched_at) <= ?
		ORDER BY p.fetched_at
	`, sector, industry, pq.QuoteIdentifier(spec.perfTable), spec.notNull("p"))

	var rows []types.GroupPerformanceRow
	if err := r.db.WithContext(ctx).Raw(query, ranking.Date(to)).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("LoadSeries: %w", err)
	}

	obs := make([]ranking.Observation, len(rows))
	for i, row := range rows {
		obs[i] = performanceObservation(row)
	}
	return obs, nil
}

// performanceObservation maps a row onto an observation; NaN and infinite metrics become NULL
func performanceObservation(row types.GroupPerformanceRow) ranking.Observation {
	return ranking.Observation{
		Key:              ranking.GroupKey{Sector: row.Sector, Industry: row.Industry},
		FetchedAt:        row.FetchedAt,
		Performance1D:    ranking.Finite(row.Performance1D),
		Performance5D:    ranking.Finite(row.Performance5D),
		Performance20D:   ranking.Finite(row.Performance20D),
		RelativeStrength: ranking.Finite(row.RelativeStrength),
		Momentum:         ranking.Finite(row.Momentum),
		RSI:              ranking.Finite(row.RSI),
		OverallRank:      row.OverallRank,
	}
}

// UpsertSnapshot writes one group's snapshot, overwriting an existing row for the same key and date
func (r *Repository) UpsertSnapshot(ctx context.Context, g ranking.Granularity, snap ranking.Snapshot) error {
	if err := r.upsert(ctx, g, []ranking.Snapshot{snap}); err != nil {
		return fmt.Errorf("UpsertSnapshot %s: %w", snap.Key, err)
	}
	return nil
}

// UpsertSnapshots writes a full cross-section in batches
func (r *Repository) UpsertSnapshots(ctx context.Context, g ranking.Granularity, snaps []ranking.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	if err := r.upsert(ctx, g, snaps); err != nil {
		return fmt.Errorf("UpsertSnapshots: %w", err)
	}
	return nil
}

func (r *Repository) upsert(ctx context.Context, g ranking.Granularity, snaps []ranking.Snapshot) error {
	spec, err := specFor(g)
	if err != nil {
		return err
	}

	cols := make([]clause.Column, len(spec.conflictCols))
	for i, c := range spec.conflictCols {
		cols[i] = clause.Column{Name: c}
	}
	ctx, cancel := database.WithUpsertTimeout(ctx)
	defer cancel()

	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{Columns: cols, UpdateAll: true})

	now := time.Now()
	switch g {
	case ranking.Industry:
		rows := make([]models.IndustryRanking, len(snaps))
		for i, s := range snaps {
			rows[i] = models.IndustryRanking{
				Sector:         s.Key.Sector,
				Industry:       s.Key.Industry,
				SnapshotDate:   ranking.Date(s.SnapshotDate),
				RankingColumns: rankingColumns(s),
				UpdatedAt:      now,
			}
		}
		return tx.CreateInBatches(rows, database.UpsertBatchSize).Error
	default:
		rows := make([]models.SectorRanking, len(snaps))
		for i, s := range snaps {
			rows[i] = models.SectorRanking{
				Sector:         s.Key.Sector,
				SnapshotDate:   ranking.Date(s.SnapshotDate),
				RankingColumns: rankingColumns(s),
				UpdatedAt:      now,
			}
		}
		return tx.CreateInBatches(rows, database.UpsertBatchSize).Error
	}
}

func rankingColumns(s ranking.Snapshot) models.RankingColumns {
	return models.RankingColumns{
		CurrentRank:      s.CurrentRank,
		Rank1WAgo:        s.Rank1WAgo,
		Rank4WAgo:        s.Rank4WAgo,
		Rank12WAgo:       s.Rank12WAgo,
		RankChange1W:     s.RankChange1W,
		RankChange4W:     s.RankChange4W,
		RankChange12W:    s.RankChange12W,
		Performance1D:    s.Performance1D,
		Performance5D:    s.Performance5D,
		Performance20D:   s.Performance20D,
		RelativeStrength: s.RelativeStrength,
		Momentum:         s.Momentum,
		RankingKey:       s.RankingKey,
		TrendCAGR:        s.TrendCAGR,
	}
}
