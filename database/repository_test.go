package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-rankings/database/dbtest"
)

func TestGetCheckpointNotFound(t *testing.T) {
	gdb, mock := dbtest.NewMock(t)
	repo := NewRepository(New(gdb))

	mock.ExpectQuery(`SELECT \* FROM "ranking_checkpoints" WHERE job = \$1 AND granularity = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"job", "granularity", "last_date", "run_id", "updated_at"}))

	cp, err := repo.GetCheckpoint(context.Background(), JobRankingBackfill, "sector")
	assert.Nil(t, cp)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "ranking_backfill/sector")
}

func TestGetCheckpoint(t *testing.T) {
	gdb, mock := dbtest.NewMock(t)
	repo := NewRepository(New(gdb))

	last := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT \* FROM "ranking_checkpoints"`).
		WillReturnRows(sqlmock.NewRows([]string{"job", "granularity", "last_date", "run_id", "updated_at"}).
			AddRow(JobRankingBackfill, "industry", last, "a6f1c0de-0000-4000-8000-000000000001", time.Now()))

	cp, err := repo.GetCheckpoint(context.Background(), JobRankingBackfill, "industry")
	require.NoError(t, err)
	assert.Equal(t, last, cp.LastDate)
	assert.Equal(t, "industry", cp.Granularity)
}

func TestGetCheckpointWrapsErrors(t *testing.T) {
	gdb, mock := dbtest.NewMock(t)
	repo := NewRepository(New(gdb))

	mock.ExpectQuery(`SELECT \* FROM "ranking_checkpoints"`).WillReturnError(errors.New("connection refused"))

	_, err := repo.GetCheckpoint(context.Background(), JobRankingBackfill, "sector")
	var dbErr *DBError
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, "GetCheckpoint", dbErr.Operation)
	assert.False(t, IsNotFound(err))
}

func TestSaveCheckpointNeverMovesBackwards(t *testing.T) {
	gdb, mock := dbtest.NewMock(t)
	repo := NewRepository(New(gdb))

	mock.ExpectExec(`INSERT INTO "ranking_checkpoints" .* ON CONFLICT \("job","granularity"\) DO UPDATE SET .*GREATEST\(ranking_checkpoints.last_date, EXCLUDED.last_date\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveCheckpoint(context.Background(), JobRankingBackfill, "sector", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), "run-1")
	require.NoError(t, err)
}

func TestClearCheckpoint(t *testing.T) {
	gdb, mock := dbtest.NewMock(t)
	repo := NewRepository(New(gdb))

	mock.ExpectExec(`DELETE FROM "ranking_checkpoints" WHERE job = \$1 AND granularity = \$2`).
		WithArgs(JobRankingFastBackfill, "sector").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ClearCheckpoint(context.Background(), JobRankingFastBackfill, "sector"))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{name: "valid", cfg: Config{Host: "localhost", Port: 5432, DBName: "stocks"}},
		{name: "missing host", cfg: Config{Port: 5432, DBName: "stocks"}, field: "host"},
		{name: "bad port", cfg: Config{Host: "localhost", Port: 70000, DBName: "stocks"}, field: "port"},
		{name: "missing dbname", cfg: Config{Host: "localhost", Port: 5432}, field: "dbname"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestConfigDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5433, User: "ranker", Password: "secret", DBName: "stocks"}
	assert.Equal(t, "host=db port=5433 user=ranker password=secret dbname=stocks sslmode=disable", cfg.DSN())

	cfg.SSLMode = "require"
	assert.Contains(t, cfg.DSN(), "sslmode=require")
}

func TestWrapDBError(t *testing.T) {
	assert.NoError(t, WrapDBError("op", nil))

	base := errors.New("boom")
	err := WrapDBError("UpsertSnapshots", base)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "database error in UpsertSnapshots: boom", err.Error())
}

func TestStatementTimeouts(t *testing.T) {
	start := time.Now()
	ctx, cancel := WithQueryTimeout(context.Background())
	defer cancel()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, start.Add(QueryTimeout), deadline, time.Second)

	wctx, wcancel := WithUpsertTimeout(context.Background())
	defer wcancel()
	deadline, ok = wctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, start.Add(UpsertTimeout), deadline, time.Second)

	// a tighter caller deadline is kept
	parent, pcancel := context.WithTimeout(context.Background(), time.Second)
	defer pcancel()
	want, _ := parent.Deadline()
	ctx, cancel = WithQueryTimeout(parent)
	defer cancel()
	deadline, _ = ctx.Deadline()
	assert.Equal(t, want, deadline)
}
