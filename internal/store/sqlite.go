package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"quantlab/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

var _ ResultStore = (*SQLiteStore)(nil)

// SQLiteStore implements ResultStore backed by a SQLite database. One run
// row plus its trade rows are written per saved result; equity curves are
// not persisted, they are recomputed on demand by re-running.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	strategy         TEXT    NOT NULL,
	symbol           TEXT    NOT NULL,
	start_ts         INTEGER NOT NULL,
	end_ts           INTEGER NOT NULL,
	initial_capital  REAL    NOT NULL,
	final_equity     REAL    NOT NULL,
	no_fill_cash     INTEGER NOT NULL DEFAULT 0,
	no_fill_position INTEGER NOT NULL DEFAULT 0,
	created_at       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	ts         INTEGER NOT NULL,
	side       TEXT    NOT NULL,
	price      REAL    NOT NULL,
	quantity   INTEGER NOT NULL,
	commission REAL    NOT NULL,
	cash_after REAL    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id, ts);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies
// the schema, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db %s: %w", dbPath, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveResult persists one result and its trade ledger in a single
// transaction and returns the assigned run ID.
func (s *SQLiteStore) SaveResult(ctx context.Context, result *domain.BacktestResult) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
			(strategy, symbol, start_ts, end_ts, initial_capital,
			 final_equity, no_fill_cash, no_fill_position, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.Strategy,
		result.Symbol,
		result.Start.UnixMilli(),
		result.End.UnixMilli(),
		result.InitialCapital,
		result.FinalEquity,
		result.NoFillCash,
		result.NoFillPosition,
		time.Now().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (run_id, ts, side, price, quantity, commission, cash_after)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, t := range result.Trades {
		if _, err := stmt.ExecContext(ctx,
			runID, t.Timestamp.UnixMilli(), string(t.Side),
			t.Price, t.Quantity, t.Commission, t.CashAfter,
		); err != nil {
			return 0, fmt.Errorf("inserting trade: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

// GetRun retrieves a persisted result by run ID, trades included. A missing
// run returns sql.ErrNoRows.
func (s *SQLiteStore) GetRun(ctx context.Context, id int64) (*domain.BacktestResult, error) {
	var (
		result  domain.BacktestResult
		startMs int64
		endMs   int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT strategy, symbol, start_ts, end_ts, initial_capital,
		       final_equity, no_fill_cash, no_fill_position
		FROM runs WHERE id = ?`, id,
	).Scan(
		&result.Strategy, &result.Symbol, &startMs, &endMs,
		&result.InitialCapital, &result.FinalEquity,
		&result.NoFillCash, &result.NoFillPosition,
	)
	if err != nil {
		return nil, err
	}
	result.Start = time.UnixMilli(startMs).UTC()
	result.End = time.UnixMilli(endMs).UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, side, price, quantity, commission, cash_after
		FROM trades WHERE run_id = ? ORDER BY ts, id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t    domain.Trade
			ms   int64
			side string
		)
		if err := rows.Scan(&ms, &side, &t.Price, &t.Quantity, &t.Commission, &t.CashAfter); err != nil {
			return nil, err
		}
		t.Timestamp = time.UnixMilli(ms).UTC()
		t.Side = domain.Side(side)
		result.Trades = append(result.Trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListRuns returns summaries of the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as unlimited.
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.strategy, r.symbol, r.start_ts, r.end_ts,
		       r.initial_capital, r.final_equity, r.created_at,
		       COUNT(t.id)
		FROM runs r LEFT JOIN trades t ON t.run_id = r.id
		GROUP BY r.id
		ORDER BY r.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var (
			sum            RunSummary
			startMs        int64
			endMs          int64
			createdMs      int64
			initialCapital float64
		)
		if err := rows.Scan(
			&sum.ID, &sum.Strategy, &sum.Symbol, &startMs, &endMs,
			&initialCapital, &sum.FinalEquity, &createdMs, &sum.NumTrades,
		); err != nil {
			return nil, err
		}
		sum.Start = time.UnixMilli(startMs).UTC()
		sum.End = time.UnixMilli(endMs).UTC()
		sum.CreatedAt = time.UnixMilli(createdMs).UTC()
		if initialCapital != 0 {
			sum.TotalReturn = (sum.FinalEquity - initialCapital) / initialCapital
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}
