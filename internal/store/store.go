// Package store persists and retrieves market data and finished backtest
// results: daily bars live in Parquet files on disk, run results in SQLite.
package store

import (
	"context"
	"time"

	"quantlab/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars, merging with any already stored.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol within [start, end],
	// sorted by timestamp.
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols with stored bar data.
	ListSymbols(ctx context.Context) ([]string, error)
}

// RunSummary is the lightweight listing row for a persisted run.
type RunSummary struct {
	ID          int64     `json:"id"`
	Strategy    string    `json:"strategy"`
	Symbol      string    `json:"symbol"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	FinalEquity float64   `json:"final_equity"`
	TotalReturn float64   `json:"total_return"`
	NumTrades   int       `json:"num_trades"`
	CreatedAt   time.Time `json:"created_at"`
}

// ResultStore persists finished backtest results.
type ResultStore interface {
	// SaveResult persists one result and its trade ledger, returning the
	// assigned run ID.
	SaveResult(ctx context.Context, result *domain.BacktestResult) (int64, error)

	// GetRun retrieves a persisted result by run ID, trades included.
	GetRun(ctx context.Context, id int64) (*domain.BacktestResult, error)

	// ListRuns returns summaries of the most recent runs, newest first,
	// up to limit (limit <= 0 means no cap).
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
}
