package api

import (
	"time"

	"quantlab/internal/metrics"
	"quantlab/internal/store"
)

// BacktestRequest is the request body for POST /api/v1/backtest.
type BacktestRequest struct {
	Strategy string `json:"strategy" binding:"required"`
	Symbol   string `json:"symbol" binding:"required"`
	Start    string `json:"start" binding:"required"` // YYYY-MM-DD
	End      string `json:"end" binding:"required"`   // YYYY-MM-DD

	// Optional overrides; the server config supplies defaults.
	InitialCapital  *float64 `json:"initial_capital,omitempty"`
	CommissionPct   *float64 `json:"commission_pct,omitempty"`
	SlippagePct     *float64 `json:"slippage_pct,omitempty"`
	PositionSizePct *float64 `json:"position_size_pct,omitempty"`
	ReferencePrice  string   `json:"reference_price,omitempty"`
	LiquidateAtEnd  *bool    `json:"liquidate_at_end,omitempty"`
}

// WalkForwardRequest is the request body for POST /api/v1/walkforward.
type WalkForwardRequest struct {
	BacktestRequest

	TrainSize  *int `json:"train_size,omitempty"`
	TestSize   *int `json:"test_size,omitempty"`
	StepSize   *int `json:"step_size,omitempty"`
	MaxWorkers *int `json:"max_workers,omitempty"`
}

// RunSummaryPayload is the per-run summary returned by backtest and
// walk-forward responses.
type RunSummaryPayload struct {
	RunID          int64           `json:"run_id,omitempty"`
	Strategy       string          `json:"strategy"`
	Symbol         string          `json:"symbol"`
	Start          time.Time       `json:"start"`
	End            time.Time       `json:"end"`
	InitialCapital float64         `json:"initial_capital"`
	FinalEquity    float64         `json:"final_equity"`
	NumTrades      int             `json:"num_trades"`
	NoFillCash     int             `json:"no_fill_cash"`
	NoFillPosition int             `json:"no_fill_position"`
	Metrics        metrics.Summary `json:"metrics"`
}

// BacktestResponse is the response body for POST /api/v1/backtest.
type BacktestResponse struct {
	Status string            `json:"status"`
	Run    RunSummaryPayload `json:"run"`
}

// WalkForwardResponse is the response body for POST /api/v1/walkforward.
type WalkForwardResponse struct {
	Status  string              `json:"status"`
	Windows []RunSummaryPayload `json:"windows"`
}

// StrategiesResponse lists the registered strategy names.
type StrategiesResponse struct {
	Strategies []string `json:"strategies"`
}

// SymbolsResponse lists the symbols with stored bar data.
type SymbolsResponse struct {
	Symbols []string `json:"symbols"`
}

// RunsResponse lists persisted run summaries, newest first.
type RunsResponse struct {
	Runs []store.RunSummary `json:"runs"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a machine-readable code and a human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
