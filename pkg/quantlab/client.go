// Package quantlab provides a Go client for the quantlab server API.
package quantlab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Client talks to a quantlab server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL, e.g.
// "http://127.0.0.1:8090".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// BacktestRequest mirrors the POST /api/v1/backtest body. Zero-valued
// optional fields are omitted so the server applies its configured
// defaults.
type BacktestRequest struct {
	Strategy string `json:"strategy"`
	Symbol   string `json:"symbol"`
	Start    string `json:"start"` // YYYY-MM-DD
	End      string `json:"end"`   // YYYY-MM-DD

	InitialCapital  *float64 `json:"initial_capital,omitempty"`
	CommissionPct   *float64 `json:"commission_pct,omitempty"`
	SlippagePct     *float64 `json:"slippage_pct,omitempty"`
	PositionSizePct *float64 `json:"position_size_pct,omitempty"`
	ReferencePrice  string   `json:"reference_price,omitempty"`
	LiquidateAtEnd  *bool    `json:"liquidate_at_end,omitempty"`
}

// WalkForwardRequest mirrors the POST /api/v1/walkforward body.
type WalkForwardRequest struct {
	BacktestRequest

	TrainSize  *int `json:"train_size,omitempty"`
	TestSize   *int `json:"test_size,omitempty"`
	StepSize   *int `json:"step_size,omitempty"`
	MaxWorkers *int `json:"max_workers,omitempty"`
}

// MetricsSummary is the performance statistics block of a run summary.
type MetricsSummary struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	Volatility       float64 `json:"volatility"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	SortinoRatio     float64 `json:"sortino_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	CalmarRatio      float64 `json:"calmar_ratio"`
	WinRate          float64 `json:"win_rate"`
	ProfitFactor     float64 `json:"profit_factor"`
	NumPeriods       int     `json:"num_periods"`
}

// RunSummary is one finished run as reported by the server.
type RunSummary struct {
	RunID          int64          `json:"run_id"`
	Strategy       string         `json:"strategy"`
	Symbol         string         `json:"symbol"`
	Start          time.Time      `json:"start"`
	End            time.Time      `json:"end"`
	InitialCapital float64        `json:"initial_capital"`
	FinalEquity    float64        `json:"final_equity"`
	NumTrades      int            `json:"num_trades"`
	NoFillCash     int            `json:"no_fill_cash"`
	NoFillPosition int            `json:"no_fill_position"`
	Metrics        MetricsSummary `json:"metrics"`
}

// RunListEntry is one row of the persisted run history.
type RunListEntry struct {
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

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("quantlab: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Health reports whether the server answers its health check.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/healthz", nil)
}

// Strategies lists the registered strategy names.
func (c *Client) Strategies(ctx context.Context) ([]string, error) {
	var resp struct {
		Strategies []string `json:"strategies"`
	}
	if err := c.get(ctx, "/api/v1/strategies", &resp); err != nil {
		return nil, err
	}
	return resp.Strategies, nil
}

// Symbols lists the symbols with stored bar data.
func (c *Client) Symbols(ctx context.Context) ([]string, error) {
	var resp struct {
		Symbols []string `json:"symbols"`
	}
	if err := c.get(ctx, "/api/v1/symbols", &resp); err != nil {
		return nil, err
	}
	return resp.Symbols, nil
}

// Runs lists persisted run summaries, newest first, up to limit.
func (c *Client) Runs(ctx context.Context, limit int) ([]RunListEntry, error) {
	path := "/api/v1/runs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp struct {
		Runs []RunListEntry `json:"runs"`
	}
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

// Backtest runs one backtest on the server and returns its summary.
func (c *Client) Backtest(ctx context.Context, req BacktestRequest) (*RunSummary, error) {
	var resp struct {
		Run RunSummary `json:"run"`
	}
	if err := c.post(ctx, "/api/v1/backtest", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Run, nil
}

// WalkForward runs a walk-forward evaluation on the server and returns the
// per-window summaries in chronological order.
func (c *Client) WalkForward(ctx context.Context, req WalkForwardRequest) ([]RunSummary, error) {
	var resp struct {
		Windows []RunSummary `json:"windows"`
	}
	if err := c.post(ctx, "/api/v1/walkforward", req, &resp); err != nil {
		return nil, err
	}
	return resp.Windows, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(data, &envelope) == nil && envelope.Error.Code != "" {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		} else {
			apiErr.Code = "HTTP_ERROR"
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", req.URL.Path, err)
	}
	return nil
}
