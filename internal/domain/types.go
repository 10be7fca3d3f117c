// Package domain holds the core data model shared across quantlab:
// OHLCV bars, strategy signals, executed trades, and backtest results.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the two fail-fast error classes. Callers distinguish
// them with errors.Is.
var (
	// ErrConfig marks invalid configuration: misaligned sequences,
	// non-positive sizes, negative percentages.
	ErrConfig = errors.New("invalid configuration")

	// ErrDataIntegrity marks broken input data: empty, out-of-order, or
	// duplicate-timestamp bar sequences. The engine never repairs data.
	ErrDataIntegrity = errors.New("data integrity violation")
)

// Bar is one OHLCV observation for a fixed time interval. Bars are produced
// externally, ordered strictly by timestamp, with no duplicates.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// PriceField selects which bar price the execution engine uses as the
// reference price for fills.
type PriceField string

const (
	PriceOpen  PriceField = "open"
	PriceHigh  PriceField = "high"
	PriceLow   PriceField = "low"
	PriceClose PriceField = "close"
)

// Price returns the bar price selected by f. Unknown fields fall back to
// the close, matching the documented default.
func (b Bar) Price(f PriceField) float64 {
	switch f {
	case PriceOpen:
		return b.Open
	case PriceHigh:
		return b.High
	case PriceLow:
		return b.Low
	default:
		return b.Close
	}
}

// Valid reports whether f names a known bar price field.
func (f PriceField) Valid() bool {
	switch f {
	case PriceOpen, PriceHigh, PriceLow, PriceClose:
		return true
	}
	return false
}

// SignalAction is a strategy's decision for one bar.
type SignalAction string

const (
	ActionHold SignalAction = "hold"
	ActionBuy  SignalAction = "buy"
	ActionSell SignalAction = "sell"
)

// Signal is a timestamp-aligned instruction emitted by a strategy. Quantity
// is truncated toward zero before sizing. On a buy, Quantity <= 0 means "as
// many shares as affordable"; on a sell it means "all held shares".
type Signal struct {
	Timestamp time.Time
	Action    SignalAction
	Quantity  float64
}

// Side is the direction of an executed trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Trade is an immutable record of one executed transaction. Price is the
// effective price after slippage; CashAfter is the cash balance once the
// trade settled. The trade log is the authoritative audit trail of a run.
type Trade struct {
	Timestamp  time.Time
	Side       Side
	Price      float64
	Quantity   int64
	Commission float64
	CashAfter  float64
}

// Notional returns the trade's principal value, excluding commission.
func (t Trade) Notional() float64 {
	return t.Price * float64(t.Quantity)
}

// FillOutcome classifies what the execution engine did with one bar's
// signal. Rejections are first-class outcomes so a no-fill is never
// confused with a deliberate hold downstream.
type FillOutcome string

const (
	// OutcomeHold: the signal was a hold, nothing to do.
	OutcomeHold FillOutcome = "hold"
	// OutcomeFilled: the full requested quantity executed.
	OutcomeFilled FillOutcome = "filled"
	// OutcomePartialFill: cash covered only part of the requested buy.
	OutcomePartialFill FillOutcome = "partial_fill"
	// OutcomeNoFillCash: a buy could not afford even one share.
	OutcomeNoFillCash FillOutcome = "no_fill_insufficient_cash"
	// OutcomeNoFillPosition: a sell arrived with no shares held.
	OutcomeNoFillPosition FillOutcome = "no_fill_no_position"
)

// Rejected reports whether the outcome is a no-fill rejection.
func (o FillOutcome) Rejected() bool {
	return o == OutcomeNoFillCash || o == OutcomeNoFillPosition
}

// EquityPoint is one mark-to-market observation: cash plus holdings valued
// at the bar close. Exactly one is recorded per processed bar; Outcome
// annotates what the engine did on that bar.
type EquityPoint struct {
	Timestamp time.Time
	Equity    float64
	Cash      float64
	Outcome   FillOutcome
}

// BacktestResult is the complete, immutable output of one backtest run.
type BacktestResult struct {
	Strategy       string
	Symbol         string
	Start          time.Time
	End            time.Time
	InitialCapital float64
	FinalEquity    float64
	EquityCurve    []EquityPoint
	Trades         []Trade
	// Rejection counters, per run. Nonzero values flag signals the engine
	// could not honor.
	NoFillCash     int
	NoFillPosition int
}

// TotalReturn is the run's total return as a decimal fraction.
func (r *BacktestResult) TotalReturn() float64 {
	if r.InitialCapital == 0 {
		return 0
	}
	return (r.FinalEquity - r.InitialCapital) / r.InitialCapital
}

// ValidateBars checks the bar-sequence contract: non-empty, strictly
// increasing timestamps, no duplicates. It returns an error wrapping
// ErrDataIntegrity on the first violation.
func ValidateBars(bars []Bar) error {
	if len(bars) == 0 {
		return fmt.Errorf("%w: empty bar sequence", ErrDataIntegrity)
	}
	for i := 1; i < len(bars); i++ {
		prev, cur := bars[i-1].Timestamp, bars[i].Timestamp
		if cur.Equal(prev) {
			return fmt.Errorf("%w: duplicate timestamp %s at index %d",
				ErrDataIntegrity, cur.Format(time.RFC3339), i)
		}
		if cur.Before(prev) {
			return fmt.Errorf("%w: out-of-order timestamp %s at index %d",
				ErrDataIntegrity, cur.Format(time.RFC3339), i)
		}
	}
	return nil
}

// AlignSignals checks that signals pair one-to-one with bars by index and
// timestamp. It returns an error wrapping ErrConfig on mismatch.
func AlignSignals(bars []Bar, signals []Signal) error {
	if len(bars) != len(signals) {
		return fmt.Errorf("%w: %d bars vs %d signals", ErrConfig, len(bars), len(signals))
	}
	for i := range bars {
		if !bars[i].Timestamp.Equal(signals[i].Timestamp) {
			return fmt.Errorf("%w: bar/signal timestamp mismatch at index %d (%s vs %s)",
				ErrConfig, i,
				bars[i].Timestamp.Format(time.RFC3339),
				signals[i].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}
