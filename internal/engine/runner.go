package engine

import (
	"fmt"

	"quantlab/internal/domain"
	"quantlab/internal/portfolio"
)

// RunConfig configures one backtest run.
type RunConfig struct {
	InitialCapital float64
	Exec           ExecConfig
	// LiquidateAtEnd closes any position still open after the last bar, at
	// that bar's reference price with the usual frictions. The closing
	// trade is appended to the ledger after the final equity entry.
	LiquidateAtEnd bool
}

// Runner drives the Executor across an entire bar series for one strategy
// instance, producing a finished BacktestResult.
type Runner struct {
	cfg RunConfig
}

// NewRunner creates a Runner. The configuration is copied and never mutated,
// so a single Runner may serve concurrent runs.
func NewRunner(cfg RunConfig) *Runner {
	cfg.Exec = cfg.Exec.normalized()
	return &Runner{cfg: cfg}
}

// Run executes the full bar-by-bar simulation from an all-cash starting
// state. Bars and signals must pair one-to-one by timestamp. Identical
// inputs always produce identical results.
func (r *Runner) Run(bars []domain.Bar, signals []domain.Signal) (*domain.BacktestResult, error) {
	if err := domain.ValidateBars(bars); err != nil {
		return nil, err
	}
	if err := domain.AlignSignals(bars, signals); err != nil {
		return nil, err
	}

	p, err := portfolio.New(r.cfg.InitialCapital)
	if err != nil {
		return nil, err
	}
	exec := NewExecutor(r.cfg.Exec)

	result := &domain.BacktestResult{
		Symbol:         bars[0].Symbol,
		Start:          bars[0].Timestamp,
		End:            bars[len(bars)-1].Timestamp,
		InitialCapital: r.cfg.InitialCapital,
	}

	for i := range bars {
		trade, outcome := exec.Apply(p, bars[i], signals[i])
		if trade != nil {
			result.Trades = append(result.Trades, *trade)
		}
		switch outcome {
		case domain.OutcomeNoFillCash:
			result.NoFillCash++
		case domain.OutcomeNoFillPosition:
			result.NoFillPosition++
		}
	}

	if r.cfg.LiquidateAtEnd && p.HasPosition() {
		last := bars[len(bars)-1]
		closeAll := domain.Signal{Timestamp: last.Timestamp, Action: domain.ActionSell}
		trade, outcome := exec.applySell(p, last, closeAll)
		if trade == nil {
			return nil, fmt.Errorf("closing position at end of run: unexpected outcome %q", outcome)
		}
		result.Trades = append(result.Trades, *trade)
	}

	result.EquityCurve = p.EquityCurve()
	result.FinalEquity = p.Equity(bars[len(bars)-1].Close)
	return result, nil
}
