// Package portfolio tracks the simulated account state for one backtest
// run: cash, the single-asset position, and the mark-to-market equity
// history. Only the execution engine mutates it, one bar at a time.
package portfolio

import (
	"fmt"

	"quantlab/internal/domain"
)

// Position is the current holding: a non-negative integer share count and
// the average cost basis paid for it (informational).
type Position struct {
	Quantity int64
	AvgPrice float64
}

// CostBasis returns the position's total entry cost.
func (p Position) CostBasis() float64 {
	return float64(p.Quantity) * p.AvgPrice
}

// MarketValue returns the position valued at the given price.
func (p Position) MarketValue(price float64) float64 {
	return float64(p.Quantity) * price
}

// Portfolio holds the mutable account state of a single run.
type Portfolio struct {
	initialCash float64
	cash        float64
	position    Position
	equity      []domain.EquityPoint
}

// New creates a Portfolio holding only cash.
func New(initialCash float64) (*Portfolio, error) {
	if initialCash <= 0 {
		return nil, fmt.Errorf("%w: initial cash must be positive, got %v",
			domain.ErrConfig, initialCash)
	}
	return &Portfolio{
		initialCash: initialCash,
		cash:        initialCash,
	}, nil
}

// Cash returns the current cash balance. Never negative.
func (p *Portfolio) Cash() float64 { return p.cash }

// InitialCash returns the starting capital.
func (p *Portfolio) InitialCash() float64 { return p.initialCash }

// Position returns the current holding.
func (p *Portfolio) Position() Position { return p.position }

// HasPosition reports whether any shares are held.
func (p *Portfolio) HasPosition() bool { return p.position.Quantity > 0 }

// Equity returns the portfolio value at the given mark price.
func (p *Portfolio) Equity(price float64) float64 {
	return p.cash + p.position.MarketValue(price)
}

// Buy debits cash for quantity shares at price plus commission and updates
// the average cost basis. It rejects any purchase that would drive cash
// negative; the engine is responsible for sizing orders so this never
// fires on a well-formed fill.
func (p *Portfolio) Buy(quantity int64, price, commission float64) error {
	if quantity <= 0 {
		return fmt.Errorf("buy quantity must be positive, got %d", quantity)
	}
	cost := float64(quantity)*price + commission
	if cost > p.cash {
		return fmt.Errorf("insufficient cash: need %.2f, have %.2f", cost, p.cash)
	}

	p.cash -= cost

	totalQty := p.position.Quantity + quantity
	totalCost := p.position.CostBasis() + float64(quantity)*price
	p.position = Position{
		Quantity: totalQty,
		AvgPrice: totalCost / float64(totalQty),
	}
	return nil
}

// Sell credits cash with quantity × price minus commission and reduces the
// position. It returns the realized profit against the average cost basis.
func (p *Portfolio) Sell(quantity int64, price, commission float64) (float64, error) {
	if quantity <= 0 {
		return 0, fmt.Errorf("sell quantity must be positive, got %d", quantity)
	}
	if quantity > p.position.Quantity {
		return 0, fmt.Errorf("insufficient shares: selling %d, hold %d",
			quantity, p.position.Quantity)
	}

	proceeds := float64(quantity)*price - commission
	realized := proceeds - float64(quantity)*p.position.AvgPrice

	p.cash += proceeds
	p.position.Quantity -= quantity
	if p.position.Quantity == 0 {
		p.position.AvgPrice = 0
	}
	return realized, nil
}

// MarkToMarket appends one equity-curve entry for the bar being processed.
// Called exactly once per bar, whether or not a trade occurred.
func (p *Portfolio) MarkToMarket(bar domain.Bar, outcome domain.FillOutcome) {
	p.equity = append(p.equity, domain.EquityPoint{
		Timestamp: bar.Timestamp,
		Equity:    p.Equity(bar.Close),
		Cash:      p.cash,
		Outcome:   outcome,
	})
}

// EquityCurve returns the recorded history, one entry per processed bar.
func (p *Portfolio) EquityCurve() []domain.EquityPoint { return p.equity }
