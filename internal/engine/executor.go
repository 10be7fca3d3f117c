// Package engine contains the deterministic backtest core: the bar-level
// execution engine, the single-run controller, and the walk-forward
// evaluation controller.
package engine

import (
	"math"

	"quantlab/internal/domain"
	"quantlab/internal/portfolio"
)

// ExecConfig holds the execution frictions applied to every simulated fill.
// It is immutable for the lifetime of a run; parallel walk-forward windows
// each receive their own copy and cannot interfere with one another.
type ExecConfig struct {
	CommissionPct   float64
	SlippagePct     float64
	PositionSizePct float64 // fraction of cash a full-size buy may deploy
	ReferencePrice  domain.PriceField
}

// normalized fills in the documented defaults for zero-valued fields.
func (c ExecConfig) normalized() ExecConfig {
	if c.PositionSizePct <= 0 || c.PositionSizePct > 1 {
		c.PositionSizePct = 1
	}
	if !c.ReferencePrice.Valid() {
		c.ReferencePrice = domain.PriceClose
	}
	return c
}

// Executor applies one signal per bar against a portfolio. It is a pure
// state-transition function of (prior state, bar, signal): no lookahead,
// no hidden state.
type Executor struct {
	cfg ExecConfig
}

// NewExecutor creates an Executor with the given frictions.
func NewExecutor(cfg ExecConfig) *Executor {
	return &Executor{cfg: cfg.normalized()}
}

// effectivePrice applies slippage to the bar's reference price: pay more
// when buying, receive less when selling.
func (e *Executor) effectivePrice(bar domain.Bar, side domain.Side) float64 {
	ref := bar.Price(e.cfg.ReferencePrice)
	if side == domain.SideBuy {
		return ref * (1 + e.cfg.SlippagePct)
	}
	return ref * (1 - e.cfg.SlippagePct)
}

// commission returns the commission charged on a fill of the given size.
func (e *Executor) commission(quantity int64, price float64) float64 {
	return float64(quantity) * price * e.cfg.CommissionPct
}

// maxAffordable returns the largest whole-share quantity q such that
// q × price × (1 + commissionPct) fits within budget.
func (e *Executor) maxAffordable(price, budget float64) int64 {
	if price <= 0 || budget <= 0 {
		return 0
	}
	return int64(math.Floor(budget / (price * (1 + e.cfg.CommissionPct))))
}

// Apply processes one signal against the portfolio for one bar. It mutates
// the portfolio (at most one trade, always one equity-curve entry) and
// returns the trade, if any, plus the fill outcome classifying what
// happened.
func (e *Executor) Apply(p *portfolio.Portfolio, bar domain.Bar, sig domain.Signal) (*domain.Trade, domain.FillOutcome) {
	var trade *domain.Trade
	outcome := domain.OutcomeHold

	switch sig.Action {
	case domain.ActionBuy:
		trade, outcome = e.applyBuy(p, bar, sig)
	case domain.ActionSell:
		trade, outcome = e.applySell(p, bar, sig)
	}

	p.MarkToMarket(bar, outcome)
	return trade, outcome
}

func (e *Executor) applyBuy(p *portfolio.Portfolio, bar domain.Bar, sig domain.Signal) (*domain.Trade, domain.FillOutcome) {
	price := e.effectivePrice(bar, domain.SideBuy)
	budget := p.Cash() * e.cfg.PositionSizePct

	affordable := e.maxAffordable(price, budget)
	requested := int64(sig.Quantity) // truncate toward zero
	if requested <= 0 {
		requested = affordable // unsized buy: deploy the full budget
	}

	quantity := min(requested, affordable)
	if quantity <= 0 {
		return nil, domain.OutcomeNoFillCash
	}

	commission := e.commission(quantity, price)
	if err := p.Buy(quantity, price, commission); err != nil {
		// maxAffordable already bounded the fill; treat any residual
		// rejection as an unaffordable order.
		return nil, domain.OutcomeNoFillCash
	}

	outcome := domain.OutcomeFilled
	if quantity < requested {
		outcome = domain.OutcomePartialFill
	}
	return &domain.Trade{
		Timestamp:  bar.Timestamp,
		Side:       domain.SideBuy,
		Price:      price,
		Quantity:   quantity,
		Commission: commission,
		CashAfter:  p.Cash(),
	}, outcome
}

func (e *Executor) applySell(p *portfolio.Portfolio, bar domain.Bar, sig domain.Signal) (*domain.Trade, domain.FillOutcome) {
	held := p.Position().Quantity
	if held <= 0 {
		return nil, domain.OutcomeNoFillPosition
	}

	requested := int64(sig.Quantity)
	if requested <= 0 {
		requested = held // unsized sell: close the position
	}
	quantity := min(requested, held)

	price := e.effectivePrice(bar, domain.SideSell)
	commission := e.commission(quantity, price)
	if _, err := p.Sell(quantity, price, commission); err != nil {
		return nil, domain.OutcomeNoFillPosition
	}

	outcome := domain.OutcomeFilled
	if quantity < requested {
		outcome = domain.OutcomePartialFill
	}
	return &domain.Trade{
		Timestamp:  bar.Timestamp,
		Side:       domain.SideSell,
		Price:      price,
		Quantity:   quantity,
		Commission: commission,
		CashAfter:  p.Cash(),
	}, outcome
}
