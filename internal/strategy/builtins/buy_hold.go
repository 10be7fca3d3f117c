package builtins

import (
	"quantlab/internal/domain"
	"quantlab/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*BuyHold)(nil)

// BuyHold buys as many shares as affordable on the first bar and holds them
// for the rest of the run. Useful as a benchmark against active strategies.
type BuyHold struct{}

// NewBuyHold creates a BuyHold strategy.
func NewBuyHold() *BuyHold {
	return &BuyHold{}
}

// Name returns "buy-hold".
func (s *BuyHold) Name() string {
	return "buy-hold"
}

// Fit is a no-op; buy-and-hold has no trainable state.
func (s *BuyHold) Fit(_ []domain.Bar) error {
	return nil
}

// Signals buys on the first bar and holds thereafter.
func (s *BuyHold) Signals(bars []domain.Bar) ([]domain.Signal, error) {
	signals := make([]domain.Signal, len(bars))
	for i, bar := range bars {
		action := domain.ActionHold
		if i == 0 {
			action = domain.ActionBuy
		}
		signals[i] = domain.Signal{Timestamp: bar.Timestamp, Action: action}
	}
	return signals, nil
}
