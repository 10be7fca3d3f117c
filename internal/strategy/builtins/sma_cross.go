// Package builtins provides built-in strategy implementations that ship
// with quantlab.
package builtins

import (
	"fmt"

	"quantlab/internal/domain"
	"quantlab/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross implements a simple moving average crossover strategy. It
// generates a buy signal when the fast SMA crosses above the slow SMA, and
// a sell signal when it crosses back below. Quantities are left at zero so
// the engine sizes buys to available cash and sells the full position.
type SMACross struct {
	fastPeriod int
	slowPeriod int
}

// NewSMACross creates an SMACross strategy with the specified fast and slow
// moving average periods.
func NewSMACross(fast, slow int) *SMACross {
	return &SMACross{
		fastPeriod: fast,
		slowPeriod: slow,
	}
}

// Name returns "sma-cross".
func (s *SMACross) Name() string {
	return "sma-cross"
}

// Fit validates the configured periods. The crossover rule has no trainable
// parameters, so the training segment itself is unused.
func (s *SMACross) Fit(_ []domain.Bar) error {
	if s.fastPeriod <= 0 || s.slowPeriod <= 0 {
		return fmt.Errorf("%w: sma periods must be positive (fast=%d slow=%d)",
			domain.ErrConfig, s.fastPeriod, s.slowPeriod)
	}
	if s.fastPeriod >= s.slowPeriod {
		return fmt.Errorf("%w: fast period %d must be less than slow period %d",
			domain.ErrConfig, s.fastPeriod, s.slowPeriod)
	}
	return nil
}

// Signals emits one signal per bar. Until both averages have a full window
// the strategy holds; afterwards it trades only on crossover changes.
func (s *SMACross) Signals(bars []domain.Bar) ([]domain.Signal, error) {
	if s.fastPeriod >= s.slowPeriod {
		return nil, fmt.Errorf("%w: fast period %d must be less than slow period %d",
			domain.ErrConfig, s.fastPeriod, s.slowPeriod)
	}

	signals := make([]domain.Signal, len(bars))
	prevStance := 0 // -1 below, +1 above, 0 unknown

	var fastSum, slowSum float64
	for i, bar := range bars {
		signals[i] = domain.Signal{Timestamp: bar.Timestamp, Action: domain.ActionHold}

		fastSum += bar.Close
		slowSum += bar.Close
		if i >= s.fastPeriod {
			fastSum -= bars[i-s.fastPeriod].Close
		}
		if i >= s.slowPeriod {
			slowSum -= bars[i-s.slowPeriod].Close
		}
		if i+1 < s.slowPeriod {
			continue
		}

		fast := fastSum / float64(min(i+1, s.fastPeriod))
		slow := slowSum / float64(s.slowPeriod)

		stance := 0
		switch {
		case fast > slow:
			stance = 1
		case fast < slow:
			stance = -1
		}

		// Trade only when the relationship flips, not while it persists.
		if stance != 0 && stance != prevStance {
			if stance > 0 {
				signals[i].Action = domain.ActionBuy
			} else if prevStance > 0 {
				signals[i].Action = domain.ActionSell
			}
			prevStance = stance
		}
	}

	return signals, nil
}
