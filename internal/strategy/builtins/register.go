package builtins

import "quantlab/internal/strategy"

// RegisterAll adds every built-in strategy to the registry with its default
// parameters.
func RegisterAll(r *strategy.Registry) {
	r.Register(func() strategy.Strategy { return NewSMACross(20, 50) })
	r.Register(func() strategy.Strategy { return NewBuyHold() })
}
