package builtins

import "tradelab/internal/strategy"

// Register adds every built-in strategy factory to r.
func Register(r *strategy.Registry) {
	r.Register("sma-cross", newSMACross)
	r.Register("momentum", newMomentum)
	r.Register("mean-reversion", newMeanReversion)
	r.Register("rsi", newRSI)
}

// NewRegistry returns a registry holding the built-in strategies.
func NewRegistry() *strategy.Registry {
	r := strategy.NewRegistry()
	Register(r)
	return r
}
