// Package risk encodes guard-rails applied before orders leave the SDK.
package risk

// Limits caps how much size a single order intent may take on. A zero or
// negative cap disables the check.
type Limits struct {
	MaxNotionalPerTrade float64 `yaml:"max_notional_per_trade"`
}

// Allow reports whether an order of the given notional value may be sent.
// Market orders without a known price pass a zero notional and are allowed.
func (l Limits) Allow(notional float64) bool {
	if l.MaxNotionalPerTrade <= 0 {
		return true
	}
	return notional <= l.MaxNotionalPerTrade
}
