package strategy

import (
	"context"
	"math"

	"simutrador-go/internal/protocol"
	"simutrador-go/internal/store"
)

// Momentum is a decision-only strategy that emits a market order when the
// percent change in close over a trailing bar window exceeds a threshold
// alongside minimum traded volume. All state lives in the session store.
type Momentum struct {
	Nop

	threshold  float64
	windowBars int
	minVolume  float64
	quantity   float64
}

// NewMomentum builds a momentum strategy with percent-change and volume filters.
func NewMomentum(threshold float64, windowBars int, minVolume, quantity float64) *Momentum {
	if threshold <= 0 {
		threshold = 0.05
	}
	if windowBars <= 0 {
		windowBars = 20
	}
	if quantity <= 0 {
		quantity = 1
	}
	return &Momentum{
		threshold:  threshold,
		windowBars: windowBars,
		minVolume:  math.Max(0, minVolume),
		quantity:   quantity,
	}
}

// Name returns the configured identifier for logging.
func (m *Momentum) Name() string { return "Momentum" }

// DecideTick evaluates each symbol updated by the tick against the window.
func (m *Momentum) DecideTick(_ context.Context, _ string, tick protocol.Tick, st *store.Store) ([]OrderIntent, error) {
	var intents []OrderIntent
	for sym := range tick.Candles {
		arrays, err := st.Float64s(sym, []string{store.FieldClose, store.FieldVolume}, m.windowBars)
		if err != nil {
			continue
		}
		closes := arrays[store.FieldClose]
		if len(closes) < 2 || closes[0] <= 0 {
			continue
		}
		change := (closes[len(closes)-1] - closes[0]) / closes[0]
		if math.Abs(change) < m.threshold {
			continue
		}
		var volume float64
		for _, v := range arrays[store.FieldVolume] {
			volume += v
		}
		if m.minVolume > 0 && volume < m.minVolume {
			continue
		}
		side := SideBuy
		if change < 0 {
			side = SideSell
		}
		intents = append(intents, OrderIntent{
			Symbol:   sym,
			Side:     side,
			Quantity: m.quantity,
			Type:     TypeMarket,
		})
	}
	return intents, nil
}
