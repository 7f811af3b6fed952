package strategy

import (
	"context"
	"testing"
	"time"

	"simutrador-go/internal/protocol"
	"simutrador-go/internal/store"
)

func storeWithCloses(closes []float64, volume float64) *store.Store {
	st := store.New()
	for i, close := range closes {
		st.ApplyTick(protocol.Tick{Candles: map[string]protocol.Candle{"AAPL": {
			Date:   time.Date(2024, 1, 2, 9, 30+i, 0, 0, time.UTC),
			Open:   close,
			High:   close,
			Low:    close,
			Close:  close,
			Volume: volume,
		}}})
	}
	return st
}

func tickFor(symbol string) protocol.Tick {
	return protocol.Tick{
		SessionID: "s-1",
		Candles:   map[string]protocol.Candle{symbol: {Close: 1}},
	}
}

func TestMomentumBuySignal(t *testing.T) {
	strat := NewMomentum(0.02, 5, 0, 10)
	st := storeWithCloses([]float64{100, 101, 102, 103, 104}, 1000)

	intents, err := strat.DecideTick(context.Background(), "s-1", tickFor("AAPL"), st)
	if err != nil {
		t.Fatalf("DecideTick returned error: %v", err)
	}
	if len(intents) != 1 {
		t.Fatalf("expected one intent, got %d", len(intents))
	}
	if intents[0].Side != SideBuy || intents[0].Type != TypeMarket || intents[0].Quantity != 10 {
		t.Fatalf("unexpected intent: %+v", intents[0])
	}
}

func TestMomentumSellSignal(t *testing.T) {
	strat := NewMomentum(0.02, 5, 0, 10)
	st := storeWithCloses([]float64{104, 103, 102, 101, 100}, 1000)

	intents, err := strat.DecideTick(context.Background(), "s-1", tickFor("AAPL"), st)
	if err != nil {
		t.Fatalf("DecideTick returned error: %v", err)
	}
	if len(intents) != 1 || intents[0].Side != SideSell {
		t.Fatalf("expected one sell intent, got %+v", intents)
	}
}

func TestMomentumBelowThreshold(t *testing.T) {
	strat := NewMomentum(0.10, 5, 0, 10)
	st := storeWithCloses([]float64{100, 100.5, 101, 100.8, 101.2}, 1000)

	intents, err := strat.DecideTick(context.Background(), "s-1", tickFor("AAPL"), st)
	if err != nil {
		t.Fatalf("DecideTick returned error: %v", err)
	}
	if len(intents) != 0 {
		t.Fatalf("expected no intents, got %+v", intents)
	}
}

func TestMomentumRespectsVolumeFloor(t *testing.T) {
	strat := NewMomentum(0.02, 5, 1e9, 10)
	st := storeWithCloses([]float64{100, 101, 102, 103, 104}, 10)

	intents, err := strat.DecideTick(context.Background(), "s-1", tickFor("AAPL"), st)
	if err != nil {
		t.Fatalf("DecideTick returned error: %v", err)
	}
	if len(intents) != 0 {
		t.Fatalf("expected volume filter to hold intents, got %+v", intents)
	}
}

func TestMomentumSkipsUnknownSymbols(t *testing.T) {
	strat := NewMomentum(0.02, 5, 0, 10)
	st := store.New()

	intents, err := strat.DecideTick(context.Background(), "s-1", tickFor("TSLA"), st)
	if err != nil {
		t.Fatalf("DecideTick returned error: %v", err)
	}
	if len(intents) != 0 {
		t.Fatalf("expected no intents without history, got %+v", intents)
	}
}
