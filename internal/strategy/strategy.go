// Package strategy defines the callback contract user trading logic implements.
package strategy

import (
	"context"

	"simutrador-go/internal/protocol"
	"simutrador-go/internal/store"
)

// Order sides accepted by the simulation server.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Order types accepted by the simulation server.
const (
	TypeMarket = "market"
	TypeLimit  = "limit"
	TypeStop   = "stop"
)

// Strategy receives session events from the client's dispatcher, after the
// SDK has applied warmup and tick updates to the per-session store.
//
// Callbacks run on a single dispatcher goroutine per connection, in wire
// arrival order: OnSessionStart strictly precedes every OnTick/OnFill/
// OnAccountSnapshot for that session, and OnSessionEnd strictly follows them.
// Returned errors (and panics) are logged and suppressed; they never abort
// delivery of subsequent events. Callbacks may safely call the client's
// blocking submission methods: the dispatcher is decoupled from the frame
// reader, so the matching ack can still arrive.
type Strategy interface {
	OnSessionStart(ctx context.Context, sessionID string, st *store.Store, meta protocol.HistorySnapshot) error
	OnTick(ctx context.Context, sessionID string, tick protocol.Tick, st *store.Store) error
	OnFill(ctx context.Context, sessionID string, fill protocol.ExecutionReport, st *store.Store) error
	OnAccountSnapshot(ctx context.Context, sessionID string, account protocol.AccountSnapshot, st *store.Store) error
	OnSessionEnd(ctx context.Context, sessionID string, end protocol.SimulationEnd, st *store.Store) error
}

// OrderIntent is a transport-agnostic description of a desired order,
// produced by decision-only strategies and consumed by the execution adapter.
// It owns no resources; pointer fields distinguish "absent" from zero.
type OrderIntent struct {
	Symbol      string
	Side        string
	Quantity    float64
	Type        string // defaults to market
	Price       *float64
	StopLoss    *float64
	TakeProfit  *float64
	TimeInForce string // defaults to day
	Tag         string
}

// Decider is the decision-only variant of the tick hook. When a strategy
// implements Decider, the client calls DecideTick instead of OnTick and routes
// the returned intents through the execution adapter's non-blocking path.
// Implementations must be pure with respect to the transport: inspect the
// store and the tick, return intents, and leave submission to the SDK.
type Decider interface {
	DecideTick(ctx context.Context, sessionID string, tick protocol.Tick, st *store.Store) ([]OrderIntent, error)
}

// Nop implements Strategy with no-ops; embed it to pick only the hooks you need.
type Nop struct{}

func (Nop) OnSessionStart(context.Context, string, *store.Store, protocol.HistorySnapshot) error {
	return nil
}
func (Nop) OnTick(context.Context, string, protocol.Tick, *store.Store) error { return nil }
func (Nop) OnFill(context.Context, string, protocol.ExecutionReport, *store.Store) error {
	return nil
}
func (Nop) OnAccountSnapshot(context.Context, string, protocol.AccountSnapshot, *store.Store) error {
	return nil
}
func (Nop) OnSessionEnd(context.Context, string, protocol.SimulationEnd, *store.Store) error {
	return nil
}
