// Package execution translates strategy order intents into order-batch
// requests and manages non-blocking submission on behalf of callbacks.
package execution

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"simutrador-go/internal/metrics"
	"simutrador-go/internal/protocol"
	"simutrador-go/internal/risk"
	"simutrador-go/internal/strategy"
)

// DefaultExecutionMode is sent when the caller does not pick one.
const DefaultExecutionMode = "best_effort"

const defaultTimeInForce = "day"

// AckResult is the outcome of an asynchronous batch submission.
type AckResult struct {
	Ack protocol.BatchAck
	Err error
}

// Submitter is the slice of the session client the adapter drives. SubmitBatch
// blocks until the matching batch_ack (or an error) arrives; SubmitBatchNowait
// schedules the request as an independent task and reports on the returned
// channel, so a strategy callback can place orders without awaiting inline.
type Submitter interface {
	SubmitBatch(ctx context.Context, batch protocol.OrderBatch) (protocol.BatchAck, error)
	SubmitBatchNowait(batch protocol.OrderBatch) <-chan AckResult
}

// Adapter builds wire order batches from intents, generating client-side ids
// and applying risk limits before anything hits the socket.
type Adapter struct {
	log    zerolog.Logger
	limits risk.Limits
	mode   string
}

// NewAdapter wires an execution adapter with risk limits and a default
// execution mode ("" selects best_effort).
func NewAdapter(log zerolog.Logger, limits risk.Limits, mode string) *Adapter {
	if mode == "" {
		mode = DefaultExecutionMode
	}
	return &Adapter{log: log, limits: limits, mode: mode}
}

// Batch converts intents to a wire batch. A batchID of "" generates one.
// Intents exceeding the per-trade notional cap are skipped and logged, never
// silently resized.
func (a *Adapter) Batch(sessionID, batchID string, intents []strategy.OrderIntent) protocol.OrderBatch {
	if batchID == "" {
		batchID = uuid.NewString()
	}
	orders := make([]protocol.WireOrder, 0, len(intents))
	for _, intent := range intents {
		var notional float64
		if intent.Price != nil {
			notional = intent.Quantity * *intent.Price
		}
		if !a.limits.Allow(notional) {
			a.log.Warn().
				Str("sym", intent.Symbol).
				Str("side", intent.Side).
				Float64("notional", notional).
				Msg("order intent exceeds per-trade notional cap, skipped")
			continue
		}
		orders = append(orders, wireOrder(intent))
		metrics.OrdersTotal.WithLabelValues(intent.Symbol, intent.Side).Inc()
	}
	return protocol.OrderBatch{
		SessionID:     sessionID,
		BatchID:       batchID,
		Orders:        orders,
		ExecutionMode: a.mode,
	}
}

// Dispatch routes decision-strategy intents through the nowait path and logs
// the eventual ack in the background. It returns immediately.
func (a *Adapter) Dispatch(sub Submitter, sessionID string, intents []strategy.OrderIntent) {
	if len(intents) == 0 {
		return
	}
	batch := a.Batch(sessionID, "", intents)
	if len(batch.Orders) == 0 {
		return
	}
	results := sub.SubmitBatchNowait(batch)
	go func() {
		res := <-results
		if res.Err != nil {
			a.log.Warn().Err(res.Err).Str("session", sessionID).Str("batch", batch.BatchID).Msg("order batch failed")
			return
		}
		a.log.Debug().
			Str("session", sessionID).
			Str("batch", res.Ack.BatchID).
			Int("accepted", len(res.Ack.AcceptedOrders)).
			Int("rejected", len(res.Ack.RejectedOrders)).
			Msg("order batch acknowledged")
	}()
}

func wireOrder(intent strategy.OrderIntent) protocol.WireOrder {
	orderType := intent.Type
	if orderType == "" {
		orderType = strategy.TypeMarket
	}
	tif := intent.TimeInForce
	if tif == "" {
		tif = defaultTimeInForce
	}
	return protocol.WireOrder{
		OrderID:     uuid.NewString(),
		Symbol:      intent.Symbol,
		Side:        intent.Side,
		Type:        orderType,
		Quantity:    intent.Quantity,
		Price:       intent.Price,
		StopLoss:    intent.StopLoss,
		TakeProfit:  intent.TakeProfit,
		TimeInForce: tif,
		Tag:         intent.Tag,
	}
}
