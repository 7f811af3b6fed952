package protocol

import (
	"encoding/json"
	"time"
)

// StartSimulationParams is the data payload for a start_simulation request.
// Extra entries are passed through verbatim so callers can use server
// features the SDK does not model (data provider, commission, slippage...).
type StartSimulationParams struct {
	Symbols        []string
	StartDate      time.Time
	EndDate        time.Time
	InitialCapital float64
	Timeframe      string
	WarmupBars     int
	Adjusted       bool
	Extra          map[string]any
}

// MarshalJSON flattens Extra into the payload next to the typed fields.
// Typed fields win on key collision.
func (p StartSimulationParams) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Extra)+7)
	for k, v := range p.Extra {
		out[k] = v
	}
	out["symbols"] = p.Symbols
	out["start_date"] = p.StartDate.Format(time.RFC3339)
	out["end_date"] = p.EndDate.Format(time.RFC3339)
	out["initial_capital"] = p.InitialCapital
	out["timeframe"] = p.Timeframe
	out["warmup_bars"] = p.WarmupBars
	out["adjusted"] = p.Adjusted
	return json.Marshal(out)
}

// WireOrder is one order inside an order_batch payload.
type WireOrder struct {
	OrderID     string   `json:"order_id"`
	Symbol      string   `json:"symbol"`
	Side        string   `json:"side"`
	Type        string   `json:"type"`
	Quantity    float64  `json:"quantity"`
	Price       *float64 `json:"price,omitempty"`
	StopLoss    *float64 `json:"stop_loss,omitempty"`
	TakeProfit  *float64 `json:"take_profit,omitempty"`
	TimeInForce string   `json:"time_in_force"`
	Tag         string   `json:"tag,omitempty"`
}

// OrderBatch is the data payload for an order_batch request.
type OrderBatch struct {
	SessionID     string      `json:"session_id"`
	BatchID       string      `json:"batch_id"`
	Orders        []WireOrder `json:"orders"`
	ExecutionMode string      `json:"execution_mode"`
}
