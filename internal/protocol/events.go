package protocol

import (
	"encoding/json"
	"errors"
)

// SessionCreated resolves a start_simulation request. session_id is the
// correlation key for everything that follows on this session.
type SessionCreated struct {
	SessionID string          `json:"session_id"`
	Raw       json.RawMessage `json:"-"`
}

// DecodeSessionCreated validates data for a session_created response.
func DecodeSessionCreated(data json.RawMessage) (SessionCreated, error) {
	var probe struct {
		SessionID any `json:"session_id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return SessionCreated{}, Errorf("session_created: %v", err)
	}
	id, ok := probe.SessionID.(string)
	if !ok || id == "" {
		return SessionCreated{}, Errorf("session_created: missing or non-string session_id")
	}
	return SessionCreated{SessionID: id, Raw: data}, nil
}

// HistorySnapshot carries the warmup candles that seed a session's store.
type HistorySnapshot struct {
	SessionID string              `json:"session_id"`
	Timeframe string              `json:"timeframe"`
	Candles   map[string][]Candle `json:"candles"`
	Count     int                 `json:"count"`
	Raw       json.RawMessage     `json:"-"`
}

// DecodeHistorySnapshot parses a warmup snapshot, coercing every candle.
// Malformed candle values surface as coercion errors; anything else wrong
// with the payload shape is a protocol error.
func DecodeHistorySnapshot(data json.RawMessage) (HistorySnapshot, error) {
	var snap HistorySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		if errors.Is(err, ErrCoercion) {
			return HistorySnapshot{}, err
		}
		return HistorySnapshot{}, Errorf("history_snapshot: %v", err)
	}
	snap.Raw = data
	return snap, nil
}

// Tick is one simulation step: exactly one new candle per symbol present.
type Tick struct {
	SessionID string            `json:"session_id"`
	Candles   map[string]Candle `json:"candles"`
	Raw       json.RawMessage   `json:"-"`
}

// DecodeTick parses a tick event, coercing its candles. Error classes match
// DecodeHistorySnapshot.
func DecodeTick(data json.RawMessage) (Tick, error) {
	var tick Tick
	if err := json.Unmarshal(data, &tick); err != nil {
		if errors.Is(err, ErrCoercion) {
			return Tick{}, err
		}
		return Tick{}, Errorf("tick: %v", err)
	}
	tick.Raw = data
	return tick, nil
}

// ExecutionReport describes a fill (or partial fill) for a submitted order.
// Beyond the common fields the server payload is passed through raw.
type ExecutionReport struct {
	SessionID string          `json:"session_id"`
	OrderID   string          `json:"order_id"`
	Symbol    string          `json:"symbol"`
	Side      string          `json:"side"`
	Quantity  float64         `json:"quantity"`
	Price     float64         `json:"price"`
	Raw       json.RawMessage `json:"-"`
}

func DecodeExecutionReport(data json.RawMessage) ExecutionReport {
	var rep ExecutionReport
	_ = json.Unmarshal(data, &rep)
	rep.Raw = data
	return rep
}

// AccountSnapshot is the server's periodic account state push. Fields beyond
// the basics vary by server version and stay available through Raw.
type AccountSnapshot struct {
	SessionID string          `json:"session_id"`
	Cash      float64         `json:"cash"`
	Equity    float64         `json:"equity"`
	Raw       json.RawMessage `json:"-"`
}

func DecodeAccountSnapshot(data json.RawMessage) AccountSnapshot {
	var acct AccountSnapshot
	_ = json.Unmarshal(data, &acct)
	acct.Raw = data
	return acct
}

// SimulationEnd is the terminal event for a session.
type SimulationEnd struct {
	SessionID string          `json:"session_id"`
	Reason    string          `json:"reason"`
	Raw       json.RawMessage `json:"-"`
}

func DecodeSimulationEnd(data json.RawMessage) SimulationEnd {
	var end SimulationEnd
	_ = json.Unmarshal(data, &end)
	end.Raw = data
	return end
}

// DecodeSessionError builds a SessionError from a session_error (or bare
// error) payload. A missing error code is normalized to UNKNOWN.
func DecodeSessionError(data json.RawMessage) *SessionError {
	var raw struct {
		SessionID any `json:"session_id"`
		ErrorCode any `json:"error_code"`
		Message   any `json:"message"`
	}
	_ = json.Unmarshal(data, &raw)
	serr := &SessionError{Code: "UNKNOWN"}
	if id, ok := raw.SessionID.(string); ok {
		serr.SessionID = id
	}
	if code, ok := raw.ErrorCode.(string); ok && code != "" {
		serr.Code = code
	}
	if msg, ok := raw.Message.(string); ok {
		serr.Message = msg
	}
	return serr
}

// BatchAck acknowledges an order_batch submission.
type BatchAck struct {
	BatchID        string                     `json:"batch_id"`
	AcceptedOrders []json.RawMessage          `json:"accepted_orders"`
	RejectedOrders map[string]json.RawMessage `json:"rejected_orders"`
	EstimatedFills map[string]json.RawMessage `json:"estimated_fills"`
	Raw            json.RawMessage            `json:"-"`
}

// DecodeBatchAck validates the ack shape: batch_id must be a string,
// accepted_orders a list, and rejected_orders a mapping. Anything else is a
// protocol error surfaced to the awaiting submit call.
func DecodeBatchAck(data json.RawMessage) (BatchAck, error) {
	var probe struct {
		BatchID        any             `json:"batch_id"`
		AcceptedOrders json.RawMessage `json:"accepted_orders"`
		RejectedOrders json.RawMessage `json:"rejected_orders"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return BatchAck{}, Errorf("batch_ack: %v", err)
	}
	if _, ok := probe.BatchID.(string); !ok {
		return BatchAck{}, Errorf("batch_ack: missing or non-string batch_id")
	}
	if len(probe.AcceptedOrders) == 0 || string(probe.AcceptedOrders) == "null" {
		return BatchAck{}, Errorf("batch_ack: missing accepted_orders")
	}
	if len(probe.RejectedOrders) == 0 || string(probe.RejectedOrders) == "null" {
		return BatchAck{}, Errorf("batch_ack: missing rejected_orders")
	}
	var ack BatchAck
	if err := json.Unmarshal(data, &ack); err != nil {
		return BatchAck{}, Errorf("batch_ack: %v", err)
	}
	ack.Raw = data
	return ack, nil
}

// AcceptedOrderIDs returns the accepted order ids when the server sends them
// as plain strings; entries of other shapes are skipped.
func (a BatchAck) AcceptedOrderIDs() []string {
	ids := make([]string, 0, len(a.AcceptedOrders))
	for _, raw := range a.AcceptedOrders {
		var id string
		if err := json.Unmarshal(raw, &id); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
