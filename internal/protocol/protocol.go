// Package protocol defines the wire contract spoken over the simulation WebSocket.
//
// Every frame in either direction is a JSON object shaped as
// {"type": ..., "request_id": ..., "data": {...}}. Responses to client
// requests are correlated by request_id; server-pushed session events carry a
// null request_id and a session_id inside data instead.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message types sent by the client.
const (
	TypeStartSimulation = "start_simulation"
	TypeOrderBatch      = "order_batch"
)

// Message types pushed by the server.
const (
	TypeSessionCreated  = "session_created"
	TypeHistorySnapshot = "history_snapshot"
	TypeTick            = "tick"
	TypeExecutionReport = "execution_report"
	TypeAccountSnapshot = "account_snapshot"
	TypeSimulationEnd   = "simulation_end"
	TypeBatchAck        = "batch_ack"
	TypeSessionError    = "session_error"
	// TypeError is the server's bare error frame; it correlates by request_id
	// like session_error but carries no session binding.
	TypeError = "error"
)

// Handshake and keepalive frames the client tolerates and drops.
const (
	TypeConnectionReady = "connection_ready"
	TypePing            = "ping"
	TypeHeartbeat       = "heartbeat"
)

// ErrProtocol marks a recognized message whose payload is missing required
// fields or has the wrong shape. It never kills the receive loop; it is
// surfaced to whichever caller was awaiting the exchange.
var ErrProtocol = errors.New("protocol error")

// Errorf wraps ErrProtocol with a formatted detail message.
func Errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...))
}

// SessionError is a failure explicitly reported by the server for a session
// or request. The server-defined code is preserved for caller inspection.
type SessionError struct {
	SessionID string
	Code      string
	Message   string
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session error (%s) for %q: %s", e.Code, e.SessionID, e.Message)
}

// Envelope is the parsed frame shell. Data is kept raw; typed decoding
// happens per message type at dispatch time.
type Envelope struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ParseEnvelope decodes a raw text frame. Frames that are not JSON objects
// are reported as not-ok so the receive loop can drop them without dying.
// A missing or non-object data payload is normalized to an empty object.
func ParseEnvelope(raw []byte) (Envelope, bool) {
	var shell struct {
		Type      *string         `json:"type"`
		RequestID *string         `json:"request_id"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &shell); err != nil {
		return Envelope{}, false
	}
	env := Envelope{Data: normalizeObject(shell.Data)}
	if shell.Type != nil {
		env.Type = *shell.Type
	}
	if shell.RequestID != nil {
		env.RequestID = *shell.RequestID
	}
	return env, true
}

// EncodeEnvelope marshals an outbound frame. request_id is always emitted for
// client requests so the server can correlate the response.
func EncodeEnvelope(msgType, requestID string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s data: %w", msgType, err)
	}
	return json.Marshal(struct {
		Type      string          `json:"type"`
		RequestID string          `json:"request_id"`
		Data      json.RawMessage `json:"data"`
	}{Type: msgType, RequestID: requestID, Data: payload})
}

func normalizeObject(raw json.RawMessage) json.RawMessage {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return raw
		default:
			return json.RawMessage("{}")
		}
	}
	return json.RawMessage("{}")
}

// sessionIDOf extracts data.session_id without decoding the full payload.
func sessionIDOf(data json.RawMessage) string {
	var probe struct {
		SessionID string `json:"session_id"`
	}
	_ = json.Unmarshal(data, &probe)
	return probe.SessionID
}

// SessionID returns the session the envelope's data is bound to, or "".
func (e Envelope) SessionID() string {
	return sessionIDOf(e.Data)
}
