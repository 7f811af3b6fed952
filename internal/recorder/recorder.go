// Package recorder persists execution reports as JSON lines for later
// analysis.
package recorder

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"simutrador-go/internal/protocol"
)

// record is the serialized shape of one execution report line.
type record struct {
	RecordedAt time.Time `json:"recorded_at"`
	SessionID  string    `json:"session_id"`
	OrderID    string    `json:"order_id"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
}

// JSONLRecorder appends execution reports as JSON lines.
type JSONLRecorder struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJSONLRecorder creates/opens the target file and returns a recorder.
func NewJSONLRecorder(path string) (*JSONLRecorder, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONLRecorder{
		file: file,
		enc:  json.NewEncoder(file),
	}, nil
}

// Record writes a single execution report to the underlying JSONL file.
func (r *JSONLRecorder) Record(report protocol.ExecutionReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return
	}
	_ = r.enc.Encode(record{
		RecordedAt: time.Now().UTC(),
		SessionID:  report.SessionID,
		OrderID:    report.OrderID,
		Symbol:     report.Symbol,
		Side:       report.Side,
		Quantity:   report.Quantity,
		Price:      report.Price,
	})
}

// Close flushes and closes the file handle.
func (r *JSONLRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
