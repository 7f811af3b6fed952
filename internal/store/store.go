// Package store keeps the per-session candle history that strategies read.
//
// A Store is seeded from a session's history_snapshot and extended by one
// candle per symbol on every tick. Writes come exclusively from the session's
// receive loop; reads can come from any goroutine, including strategy
// callbacks running concurrently with later appends.
package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"simutrador-go/internal/protocol"
)

var (
	// ErrUnknownSymbol reports a read for a symbol the store has never seen.
	ErrUnknownSymbol = errors.New("unknown symbol")
	// ErrUnsupportedField reports an export request for anything other than
	// the five numeric OHLCV fields.
	ErrUnsupportedField = errors.New("unsupported field")
)

// Numeric field names accepted by Float64s.
const (
	FieldOpen   = "open"
	FieldHigh   = "high"
	FieldLow    = "low"
	FieldClose  = "close"
	FieldVolume = "volume"
)

type series struct {
	date   []time.Time
	open   []float64
	high   []float64
	low    []float64
	close  []float64
	volume []float64
}

func (s *series) append(c protocol.Candle) {
	s.date = append(s.date, c.Date)
	s.open = append(s.open, c.Open)
	s.high = append(s.high, c.High)
	s.low = append(s.low, c.Low)
	s.close = append(s.close, c.Close)
	s.volume = append(s.volume, c.Volume)
}

// Store holds append-only OHLCV series per symbol.
type Store struct {
	mu       sync.RWMutex
	bySymbol map[string]*series
}

// New returns an empty store.
func New() *Store {
	return &Store{bySymbol: make(map[string]*series)}
}

// FromSnapshot builds a store seeded with a warmup snapshot.
func FromSnapshot(snap protocol.HistorySnapshot) *Store {
	st := New()
	st.ApplySnapshot(snap)
	return st
}

// ApplySnapshot appends every candle of the snapshot in the order given.
// Candles were already coerced during decode, so this cannot fail.
func (st *Store) ApplySnapshot(snap protocol.HistorySnapshot) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for sym, candles := range snap.Candles {
		ser := st.seriesLocked(sym)
		for _, c := range candles {
			ser.append(c)
		}
	}
}

// ApplyTick appends exactly one candle per symbol present in the tick.
// Unknown symbols are created lazily with empty history.
func (st *Store) ApplyTick(tick protocol.Tick) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for sym, c := range tick.Candles {
		st.seriesLocked(sym).append(c)
	}
}

func (st *Store) seriesLocked(symbol string) *series {
	ser := st.bySymbol[symbol]
	if ser == nil {
		ser = &series{}
		st.bySymbol[symbol] = ser
	}
	return ser
}

// Series is a consistent read of one symbol's parallel sequences. All slices
// share the same length.
type Series struct {
	Date   []time.Time
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64
}

// Len returns the number of candles in the series.
func (s Series) Len() int { return len(s.Date) }

// Series returns a snapshot view of a symbol's sequences. The slices alias
// the store's backing arrays; appends never mutate returned prefixes.
func (st *Store) Series(symbol string) (Series, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	ser, ok := st.bySymbol[symbol]
	if !ok {
		return Series{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	n := len(ser.date)
	return Series{
		Date:   ser.date[:n:n],
		Open:   ser.open[:n:n],
		High:   ser.high[:n:n],
		Low:    ser.low[:n:n],
		Close:  ser.close[:n:n],
		Volume: ser.volume[:n:n],
	}, nil
}

// Len returns the number of candles stored for a symbol (0 if unknown).
func (st *Store) Len(symbol string) int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	ser, ok := st.bySymbol[symbol]
	if !ok {
		return 0
	}
	return len(ser.date)
}

// Symbols lists the symbols known to the store, sorted.
func (st *Store) Symbols() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]string, 0, len(st.bySymbol))
	for sym := range st.bySymbol {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Float64s exports the trailing window (whole series when window <= 0) of the
// requested numeric fields as fresh float64 slices, indicator-ready.
func (st *Store) Float64s(symbol string, fields []string, window int) (map[string][]float64, error) {
	ser, err := st.Series(symbol)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]float64, len(fields))
	for _, field := range fields {
		var src []float64
		switch field {
		case FieldOpen:
			src = ser.Open
		case FieldHigh:
			src = ser.High
		case FieldLow:
			src = ser.Low
		case FieldClose:
			src = ser.Close
		case FieldVolume:
			src = ser.Volume
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedField, field)
		}
		if window > 0 && window < len(src) {
			src = src[len(src)-window:]
		}
		cp := make([]float64, len(src))
		copy(cp, src)
		out[field] = cp
	}
	return out, nil
}
