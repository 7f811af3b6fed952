package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrCoercion marks malformed candle data in a history snapshot or tick.
// Ingest cannot safely continue for that session once its store would be
// inconsistent, so callers treat it as fatal to the session (not the
// connection).
var ErrCoercion = errors.New("candle coercion error")

// Candle is one OHLCV bar after coercion. The server may send numeric fields
// as JSON numbers or as decimal strings; both are accepted.
type Candle struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

type rawCandle struct {
	Date   json.RawMessage `json:"date"`
	Open   json.RawMessage `json:"open"`
	High   json.RawMessage `json:"high"`
	Low    json.RawMessage `json:"low"`
	Close  json.RawMessage `json:"close"`
	Volume json.RawMessage `json:"volume"`
}

// UnmarshalJSON coerces a wire candle. Any field that cannot be coerced
// fails the whole candle with ErrCoercion.
func (c *Candle) UnmarshalJSON(b []byte) error {
	var raw rawCandle
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrCoercion, err)
	}
	date, err := coerceTime(raw.Date)
	if err != nil {
		return err
	}
	fields := [...]struct {
		name string
		raw  json.RawMessage
		dst  *float64
	}{
		{"open", raw.Open, &c.Open},
		{"high", raw.High, &c.High},
		{"low", raw.Low, &c.Low},
		{"close", raw.Close, &c.Close},
		{"volume", raw.Volume, &c.Volume},
	}
	for _, f := range fields {
		v, err := coerceFloat(f.raw)
		if err != nil {
			return fmt.Errorf("%w: field %s: %v", ErrCoercion, f.name, err)
		}
		*f.dst = v
	}
	c.Date = date
	return nil
}

func coerceTime(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, fmt.Errorf("%w: missing date", ErrCoercion)
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", ErrCoercion, err)
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: unparseable date %q", ErrCoercion, s)
	}
	var epoch float64
	if err := json.Unmarshal(raw, &epoch); err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be ISO string or epoch: %v", ErrCoercion, err)
	}
	// Values this large are epoch milliseconds.
	if epoch > 1e12 {
		return time.UnixMilli(int64(epoch)).UTC(), nil
	}
	sec, frac := math.Modf(epoch)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
}

func coerceFloat(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, errors.New("missing value")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("non-numeric string %q", s)
		}
		return v, nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	return v, nil
}
