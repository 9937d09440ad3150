package model

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"rate-cache-service/pkg/utils"
)

// RateRecord is a cached rate and the instant it was fetched. Records are
// never mutated; a newer fetch replaces the whole record.
type RateRecord struct {
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Age reports how old the record is at now.
func (r RateRecord) Age(now time.Time) time.Duration {
	return now.Sub(r.Timestamp)
}

// Valid reports whether the record holds a usable rate.
func (r RateRecord) Valid() bool {
	return r.Value > 0 && !math.IsInf(r.Value, 0) && !r.Timestamp.IsZero()
}

// MarshalJSON writes the timestamp in UTC so snapshots compare byte for byte.
func (r RateRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Value     float64 `json:"value"`
		Timestamp string  `json:"timestamp"`
	}{r.Value, utils.FormatTimestamp(r.Timestamp)})
}

// UnmarshalJSON accepts timestamps as RFC3339 (or other common layouts)
// strings, numeric strings or numbers holding unix milliseconds.
func (r *RateRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		Value     json.Number     `json:"value"`
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	value, err := raw.Value.Float64()
	if err != nil {
		return fmt.Errorf("invalid rate value %q: %w", raw.Value, err)
	}

	var ts interface{}
	if len(raw.Timestamp) > 0 {
		if err := json.Unmarshal(raw.Timestamp, &ts); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}
	timestamp, err := utils.ParseTimestamp(ts)
	if err != nil {
		return err
	}

	r.Value = value
	r.Timestamp = timestamp
	return nil
}

// RateResult is what callers of GetRate receive. Expired is set only when a
// stale cached rate is served because the remote fetch failed.
type RateResult struct {
	Pair    PairKey `json:"pair"`
	Rate    float64 `json:"rate"`
	Expired bool    `json:"expired"`
}

type Conversion struct {
	Pair    PairKey `json:"pair"`
	Amount  float64 `json:"amount"`
	Value   float64 `json:"value"`
	Rate    float64 `json:"rate"`
	Expired bool    `json:"expired"`
}
