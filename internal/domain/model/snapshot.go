package model

import (
	"encoding/json"
	"fmt"
)

// Snapshot is the persisted form of the rate cache.
type Snapshot map[PairKey]RateRecord

// Clone returns a copy safe to hand to another goroutine.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Encode serialises the snapshot as a JSON object keyed by pair.
func (s Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// DecodeSnapshot parses a persisted snapshot. Entries that cannot be decoded
// or hold an unusable rate are dropped and counted in skipped; only a document
// that is not a JSON object at all is an error.
func DecodeSnapshot(data []byte) (snap Snapshot, skipped int, err error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, 0, fmt.Errorf("decoding snapshot: %w", err)
	}

	snap = make(Snapshot, len(entries))
	for key, raw := range entries {
		var rec RateRecord
		if err := json.Unmarshal(raw, &rec); err != nil || !rec.Valid() {
			skipped++
			continue
		}
		snap[PairKey(key)] = rec
	}
	return snap, skipped, nil
}
