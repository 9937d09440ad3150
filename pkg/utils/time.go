package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

var ErrEmptyTimestamp = errors.New("empty timestamp")

// ParseTimestamp normalises a timestamp read back from storage. Numbers and
// numeric strings are unix milliseconds; other strings go through cast's
// layout list (RFC3339 and friends). The result is always UTC.
func ParseTimestamp(v interface{}) (time.Time, error) {
	switch ts := v.(type) {
	case nil:
		return time.Time{}, ErrEmptyTimestamp
	case time.Time:
		if ts.IsZero() {
			return time.Time{}, ErrEmptyTimestamp
		}
		return ts.UTC(), nil
	case float64:
		return time.UnixMilli(int64(ts)).UTC(), nil
	case int64:
		return time.UnixMilli(ts).UTC(), nil
	case int:
		return time.UnixMilli(int64(ts)).UTC(), nil
	case json.Number:
		return ParseTimestamp(string(ts))
	case string:
		s := strings.TrimSpace(ts)
		if s == "" {
			return time.Time{}, ErrEmptyTimestamp
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
		t, err := cast.ToTimeE(s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		return t.UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("invalid timestamp type %T", v)
	}
}

// FormatTimestamp renders t the way records are written to storage.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
