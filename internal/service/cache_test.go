package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rate-cache-service/internal/domain/model"
	"rate-cache-service/pkg/logger"
)

func persistentSettings() Settings {
	s := testSettings()
	s.PersistenceEnabled = true
	s.StoreKeyName = "rates"
	return s
}

func TestRateCache_LoadsSnapshotOnConstruction(t *testing.T) {
	ts := time.Now().Add(-10 * time.Second)
	store := &MockRateStore{snapshots: map[string]model.Snapshot{
		"rates": {
			"USD_EUR": {Value: 0.9, Timestamp: ts},
			"USD_BAD": {Value: 0, Timestamp: ts},
		},
	}}

	c := NewRateCache(context.Background(), store, persistentSettings(), logger.NewNop(), newTestMetrics())

	assert.True(t, c.IsFresh("USD_EUR"))
	assert.False(t, c.IsPresent("USD_BAD"))
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(c.metrics.CachedPairs))
}

func TestRateCache_LoadFailuresStartEmpty(t *testing.T) {
	for _, tc := range []struct {
		name       string
		store      *MockRateStore
		loadErrors float64
	}{
		{name: "absent snapshot", store: &MockRateStore{}},
		{
			name: "corrupt snapshot",
			store: &MockRateStore{LoadFunc: func(ctx context.Context, name string) (model.Snapshot, error) {
				return nil, errors.New("unexpected end of JSON input")
			}},
			loadErrors: 1,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := NewRateCache(context.Background(), tc.store, persistentSettings(), logger.NewNop(), newTestMetrics())

			assert.Zero(t, c.Len())
			assert.Equal(t, tc.loadErrors, testutil.ToFloat64(c.metrics.PersistenceErrorsTotal.WithLabelValues("load")))

			c.Write(context.Background(), "USD_EUR", 0.9)
			assert.True(t, c.IsFresh("USD_EUR"))
		})
	}
}

func TestRateCache_WriteMirrorsWholeCache(t *testing.T) {
	store := &MockRateStore{}
	c := NewRateCache(context.Background(), store, persistentSettings(), logger.NewNop(), newTestMetrics())

	c.Write(context.Background(), "USD_EUR", 0.9)
	c.Write(context.Background(), "USD_GBP", 0.8)

	saved := store.Saved("rates")
	require.Len(t, saved, 2)
	assert.Equal(t, 0.9, saved["USD_EUR"].Value)
	assert.Equal(t, 0.8, saved["USD_GBP"].Value)

	_, saves := store.Counts()
	assert.Equal(t, 2, saves)
}

func TestRateCache_SaveFailureIsNotFatal(t *testing.T) {
	store := &MockRateStore{SaveFunc: func(ctx context.Context, name string, snap model.Snapshot) error {
		return errors.New("read-only file system")
	}}
	c := NewRateCache(context.Background(), store, persistentSettings(), logger.NewNop(), newTestMetrics())

	rec := c.Write(context.Background(), "USD_EUR", 0.9)

	assert.Equal(t, 0.9, rec.Value)
	assert.True(t, c.IsFresh("USD_EUR"))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.metrics.PersistenceErrorsTotal.WithLabelValues("save")))
}

func TestRateCache_PersistenceDisabled(t *testing.T) {
	store := &MockRateStore{}
	c := NewRateCache(context.Background(), store, testSettings(), logger.NewNop(), newTestMetrics())

	c.Write(context.Background(), "USD_EUR", 0.9)

	loads, saves := store.Counts()
	assert.Zero(t, loads)
	assert.Zero(t, saves)
}

func TestRateCache_WriteSupersedesRecord(t *testing.T) {
	clk := newClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	c := NewRateCache(context.Background(), nil, testSettings(), logger.NewNop(), newTestMetrics())
	c.now = clk.Now

	first := c.Write(context.Background(), "USD_EUR", 0.9)
	clk.Advance(2 * time.Minute)
	assert.False(t, c.IsFresh("USD_EUR"))
	assert.True(t, c.IsPresent("USD_EUR"))

	second := c.Write(context.Background(), "USD_EUR", 0.95)
	assert.True(t, c.IsFresh("USD_EUR"))
	assert.Equal(t, 0.9, first.Value)
	assert.True(t, second.Timestamp.After(first.Timestamp))

	rec, ok := c.Read("USD_EUR")
	require.True(t, ok)
	assert.Equal(t, second, rec)
}

func TestRateCache_Keys(t *testing.T) {
	c := NewRateCache(context.Background(), nil, testSettings(), logger.NewNop(), newTestMetrics())
	c.Write(context.Background(), "USD_JPY", 150)
	c.Write(context.Background(), "EUR_USD", 1.1)

	assert.Equal(t, []model.PairKey{"EUR_USD", "USD_JPY"}, c.Keys())
}
