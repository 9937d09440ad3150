package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rate-cache-service/internal/domain/model"
	"rate-cache-service/internal/domain/ports"
	"rate-cache-service/pkg/logger"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "ratecache:", logger.NewNop()), mr
}

func TestStores_RoundTrip(t *testing.T) {
	stores := map[string]func(t *testing.T) ports.RateStore{
		"memory": func(t *testing.T) ports.RateStore { return NewMemoryStore() },
		"file":   func(t *testing.T) ports.RateStore { return NewFileStore(t.TempDir(), logger.NewNop()) },
		"redis": func(t *testing.T) ports.RateStore {
			s, _ := newRedisStore(t)
			return s
		},
	}

	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	snap := model.Snapshot{
		"USD_EUR": {Value: 0.92, Timestamp: ts},
		"GBP_USD": {Value: 1.27, Timestamp: ts.Add(time.Minute)},
	}

	for name, build := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := build(t)

			_, err := s.Load(ctx, "currency_rates")
			assert.ErrorIs(t, err, ports.ErrSnapshotNotFound)

			require.NoError(t, s.Save(ctx, "currency_rates", snap))

			got, err := s.Load(ctx, "currency_rates")
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, 0.92, got["USD_EUR"].Value)
			assert.True(t, ts.Equal(got["USD_EUR"].Timestamp))
			assert.True(t, ts.Add(time.Minute).Equal(got["GBP_USD"].Timestamp))

			require.NoError(t, s.Save(ctx, "currency_rates", model.Snapshot{"USD_EUR": snap["USD_EUR"]}))
			got, err = s.Load(ctx, "currency_rates")
			require.NoError(t, err)
			assert.Len(t, got, 1)

			_, err = s.Load(ctx, "other")
			assert.ErrorIs(t, err, ports.ErrSnapshotNotFound)
		})
	}
}

func TestFileStore_TextualTimestamps(t *testing.T) {
	dir := t.TempDir()
	doc := `{
		"USD_EUR": {"value": 0.92, "timestamp": "2024-03-01T12:30:00.000Z"},
		"USD_JPY": {"value": 150.1, "timestamp": 1709296200000},
		"USD_BAD": {"value": 1, "timestamp": "soon"}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "currency_rates.json"), []byte(doc), 0o644))

	got, err := NewFileStore(dir, logger.NewNop()).Load(context.Background(), "currency_rates")
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.True(t, got["USD_EUR"].Timestamp.Equal(got["USD_JPY"].Timestamp))
}

func TestFileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "currency_rates.json"), []byte("{not json"), 0o644))

	_, err := NewFileStore(dir, logger.NewNop()).Load(context.Background(), "currency_rates")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrSnapshotNotFound)
}

func TestFileStore_SanitisesName(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir, logger.NewNop())

	require.NoError(t, s.Save(context.Background(), "../rates/v1", model.Snapshot{}))

	_, err := os.Stat(filepath.Join(dir, ".._rates_v1.json"))
	assert.NoError(t, err)
}

func TestRedisStore_KeyAndErrors(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "currency_rates", model.Snapshot{
		"USD_EUR": {Value: 0.92, Timestamp: time.Now()},
	}))
	assert.True(t, mr.Exists("ratecache:currency_rates"))
	assert.Zero(t, mr.TTL("ratecache:currency_rates"))

	require.NoError(t, mr.Set("ratecache:broken", "[]"))
	_, err := s.Load(ctx, "broken")
	assert.Error(t, err)

	mr.Close()
	_, err = s.Load(ctx, "currency_rates")
	assert.Error(t, err)
	assert.Error(t, s.Save(ctx, "currency_rates", model.Snapshot{}))
}
