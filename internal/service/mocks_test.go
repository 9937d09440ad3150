package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"rate-cache-service/internal/domain/model"
	"rate-cache-service/internal/domain/ports"
	"rate-cache-service/internal/metrics"
	"rate-cache-service/pkg/logger"
)

type MockQuoteSource struct {
	FetchRateFunc func(ctx context.Context, pair model.PairKey) (float64, error)

	calls    atomic.Int32
	endpoint atomic.Value
}

func (m *MockQuoteSource) FetchRate(ctx context.Context, pair model.PairKey) (float64, error) {
	m.calls.Add(1)
	return m.FetchRateFunc(ctx, pair)
}

func (m *MockQuoteSource) SetEndpoint(endpoint string) {
	m.endpoint.Store(endpoint)
}

func (m *MockQuoteSource) Calls() int {
	return int(m.calls.Load())
}

func (m *MockQuoteSource) Endpoint() string {
	s, _ := m.endpoint.Load().(string)
	return s
}

func fixedRate(rate float64) func(ctx context.Context, pair model.PairKey) (float64, error) {
	return func(ctx context.Context, pair model.PairKey) (float64, error) {
		return rate, nil
	}
}

func failing(err error) func(ctx context.Context, pair model.PairKey) (float64, error) {
	return func(ctx context.Context, pair model.PairKey) (float64, error) {
		return 0, err
	}
}

// MockRateStore keeps snapshots in memory and records calls. LoadFunc and
// SaveFunc, when set, replace the default behaviour.
type MockRateStore struct {
	LoadFunc func(ctx context.Context, name string) (model.Snapshot, error)
	SaveFunc func(ctx context.Context, name string, snap model.Snapshot) error

	mutex     sync.Mutex
	snapshots map[string]model.Snapshot
	loads     int
	saves     int
}

func (m *MockRateStore) Load(ctx context.Context, name string) (model.Snapshot, error) {
	m.mutex.Lock()
	m.loads++
	m.mutex.Unlock()

	if m.LoadFunc != nil {
		return m.LoadFunc(ctx, name)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	snap, ok := m.snapshots[name]
	if !ok {
		return nil, ports.ErrSnapshotNotFound
	}
	return snap.Clone(), nil
}

func (m *MockRateStore) Save(ctx context.Context, name string, snap model.Snapshot) error {
	m.mutex.Lock()
	m.saves++
	m.mutex.Unlock()

	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, name, snap)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.snapshots == nil {
		m.snapshots = make(map[string]model.Snapshot)
	}
	m.snapshots[name] = snap.Clone()
	return nil
}

func (m *MockRateStore) Saved(name string) model.Snapshot {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.snapshots[name]
}

func (m *MockRateStore) Counts() (loads, saves int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.loads, m.saves
}

func newTestMetrics() *metrics.Metrics {
	return metrics.NewMetrics(prometheus.NewRegistry())
}

func testSettings() Settings {
	s := DefaultSettings()
	s.ValidityPeriod = time.Minute
	s.PersistenceEnabled = false
	s.FetchTimeout = time.Second
	return s
}

func newTestService(source ports.QuoteSource, store ports.RateStore, settings Settings) *ExchangeService {
	return NewExchangeService(context.Background(), source, store, settings, logger.NewNop(), newTestMetrics())
}

// clock is a settable time source for freshness tests.
type clock struct {
	mutex sync.Mutex
	now   time.Time
}

func newClock(t time.Time) *clock {
	return &clock{now: t}
}

func (c *clock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mutex.Lock()
	c.now = c.now.Add(d)
	c.mutex.Unlock()
}

func pairKey(s string) model.PairKey {
	return model.PairKey(s)
}
