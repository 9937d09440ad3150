package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"rate-cache-service/internal/domain/model"
	"rate-cache-service/internal/domain/ports"
	"rate-cache-service/internal/metrics"
	"rate-cache-service/pkg/logger"
)

// RateCache holds the latest rate per pair and mirrors it to a RateStore.
// Stale records are kept: they are the fallback when a refetch fails.
type RateCache struct {
	mutex    sync.RWMutex
	records  model.Snapshot
	validity time.Duration
	persist  bool
	storeKey string

	// saveMutex orders snapshot writes so the store never ends up with an
	// older snapshot than the last one written.
	saveMutex sync.Mutex
	store     ports.RateStore

	now     func() time.Time
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewRateCache builds a cache and, if persistence is enabled, seeds it from
// the store. A missing or unreadable snapshot leaves the cache empty.
func NewRateCache(ctx context.Context, store ports.RateStore, settings Settings, log *logger.Logger, m *metrics.Metrics) *RateCache {
	c := &RateCache{
		records:  make(model.Snapshot),
		validity: settings.ValidityPeriod,
		persist:  settings.PersistenceEnabled && store != nil,
		storeKey: settings.StoreKeyName,
		store:    store,
		now:      time.Now,
		log:      log,
		metrics:  m,
	}

	if settings.PersistenceEnabled && store == nil {
		log.Warn("Persistence enabled without a store, caching in memory only")
	}

	if c.persist {
		c.load(ctx, c.storeKey)
	}
	return c
}

// IsFresh reports whether key has a record no older than the validity period.
func (c *RateCache) IsFresh(key model.PairKey) bool {
	_, fresh, _ := c.Lookup(key)
	return fresh
}

// IsPresent reports whether key has a record of any age.
func (c *RateCache) IsPresent(key model.PairKey) bool {
	_, ok := c.Read(key)
	return ok
}

func (c *RateCache) Read(key model.PairKey) (model.RateRecord, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	rec, ok := c.records[key]
	return rec, ok
}

// Lookup returns the record for key together with its freshness, evaluated
// under a single read lock.
func (c *RateCache) Lookup(key model.PairKey) (rec model.RateRecord, fresh bool, ok bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	rec, ok = c.records[key]
	if !ok {
		return rec, false, false
	}
	return rec, rec.Age(c.now()) <= c.validity, true
}

// Write stores value for key stamped with the current time and, when
// persistence is on, saves the whole cache before returning. Save failures
// are logged only.
func (c *RateCache) Write(ctx context.Context, key model.PairKey, value float64) model.RateRecord {
	rec := model.RateRecord{Value: value, Timestamp: c.now()}

	c.mutex.Lock()
	c.records[key] = rec
	persist, name, size := c.persist, c.storeKey, len(c.records)
	c.mutex.Unlock()

	c.metrics.CachedPairs.Set(float64(size))
	c.log.Debug("Cache set", "pair", key, "rate", value)

	if persist {
		c.save(ctx, name)
	}
	return rec
}

// Keys lists the cached pairs in sorted order.
func (c *RateCache) Keys() []model.PairKey {
	c.mutex.RLock()
	keys := make([]model.PairKey, 0, len(c.records))
	for k := range c.records {
		keys = append(keys, k)
	}
	c.mutex.RUnlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (c *RateCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.records)
}

// reconfigure applies new settings. Turning persistence on, or pointing it at
// a different snapshot, loads that snapshot into pairs not already cached.
func (c *RateCache) reconfigure(ctx context.Context, settings Settings) {
	c.mutex.Lock()
	wasPersisting, prevKey := c.persist, c.storeKey
	c.validity = settings.ValidityPeriod
	c.persist = settings.PersistenceEnabled && c.store != nil
	c.storeKey = settings.StoreKeyName
	persist, name := c.persist, c.storeKey
	c.mutex.Unlock()

	if persist && (!wasPersisting || prevKey != name) {
		c.load(ctx, name)
	}
}

func (c *RateCache) load(ctx context.Context, name string) {
	snap, err := c.store.Load(ctx, name)
	if errors.Is(err, ports.ErrSnapshotNotFound) {
		c.log.Info("No persisted rates found", "store_key", name)
		return
	}
	if err != nil {
		c.metrics.PersistenceErrorsTotal.WithLabelValues("load").Inc()
		c.log.Error("Failed to load persisted rates, starting empty", "store_key", name, "error", err)
		return
	}

	c.mutex.Lock()
	loaded := 0
	for key, rec := range snap {
		if _, exists := c.records[key]; exists || !rec.Valid() {
			continue
		}
		c.records[key] = rec
		loaded++
	}
	size := len(c.records)
	c.mutex.Unlock()

	c.metrics.CachedPairs.Set(float64(size))
	c.log.Info("Loaded persisted rates", "store_key", name, "count", loaded)
}

func (c *RateCache) save(ctx context.Context, name string) {
	c.saveMutex.Lock()
	defer c.saveMutex.Unlock()

	c.mutex.RLock()
	snap := c.records.Clone()
	c.mutex.RUnlock()

	if err := c.store.Save(ctx, name, snap); err != nil {
		c.metrics.PersistenceErrorsTotal.WithLabelValues("save").Inc()
		c.log.Error("Failed to persist rates", "store_key", name, "error", err)
	}
}
