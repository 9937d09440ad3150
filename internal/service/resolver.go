package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"rate-cache-service/internal/domain/model"
	"rate-cache-service/internal/domain/ports"
	"rate-cache-service/internal/metrics"
	"rate-cache-service/pkg/logger"
)

// RateResolver answers rate lookups from the cache, fetching through the
// in-flight registry when the cached rate is missing or stale and falling
// back to the stale rate when that fetch fails.
type RateResolver struct {
	cache    *RateCache
	inflight *InFlightRegistry
	source   ports.QuoteSource

	mutex   sync.RWMutex
	timeout time.Duration

	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewRateResolver(cache *RateCache, inflight *InFlightRegistry, source ports.QuoteSource, timeout time.Duration, log *logger.Logger, m *metrics.Metrics) *RateResolver {
	return &RateResolver{
		cache:    cache,
		inflight: inflight,
		source:   source,
		timeout:  timeout,
		log:      log,
		metrics:  m,
	}
}

// GetRate returns the rate for from->to. Expired is true only when the rate
// is a stale cached value served because the fetch failed. With nothing
// cached, a failed fetch yields an error matching both ErrNoDataAvailable and
// the *RemoteFetchError.
func (r *RateResolver) GetRate(ctx context.Context, from, to model.Currency) (model.RateResult, error) {
	key := model.NewPairKey(from, to)

	rec, fresh, ok := r.cache.Lookup(key)
	switch {
	case fresh:
		r.metrics.CacheLookupsTotal.WithLabelValues("fresh").Inc()
		r.log.Debug("Cache hit", "pair", key)
		return model.RateResult{Pair: key, Rate: rec.Value}, nil
	case ok:
		r.metrics.CacheLookupsTotal.WithLabelValues("stale").Inc()
		r.log.Debug("Cache entry expired", "pair", key, "age", rec.Age(r.cache.now()))
	default:
		r.metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		r.log.Debug("Cache miss", "pair", key)
	}

	rate, err := r.fetch(ctx, key)
	if err == nil {
		return model.RateResult{Pair: key, Rate: rate}, nil
	}

	var fetchErr *RemoteFetchError
	if !errors.As(err, &fetchErr) {
		return model.RateResult{}, err
	}

	if stale, ok := r.cache.Read(key); ok {
		r.metrics.StaleFallbacksTotal.Inc()
		r.log.Warn("Serving expired rate after failed fetch", "pair", key, "rate", stale.Value, "error", err)
		return model.RateResult{Pair: key, Rate: stale.Value, Expired: true}, nil
	}

	return model.RateResult{}, fmt.Errorf("%w: %w", ErrNoDataAvailable, err)
}

// FetchQuote fetches a new rate for from->to regardless of the cache. It
// still joins an outstanding fetch for the pair and writes the result through.
func (r *RateResolver) FetchQuote(ctx context.Context, from, to model.Currency) (float64, error) {
	return r.fetch(ctx, model.NewPairKey(from, to))
}

func (r *RateResolver) setTimeout(d time.Duration) {
	r.mutex.Lock()
	r.timeout = d
	r.mutex.Unlock()
}

func (r *RateResolver) fetchTimeout() time.Duration {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.timeout
}

func (r *RateResolver) fetch(ctx context.Context, key model.PairKey) (float64, error) {
	rate, shared, err := r.inflight.Join(ctx, key, func() (float64, error) {
		return r.fetchAndStore(ctx, key)
	})
	if shared {
		r.metrics.CoalescedFetchesTotal.Inc()
		r.log.Debug("Joined in-flight fetch", "pair", key)
	}
	if errors.Is(err, ErrFetchPanicked) {
		if !shared {
			r.metrics.RemoteFetchesTotal.WithLabelValues("failure").Inc()
			r.log.Error("Quote source panicked", "pair", key, "error", err)
		}
		return 0, &RemoteFetchError{Pair: key, Err: err}
	}
	return rate, err
}

// fetchAndStore runs as the shared fetch for key. It is detached from the
// starting caller's cancellation since other callers may be waiting on it.
func (r *RateResolver) fetchAndStore(ctx context.Context, key model.PairKey) (float64, error) {
	detached := context.WithoutCancel(ctx)

	fetchCtx := detached
	if timeout := r.fetchTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(detached, timeout)
		defer cancel()
	}

	begin := time.Now()
	rate, err := r.source.FetchRate(fetchCtx, key)
	r.metrics.RemoteFetchDuration.Observe(time.Since(begin).Seconds())

	if err == nil && (math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0) {
		err = fmt.Errorf("%w: %v", ErrInvalidRate, rate)
	}
	if err != nil {
		r.metrics.RemoteFetchesTotal.WithLabelValues("failure").Inc()
		r.log.Error("Failed to fetch rate", "pair", key, "took", time.Since(begin), "error", err)
		return 0, &RemoteFetchError{Pair: key, Err: err}
	}

	r.metrics.RemoteFetchesTotal.WithLabelValues("success").Inc()
	r.log.Info("Fetched rate", "pair", key, "rate", rate, "took", time.Since(begin))

	r.cache.Write(detached, key, rate)
	return rate, nil
}
