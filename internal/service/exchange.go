package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"rate-cache-service/internal/domain/model"
	"rate-cache-service/internal/domain/ports"
	"rate-cache-service/internal/metrics"
	"rate-cache-service/pkg/logger"
)

// DefaultRefreshConcurrency bounds the fetches RefreshRates runs at once.
const DefaultRefreshConcurrency = 4

// endpointSetter is implemented by quote sources whose endpoint can be
// changed at runtime.
type endpointSetter interface {
	SetEndpoint(endpoint string)
}

var _ ports.ExchangeService = (*ExchangeService)(nil)

// ExchangeService is the entry point for rate lookups and conversions. Build
// one per process (or per logical client); it owns the cache and the in-flight
// registry.
type ExchangeService struct {
	configMutex sync.Mutex
	settings    Settings

	source   ports.QuoteSource
	cache    *RateCache
	resolver *RateResolver

	refreshConcurrency int

	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewExchangeService(ctx context.Context, source ports.QuoteSource, store ports.RateStore, settings Settings, log *logger.Logger, m *metrics.Metrics) *ExchangeService {
	cache := NewRateCache(ctx, store, settings, log.With("component", "rate_cache"), m)
	resolver := NewRateResolver(cache, NewInFlightRegistry(), source, settings.FetchTimeout, log.With("component", "resolver"), m)

	if es, ok := source.(endpointSetter); ok {
		es.SetEndpoint(settings.RemoteEndpoint)
	}

	return &ExchangeService{
		settings:           settings,
		source:             source,
		cache:              cache,
		resolver:           resolver,
		refreshConcurrency: DefaultRefreshConcurrency,
		log:                log,
		metrics:            m,
	}
}

// Configure merges opts into the active settings. Calls are serialised with
// each other; they should not race with lookups that depend on the outcome.
func (s *ExchangeService) Configure(opts ...Option) {
	s.configMutex.Lock()
	defer s.configMutex.Unlock()

	prev := s.settings
	next := prev.with(opts...)
	if next == prev {
		return
	}
	s.settings = next

	s.cache.reconfigure(context.Background(), next)
	s.resolver.setTimeout(next.FetchTimeout)
	if next.RemoteEndpoint != prev.RemoteEndpoint {
		if es, ok := s.source.(endpointSetter); ok {
			es.SetEndpoint(next.RemoteEndpoint)
		}
	}

	s.log.Info("Configuration updated",
		"validity_period", next.ValidityPeriod,
		"persistence_enabled", next.PersistenceEnabled,
		"store_key_name", next.StoreKeyName,
		"remote_endpoint", next.RemoteEndpoint,
		"fetch_timeout", next.FetchTimeout,
	)
}

// Settings returns the active settings.
func (s *ExchangeService) Settings() Settings {
	s.configMutex.Lock()
	defer s.configMutex.Unlock()
	return s.settings
}

func (s *ExchangeService) GetRate(ctx context.Context, from, to model.Currency) (model.RateResult, error) {
	return s.resolver.GetRate(ctx, from, to)
}

func (s *ExchangeService) FetchQuote(ctx context.Context, from, to model.Currency) (float64, error) {
	return s.resolver.FetchQuote(ctx, from, to)
}

// ConvertAmount multiplies amount by the rate GetRate resolves for the pair.
func (s *ExchangeService) ConvertAmount(ctx context.Context, amount float64, from, to model.Currency) (model.Conversion, error) {
	rate, err := s.resolver.GetRate(ctx, from, to)
	if err != nil {
		return model.Conversion{}, err
	}

	return model.Conversion{
		Pair:    rate.Pair,
		Amount:  amount,
		Value:   amount * rate.Rate,
		Rate:    rate.Rate,
		Expired: rate.Expired,
	}, nil
}

// RefreshRates refetches every cached pair. Each refresh goes through the
// in-flight registry, so it coalesces with live lookups. Failures are logged
// and returned joined; they never evict the cached rate.
func (s *ExchangeService) RefreshRates(ctx context.Context) error {
	keys := s.cache.Keys()
	if len(keys) == 0 {
		return nil
	}
	s.log.Info("Refreshing cached rates", "count", len(keys))

	var (
		g        errgroup.Group
		errMutex sync.Mutex
		errs     []error
	)
	g.SetLimit(s.refreshConcurrency)

	for _, key := range keys {
		g.Go(func() error {
			if _, err := s.resolver.fetch(ctx, key); err != nil {
				errMutex.Lock()
				errs = append(errs, err)
				errMutex.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	if len(errs) > 0 {
		s.log.Error("Failed to refresh some rates", "failed", len(errs), "total", len(keys))
		return fmt.Errorf("refreshing %d of %d pairs: %w", len(errs), len(keys), errors.Join(errs...))
	}

	s.log.Info("Successfully refreshed cached rates", "count", len(keys))
	return nil
}
