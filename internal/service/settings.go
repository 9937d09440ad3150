package service

import "time"

const (
	DefaultValidityPeriod = time.Hour
	DefaultStoreKeyName   = "currency_rates"
	DefaultRemoteEndpoint = "https://free.currconv.com/api/v7/convert?compact=ultra&q="
	DefaultFetchTimeout   = 10 * time.Second
)

// Settings configures the rate cache and resolver.
type Settings struct {
	// ValidityPeriod is how long a cached rate is served without refetching.
	// A record whose age equals ValidityPeriod is still fresh.
	ValidityPeriod time.Duration

	PersistenceEnabled bool
	StoreKeyName       string

	// RemoteEndpoint is prefixed to the pair key to form the quote URL.
	RemoteEndpoint string

	// FetchTimeout bounds a single remote fetch. Zero means no extra deadline.
	FetchTimeout time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		ValidityPeriod:     DefaultValidityPeriod,
		PersistenceEnabled: true,
		StoreKeyName:       DefaultStoreKeyName,
		RemoteEndpoint:     DefaultRemoteEndpoint,
		FetchTimeout:       DefaultFetchTimeout,
	}
}

// Option overrides one setting. Options carrying an unusable value leave the
// setting untouched.
type Option func(*Settings)

func WithValidityPeriod(d time.Duration) Option {
	return func(s *Settings) {
		if d >= 0 {
			s.ValidityPeriod = d
		}
	}
}

func WithPersistence(enabled bool) Option {
	return func(s *Settings) {
		s.PersistenceEnabled = enabled
	}
}

func WithStoreKeyName(name string) Option {
	return func(s *Settings) {
		if name != "" {
			s.StoreKeyName = name
		}
	}
}

func WithRemoteEndpoint(endpoint string) Option {
	return func(s *Settings) {
		if endpoint != "" {
			s.RemoteEndpoint = endpoint
		}
	}
}

func WithFetchTimeout(d time.Duration) Option {
	return func(s *Settings) {
		if d >= 0 {
			s.FetchTimeout = d
		}
	}
}

func (s Settings) with(opts ...Option) Settings {
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}
