package ports

import (
	"context"

	"rate-cache-service/internal/domain/model"
)

// QuoteSource fetches the current rate for a pair from a remote provider.
// Implementations must be safe for concurrent use and return a positive rate
// or an error.
type QuoteSource interface {
	FetchRate(ctx context.Context, pair model.PairKey) (float64, error)
}
