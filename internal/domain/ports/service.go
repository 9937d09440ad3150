package ports

import (
	"context"

	"rate-cache-service/internal/domain/model"
)

type ExchangeService interface {
	GetRate(ctx context.Context, from, to model.Currency) (model.RateResult, error)
	FetchQuote(ctx context.Context, from, to model.Currency) (float64, error)
	ConvertAmount(ctx context.Context, amount float64, from, to model.Currency) (model.Conversion, error)
	RefreshRates(ctx context.Context) error
}
