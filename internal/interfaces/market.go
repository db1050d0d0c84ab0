package interfaces

import (
	"context"

	"github.com/shopspring/decimal"
)

// PriceSource resolves a ticker to its last traded price.
type PriceSource interface {
	LastPrice(ctx context.Context, ticker string) (decimal.Decimal, error)
}

// RateSource resolves a currency to its rate against the base currency.
type RateSource interface {
	Rate(ctx context.Context, currency string) (decimal.Decimal, error)
}
