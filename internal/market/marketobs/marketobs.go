package marketobs

import (
	"context"

	"github.com/shopspring/decimal"

	"portfolio-sync/internal/interfaces"
	"portfolio-sync/internal/logger"
	"portfolio-sync/internal/trace"
)

// observablePrices wraps a PriceSource with observability (logging & tracing)
type observablePrices struct {
	prices interfaces.PriceSource
}

var _ interfaces.PriceSource = (*observablePrices)(nil)

// WrapPrices wraps a price source with observability middleware
func WrapPrices(prices interfaces.PriceSource) interfaces.PriceSource {
	return &observablePrices{prices: prices}
}

func (op *observablePrices) LastPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	ctx, span := trace.StartSpan(ctx, "market.LastPrice")
	defer span.End()
	trace.Annotate(ctx, "ticker", ticker)

	logger.DebugSkip(ctx, 1, "Fetching last price", "ticker", ticker)

	price, err := op.prices.LastPrice(ctx, ticker)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch last price", err, "ticker", ticker)
		return decimal.Zero, err
	}

	logger.DebugSkip(ctx, 1, "Last price fetched", "ticker", ticker, "price", price.String())
	return price, nil
}

// observableRates wraps a RateSource with observability (logging & tracing)
type observableRates struct {
	rates interfaces.RateSource
}

var _ interfaces.RateSource = (*observableRates)(nil)

// WrapRates wraps a rate source with observability middleware
func WrapRates(rates interfaces.RateSource) interfaces.RateSource {
	return &observableRates{rates: rates}
}

func (or *observableRates) Rate(ctx context.Context, currency string) (decimal.Decimal, error) {
	ctx, span := trace.StartSpan(ctx, "market.Rate")
	defer span.End()
	trace.Annotate(ctx, "currency", currency)

	logger.DebugSkip(ctx, 1, "Fetching exchange rate", "currency", currency)

	rate, err := or.rates.Rate(ctx, currency)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch exchange rate", err, "currency", currency)
		return decimal.Zero, err
	}

	logger.DebugSkip(ctx, 1, "Exchange rate fetched", "currency", currency, "rate", rate.String())
	return rate, nil
}
