package portfolio

import (
	"sort"

	"github.com/shopspring/decimal"

	"portfolio-sync/internal/types"
)

// Positions maps a ticker to its net quantity.
type Positions map[string]decimal.Decimal

// Aggregate sums transaction quantities per ticker. The result does not
// depend on the order of txs. Transactions without a ticker are ignored.
func Aggregate(txs []types.Transaction) Positions {
	p := make(Positions)
	for _, tx := range txs {
		if tx.Ticker == "" {
			continue
		}
		p[tx.Ticker] = p[tx.Ticker].Add(tx.Quantity)
	}
	return p
}

// Quantity returns the net quantity for ticker, zero when it never traded.
func (p Positions) Quantity(ticker string) decimal.Decimal {
	return p[ticker]
}

// Tickers returns the tickers in ascending order.
func (p Positions) Tickers() []string {
	out := make([]string, 0, len(p))
	for t := range p {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
