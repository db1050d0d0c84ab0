package portfolio

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"portfolio-sync/internal/types"
)

// Value is price x quantity x rate, exact.
func Value(price, quantity, rate decimal.Decimal) decimal.Decimal {
	return price.Mul(quantity).Mul(rate)
}

// Valuate builds the valuation of h once its price and rate are known.
func Valuate(h types.Holding, pos Positions, price, rate decimal.Decimal, at time.Time) types.Valuation {
	qty := pos.Quantity(h.Ticker)
	return types.Valuation{
		Holding:  h,
		Quantity: qty,
		Price:    price,
		Rate:     rate,
		Value:    Value(price, qty, rate),
		At:       at,
	}
}

// Failed builds a valuation that carries err instead of a value.
func Failed(h types.Holding, pos Positions, at time.Time, err error) types.Valuation {
	return types.Valuation{
		Holding:  h,
		Quantity: pos.Quantity(h.Ticker),
		At:       at,
		Err:      err,
	}
}

// SortHoldings orders holdings by ticker then page id so that the same set of
// holdings always lands on the same spreadsheet rows.
func SortHoldings(hs []types.Holding) {
	sort.SliceStable(hs, func(i, j int) bool {
		if hs[i].Ticker != hs[j].Ticker {
			return hs[i].Ticker < hs[j].Ticker
		}
		return hs[i].PageID < hs[j].PageID
	})
}

// Total sums the values of successful valuations.
func Total(vs []types.Valuation) decimal.Decimal {
	total := decimal.Zero
	for _, v := range vs {
		if v.Failed() {
			continue
		}
		total = total.Add(v.Value)
	}
	return total
}
