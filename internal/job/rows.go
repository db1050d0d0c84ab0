package job

import (
	"fmt"

	"portfolio-sync/internal/market"
	"portfolio-sync/internal/types"
)

// StampLayout is year-day-month, the order the sheet has always used.
const StampLayout = "2006-02-Jan 15:04:05"

// Columns of a row, in sheet order A..H.
var Columns = []string{"ticker", "type", "currency", "etf", "value", "country", "scope", "status"}

// FormatRow renders v as a sheet row. A failed valuation keeps the value
// cell empty and puts the reason into the status cell.
func FormatRow(v types.Valuation) []any {
	h := v.Holding
	stamp := v.At.UTC().Format(StampLayout)

	value, status := v.Value.String(), "UPD "+stamp
	if v.Failed() {
		value, status = "", fmt.Sprintf("ERR %s: %s", stamp, market.Reason(v.Err))
	}
	return []any{h.Ticker, h.Type, h.Currency, h.ETF, value, h.Country, h.Scope, status}
}

func FormatRows(vs []types.Valuation) [][]any {
	rows := make([][]any, len(vs))
	for i, v := range vs {
		rows[i] = FormatRow(v)
	}
	return rows
}
