package job

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"portfolio-sync/internal/interfaces"
	"portfolio-sync/internal/market"
	"portfolio-sync/internal/store"
	"portfolio-sync/internal/synclog"
	"portfolio-sync/internal/types"
)

type fakeWorkspace struct {
	snap types.Snapshot
	err  error
}

func (f *fakeWorkspace) Load(context.Context) (types.Snapshot, error) {
	return f.snap, f.err
}

type fakePrices struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	errs   map[string]error
	calls  []string
}

func (f *fakePrices) LastPrice(_ context.Context, ticker string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ticker)
	if err := f.errs[ticker]; err != nil {
		return decimal.Zero, err
	}
	p, ok := f.prices[ticker]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s: %w", ticker, market.ErrNotFound)
	}
	return p, nil
}

type fakeRates struct {
	rates map[string]decimal.Decimal
	calls map[string]int
}

func (f *fakeRates) Rate(_ context.Context, currency string) (decimal.Decimal, error) {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[currency]++
	r, ok := f.rates[currency]
	if !ok {
		return decimal.Zero, &market.APIError{Source: "fxrates", Status: "invalid_base", Code: 400}
	}
	return r, nil
}

type fakeSheet struct {
	rows [][]any
	err  error
}

func (f *fakeSheet) WriteRows(_ context.Context, rows [][]any) error {
	f.rows = rows
	return f.err
}

type fakeJournal struct {
	summaries []*types.RunSummary
	totals    []string
}

func (f *fakeJournal) Record(s *types.RunSummary, total string) error {
	f.summaries = append(f.summaries, s)
	f.totals = append(f.totals, total)
	return nil
}

func tx(ticker string, qty int64) types.Transaction {
	return types.Transaction{Ticker: ticker, Quantity: decimal.NewFromInt(qty)}
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var fixedNow = time.Date(2021, 3, 7, 9, 5, 1, 0, time.UTC)

func newTestJob(t *testing.T, ws *fakeWorkspace, prices *fakePrices, rates *fakeRates, sheet *fakeSheet, journal interfaces.Journal, concurrency int) *Job {
	t.Helper()
	cfg, err := store.Parse([]byte(fmt.Sprintf("concurrency: %d\nbase_currency: rub\n", concurrency)))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	j := New(cfg, ws, prices, rates, sheet, journal)
	j.now = func() time.Time { return fixedNow }
	return j
}

func TestRunSingleHolding(t *testing.T) {
	ws := &fakeWorkspace{snap: types.Snapshot{
		Holdings:     []types.Holding{{PageID: "p1", Ticker: "AAA", Type: "Stock", Currency: "USD", Country: "USA", Scope: "Tech"}},
		Transactions: []types.Transaction{tx("AAA", 10), tx("AAA", -3)},
	}}
	prices := &fakePrices{prices: map[string]decimal.Decimal{"AAA": d("100")}}
	rates := &fakeRates{rates: map[string]decimal.Decimal{"USD": d("90")}}
	sheet := &fakeSheet{}
	journal := &fakeJournal{}

	summary, err := newTestJob(t, ws, prices, rates, sheet, journal, 1).Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	want := []any{"AAA", "Stock", "USD", false, "63000", "USA", "Tech", "UPD 2021-07-Mar 09:05:01"}
	if len(sheet.rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(sheet.rows))
	}
	for i := range want {
		if sheet.rows[0][i] != want[i] {
			t.Errorf("Column %s: expected %v, got %v", Columns[i], want[i], sheet.rows[0][i])
		}
	}

	if summary.RunID == "" || summary.Holdings != 1 || summary.Rows != 1 || summary.Failed != 0 {
		t.Errorf("Unexpected summary %+v", summary)
	}
	if len(journal.totals) != 1 || journal.totals[0] != "63000" {
		t.Errorf("Expected journaled total 63000, got %v", journal.totals)
	}
}

func TestRunFailedHoldingDoesNotAbortOthers(t *testing.T) {
	ws := &fakeWorkspace{snap: types.Snapshot{
		Holdings: []types.Holding{
			{PageID: "p3", Ticker: "CCC", Currency: "RUB"},
			{PageID: "p1", Ticker: "AAA", Currency: "RUB"},
			{PageID: "p2", Ticker: "BBB", Currency: "RUB"},
		},
		Transactions: []types.Transaction{tx("AAA", 1), tx("BBB", 2), tx("CCC", 3)},
	}}
	prices := &fakePrices{
		prices: map[string]decimal.Decimal{"AAA": d("10"), "CCC": d("5")},
		errs:   map[string]error{"BBB": &market.APIError{Source: "tinkoff", Status: "Error", Code: 500}},
	}
	sheet := &fakeSheet{}

	rates := &fakeRates{rates: map[string]decimal.Decimal{"RUB": d("1")}}

	summary, err := newTestJob(t, ws, prices, rates, sheet, nil, 3).Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(sheet.rows) != 3 {
		t.Fatalf("Expected 3 contiguous rows, got %d", len(sheet.rows))
	}
	for i, ticker := range []string{"AAA", "BBB", "CCC"} {
		if sheet.rows[i][0] != ticker {
			t.Errorf("Row %d: expected %s, got %v", i+1, ticker, sheet.rows[i][0])
		}
	}

	failed := sheet.rows[1]
	if failed[4] != "" {
		t.Errorf("Expected empty value cell for failed holding, got %v", failed[4])
	}
	if status := failed[7].(string); status != "ERR 2021-07-Mar 09:05:01: tinkoff Error" {
		t.Errorf("Unexpected failure status %q", status)
	}
	if sheet.rows[2][4] != "15" {
		t.Errorf("Expected CCC value 15, got %v", sheet.rows[2][4])
	}
	if summary.Failed != 1 || len(summary.Errors) != 1 || !strings.HasPrefix(summary.Errors[0], "BBB:") {
		t.Errorf("Unexpected summary %+v", summary)
	}
}

func TestRunRatesResolvedOncePerCurrency(t *testing.T) {
	ws := &fakeWorkspace{snap: types.Snapshot{
		Holdings: []types.Holding{
			{PageID: "p1", Ticker: "AAA", Currency: "USD"},
			{PageID: "p2", Ticker: "BBB", Currency: "USD"},
			{PageID: "p3", Ticker: "CCC", Currency: "EUR"},
			{PageID: "p4", Ticker: "DDD", Currency: "XYZ"},
		},
		Transactions: []types.Transaction{tx("AAA", 1), tx("BBB", 1), tx("CCC", 1), tx("DDD", 1)},
	}}
	prices := &fakePrices{prices: map[string]decimal.Decimal{"AAA": d("1"), "BBB": d("1"), "CCC": d("1"), "DDD": d("1")}}
	rates := &fakeRates{rates: map[string]decimal.Decimal{"USD": d("90")}}
	sheet := &fakeSheet{}

	summary, err := newTestJob(t, ws, prices, rates, sheet, nil, 2).Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if rates.calls["USD"] != 1 {
		t.Errorf("Expected one USD lookup, got %d", rates.calls["USD"])
	}
	if rates.calls["XYZ"] != 0 {
		t.Error("Expected unknown currency to be rejected without a lookup")
	}
	if summary.Failed != 2 {
		t.Errorf("Expected EUR and XYZ holdings to fail, got %d", summary.Failed)
	}
	if len(prices.calls) != 2 {
		t.Errorf("Expected prices only for holdings with a rate, got %v", prices.calls)
	}
	if status := sheet.rows[2][7].(string); !strings.HasSuffix(status, "fxrates invalid_base") {
		t.Errorf("Unexpected EUR status %q", status)
	}
	if status := sheet.rows[3][7].(string); !strings.Contains(status, "unknown currency") {
		t.Errorf("Unexpected XYZ status %q", status)
	}
}

func TestRunZeroPositionSkipsLookups(t *testing.T) {
	ws := &fakeWorkspace{snap: types.Snapshot{
		Holdings:     []types.Holding{{PageID: "p1", Ticker: "OLD", Currency: "USD"}, {PageID: "p2", Ticker: "NEW", Currency: "USD"}},
		Transactions: []types.Transaction{tx("OLD", 5), tx("OLD", -5)},
	}}
	prices := &fakePrices{}
	rates := &fakeRates{}
	sheet := &fakeSheet{}

	summary, err := newTestJob(t, ws, prices, rates, sheet, nil, 1).Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(prices.calls) != 0 || len(rates.calls) != 0 {
		t.Errorf("Expected no lookups for zero positions, got prices %v rates %v", prices.calls, rates.calls)
	}
	for _, row := range sheet.rows {
		if row[4] != "0" {
			t.Errorf("Expected value 0 for %v, got %v", row[0], row[4])
		}
	}
	if summary.Failed != 0 {
		t.Errorf("Expected no failures, got %d", summary.Failed)
	}
}

func TestRunWorkspaceFailureAborts(t *testing.T) {
	boom := errors.New("notion down")
	sheet := &fakeSheet{}

	_, err := newTestJob(t, &fakeWorkspace{err: boom}, &fakePrices{}, &fakeRates{}, sheet, nil, 1).Run(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("Expected workspace error, got %v", err)
	}
	if sheet.rows != nil {
		t.Error("Expected nothing written")
	}
}

func TestRunSheetFailureFailsRun(t *testing.T) {
	boom := errors.New("quota exceeded")
	journal := &fakeJournal{}
	ws := &fakeWorkspace{snap: types.Snapshot{Holdings: []types.Holding{{Ticker: "AAA", Currency: "RUB"}}}}

	_, err := newTestJob(t, ws, &fakePrices{}, &fakeRates{}, &fakeSheet{err: boom}, journal, 1).Run(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("Expected sheet error, got %v", err)
	}
	if len(journal.summaries) != 0 {
		t.Error("Expected failed run not to be journaled")
	}
}

func TestFormatRowFailed(t *testing.T) {
	v := types.Valuation{
		Holding: types.Holding{Ticker: "AAA", ETF: true},
		At:      time.Date(2021, 12, 31, 23, 59, 59, 0, time.FixedZone("MSK", 3*3600)),
		Err:     fmt.Errorf("lookup: %w", market.ErrNetwork),
	}
	row := FormatRow(v)

	if len(row) != len(Columns) {
		t.Fatalf("Expected %d columns, got %d", len(Columns), len(row))
	}
	if row[3] != true {
		t.Errorf("Expected etf flag true, got %v", row[3])
	}
	if row[7] != "ERR 2021-31-Dec 20:59:59: network error" {
		t.Errorf("Unexpected status %v", row[7])
	}
}

func TestRunWithoutJournal(t *testing.T) {
	ws := &fakeWorkspace{snap: types.Snapshot{
		Holdings:     []types.Holding{{PageID: "p1", Ticker: "AAA", Currency: "RUB"}},
		Transactions: []types.Transaction{tx("AAA", 2)},
	}}
	prices := &fakePrices{prices: map[string]decimal.Decimal{"AAA": d("10")}}
	rates := &fakeRates{rates: map[string]decimal.Decimal{"RUB": d("1")}}

	journals := map[string]interfaces.Journal{
		"untyped nil":         nil,
		"nil synclog journal": (*synclog.Journal)(nil),
	}
	for name, journal := range journals {
		sheet := &fakeSheet{}
		summary, err := newTestJob(t, ws, prices, rates, sheet, journal, 1).Run(context.Background())
		if err != nil {
			t.Fatalf("%s: Run error: %v", name, err)
		}
		if summary.Rows != 1 || sheet.rows[0][4] != "20" {
			t.Errorf("%s: unexpected result %+v rows %v", name, summary, sheet.rows)
		}
	}
}

func TestRunPositionWithoutHoldingIsNotWritten(t *testing.T) {
	ws := &fakeWorkspace{snap: types.Snapshot{
		Holdings:     []types.Holding{{PageID: "p1", Ticker: "AAA", Currency: "RUB"}},
		Transactions: []types.Transaction{tx("AAA", 1), tx("ZZZ", 4)},
	}}
	prices := &fakePrices{prices: map[string]decimal.Decimal{"AAA": d("3")}}
	rates := &fakeRates{rates: map[string]decimal.Decimal{"RUB": d("1")}}
	sheet := &fakeSheet{}

	if _, err := newTestJob(t, ws, prices, rates, sheet, nil, 1).Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(sheet.rows) != 1 || len(prices.calls) != 1 {
		t.Errorf("Expected only the listed holding to be priced and written, got rows %v calls %v", sheet.rows, prices.calls)
	}
}
