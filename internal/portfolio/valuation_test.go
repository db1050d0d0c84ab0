package portfolio

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"portfolio-sync/internal/types"
)

func TestValuateSevenShares(t *testing.T) {
	pos := Aggregate([]types.Transaction{tx("AAA", 10), tx("AAA", -3)})
	h := types.Holding{Ticker: "AAA", Currency: "USD"}
	at := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

	v := Valuate(h, pos, decimal.NewFromInt(100), decimal.NewFromInt(90), at)

	if !v.Value.Equal(decimal.NewFromInt(63000)) {
		t.Errorf("Expected value 63000, got %s", v.Value)
	}
	if !v.Quantity.Equal(decimal.NewFromInt(7)) {
		t.Errorf("Expected quantity 7, got %s", v.Quantity)
	}
	if !v.At.Equal(at) {
		t.Errorf("Expected timestamp %v, got %v", at, v.At)
	}
	if v.Failed() {
		t.Error("Expected successful valuation")
	}
}

func TestValueZeroPosition(t *testing.T) {
	v := Value(decimal.RequireFromString("123.45"), decimal.Zero, decimal.RequireFromString("91.2"))
	if !v.IsZero() {
		t.Errorf("Expected zero value, got %s", v)
	}

	// holding that never traded
	val := Valuate(types.Holding{Ticker: "NEW"}, Positions{}, decimal.NewFromInt(10), decimal.NewFromInt(1), time.Now())
	if !val.Value.IsZero() {
		t.Errorf("Expected zero value for untraded holding, got %s", val.Value)
	}
}

func TestValueIsExact(t *testing.T) {
	price := decimal.RequireFromString("0.1")
	qty := decimal.RequireFromString("3")
	rate := decimal.RequireFromString("0.2")

	for i := 0; i < 3; i++ {
		if got := Value(price, qty, rate); !got.Equal(decimal.RequireFromString("0.06")) {
			t.Fatalf("Expected 0.06, got %s", got)
		}
	}
}

func TestFailedCarriesError(t *testing.T) {
	boom := errors.New("boom")
	pos := Aggregate([]types.Transaction{tx("AAA", 2)})

	v := Failed(types.Holding{Ticker: "AAA"}, pos, time.Now(), boom)

	if !v.Failed() || !errors.Is(v.Err, boom) {
		t.Errorf("Expected failure carrying boom, got %v", v.Err)
	}
	if !v.Value.IsZero() {
		t.Errorf("Expected no value on failure, got %s", v.Value)
	}
}

func TestSortHoldings(t *testing.T) {
	hs := []types.Holding{
		{Ticker: "MMM", PageID: "2"},
		{Ticker: "AAA", PageID: "9"},
		{Ticker: "MMM", PageID: "1"},
	}
	SortHoldings(hs)

	want := []string{"AAA/9", "MMM/1", "MMM/2"}
	for i, h := range hs {
		if got := h.Ticker + "/" + h.PageID; got != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], got)
		}
	}
}

func TestTotalSkipsFailures(t *testing.T) {
	vs := []types.Valuation{
		{Value: decimal.NewFromInt(10)},
		{Value: decimal.NewFromInt(99), Err: errors.New("x")},
		{Value: decimal.NewFromInt(5)},
	}
	if got := Total(vs); !got.Equal(decimal.NewFromInt(15)) {
		t.Errorf("Expected 15, got %s", got)
	}
}
