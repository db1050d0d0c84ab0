package portfolio

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"

	"portfolio-sync/internal/types"
)

func tx(ticker string, qty int64) types.Transaction {
	return types.Transaction{Ticker: ticker, Quantity: decimal.NewFromInt(qty)}
}

func TestAggregateSumsPerTicker(t *testing.T) {
	p := Aggregate([]types.Transaction{tx("AAA", 10), tx("AAA", -3), tx("BBB", 5)})

	if !p.Quantity("AAA").Equal(decimal.NewFromInt(7)) {
		t.Errorf("Expected AAA=7, got %s", p.Quantity("AAA"))
	}
	if !p.Quantity("BBB").Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected BBB=5, got %s", p.Quantity("BBB"))
	}
	if !p.Quantity("CCC").IsZero() {
		t.Errorf("Expected unknown ticker to be zero, got %s", p.Quantity("CCC"))
	}
}

func TestAggregateIsOrderIndependent(t *testing.T) {
	txs := []types.Transaction{
		tx("AAA", 10), tx("BBB", 2), tx("AAA", -4), tx("CCC", 1),
		{Ticker: "BBB", Quantity: decimal.RequireFromString("0.5")},
		tx("AAA", 100), tx("CCC", -1),
	}
	want := Aggregate(txs)

	r := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := append([]types.Transaction(nil), txs...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got := Aggregate(shuffled)
		if len(got) != len(want) {
			t.Fatalf("Expected %d tickers, got %d", len(want), len(got))
		}
		for ticker, qty := range want {
			if !got.Quantity(ticker).Equal(qty) {
				t.Errorf("Shuffle %d: expected %s=%s, got %s", i, ticker, qty, got.Quantity(ticker))
			}
		}
	}
}

func TestAggregateSkipsEmptyTicker(t *testing.T) {
	p := Aggregate([]types.Transaction{tx("", 3), tx("AAA", 1)})

	if _, ok := p[""]; ok {
		t.Error("Expected empty ticker to be ignored")
	}
	if len(p.Tickers()) != 1 || p.Tickers()[0] != "AAA" {
		t.Errorf("Unexpected tickers %v", p.Tickers())
	}
}

func TestTickersSorted(t *testing.T) {
	p := Aggregate([]types.Transaction{tx("ZZZ", 1), tx("AAA", 1), tx("MMM", 1)})

	got := p.Tickers()
	want := []string{"AAA", "MMM", "ZZZ"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, got)
		}
	}
}
