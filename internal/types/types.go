package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type Transaction struct {
	Ticker   string          `json:"ticker"`
	Quantity decimal.Decimal `json:"quantity"`
}

type Holding struct {
	PageID   string `json:"page_id"`
	Ticker   string `json:"ticker"`
	Type     string `json:"type"`
	Currency string `json:"currency"`
	ETF      bool   `json:"etf"`
	Country  string `json:"country"`
	Scope    string `json:"scope"`
}

// Snapshot is what one run reads from the workspace.
type Snapshot struct {
	Holdings     []Holding     `json:"holdings"`
	Transactions []Transaction `json:"transactions"`
}

// Valuation is the computed value of one holding. When Err is set the
// numeric fields other than Quantity are meaningless.
type Valuation struct {
	Holding  Holding         `json:"holding"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Rate     decimal.Decimal `json:"rate"`
	Value    decimal.Decimal `json:"value"`
	At       time.Time       `json:"at"`
	Err      error           `json:"-"`
}

func (v Valuation) Failed() bool { return v.Err != nil }

type RunSummary struct {
	RunID    string        `json:"run_id"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Holdings int           `json:"holdings"`
	Failed   int           `json:"failed"`
	Rows     int           `json:"rows"`
	Errors   []string      `json:"errors,omitempty"`
}
