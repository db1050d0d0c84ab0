package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"portfolio-sync/internal/interfaces"
	"portfolio-sync/internal/logger"
	"portfolio-sync/internal/portfolio"
	"portfolio-sync/internal/store"
	"portfolio-sync/internal/trace"
	"portfolio-sync/internal/types"
)

// ErrUnknownCurrency marks a holding currency that is not an ISO 4217 code.
var ErrUnknownCurrency = errors.New("unknown currency")

// Job is one sync pass: workspace -> valuations -> sheet.
type Job struct {
	ws      interfaces.Workspace
	prices  interfaces.PriceSource
	rates   interfaces.RateSource
	sheet   interfaces.SheetWriter
	journal interfaces.Journal

	baseCurrency string
	concurrency  int
	now          func() time.Time
}

var _ interfaces.Job = (*Job)(nil)

// nopJournal stands in when runs are not journaled.
type nopJournal struct{}

func (nopJournal) Record(*types.RunSummary, string) error { return nil }

// New builds a job; a nil journal disables journaling.
func New(cfg *store.Config, ws interfaces.Workspace, prices interfaces.PriceSource, rates interfaces.RateSource, sheet interfaces.SheetWriter, journal interfaces.Journal) *Job {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	if journal == nil {
		journal = nopJournal{}
	}
	return &Job{
		ws:           ws,
		prices:       prices,
		rates:        rates,
		sheet:        sheet,
		journal:      journal,
		baseCurrency: cfg.BaseCurrency,
		concurrency:  concurrency,
		now:          time.Now,
	}
}

type rateResult struct {
	rate decimal.Decimal
	err  error
}

func (j *Job) Run(ctx context.Context) (*types.RunSummary, error) {
	started := j.now()
	summary := &types.RunSummary{RunID: uuid.NewString(), Started: started}
	trace.Annotate(ctx, "run_id", summary.RunID)

	snap, err := j.ws.Load(ctx)
	if err != nil {
		return summary, fmt.Errorf("load workspace: %w", err)
	}

	pos := portfolio.Aggregate(snap.Transactions)
	holdings := append([]types.Holding(nil), snap.Holdings...)
	portfolio.SortHoldings(holdings)
	warnOrphanPositions(ctx, holdings, pos)

	rates := j.resolveRates(ctx, holdings, pos)
	vals := j.valuate(ctx, holdings, pos, rates)

	rows := FormatRows(vals)
	if err := j.sheet.WriteRows(ctx, rows); err != nil {
		return summary, fmt.Errorf("write sheet: %w", err)
	}

	summary.Holdings = len(holdings)
	summary.Rows = len(rows)
	for _, v := range vals {
		if v.Failed() {
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", v.Holding.Ticker, v.Err))
		}
	}
	summary.Duration = j.now().Sub(started)

	total := portfolio.Total(vals)
	if err := j.journal.Record(summary, total.String()); err != nil {
		logger.Warn(ctx, "Failed to journal run", "run_id", summary.RunID, "error", err)
	}

	logger.Info(ctx, "Sync done",
		"run_id", summary.RunID,
		"holdings", summary.Holdings,
		"failed", summary.Failed,
		"total", total.String(),
		"base_currency", j.baseCurrency,
		"duration_ms", summary.Duration.Milliseconds(),
	)
	return summary, nil
}

// warnOrphanPositions reports open positions that have no holding row and
// therefore never reach the sheet.
func warnOrphanPositions(ctx context.Context, holdings []types.Holding, pos portfolio.Positions) {
	listed := make(map[string]bool, len(holdings))
	for _, h := range holdings {
		listed[h.Ticker] = true
	}
	for _, ticker := range pos.Tickers() {
		if !listed[ticker] && !pos.Quantity(ticker).IsZero() {
			logger.Warn(ctx, "Position has no holding row", "ticker", ticker, "quantity", pos.Quantity(ticker).String())
		}
	}
}

// resolveRates looks up every distinct currency of the held positions once.
func (j *Job) resolveRates(ctx context.Context, holdings []types.Holding, pos portfolio.Positions) map[string]rateResult {
	rates := make(map[string]rateResult)
	for _, h := range holdings {
		if _, done := rates[h.Currency]; done || pos.Quantity(h.Ticker).IsZero() {
			continue
		}
		if money.GetCurrency(h.Currency) == nil {
			rates[h.Currency] = rateResult{err: fmt.Errorf("%w %q", ErrUnknownCurrency, h.Currency)}
			continue
		}
		rate, err := j.rates.Rate(ctx, h.Currency)
		rates[h.Currency] = rateResult{rate: rate, err: err}
	}
	return rates
}

// valuate prices holdings with at most j.concurrency lookups in flight. A
// failing holding only fails its own valuation.
func (j *Job) valuate(ctx context.Context, holdings []types.Holding, pos portfolio.Positions, rates map[string]rateResult) []types.Valuation {
	vals := make([]types.Valuation, len(holdings))

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(j.concurrency)

	for i, h := range holdings {
		i, h := i, h
		qty := pos.Quantity(h.Ticker)
		if qty.IsZero() {
			vals[i] = portfolio.Valuate(h, pos, decimal.Zero, decimal.Zero, j.now())
			continue
		}

		r := rates[h.Currency]
		if r.err != nil {
			vals[i] = portfolio.Failed(h, pos, j.now(), r.err)
			continue
		}

		g.Go(func() error {
			price, err := j.prices.LastPrice(ctx, h.Ticker)

			mu.Lock()
			defer mu.Unlock()
			at := j.now()
			if err != nil {
				vals[i] = portfolio.Failed(h, pos, at, err)
				return nil
			}
			vals[i] = portfolio.Valuate(h, pos, price, r.rate, at)
			logger.Valuation(ctx, h.Ticker, h.Currency, vals[i].Value.String(), "quantity", qty.String(), "price", price.String())
			return nil
		})
	}
	_ = g.Wait()
	return vals
}
