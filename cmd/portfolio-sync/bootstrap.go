package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"portfolio-sync/internal/interfaces"
	"portfolio-sync/internal/job"
	"portfolio-sync/internal/job/jobobs"
	"portfolio-sync/internal/logger"
	"portfolio-sync/internal/market/fxrates"
	"portfolio-sync/internal/market/marketobs"
	"portfolio-sync/internal/market/tinkoff"
	"portfolio-sync/internal/sheet/gsheets"
	"portfolio-sync/internal/sheet/sheetobs"
	"portfolio-sync/internal/store"
	"portfolio-sync/internal/synclog"
	"portfolio-sync/internal/trace"
	"portfolio-sync/internal/workspace/notion"
	"portfolio-sync/internal/workspace/workspaceobs"
)

// loadEnv reads .env when present; a missing file is not an error.
func loadEnv() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// initializeSystem initializes environment, logger and tracer
func initializeSystem() error {
	if err := loadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read .env: %v\n", err)
	}

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	logger.Debug(context.Background(), "Observability initialized", "tracing", trace.Enabled())
	return nil
}

func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

func initializeJournal(ctx context.Context) *synclog.Journal {
	journal := synclog.New("")
	compressOldLogs(ctx, journal)
	return journal
}

// compressOldLogs gzips journal files past SYNC_LOG_RETENTION_DAYS
func compressOldLogs(ctx context.Context, journal *synclog.Journal) {
	if err := journal.CompressOlder(synclog.RetentionFromEnv()); err != nil {
		logger.Warn(ctx, "Failed to compress old journal files", "error", err)
	}
}

func initializeWorkspace(cfg *store.Config) (interfaces.Workspace, error) {
	p := cfg.Workspace.Properties
	ws, err := notion.New(notion.Params{
		Token:          cfg.Workspace.Token,
		HoldingsDB:     cfg.Workspace.HoldingsDB,
		TransactionsDB: cfg.Workspace.TransactionsDB,
		PageSize:       cfg.Workspace.PageSize,
		Properties: notion.Properties{
			Ticker:   p.Ticker,
			Type:     p.Type,
			Currency: p.Currency,
			ETF:      p.ETF,
			Country:  p.Country,
			Scope:    p.Scope,
			Quantity: p.Quantity,
		},
	})
	if err != nil {
		return nil, err
	}
	return workspaceobs.Wrap(ws), nil
}

func initializeMarket(ctx context.Context, cfg *store.Config) (interfaces.PriceSource, interfaces.RateSource) {
	prices := tinkoff.New(tinkoff.Params{
		BaseURL:           cfg.Market.BaseURL,
		Token:             cfg.Market.Token,
		RequestsPerSecond: cfg.Market.RequestsPerSecond,
		Timeout:           time.Duration(cfg.Market.TimeoutSeconds) * time.Second,
		CacheDir:          cfg.Market.FIGICacheDir,
		CacheTTL:          time.Duration(cfg.Market.FIGICacheTTLHours) * time.Hour,
	})
	if err := prices.PruneCache(); err != nil {
		logger.Warn(ctx, "Failed to prune FIGI cache", "dir", cfg.Market.FIGICacheDir, "error", err)
	}
	rates := fxrates.New(fxrates.Params{
		BaseURL:           cfg.FX.BaseURL,
		AccessKey:         cfg.FX.AccessKey,
		Base:              cfg.BaseCurrency,
		RequestsPerSecond: cfg.FX.RequestsPerSecond,
		Timeout:           time.Duration(cfg.FX.TimeoutSeconds) * time.Second,
	})
	return marketobs.WrapPrices(prices), marketobs.WrapRates(rates)
}

func initializeSheet(ctx context.Context, cfg *store.Config) (interfaces.SheetWriter, error) {
	w, err := gsheets.New(ctx, gsheets.Params{
		CredentialsFile: cfg.Sheet.CredentialsFile,
		SpreadsheetID:   cfg.Sheet.SpreadsheetID,
		SpreadsheetName: cfg.Sheet.Name,
		Worksheet:       cfg.Sheet.Worksheet,
	})
	if err != nil {
		return nil, err
	}
	return sheetobs.Wrap(w), nil
}

// initializeJob wires every collaborator and wraps the job with observability
func initializeJob(ctx context.Context, cfg *store.Config, journal interfaces.Journal) (interfaces.Job, error) {
	ws, err := initializeWorkspace(cfg)
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	prices, rates := initializeMarket(ctx, cfg)
	sheet, err := initializeSheet(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheet: %w", err)
	}

	logger.Info(ctx, "Sync job configured",
		"base_currency", cfg.BaseCurrency,
		"concurrency", cfg.Concurrency,
		"market", cfg.Market.BaseURL,
		"fx", cfg.FX.BaseURL,
	)
	return jobobs.Wrap(job.New(cfg, ws, prices, rates, sheet, journal)), nil
}
