package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"portfolio-sync/internal/logger"
	"portfolio-sync/internal/scheduler"
	"portfolio-sync/internal/trace"
)

func main() {
	app := &cli.App{
		Name:  "portfolio-sync",
		Usage: "value workspace holdings at market prices and write them to a spreadsheet",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "path to the YAML configuration",
				EnvVars: []string{"PORTFOLIO_SYNC_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "sync now and then on every interval",
				Flags:  runFlags(),
				Action: runAction,
			},
			{
				Name:   "check",
				Usage:  "validate the configuration and print it with secrets masked",
				Action: checkAction,
			},
		},
		Action: runAction,
	}
	app.Flags = append(app.Flags, runFlags()...)

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "once",
			Usage: "run a single sync and exit",
		},
		&cli.DurationFlag{
			Name:  "interval",
			Usage: "override poll_seconds from the configuration",
		},
	}
}

func runAction(c *cli.Context) error {
	if err := initializeSystem(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := trace.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to flush traces: %v\n", err)
		}
	}()

	cfg, err := loadConfig(ctx, c.String("config"))
	if err != nil {
		return cli.Exit(err, 2)
	}
	interval := cfg.Interval()
	if c.IsSet("interval") {
		interval = c.Duration("interval")
		if interval <= 0 {
			return cli.Exit("--interval must be positive", 2)
		}
	}

	journal := initializeJournal(ctx)
	j, err := initializeJob(ctx, cfg, journal)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to initialize sync job", err)
		return cli.Exit(err, 1)
	}

	if c.Bool("once") {
		runCtx, cancel := context.WithTimeout(ctx, cfg.RunTimeout())
		defer cancel()
		if _, err := j.Run(runCtx); err != nil {
			return cli.Exit(err, 1)
		}
		return nil
	}

	logger.Info(ctx, "Portfolio sync started",
		"interval", interval.String(),
		"run_immediately", *cfg.RunImmediately,
		"worksheet", cfg.Sheet.Worksheet,
	)
	scheduler.Every(ctx, interval, *cfg.RunImmediately, cfg.RunTimeout(), func(runCtx context.Context) error {
		_, err := j.Run(runCtx)
		if err == nil {
			compressOldLogs(runCtx, journal)
		}
		return err
	})
	logger.Info(context.Background(), "Shutting down")
	return nil
}

func checkAction(c *cli.Context) error {
	_ = loadEnv()
	cfg, err := loadConfig(c.Context, c.String("config"))
	if err != nil {
		return cli.Exit(err, 2)
	}

	out, err := yaml.Marshal(cfg.Masked())
	if err != nil {
		return err
	}
	fmt.Fprint(c.App.Writer, string(out))
	return nil
}
