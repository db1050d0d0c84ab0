package scheduler

import (
	"context"
	"time"

	"portfolio-sync/internal/logger"
)

// Every calls fn once per interval until ctx is done, starting right away
// when immediate is set. Runs never overlap: ticks that fire during a run are
// dropped. Each run gets its own context bounded by timeout (0 = unbounded).
func Every(ctx context.Context, interval time.Duration, immediate bool, timeout time.Duration, fn func(context.Context) error) {
	run := func() {
		runCtx, cancel := ctx, context.CancelFunc(func() {})
		if timeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		defer cancel()

		if err := fn(runCtx); err != nil {
			logger.ErrorWithErr(ctx, "Run failed", err)
		}
	}

	if immediate {
		run()
	}

	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if ctx.Err() != nil {
				return
			}
			run()
		}
	}
}
