package jobobs

import (
	"context"
	"time"

	"portfolio-sync/internal/interfaces"
	"portfolio-sync/internal/logger"
	"portfolio-sync/internal/trace"
	"portfolio-sync/internal/types"
)

type observableJob struct {
	job interfaces.Job
}

var _ interfaces.Job = (*observableJob)(nil)

func Wrap(job interfaces.Job) interfaces.Job {
	return &observableJob{job: job}
}

func (oj *observableJob) Run(ctx context.Context) (*types.RunSummary, error) {
	ctx, span := trace.StartSpan(ctx, "job.Run")
	defer span.End()

	start := time.Now()
	logger.InfoSkip(ctx, 1, "Starting sync run")

	summary, err := oj.job.Run(ctx)
	if err != nil {
		fields := []any{"duration_ms", time.Since(start).Milliseconds()}
		if summary != nil {
			fields = append(fields, "run_id", summary.RunID)
		}
		logger.ErrorWithErrSkip(ctx, 1, "Sync run failed", err, fields...)
		return summary, err
	}

	if summary.Failed > 0 {
		logger.WarnSkip(ctx, 1, "Sync run completed with failed holdings",
			"run_id", summary.RunID,
			"failed", summary.Failed,
			"errors", summary.Errors,
		)
	}
	return summary, nil
}
