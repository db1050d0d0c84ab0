package interfaces

import (
	"context"

	"portfolio-sync/internal/types"
)

type Job interface {
	Run(ctx context.Context) (*types.RunSummary, error)
}
