package interfaces

import (
	"context"

	"portfolio-sync/internal/types"
)

// Workspace reads the holdings and transactions tables.
type Workspace interface {
	Load(ctx context.Context) (types.Snapshot, error)
}
