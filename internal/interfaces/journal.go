package interfaces

import "portfolio-sync/internal/types"

// Journal keeps an audit trail of finished runs.
type Journal interface {
	Record(summary *types.RunSummary, total string) error
}
