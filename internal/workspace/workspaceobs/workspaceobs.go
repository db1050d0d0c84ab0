package workspaceobs

import (
	"context"

	"portfolio-sync/internal/interfaces"
	"portfolio-sync/internal/logger"
	"portfolio-sync/internal/types"
)

// observableWorkspace wraps a Workspace with observability (logging & tracing)
type observableWorkspace struct {
	ws interfaces.Workspace
}

var _ interfaces.Workspace = (*observableWorkspace)(nil)

// Wrap wraps a workspace with observability middleware
func Wrap(ws interfaces.Workspace) interfaces.Workspace {
	return &observableWorkspace{ws: ws}
}

func (ow *observableWorkspace) Load(ctx context.Context) (types.Snapshot, error) {
	op := logger.StartOperation(ctx, "workspace.Load")
	ctx = op.GetContext()

	logger.DebugSkip(ctx, 1, "Loading workspace snapshot")

	snap, err := ow.ws.Load(ctx)
	if err != nil {
		op.EndWithError(err)
		return types.Snapshot{}, err
	}

	op.End("holdings", len(snap.Holdings), "transactions", len(snap.Transactions))
	logger.InfoSkip(ctx, 1, "Workspace snapshot loaded",
		"holdings", len(snap.Holdings),
		"transactions", len(snap.Transactions),
	)
	return snap, nil
}
