package sheetobs

import (
	"context"

	"portfolio-sync/internal/interfaces"
	"portfolio-sync/internal/logger"
)

// observableSheet wraps a SheetWriter with observability (logging & tracing)
type observableSheet struct {
	sheet interfaces.SheetWriter
}

var _ interfaces.SheetWriter = (*observableSheet)(nil)

// Wrap wraps a sheet writer with observability middleware
func Wrap(sheet interfaces.SheetWriter) interfaces.SheetWriter {
	return &observableSheet{sheet: sheet}
}

func (s *observableSheet) WriteRows(ctx context.Context, rows [][]any) error {
	op := logger.StartOperation(ctx, "sheet.WriteRows", "rows", len(rows))
	ctx = op.GetContext()

	if err := s.sheet.WriteRows(ctx, rows); err != nil {
		op.EndWithError(err)
		return err
	}

	op.End()
	logger.InfoSkip(ctx, 1, "Rows written", "rows", len(rows))
	return nil
}
