package interfaces

import "context"

// SheetWriter replaces the worksheet contents with rows, starting at row 1.
type SheetWriter interface {
	WriteRows(ctx context.Context, rows [][]any) error
}
