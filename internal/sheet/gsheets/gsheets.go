package gsheets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"portfolio-sync/internal/interfaces"
	"portfolio-sync/internal/logger"
)

const (
	defaultColumns  = 8
	spreadsheetMime = "application/vnd.google-apps.spreadsheet"
)

type Params struct {
	CredentialsFile string
	// SpreadsheetID wins over SpreadsheetName when both are set.
	SpreadsheetID   string
	SpreadsheetName string
	Worksheet       string
	// Options replace the credentials file when set (used by tests).
	Options []option.ClientOption
}

// Writer replaces the contents of one worksheet with the rows of a run.
type Writer struct {
	sheets    *sheets.Service
	drive     *drive.Service
	name      string
	worksheet string

	mu            sync.Mutex
	spreadsheetID string
}

var _ interfaces.SheetWriter = (*Writer)(nil)

func New(ctx context.Context, p Params) (*Writer, error) {
	if p.SpreadsheetID == "" && p.SpreadsheetName == "" {
		return nil, errors.New("spreadsheet id or name is required")
	}
	if p.Worksheet == "" {
		return nil, errors.New("worksheet is required")
	}

	opts := p.Options
	if len(opts) == 0 {
		opts = []option.ClientOption{
			option.WithCredentialsFile(p.CredentialsFile),
			option.WithScopes(sheets.SpreadsheetsScope, drive.DriveReadonlyScope),
		}
	}

	sheetsSvc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	w := &Writer{
		sheets:        sheetsSvc,
		name:          p.SpreadsheetName,
		worksheet:     p.Worksheet,
		spreadsheetID: p.SpreadsheetID,
	}
	if w.spreadsheetID == "" {
		w.drive, err = drive.NewService(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("drive client: %w", err)
		}
	}
	return w, nil
}

// WriteRows writes rows to 1..N in one batch and clears everything below.
func (w *Writer) WriteRows(ctx context.Context, rows [][]any) error {
	id, err := w.resolve(ctx)
	if err != nil {
		return err
	}

	last := columnLetter(width(rows))
	if len(rows) > 0 {
		req := &sheets.BatchUpdateValuesRequest{
			ValueInputOption: "USER_ENTERED",
			Data: []*sheets.ValueRange{{
				Range:          a1(w.worksheet, fmt.Sprintf("A1:%s%d", last, len(rows))),
				MajorDimension: "ROWS",
				Values:         rows,
			}},
		}
		if _, err := w.sheets.Spreadsheets.Values.BatchUpdate(id, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("write %d rows: %w", len(rows), err)
		}
	}

	stale := a1(w.worksheet, fmt.Sprintf("A%d:%s", len(rows)+1, last))
	if _, err := w.sheets.Spreadsheets.Values.Clear(id, stale, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", stale, err)
	}
	return nil
}

// resolve finds the spreadsheet id by name on first use and remembers it.
func (w *Writer) resolve(ctx context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.spreadsheetID != "" {
		return w.spreadsheetID, nil
	}

	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		strings.ReplaceAll(w.name, "'", `\'`), spreadsheetMime)
	list, err := w.drive.Files.List().Q(q).Fields("files(id, name)").PageSize(10).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("find spreadsheet %q: %w", w.name, err)
	}
	if len(list.Files) == 0 {
		return "", fmt.Errorf("spreadsheet %q not found or not shared with the service account", w.name)
	}
	if len(list.Files) > 1 {
		logger.Warn(ctx, "Several spreadsheets share the name, using the first", "name", w.name, "count", len(list.Files))
	}

	w.spreadsheetID = list.Files[0].Id
	logger.Info(ctx, "Spreadsheet resolved", "name", w.name, "spreadsheet_id", w.spreadsheetID)
	return w.spreadsheetID, nil
}

func width(rows [][]any) int {
	n := defaultColumns
	for _, r := range rows {
		if len(r) > n {
			n = len(r)
		}
	}
	return n
}

// a1 prefixes a cell range with the worksheet, quoting names that need it.
func a1(worksheet, cells string) string {
	if strings.ContainsAny(worksheet, " '!:") {
		worksheet = "'" + strings.ReplaceAll(worksheet, "'", "''") + "'"
	}
	return worksheet + "!" + cells
}

// columnLetter maps 1 -> A, 26 -> Z, 27 -> AA.
func columnLetter(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}
