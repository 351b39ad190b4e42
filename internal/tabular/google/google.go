// Package google adapts a Google Sheets spreadsheet to the tabular store
// port. Each worksheet is one table; rows and columns are 1-based, matching
// the A1 addressing the API uses.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"finbot/internal/tabular"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Store struct {
	svc           *gsheet.Service
	spreadsheetID string
}

var _ tabular.Store = (*Store)(nil)

// NewFromEnv creates a store from environment variables.
// Required: GOOGLE_SPREADSHEET_ID.
// Credentials: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Store, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Store{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// New wraps an already-authenticated Sheets service.
func New(svc *gsheet.Service, spreadsheetID string) *Store {
	return &Store{svc: svc, spreadsheetID: spreadsheetID}
}

// newSheetsService initializes a Sheets service using service account
// credentials from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE,
// or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	doc, err := s.svc.Spreadsheets.Get(s.spreadsheetID).
		Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get spreadsheet: %w", err)
	}
	out := make([]string, 0, len(doc.Sheets))
	for _, sheet := range doc.Sheets {
		out = append(out, sheet.Properties.Title)
	}
	return out, nil
}

func (s *Store) OpenTable(ctx context.Context, name string) (tabular.Table, error) {
	sheetID, err := s.sheetID(ctx, name)
	if err != nil {
		return nil, err
	}
	return &table{store: s, title: name, sheetID: sheetID}, nil
}

func (s *Store) CreateTable(ctx context.Context, name string, rows, cols int) (tabular.Table, error) {
	if rows < 1 {
		rows = 1000
	}
	if cols < 1 {
		cols = 26
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{
					Title: name,
					GridProperties: &gsheet.GridProperties{
						RowCount:    int64(rows),
						ColumnCount: int64(cols),
					},
				},
			},
		}},
	}
	resp, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("add sheet %q: %w", name, err)
	}
	sheetID := resp.Replies[0].AddSheet.Properties.SheetId
	return &table{store: s, title: name, sheetID: sheetID}, nil
}

func (s *Store) RenameTable(ctx context.Context, oldName, newName string) error {
	sheetID, err := s.sheetID(ctx, oldName)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			UpdateSheetProperties: &gsheet.UpdateSheetPropertiesRequest{
				Properties: &gsheet.SheetProperties{SheetId: sheetID, Title: newName},
				Fields:     "title",
			},
		}},
	}
	if _, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("rename sheet %q: %w", oldName, err)
	}
	return nil
}

func (s *Store) sheetID(ctx context.Context, name string) (int64, error) {
	doc, err := s.svc.Spreadsheets.Get(s.spreadsheetID).
		Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sheet := range doc.Sheets {
		if sheet.Properties.Title == name {
			return sheet.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("%q: %w", name, tabular.ErrTableNotFound)
}

type table struct {
	store   *Store
	title   string
	sheetID int64
}

func (t *table) Name() string { return t.title }

func (t *table) ReadAll(ctx context.Context) ([][]string, error) {
	resp, err := t.store.svc.Spreadsheets.Values.Get(t.store.spreadsheetID, quoteRange(t.title)).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", t.title, err)
	}
	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = strings.TrimSpace(fmt.Sprint(v))
		}
		out[i] = cells
	}
	return out, nil
}

func (t *table) AppendRow(ctx context.Context, cells []string) (int, error) {
	values := make([]any, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	vr := &gsheet.ValueRange{Values: [][]any{values}}
	resp, err := t.store.svc.Spreadsheets.Values.Append(t.store.spreadsheetID, quoteRange(t.title), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("append to %s: %w", t.title, err)
	}
	row, err := appendedRow(resp.Updates.UpdatedRange)
	if err != nil {
		return 0, fmt.Errorf("append to %s: %w", t.title, err)
	}
	return row, nil
}

func (t *table) UpdateCells(ctx context.Context, updates []tabular.CellUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	data := make([]*gsheet.ValueRange, 0, len(updates))
	for _, u := range updates {
		data = append(data, &gsheet.ValueRange{
			Range:  fmt.Sprintf("'%s'!%s%d", t.title, columnLetter(u.Col), u.Row),
			Values: [][]any{{u.Value}},
		})
	}
	req := &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}
	if _, err := t.store.svc.Spreadsheets.Values.BatchUpdate(t.store.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("update cells in %s: %w", t.title, err)
	}
	return nil
}

func (t *table) DeleteRow(ctx context.Context, row int) error {
	if row < 1 {
		return fmt.Errorf("row %d out of range", row)
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    t.sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row - 1),
					EndIndex:   int64(row),
				},
			},
		}},
	}
	if _, err := t.store.svc.Spreadsheets.BatchUpdate(t.store.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d in %s: %w", row, t.title, err)
	}
	return nil
}

// quoteRange wraps a sheet title so titles with spaces address correctly.
func quoteRange(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// columnLetter converts a 1-based column index to its A1 letters.
func columnLetter(col int) string {
	var out []byte
	for col > 0 {
		col--
		out = append([]byte{byte('A' + col%26)}, out...)
		col /= 26
	}
	return string(out)
}

// appendedRow extracts the 1-based row position from an UpdatedRange like
// "'user_7'!A5:R5".
func appendedRow(updatedRange string) (int, error) {
	idx := strings.LastIndex(updatedRange, "!")
	if idx < 0 {
		return 0, fmt.Errorf("unexpected updated range %q", updatedRange)
	}
	ref := updatedRange[idx+1:]
	if colon := strings.Index(ref, ":"); colon >= 0 {
		ref = ref[:colon]
	}
	digits := strings.TrimLeft(ref, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	row, err := strconv.Atoi(digits)
	if err != nil || row < 1 {
		return 0, fmt.Errorf("unexpected updated range %q", updatedRange)
	}
	return row, nil
}
