package google

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"tripledger/internal/core"
	ports "tripledger/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const lastColumn = "H"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	loc           *time.Location

	mu      sync.Mutex
	sheetID *int64
}

// Ensure interface conformance
var _ ports.ExpenseExporter = (*Client)(nil)

// Options configures a Client. Inline CredentialsJSON wins over
// CredentialsFile; both may be empty when the caller supplies its own
// transport through client options.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON []byte
	CredentialsFile string
	Location        *time.Location
}

// New creates a Sheets client for one spreadsheet tab.
func New(ctx context.Context, o Options, extra ...goption.ClientOption) (*Client, error) {
	o.SpreadsheetID = strings.TrimSpace(o.SpreadsheetID)
	if o.SpreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if strings.TrimSpace(o.SheetName) == "" {
		o.SheetName = "Expenses"
	}
	if len(bytes.TrimSpace(o.CredentialsJSON)) == 0 && o.CredentialsFile != "" {
		b, err := os.ReadFile(o.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		o.CredentialsJSON = b
	}
	if len(bytes.TrimSpace(o.CredentialsJSON)) == 0 && len(extra) == 0 {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}

	opts := []goption.ClientOption{goption.WithScopes(gsheet.SpreadsheetsScope)}
	if len(bytes.TrimSpace(o.CredentialsJSON)) > 0 {
		slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
			"credentials_size", len(o.CredentialsJSON),
			"scope", gsheet.SpreadsheetsScope)
		opts = append(opts, goption.WithCredentialsJSON(o.CredentialsJSON))
	}
	opts = append(opts, extra...)

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	loc := o.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Client{svc: svc, spreadsheetID: o.SpreadsheetID, sheetName: o.SheetName, loc: loc}, nil
}

func (c *Client) rowRange(n int) string {
	return fmt.Sprintf("%s!A%d:%s%d", c.sheetName, n, lastColumn, n)
}

// findRow returns the 1-based row holding expenseID in column A, or 0, along
// with the number of non-empty rows seen.
func (c *Client) findRow(ctx context.Context, expenseID string) (row, used int, err error) {
	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, 0, fmt.Errorf("read %s: %w", rng, err)
	}
	for i, r := range resp.Values {
		if len(r) == 0 {
			continue
		}
		used = i + 1
		if strings.TrimSpace(fmt.Sprint(r[0])) == expenseID {
			row = i + 1
		}
	}
	return row, used, nil
}

func toValues(row []string) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}

// ExportExpense writes e to the row already holding its ID or appends a
// new one. The header is written first on an empty sheet.
func (c *Client) ExportExpense(ctx context.Context, trip core.Trip, e core.Expense) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if e.ID == "" {
		return "", errors.New("export expense: missing id")
	}

	n, used, err := c.findRow(ctx, e.ID)
	if err != nil {
		return "", err
	}
	vr := &gsheet.ValueRange{Values: [][]any{toValues(ports.ExpenseRow(trip, e, c.loc))}}

	if n > 0 {
		ref := c.rowRange(n)
		_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, ref, vr).
			ValueInputOption("USER_ENTERED").Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("update %s: %w", ref, err)
		}
		return ref, nil
	}

	if used == 0 {
		hdr := &gsheet.ValueRange{Values: [][]any{toValues(ports.Header)}}
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.rowRange(1), hdr).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return "", fmt.Errorf("write header in sheet %s: %w", c.sheetName, err)
		}
	}

	rng := fmt.Sprintf("%s!A:%s", c.sheetName, lastColumn)
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}

// RemoveExpense deletes the row holding expenseID.
func (c *Client) RemoveExpense(ctx context.Context, expenseID string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	n, _, err := c.findRow(ctx, expenseID)
	if err != nil {
		return err
	}
	if n == 0 {
		slog.DebugContext(ctx, "Expense row already absent", "expense_id", expenseID)
		return nil
	}
	sheetID, err := c.tabID(ctx)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		DeleteDimension: &gsheet.DeleteDimensionRequest{Range: &gsheet.DimensionRange{
			SheetId:         sheetID,
			Dimension:       "ROWS",
			StartIndex:      int64(n - 1),
			EndIndex:        int64(n),
			ForceSendFields: []string{"SheetId", "StartIndex"},
		}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d in sheet %s: %w", n, c.sheetName, err)
	}
	return nil
}

// tabID resolves the numeric sheet ID of the export tab once.
func (c *Client) tabID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sheetID != nil {
		return *c.sheetID, nil
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet metadata: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == c.sheetName {
			id := sh.Properties.SheetId
			c.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found in spreadsheet", c.sheetName)
}
