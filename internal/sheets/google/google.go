package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expensetracker/internal/log"
	ports "expensetracker/internal/sheets"
)

// Options configures the audit mirror client.
type Options struct {
	SpreadsheetID string
	SheetName     string
	// Inline JSON wins over the file. When both are empty the standard
	// GOOGLE_APPLICATION_CREDENTIALS variable is consulted.
	ServiceAccountJSON string
	ServiceAccountFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

// Ensure interface conformance
var _ ports.AuditWriter = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	credentialsJSON, err := readCredentials(opts)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return NewWithService(svc, opts.SpreadsheetID, opts.SheetName, logger), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default(log.ComponentSheets)
	}
	if sheetName == "" {
		sheetName = "Audit"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger.WithComponent(log.ComponentSheets),
	}
}

func readCredentials(opts Options) ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(opts.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(opts.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// columns returns the A1 range covering every audit column, e.g. "Audit!A:I".
func (c *Client) columns(row string) string {
	last := string(rune('A' + len(ports.Header) - 1))
	return fmt.Sprintf("%s!A%s:%s%s", c.sheetName, row, last, row)
}

// EnsureHeader writes the header row when the sheet's first row is empty.
func (c *Client) EnsureHeader(ctx context.Context) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rng := c.columns("1")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	vr := &gsheet.ValueRange{Values: [][]any{cells(ports.Header)}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header to %s: %w", c.sheetName, err)
	}
	c.logger.InfoContext(ctx, "Audit sheet header written", "sheet", c.sheetName)
	return nil
}

// Append adds the record as a new row below the existing data. Values are
// written RAW so notes are never interpreted as formulas.
func (c *Client) Append(ctx context.Context, r ports.AuditRecord) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if r.EventID == "" {
		return "", errors.New("audit record without event id")
	}

	rng := c.columns("")
	vr := &gsheet.ValueRange{Values: [][]any{cells(r.Row())}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.DebugContext(ctx, "Audit row appended",
		log.FieldEventID, r.EventID,
		log.FieldExpenseID, r.Expense.ID,
		"sheets_ref", ref)
	return ref, nil
}

func cells(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
