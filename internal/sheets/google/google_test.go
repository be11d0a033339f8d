package google

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	ports "expensetracker/internal/sheets"
)

type fakeSheets struct {
	mu       sync.Mutex
	header   [][]any
	appended [][]any
	requests []string
	query    []string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.query = append(f.query, r.URL.RawQuery)

	var body struct {
		Values [][]any `json:"values"`
	}
	if r.Body != nil {
		b, _ := io.ReadAll(r.Body)
		if len(b) > 0 {
			_ = json.Unmarshal(b, &body)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(map[string]any{"range": "Audit!A1:I1", "values": f.header})
	case r.Method == http.MethodPut:
		f.header = body.Values
		_ = json.NewEncoder(w).Encode(map[string]any{"updatedRange": "Audit!A1:I1"})
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		f.appended = append(f.appended, body.Values...)
		row := len(f.appended) + 1
		_ = json.NewEncoder(w).Encode(map[string]any{
			"spreadsheetId": "sheet-1",
			"updates": map[string]any{
				"updatedRange": "Audit!A" + strconv.Itoa(row) + ":I" + strconv.Itoa(row),
				"updatedRows":  1,
			},
		})
	default:
		http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
	}
}

func newTestClient(t *testing.T) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithHTTPClient(srv.Client()),
		goption.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return NewWithService(svc, "sheet-1", "Audit", log.New(log.Config{Output: io.Discard})), fake
}

func testRecord() ports.AuditRecord {
	return ports.AuditRecord{
		EventID:   "evt-1",
		EventType: "expense.created",
		At:        time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Expense: core.Expense{
			ID:       7,
			Amount:   core.MustMoney("12.50"),
			Date:     core.NewDate(2024, 1, 2),
			Note:     "=SUM(A1)",
			Category: "Food",
		},
	}
}

func TestClient_Append(t *testing.T) {
	c, fake := newTestClient(t)

	ref, err := c.Append(context.Background(), testRecord())
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if ref != "Audit!A2:I2" {
		t.Errorf("ref = %q, want Audit!A2:I2", ref)
	}

	if len(fake.appended) != 1 {
		t.Fatalf("expected one appended row, got %d", len(fake.appended))
	}
	row := fake.appended[0]
	if len(row) != len(ports.Header) {
		t.Fatalf("row has %d cells, want %d", len(row), len(ports.Header))
	}
	if row[3] != "7" || row[5] != "12.5" || row[7] != "=SUM(A1)" {
		t.Errorf("unexpected row: %v", row)
	}

	req := fake.requests[0]
	if !strings.HasPrefix(req, "POST /v4/spreadsheets/sheet-1/values/Audit!A:I") {
		t.Errorf("unexpected request %q", req)
	}
	if q := fake.query[0]; !strings.Contains(q, "valueInputOption=RAW") || !strings.Contains(q, "insertDataOption=INSERT_ROWS") {
		t.Errorf("unexpected query %q", q)
	}
}

func TestClient_AppendValidation(t *testing.T) {
	c, _ := newTestClient(t)
	r := testRecord()
	r.EventID = ""
	if _, err := c.Append(context.Background(), r); err == nil {
		t.Fatal("expected error for record without event id")
	}

	uninitialized := &Client{sheetName: "Audit"}
	if _, err := uninitialized.Append(context.Background(), testRecord()); err == nil {
		t.Fatal("expected error with nil service")
	}
}

func TestClient_EnsureHeader(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	if err := c.EnsureHeader(ctx); err != nil {
		t.Fatalf("EnsureHeader() error = %v", err)
	}
	if len(fake.header) != 1 || len(fake.header[0]) != len(ports.Header) || fake.header[0][0] != "timestamp" {
		t.Fatalf("header not written: %v", fake.header)
	}

	if err := c.EnsureHeader(ctx); err != nil {
		t.Fatalf("second EnsureHeader() error = %v", err)
	}
	puts := 0
	for _, r := range fake.requests {
		if strings.HasPrefix(r, "PUT ") {
			puts++
		}
	}
	if puts != 1 {
		t.Errorf("header should be written once, got %d writes", puts)
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{}, nil)
	if err == nil {
		t.Fatal("expected error for missing GOOGLE_SPREADSHEET_ID")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), Options{SpreadsheetID: "id"}, nil)
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Options{SpreadsheetID: "id", ServiceAccountFile: t.TempDir() + "/missing.json"}, nil)
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected read error, got %v", err)
	}
}
