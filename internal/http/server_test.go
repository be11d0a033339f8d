package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"expensetracker/internal/api"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/services"
	"expensetracker/internal/store/memory"
)

// countingAPI counts summary and category reads to observe caching.
type countingAPI struct {
	*services.ExpenseService
	categoryReads int64
	pingErr       error
	// afterCategoryRead runs between reading the summary and returning it.
	afterCategoryRead func()
}

func (c *countingAPI) SummaryByCategory(ctx context.Context) ([]core.CategorySummary, error) {
	atomic.AddInt64(&c.categoryReads, 1)
	sum, err := c.ExpenseService.SummaryByCategory(ctx)
	if c.afterCategoryRead != nil {
		c.afterCategoryRead()
	}
	return sum, err
}

func (c *countingAPI) Ping(ctx context.Context) error {
	if c.pingErr != nil {
		return c.pingErr
	}
	return c.ExpenseService.Ping(ctx)
}

func testLogger() *log.Logger {
	return log.New(log.Config{Output: io.Discard})
}

func newTestServer(t *testing.T, opts Options) (*Server, *countingAPI) {
	t.Helper()
	svc := services.NewExpenseService(memory.New(), nil, testLogger())
	counting := &countingAPI{ExpenseService: svc}
	if opts.RateLimitPerMinute == 0 {
		opts.RateLimitPerMinute = 1000
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = time.Minute
	}
	srv := NewServer(opts, counting, testLogger())
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, counting
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = "203.0.113.9:4000"
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv, counting := newTestServer(t, Options{})

	for _, path := range []string{"/healthz", "/readyz"} {
		if rr := do(t, srv, http.MethodGet, path, ""); rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	counting.pingErr = errors.New("database is closed")
	if rr := do(t, srv, http.MethodGet, "/readyz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing store status=%d", rr.Code)
	}
}

func TestAddExpense(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{name: "string amount", body: `{"amount":"12.50","date":"2024-01-15","note":"lunch","category":"Food"}`, wantStatus: http.StatusOK},
		{name: "number amount", body: `{"amount":7.25,"date":"2024-01-16"}`, wantStatus: http.StatusOK},
		{name: "missing date", body: `{"amount":"5"}`, wantStatus: http.StatusBadRequest, wantError: "amount and date are required"},
		{name: "bad amount", body: `{"amount":"five","date":"2024-01-15"}`, wantStatus: http.StatusBadRequest, wantError: "invalid amount"},
		{name: "bad date", body: `{"amount":"5","date":"15-01-2024"}`, wantStatus: http.StatusBadRequest, wantError: "invalid date"},
		{name: "not json", body: `amount=5`, wantStatus: http.StatusBadRequest},
		{name: "empty body", body: ``, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, Options{})
			rr := do(t, srv, http.MethodPost, "/api/add_expense", tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				msg := decode[messageResponse](t, rr)
				if msg.Message != "Expense added successfully" || msg.ID != 1 {
					t.Errorf("unexpected response %+v", msg)
				}
				return
			}
			e := decode[errorResponse](t, rr)
			if e.Error == "" || !strings.Contains(e.Error, tt.wantError) {
				t.Errorf("error = %q, want it to contain %q", e.Error, tt.wantError)
			}
		})
	}
}

func TestAddExpenseDefaults(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	do(t, srv, http.MethodPost, "/api/add_expense", `{"amount":"3","date":"2024-02-01"}`)

	list := decode[[]core.Expense](t, do(t, srv, http.MethodGet, "/api/get_expenses", ""))
	if len(list) != 1 {
		t.Fatalf("got %d expenses", len(list))
	}
	if list[0].Category != "Other" || list[0].CreatedBy != "system" {
		t.Errorf("defaults not applied: %+v", list[0])
	}
}

func TestUpdateExpense(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	do(t, srv, http.MethodPost, "/api/add_expense", `{"amount":"10","date":"2024-01-01","note":"a","category":"Food"}`)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "partial update", body: `{"id":1,"amount":"11.5","date":"2024-01-02","note":"b"}`, wantStatus: http.StatusOK},
		{name: "category honored", body: `{"id":"1","category":"Dining"}`, wantStatus: http.StatusOK},
		{name: "missing id", body: `{"note":"x"}`, wantStatus: http.StatusBadRequest},
		{name: "non-integer id", body: `{"id":"abc","note":"x"}`, wantStatus: http.StatusBadRequest},
		{name: "unknown id", body: `{"id":99,"note":"x"}`, wantStatus: http.StatusNotFound},
		{name: "bad amount", body: `{"id":1,"amount":"-3"}`, wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/update_expense", tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
		})
	}

	list := decode[[]core.Expense](t, do(t, srv, http.MethodGet, "/api/get_expenses", ""))
	got := list[0]
	if got.Amount.String() != "11.5" || got.Date.String() != "2024-01-02" || got.Note != "b" || got.Category != "Dining" {
		t.Errorf("unexpected expense after updates: %+v", got)
	}
}

func TestDeleteExpense(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	do(t, srv, http.MethodPost, "/api/add_expense", `{"amount":"1","date":"2024-01-01"}`)
	do(t, srv, http.MethodPost, "/api/add_expense", `{"amount":"2","date":"2024-01-02"}`)

	if rr := do(t, srv, http.MethodPost, "/api/delete_expense", `{"id":1}`); rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d (%s)", rr.Code, rr.Body.String())
	}

	list := decode[[]core.Expense](t, do(t, srv, http.MethodGet, "/api/get_expenses", ""))
	for _, e := range list {
		if e.ID == 1 {
			t.Fatal("deleted expense still listed")
		}
	}

	tests := []struct {
		body       string
		wantStatus int
		wantError  string
	}{
		{`{"id":1}`, http.StatusNotFound, "expense not found"},
		{`{}`, http.StatusBadRequest, "Expense ID is required"},
		{`{"id":"two"}`, http.StatusBadRequest, "must be an integer"},
	}
	for _, tt := range tests {
		rr := do(t, srv, http.MethodPost, "/api/delete_expense", tt.body)
		if rr.Code != tt.wantStatus {
			t.Errorf("%s: status = %d, want %d", tt.body, rr.Code, tt.wantStatus)
			continue
		}
		if e := decode[errorResponse](t, rr); !strings.Contains(e.Error, tt.wantError) {
			t.Errorf("%s: error = %q, want %q", tt.body, e.Error, tt.wantError)
		}
	}
}

func TestFilterExpenses(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	for _, body := range []string{
		`{"amount":"1","date":"2023-12-31","category":"Food"}`,
		`{"amount":"2","date":"2024-01-01","category":"Food"}`,
		`{"amount":"3","date":"2024-01-05","category":"Transport"}`,
	} {
		do(t, srv, http.MethodPost, "/api/add_expense", body)
	}

	rr := do(t, srv, http.MethodGet, "/api/filter_expenses?category=Food&start_date=2024-01-01", "")
	list := decode[[]core.Expense](t, rr)
	if len(list) != 1 || list[0].Amount.String() != "2" {
		t.Errorf("unexpected filter result: %+v", list)
	}

	rr = do(t, srv, http.MethodGet, "/api/filter_expenses?category=Rent", "")
	if rr.Body.String() != "[]" {
		t.Errorf("empty result should be [], got %s", rr.Body.String())
	}

	if rr := do(t, srv, http.MethodGet, "/api/filter_expenses?end_date=soon", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad date status = %d, want 400", rr.Code)
	}
}

func TestSummariesAreCachedUntilMutation(t *testing.T) {
	srv, counting := newTestServer(t, Options{})
	do(t, srv, http.MethodPost, "/api/add_expense", `{"amount":"10.10","date":"2024-01-01","category":"Food"}`)
	do(t, srv, http.MethodPost, "/api/add_expense", `{"amount":"0.20","date":"2024-02-01","category":"Food"}`)

	byCat := decode[[]core.CategorySummary](t, do(t, srv, http.MethodGet, "/api/summary/category", ""))
	if len(byCat) != 1 || byCat[0].TotalSpent.String() != "10.3" {
		t.Fatalf("unexpected category summary: %+v", byCat)
	}
	do(t, srv, http.MethodGet, "/api/summary/category", "")
	if n := atomic.LoadInt64(&counting.categoryReads); n != 1 {
		t.Errorf("summary computed %d times, want 1 (cached)", n)
	}

	do(t, srv, http.MethodPost, "/api/add_expense", `{"amount":"5","date":"2024-02-03","category":"Transport"}`)
	byCat = decode[[]core.CategorySummary](t, do(t, srv, http.MethodGet, "/api/summary/category", ""))
	if len(byCat) != 2 {
		t.Fatalf("cache not invalidated after add: %+v", byCat)
	}

	cats := decode[[]string](t, do(t, srv, http.MethodGet, "/api/categories", ""))
	if len(cats) != 2 || cats[0] != "Food" || cats[1] != "Transport" {
		t.Errorf("unexpected categories: %v", cats)
	}

	byMonth := decode[[]core.MonthSummary](t, do(t, srv, http.MethodGet, "/api/summary/month", ""))
	if len(byMonth) != 2 || byMonth[0].Month != "2024-01" || byMonth[1].TotalSpent.String() != "5.2" {
		t.Errorf("unexpected month summary: %+v", byMonth)
	}
}

func TestSummaryReadOverlappingMutationIsNotCached(t *testing.T) {
	srv, counting := newTestServer(t, Options{})

	read := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	counting.afterCategoryRead = func() {
		once.Do(func() {
			close(read)
			<-release
		})
	}

	done := make(chan []core.CategorySummary)
	go func() {
		req := httptest.NewRequest(http.MethodGet, "/api/summary/category", nil)
		req.RemoteAddr = "203.0.113.9:4000"
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)
		var sum []core.CategorySummary
		_ = json.Unmarshal(rr.Body.Bytes(), &sum)
		done <- sum
	}()

	// The slow read has seen the empty store; the add lands before it returns.
	<-read
	if rr := do(t, srv, http.MethodPost, "/api/add_expense", `{"amount":"4","date":"2024-03-01","category":"Food"}`); rr.Code != http.StatusOK {
		t.Fatalf("add status = %d (%s)", rr.Code, rr.Body.String())
	}
	close(release)
	if stale := <-done; len(stale) != 0 {
		t.Fatalf("slow read should reflect the store before the add, got %+v", stale)
	}

	fresh := decode[[]core.CategorySummary](t, do(t, srv, http.MethodGet, "/api/summary/category", ""))
	if len(fresh) != 1 || fresh[0].Category != "Food" || fresh[0].TotalSpent.String() != "4" {
		t.Fatalf("summary after add = %+v, want the new expense", fresh)
	}
}

func TestRoutingErrors(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	wrongMethod := []struct{ method, path string }{
		{http.MethodGet, "/api/add_expense"},
		{http.MethodGet, "/api/delete_expense"},
		{http.MethodPost, "/api/get_expenses"},
		{http.MethodPut, "/api/summary/month"},
	}
	for _, tt := range wrongMethod {
		rr := do(t, srv, tt.method, tt.path, "")
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s status = %d, want 405", tt.method, tt.path, rr.Code)
			continue
		}
		if e := decode[errorResponse](t, rr); e.Error != "method not allowed" {
			t.Errorf("%s %s body = %+v", tt.method, tt.path, e)
		}
	}

	rr := do(t, srv, http.MethodGet, "/api/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want 404", rr.Code)
	}
	if e := decode[errorResponse](t, rr); e.Error != "not found" {
		t.Errorf("unexpected body %+v", e)
	}
}

func TestRateLimitAppliesToMutations(t *testing.T) {
	srv, _ := newTestServer(t, Options{RateLimitPerMinute: 1})

	do(t, srv, http.MethodPost, "/api/add_expense", `{"amount":"1","date":"2024-01-01"}`)
	rr := do(t, srv, http.MethodPost, "/api/add_expense", `{"amount":"1","date":"2024-01-02"}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second POST status = %d, want 429", rr.Code)
	}
	for i := 0; i < 3; i++ {
		if rr := do(t, srv, http.MethodGet, "/api/get_expenses", ""); rr.Code != http.StatusOK {
			t.Fatalf("GET should not be limited, status = %d", rr.Code)
		}
	}
}

func TestResponseHeaders(t *testing.T) {
	srv, _ := newTestServer(t, Options{CORSAllowedOrigins: []string{"*"}})

	req := httptest.NewRequest(http.MethodGet, "/api/get_expenses", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	if rr.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", rr.Header().Get("Content-Type"))
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS header missing")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("request ID header missing")
	}
}

func TestClientRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	ctx := context.Background()
	client := api.NewClient(ts.URL+"/api", 5*time.Second, testLogger())

	msg, err := client.AddExpense(ctx, core.FormDraft{Amount: "22.40", Date: "2024-05-01", Note: "books", Category: "Education"})
	if err != nil || msg != "Expense added successfully" {
		t.Fatalf("AddExpense = %q, %v", msg, err)
	}

	if _, err := client.UpdateExpense(ctx, core.ExpenseUpdate{ID: 1, Amount: "25", Date: "2024-05-02", Note: "more books"}); err != nil {
		t.Fatalf("UpdateExpense: %v", err)
	}

	list, err := client.FilterExpenses(ctx, core.FilterCriteria{Category: "Education"})
	if err != nil || len(list) != 1 {
		t.Fatalf("FilterExpenses = %v, %v", list, err)
	}
	if list[0].Amount.String() != "25" || list[0].Note != "more books" || list[0].Category != "Education" {
		t.Errorf("unexpected expense %+v", list[0])
	}

	byMonth, err := client.SummaryByMonth(ctx)
	if err != nil || len(byMonth) != 1 || byMonth[0].Month != "2024-05" {
		t.Fatalf("SummaryByMonth = %+v, %v", byMonth, err)
	}

	if _, err := client.DeleteExpense(ctx, 1); err != nil {
		t.Fatalf("DeleteExpense: %v", err)
	}
	_, err = client.DeleteExpense(ctx, 1)
	if !errors.Is(err, api.ErrRequestFailed) || !strings.Contains(err.Error(), "expense not found") {
		t.Fatalf("second delete error = %v", err)
	}

	list, err = client.ListExpenses(ctx)
	if err != nil || len(list) != 0 {
		t.Fatalf("ListExpenses after delete = %v, %v", list, err)
	}
}
