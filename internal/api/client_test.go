package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"expensetracker/internal/core"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	body   string
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *[]recordedRequest) {
	t.Helper()
	var (
		mu       sync.Mutex
		requests []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		defer mu.Unlock()
		requests = append(requests, recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			body:   string(body),
		})
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api", 2*time.Second, nil), &requests
}

func TestFilterQuery(t *testing.T) {
	tests := []struct {
		name     string
		criteria core.FilterCriteria
		want     string
	}{
		{
			name:     "empty",
			criteria: core.FilterCriteria{},
			want:     "",
		},
		{
			name:     "category and start date",
			criteria: core.FilterCriteria{Category: "Food", StartDate: "2024-01-01"},
			want:     "category=Food&start_date=2024-01-01",
		},
		{
			name:     "end date only",
			criteria: core.FilterCriteria{EndDate: "2024-03-31"},
			want:     "end_date=2024-03-31",
		},
		{
			name:     "all fields in fixed order",
			criteria: core.FilterCriteria{EndDate: "2024-03-31", StartDate: "2024-01-01", Category: "Food"},
			want:     "category=Food&start_date=2024-01-01&end_date=2024-03-31",
		},
		{
			name:     "escaped category",
			criteria: core.FilterCriteria{Category: "Eating Out & Bars"},
			want:     "category=Eating+Out+%26+Bars",
		},
		{
			name:     "whitespace only is ignored",
			criteria: core.FilterCriteria{Category: "  "},
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FilterQuery(tt.criteria); got != tt.want {
				t.Errorf("FilterQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestListExpenses(t *testing.T) {
	client, requests := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"amount":12.5,"date":"2024-01-02","note":"lunch","category":"Food","created_by":"system"}]`))
	})

	expenses, err := client.ListExpenses(context.Background())
	if err != nil {
		t.Fatalf("ListExpenses() error = %v", err)
	}
	if len(expenses) != 1 {
		t.Fatalf("expected 1 expense, got %d", len(expenses))
	}
	e := expenses[0]
	if e.ID != 1 || e.Amount.String() != "12.5" || e.Date.String() != "2024-01-02" || e.Category != "Food" {
		t.Errorf("unexpected expense %+v", e)
	}
	if got := (*requests)[0]; got.method != http.MethodGet || got.path != "/api/get_expenses" {
		t.Errorf("unexpected request %+v", got)
	}
}

func TestSummaries(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/summary/category":
			_, _ = w.Write([]byte(`[{"category":"Food","total_spent":30.25}]`))
		case "/api/summary/month":
			_, _ = w.Write([]byte(`[{"month":"2024-01","total_spent":10},{"month":"2024-02","total_spent":20.25}]`))
		case "/api/categories":
			_, _ = w.Write([]byte(`["Food","Transport"]`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	byCategory, err := client.SummaryByCategory(ctx)
	if err != nil || len(byCategory) != 1 || byCategory[0].TotalSpent.String() != "30.25" {
		t.Errorf("SummaryByCategory() = %+v, %v", byCategory, err)
	}
	byMonth, err := client.SummaryByMonth(ctx)
	if err != nil || len(byMonth) != 2 || byMonth[1].Month != "2024-02" {
		t.Errorf("SummaryByMonth() = %+v, %v", byMonth, err)
	}
	categories, err := client.ListCategories(ctx)
	if err != nil || len(categories) != 2 || categories[1] != "Transport" {
		t.Errorf("ListCategories() = %v, %v", categories, err)
	}
}

func TestFilterExpensesSendsOnlyNonEmptyCriteria(t *testing.T) {
	client, requests := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := client.FilterExpenses(context.Background(), core.FilterCriteria{Category: "Food", StartDate: "2024-01-01"})
	if err != nil {
		t.Fatalf("FilterExpenses() error = %v", err)
	}

	got := (*requests)[0]
	if got.path != "/api/filter_expenses" {
		t.Errorf("path = %q", got.path)
	}
	if got.query != "category=Food&start_date=2024-01-01" {
		t.Errorf("query = %q, want category=Food&start_date=2024-01-01", got.query)
	}
}

func TestUpdateExpensePayloadHasNoCategory(t *testing.T) {
	client, requests := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"Expense updated successfully"}`))
	})

	msg, err := client.UpdateExpense(context.Background(), core.ExpenseUpdate{ID: 7, Amount: "20", Date: "2024-02-01", Note: "taxi"})
	if err != nil {
		t.Fatalf("UpdateExpense() error = %v", err)
	}
	if msg != "Expense updated successfully" {
		t.Errorf("message = %q", msg)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte((*requests)[0].body), &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if _, ok := payload["category"]; ok {
		t.Errorf("update payload must not contain category: %s", (*requests)[0].body)
	}
	for _, key := range []string{"id", "amount", "date", "note"} {
		if _, ok := payload[key]; !ok {
			t.Errorf("update payload missing %q: %s", key, (*requests)[0].body)
		}
	}
}

func TestAddAndDeleteExpense(t *testing.T) {
	client, requests := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	})
	ctx := context.Background()

	if _, err := client.AddExpense(ctx, core.FormDraft{Amount: "5", Date: "2024-01-01", Category: "Food"}); err != nil {
		t.Fatalf("AddExpense() error = %v", err)
	}
	if _, err := client.DeleteExpense(ctx, 42); err != nil {
		t.Fatalf("DeleteExpense() error = %v", err)
	}

	add := (*requests)[0]
	if add.method != http.MethodPost || add.path != "/api/add_expense" || !strings.Contains(add.body, `"category":"Food"`) {
		t.Errorf("unexpected add request %+v", add)
	}
	del := (*requests)[1]
	if del.path != "/api/delete_expense" || del.body != `{"id":42}` {
		t.Errorf("unexpected delete request %+v", del)
	}
}

func TestErrorsWrapRequestFailed(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"not found", http.StatusNotFound, `{"error":"Expense not found"}`, "Expense not found"},
		{"server error plain body", http.StatusInternalServerError, "boom", "boom"},
		{"error body with 200", http.StatusOK, `{"error":"Missing required fields"}`, "Missing required fields"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.DeleteExpense(context.Background(), 1)
			if !errors.Is(err, ErrRequestFailed) {
				t.Fatalf("expected ErrRequestFailed, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q should contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestTransportErrorWrapsRequestFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewClient(url+"/api", time.Second, nil)
	if _, err := client.ListExpenses(context.Background()); !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected ErrRequestFailed, got %v", err)
	}
}

func TestInvalidJSONWrapsRequestFailed(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	if _, err := client.ListCategories(context.Background()); !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected ErrRequestFailed, got %v", err)
	}
}
