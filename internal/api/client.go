// Package api is the HTTP client for the Expense Service REST endpoints.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
)

// ErrRequestFailed is wrapped by every error the client returns: transport
// failures, non-2xx statuses and {"error": ...} bodies.
var ErrRequestFailed = errors.New("request failed")

// Endpoint paths relative to the base URL.
const (
	PathExpenses        = "/get_expenses"
	PathCategories      = "/categories"
	PathCategorySummary = "/summary/category"
	PathMonthSummary    = "/summary/month"
	PathAddExpense      = "/add_expense"
	PathUpdateExpense   = "/update_expense"
	PathDeleteExpense   = "/delete_expense"
	PathFilterExpenses  = "/filter_expenses"
)

const maxErrorBody = 4 << 10

// Client talks to the Expense Service. It never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

// NewClient creates a client for baseURL (e.g. http://localhost:5000/api).
// A zero timeout disables the per-request deadline.
func NewClient(baseURL string, timeout time.Duration, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default(log.ComponentAPI)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.WithComponent(log.ComponentAPI),
	}
}

// messageResponse is the body of mutation responses.
type messageResponse struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type deleteRequest struct {
	ID int64 `json:"id"`
}

// ListExpenses fetches every expense.
func (c *Client) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	var out []core.Expense
	if err := c.getJSON(ctx, PathExpenses, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListCategories fetches the distinct categories of stored expenses.
func (c *Client) ListCategories(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.getJSON(ctx, PathCategories, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SummaryByCategory fetches per-category totals.
func (c *Client) SummaryByCategory(ctx context.Context) ([]core.CategorySummary, error) {
	var out []core.CategorySummary
	if err := c.getJSON(ctx, PathCategorySummary, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SummaryByMonth fetches per-month totals ordered by month.
func (c *Client) SummaryByMonth(ctx context.Context) ([]core.MonthSummary, error) {
	var out []core.MonthSummary
	if err := c.getJSON(ctx, PathMonthSummary, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FilterExpenses fetches the expenses matching criteria. Only non-empty
// criteria are sent.
func (c *Client) FilterExpenses(ctx context.Context, criteria core.FilterCriteria) ([]core.Expense, error) {
	path := PathFilterExpenses
	if q := FilterQuery(criteria); q != "" {
		path += "?" + q
	}
	var out []core.Expense
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddExpense submits the add form as typed and returns the server message.
func (c *Client) AddExpense(ctx context.Context, draft core.FormDraft) (string, error) {
	return c.postJSON(ctx, PathAddExpense, draft)
}

// UpdateExpense submits {id, amount, date, note}.
func (c *Client) UpdateExpense(ctx context.Context, update core.ExpenseUpdate) (string, error) {
	return c.postJSON(ctx, PathUpdateExpense, update)
}

// DeleteExpense submits {id}.
func (c *Client) DeleteExpense(ctx context.Context, id int64) (string, error) {
	return c.postJSON(ctx, PathDeleteExpense, deleteRequest{ID: id})
}

// FilterQuery encodes the non-empty criteria in the order category,
// start_date, end_date.
func FilterQuery(criteria core.FilterCriteria) string {
	var parts []string
	add := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			parts = append(parts, key+"="+url.QueryEscape(value))
		}
	}
	add("category", criteria.Category)
	add("start_date", criteria.StartDate)
	add("end_date", criteria.EndDate)
	return strings.Join(parts, "&")
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: GET %s: decode response: %w", ErrRequestFailed, path, err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: POST %s: encode payload: %w", ErrRequestFailed, path, err)
	}
	body, err := c.do(ctx, http.MethodPost, path, data)
	if err != nil {
		return "", err
	}

	var resp messageResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("%w: POST %s: decode response: %w", ErrRequestFailed, path, err)
		}
	}
	if resp.Error != "" {
		return "", fmt.Errorf("%w: POST %s: %s", ErrRequestFailed, path, resp.Error)
	}
	return resp.Message, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrRequestFailed, method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrRequestFailed, method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: read body: %w", ErrRequestFailed, method, path, err)
	}

	c.logger.DebugContext(ctx, "API call completed",
		log.FieldMethod, method,
		log.FieldEndpoint, path,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s %s: status %d: %s", ErrRequestFailed, method, path, resp.StatusCode, errorMessage(body))
	}
	return body, nil
}

// errorMessage extracts {"error": ...} from a failed response, falling back
// to the raw body.
func errorMessage(body []byte) string {
	var resp messageResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Error != "" {
		return resp.Error
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return strings.TrimSpace(string(body))
}
