package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"expensetracker/internal/core"
	"expensetracker/internal/services"
)

const maxBodyBytes = 64 << 10

// flexString accepts a JSON string or number and keeps its text.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}

// flexID accepts an integer ID as a JSON number or numeric string.
type flexID struct {
	value int64
	set   bool
}

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = flexID{}
		return nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: expense ID must be an integer", core.ErrInvalidID)
	}
	*f = flexID{value: id, set: true}
	return nil
}

type addRequest struct {
	Amount    flexString `json:"amount"`
	Date      string     `json:"date"`
	Note      string     `json:"note"`
	Category  string     `json:"category"`
	CreatedBy string     `json:"created_by"`
}

func (r addRequest) draft() core.FormDraft {
	return core.FormDraft{
		Amount:    string(r.Amount),
		Date:      r.Date,
		Note:      r.Note,
		Category:  r.Category,
		CreatedBy: r.CreatedBy,
	}
}

type updateRequest struct {
	ID       flexID      `json:"id"`
	Amount   *core.Money `json:"amount"`
	Date     *string     `json:"date"`
	Note     *string     `json:"note"`
	Category *string     `json:"category"`
}

func (r updateRequest) toService() services.UpdateRequest {
	return services.UpdateRequest{
		ID:       r.ID.value,
		Amount:   r.Amount,
		Date:     r.Date,
		Note:     r.Note,
		Category: r.Category,
	}
}

type deleteRequest struct {
	ID flexID `json:"id"`
}

// decodeJSON reads a size-limited JSON body into v. Domain errors raised
// while decoding (such as a non-integer ID) are kept; anything else is a
// bad request.
func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", errBadRequest, err)
	}
	if len(body) > maxBodyBytes {
		return fmt.Errorf("%w: body too large", errBadRequest)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("%w: empty body", errBadRequest)
	}
	if err := json.Unmarshal(body, v); err != nil {
		if statusFor(err) == http.StatusBadRequest {
			return err
		}
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	return nil
}

// filterCriteria reads the filter query parameters.
func filterCriteria(r *http.Request) core.FilterCriteria {
	q := r.URL.Query()
	return core.FilterCriteria{
		Category:  strings.TrimSpace(q.Get("category")),
		StartDate: strings.TrimSpace(q.Get("start_date")),
		EndDate:   strings.TrimSpace(q.Get("end_date")),
	}
}
