package http

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/store"
)

// errBadRequest marks request bodies and parameters that could not be parsed.
var errBadRequest = errors.New("bad request")

type messageResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"encode response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeMessage(w http.ResponseWriter, msg string, id int64) {
	writeJSON(w, http.StatusOK, messageResponse{Message: msg, ID: id})
}

// writeError maps err to a status code and writes {"error": ...}. Internal
// errors are logged and their detail is not sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, op, log.NewFields().WithComponent(log.ComponentHTTP))
		msg = "internal server error"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, core.ErrMissingField),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidID),
		errors.Is(err, core.ErrNoteTooLong):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
