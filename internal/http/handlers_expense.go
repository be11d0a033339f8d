package http

import (
	"net/http"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.ListExpenses(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleFilterExpenses(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.FilterExpenses(r.Context(), filterCriteria(r))
	if err != nil {
		writeError(w, r, log.OpFilter, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := cached(s, s.categoryCache, func() ([]string, error) {
		cats, err := s.svc.Categories(r.Context())
		return nonNil(cats), err
	})
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleSummaryByCategory(w http.ResponseWriter, r *http.Request) {
	sum, err := cached(s, s.byCategory, func() ([]core.CategorySummary, error) {
		sum, err := s.svc.SummaryByCategory(r.Context())
		return nonNil(sum), err
	})
	if err != nil {
		writeError(w, r, log.OpSummary, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleSummaryByMonth(w http.ResponseWriter, r *http.Request) {
	sum, err := cached(s, s.byMonth, func() ([]core.MonthSummary, error) {
		sum, err := s.svc.SummaryByMonth(r.Context())
		return nonNil(sum), err
	})
	if err != nil {
		writeError(w, r, log.OpSummary, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	created, err := s.svc.CreateExpense(r.Context(), req.draft())
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	s.invalidate()
	writeMessage(w, "Expense added successfully", created.ID)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}

	if _, err := s.svc.UpdateExpense(r.Context(), req.toService()); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	s.invalidate()
	writeMessage(w, "Expense updated successfully", 0)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	if !req.ID.set {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Expense ID is required"})
		return
	}

	if err := s.svc.DeleteExpense(r.Context(), req.ID.value); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	s.invalidate()
	writeMessage(w, "Expense deleted successfully", 0)
}

// nonNil makes empty results encode as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
