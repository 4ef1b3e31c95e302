package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/session"
	"fintrack/internal/storage"
)

// Income rows keep the legacy "budget" naming on the wire.

func (s *Server) handleAddIncome(w http.ResponseWriter, r *http.Request) {
	userID, ok := session.UserID(r.Context())
	if !ok {
		respondMessage(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req addIncomeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err, "Error adding budget")
		return
	}

	income, err := req.toIncome(userID)
	if err != nil {
		respondError(w, r, err, "Error adding budget")
		return
	}

	if err := s.requireOwnCategory(r, income.CategoryID, userID); err != nil {
		respondError(w, r, err, "Error adding budget")
		return
	}

	created, err := s.store.CreateIncome(r.Context(), income)
	if err != nil {
		respondError(w, r, err, "Error adding budget")
		return
	}

	s.publishExport(r, storage.KindIncome, created.ID)
	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "Budget added successfully",
		"budget":  created,
	})
}

func (s *Server) handleViewIncomes(w http.ResponseWriter, r *http.Request) {
	userID, _ := session.UserID(r.Context())

	incomes, err := s.store.IncomesByUser(r.Context(), userID)
	if err != nil {
		respondError(w, r, err, "Error fetching incomes")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"budgets": incomes})
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	userID, _ := session.UserID(r.Context())

	var req deleteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err, "Error deleting income")
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, r, err, "Error deleting income")
		return
	}

	if err := s.store.DeleteIncome(r.Context(), req.ID, userID); err != nil {
		respondError(w, r, err, "Error deleting income")
		return
	}
	respondMessage(w, http.StatusOK, "Income deleted successfully")
}

// handleSummary aggregates the caller's ledger into income, expense, and
// balance totals.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID, _ := session.UserID(r.Context())

	incomes, err := s.store.IncomesByUser(r.Context(), userID)
	if err != nil {
		respondError(w, r, err, "Error computing summary")
		return
	}
	expenses, err := s.store.ExpensesByUser(r.Context(), userID)
	if err != nil {
		respondError(w, r, err, "Error computing summary")
		return
	}

	respondJSON(w, http.StatusOK, core.Summarize(incomes, expenses))
}
