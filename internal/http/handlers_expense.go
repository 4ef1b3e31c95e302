package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/session"
	"fintrack/internal/storage"
)

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := session.UserID(r.Context())
	if !ok {
		respondMessage(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req addExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err, "Error adding expense")
		return
	}

	expense, err := req.toExpense(userID)
	if err != nil {
		respondError(w, r, err, "Error adding expense")
		return
	}

	if err := s.requireOwnCategory(r, expense.CategoryID, userID); err != nil {
		respondError(w, r, err, "Error adding expense")
		return
	}

	created, err := s.store.CreateExpense(r.Context(), expense)
	if err != nil {
		respondError(w, r, err, "Error adding expense")
		return
	}

	s.publishExport(r, storage.KindExpense, created.ID)
	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "Expense added successfully",
		"expense": created,
	})
}

func (s *Server) handleViewExpenses(w http.ResponseWriter, r *http.Request) {
	userID, _ := session.UserID(r.Context())

	expenses, err := s.store.ExpensesByUser(r.Context(), userID)
	if err != nil {
		respondError(w, r, err, "Error fetching expenses")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"expenses": expenses})
}

func (s *Server) handleEditExpense(w http.ResponseWriter, r *http.Request) {
	userID, _ := session.UserID(r.Context())

	var req editExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err, "Error updating expense")
		return
	}

	expense, err := req.toExpense(userID)
	if err != nil {
		respondError(w, r, err, "Error updating expense")
		return
	}

	if err := s.requireOwnCategory(r, expense.CategoryID, userID); err != nil {
		respondError(w, r, err, "Error updating expense")
		return
	}

	// The update is scoped to the session user; another user's row is a miss.
	if err := s.store.UpdateExpense(r.Context(), expense); err != nil {
		respondError(w, r, err, "Error updating expense")
		return
	}

	s.publishExport(r, storage.KindExpense, expense.ID)
	respondMessage(w, http.StatusOK, "Expense updated successfully")
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	userID, _ := session.UserID(r.Context())

	var req deleteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err, "Error deleting expense")
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, r, err, "Error deleting expense")
		return
	}

	if err := s.store.DeleteExpense(r.Context(), req.ID, userID); err != nil {
		respondError(w, r, err, "Error deleting expense")
		return
	}
	respondMessage(w, http.StatusOK, "Expense deleted successfully")
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	userID, _ := session.UserID(r.Context())

	categories, err := s.store.CategoriesByUser(r.Context(), userID)
	if err != nil {
		respondError(w, r, err, "Error fetching categories")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

// requireOwnCategory rejects transactions referencing another user's category.
func (s *Server) requireOwnCategory(r *http.Request, categoryID, userID int64) error {
	ok, err := s.store.CategoryBelongsToUser(r.Context(), categoryID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return core.Validationf("unknown category %d", categoryID)
	}
	return nil
}

// publishExport is best effort: a broken queue must never fail the request.
func (s *Server) publishExport(r *http.Request, kind storage.TxKind, id int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExport(r.Context(), string(kind), id); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Export publish failed, row stays pending",
			"kind", kind, "id", id, log.FieldError, err)
	}
}
