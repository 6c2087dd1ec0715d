package http

import (
	"net/http"

	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/report"
)

const maxPageSize = 1000

// handleListTransactions returns the newest transactions, optionally
// narrowed by ?account=, ?category= and a period.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	limit := ParseLimit(r, s.pageSize, maxPageSize)
	q := r.URL.Query()
	filtered := q.Get("account") != "" || q.Get("category") != "" || q.Get("from") != "" || q.Get("to") != ""

	var f report.Filter
	if filtered {
		var err error
		if f, err = ParseFilter(r, s.now()); err != nil {
			writeError(w, r, log.OpList, err)
			return
		}
		// Without a period only account/category narrow the list.
		if q.Get("from") == "" && q.Get("to") == "" {
			f.Period = report.Period{}
		}
	}

	txns, err := s.data.ListTransactions(r.Context(), limit)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	if filtered {
		txns = report.FilterTransactions(txns, f)
	}
	writeJSON(w, http.StatusOK, txns)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var t core.Transaction
	if err := decodeJSON(w, r, &t); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	t.Description = sanitizeInput(t.Description)
	created, err := s.data.CreateTransaction(r.Context(), t)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction created",
		log.NewFields().WithOperation(log.OpCreate).WithTransaction(created).ToSlice()...)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var p core.TransactionPatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	sanitizePtr(p.Description)
	updated, err := s.data.UpdateTransaction(r.Context(), r.PathValue("id"), p)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.data.DeleteTransaction(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
