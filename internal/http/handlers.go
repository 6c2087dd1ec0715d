package http

import (
	"net/http"
	"strings"
	"time"

	"finboard/internal/core"
	"finboard/internal/dataservice"
	"finboard/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": s.now().Sub(s.started).Round(time.Second).String(),
	})
}

// handleReady reports which store is serving. The in-memory replica still
// answers requests, so fallback mode is ready but flagged as degraded.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	mode := s.data.Mode()
	status := "ready"
	if mode == dataservice.ModeFallback {
		status = "degraded"
	}
	metrics := s.tracer.GetMetrics()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         status,
		"mode":           mode.String(),
		"requests":       metrics.TotalRequests,
		"server_errors":  metrics.ServerErrors,
		"rate_limited":   s.limiter.GetMetrics().TotalHits,
		"suspicious_req": s.detector.GetMetrics().SuspiciousRequests,
	})
}

// Accounts

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.data.ListAccounts(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var a core.Account
	if err := decodeJSON(w, r, &a); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	a.Name = sanitizeInput(a.Name)
	a.Institution = sanitizeInput(a.Institution)
	created, err := s.data.CreateAccount(r.Context(), a)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var p core.AccountPatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	sanitizePtr(p.Name)
	sanitizePtr(p.Institution)
	updated, err := s.data.UpdateAccount(r.Context(), r.PathValue("id"), p)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.data.DeleteAccount(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Categories

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.data.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	if t := core.EntryType(strings.TrimSpace(r.URL.Query().Get("type"))); t != "" {
		filtered := categories[:0:0]
		for _, c := range categories {
			if c.Type == t {
				filtered = append(filtered, c)
			}
		}
		categories = filtered
	}
	writeJSON(w, http.StatusOK, categories)
}

// handleDefaultCategories creates the standard categories for an owner who
// has none yet.
func (s *Server) handleDefaultCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.data.EnsureDefaultCategories(r.Context())
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var c core.Category
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	c.Name = sanitizeInput(c.Name)
	created, err := s.data.CreateCategory(r.Context(), c)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var p core.CategoryPatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	sanitizePtr(p.Name)
	updated, err := s.data.UpdateCategory(r.Context(), r.PathValue("id"), p)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.data.DeleteCategory(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func sanitizePtr(s *string) {
	if s != nil {
		*s = sanitizeInput(*s)
	}
}
