package http

import (
	"net/http"
	"strings"

	"finboard/internal/log"
	"finboard/internal/openfinance"
)

func (s *Server) handleInstitutions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, openfinance.Institutions())
}

type connectRequest struct {
	InstitutionID string `json:"institutionId"`
}

// handleConnect returns the consent URL the client should open.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	url, err := s.openFinance.Connect(strings.TrimSpace(req.InstitutionID))
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"authUrl": url})
}

// handleCallback completes the consent flow the institution redirects to.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	linked, err := s.openFinance.HandleCallback(r.Context(), q.Get("code"), q.Get("institution"))
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Institution linked",
		log.NewFields().WithConnection(linked.Connection).ToSlice()...)
	writeJSON(w, http.StatusCreated, linked)
}

func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	list, err := s.openFinance.Connections(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleSync answers 202 when the sync was queued for the worker and 200
// with the result when it ran inline.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	req, err := s.openFinance.RequestSync(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, log.OpSync, err)
		return
	}
	status := http.StatusOK
	if req.Queued {
		status = http.StatusAccepted
	}
	writeJSON(w, status, req)
}

func (s *Server) handleRemoveConnection(w http.ResponseWriter, r *http.Request) {
	if err := s.openFinance.Remove(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOpenFinanceHealth(w http.ResponseWriter, r *http.Request) {
	h, err := s.openFinance.Health(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}
