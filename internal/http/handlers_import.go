package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"finboard/internal/core"
	"finboard/internal/log"
)

// handleImport reads a CSV statement from the body and records it against
// ?account=. Row-level problems come back in the result, not as an error
// status.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	accountID := strings.TrimSpace(r.URL.Query().Get("account"))
	if accountID == "" {
		writeError(w, r, log.OpImport, fmt.Errorf("%w: account query parameter is required", core.ErrValidation))
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxImportBytes)
	res, err := s.importer.Import(r.Context(), accountID, body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			err = errBodyTooLarge
		}
		writeError(w, r, log.OpImport, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
