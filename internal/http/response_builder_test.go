package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"finboard/internal/core"

	"github.com/stretchr/testify/assert"
)

func TestResponseBuilder(t *testing.T) {
	t.Run("json body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewResponse().Status(http.StatusCreated).Header("Location", "/api/accounts/acc_1").
			Body(map[string]string{"id": "acc_1"}).Write(rec)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Equal(t, "/api/accounts/acc_1", rec.Header().Get("Location"))
		assert.JSONEq(t, `{"id":"acc_1"}`, rec.Body.String())
	})

	t.Run("no content", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewResponse().Status(http.StatusNoContent).Body("ignored").Write(rec)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())
		assert.Empty(t, rec.Header().Get("Content-Type"))
	})

	t.Run("bad request", func(t *testing.T) {
		rec := httptest.NewRecorder()
		BadRequestError("unreadable").Write(rec)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"unreadable","kind":"bad_request"}`, rec.Body.String())
	})
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"not found", core.NotFound("reminder", "rem_1"), http.StatusNotFound, ""},
		{"validation", fmt.Errorf("%w: amount is required", core.ErrValidation), http.StatusUnprocessableEntity, ""},
		{"unauthenticated", core.ErrUnauthenticated, http.StatusUnauthorized, ""},
		{"backend", errors.New("pq: password authentication failed"), http.StatusInternalServerError, "internal error"},
		{"too large", errBodyTooLarge, http.StatusRequestEntityTooLarge, "request body too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			FromError(tt.err).Write(rec)
			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Contains(t, rec.Body.String(), tt.body)
			}
			assert.NotContains(t, rec.Body.String(), "password")
		})
	}
}
