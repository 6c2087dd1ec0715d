package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"finboard/internal/auth"
	"finboard/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLimit(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 50},
		{"limit=10", 10},
		{"limit=0", 50},
		{"limit=-3", 50},
		{"limit=abc", 50},
		{"limit=5000", 1000},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/transactions?"+tt.query, nil)
			assert.Equal(t, tt.want, ParseLimit(r, 50, 1000))
		})
	}
}

func TestParseFilter(t *testing.T) {
	t.Run("preset period", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/reports?period=6months&account=+acc_1+", nil)
		f, err := ParseFilter(r, testNow)
		require.NoError(t, err)
		assert.Equal(t, core.NewDate(2024, 12, 15), f.Period.From)
		assert.True(t, f.Period.To.IsZero())
		assert.Equal(t, "acc_1", f.AccountID)
	})

	t.Run("explicit window wins", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/reports?period=1year&from=2025-01-01&to=31/01/2025", nil)
		f, err := ParseFilter(r, testNow)
		require.NoError(t, err)
		assert.Equal(t, core.NewDate(2025, 1, 1), f.Period.From)
		assert.Equal(t, core.NewDate(2025, 1, 31), f.Period.To)
	})

	t.Run("bad date", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/reports?from=soon", nil)
		_, err := ParseFilter(r, testNow)
		assert.ErrorIs(t, err, core.ErrValidation)
	})
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Name string `json:"name"`
	}
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"valid", `{"name":"Nubank"}`, nil},
		{"empty", ``, core.ErrValidation},
		{"malformed", `{"name":}`, core.ErrValidation},
		{"unknown field", `{"title":"x"}`, core.ErrValidation},
		{"two values", `{"name":"a"}{"name":"b"}`, core.ErrValidation},
		{"too large", `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`, errBodyTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.input))
			var got body
			err := decodeJSON(httptest.NewRecorder(), r, &got)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, "Nubank", got.Name)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "Mercado", sanitizeInput("  Mer\x00ca\x07do "))
	assert.Equal(t, "linha 1\nlinha 2", sanitizeInput("linha 1\nlinha 2"))
	assert.Empty(t, sanitizeInput(" \t "))
}

func TestOwnerFromHeaders(t *testing.T) {
	var got core.Owner
	var gotErr error
	h := ownerFromHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, gotErr = auth.SessionFrom(r.Context()).Owner()
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderOwnerID, "user_9")
	r.Header.Set(HeaderOwnerEmail, "ana@example.com")
	h.ServeHTTP(httptest.NewRecorder(), r)
	require.NoError(t, gotErr)
	assert.Equal(t, core.Owner{ID: "user_9", Email: "ana@example.com"}, got)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background()))
	assert.ErrorIs(t, gotErr, core.ErrUnauthenticated)
}
