// This file holds the helpers that turn request bodies, query strings and
// headers into typed values.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"finboard/internal/auth"
	"finboard/internal/core"
	"finboard/internal/report"
)

const (
	// maxBodyBytes bounds JSON bodies; statement uploads get maxImportBytes.
	maxBodyBytes   = 1 << 20
	maxImportBytes = 5 << 20

	HeaderOwnerID    = "X-Owner-ID"
	HeaderOwnerEmail = "X-Owner-Email"
)

var errBodyTooLarge = errors.New("request body too large")

// decodeJSON reads a single JSON value into dst. Unknown fields are
// rejected so typos in patch bodies do not silently do nothing.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return errBodyTooLarge
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: request body is empty", core.ErrValidation)
		case errors.Is(err, core.ErrValidation):
			return err
		default:
			return fmt.Errorf("%w: malformed JSON: %v", core.ErrValidation, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: request body must hold a single JSON value", core.ErrValidation)
	}
	return nil
}

// ParseLimit reads ?limit=, falling back to def for missing or invalid
// values. The result never exceeds max.
func ParseLimit(r *http.Request, def, max int) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("limit")))
	if err != nil || n <= 0 {
		n = def
	}
	return min(n, max)
}

// ParseFilter builds a report filter from ?period=&from=&to=&account=&category=.
// Explicit from/to win over the preset period.
func ParseFilter(r *http.Request, now time.Time) (report.Filter, error) {
	q := r.URL.Query()
	f := report.Filter{
		Period:     report.PresetPeriod(q.Get("period"), now),
		AccountID:  strings.TrimSpace(q.Get("account")),
		CategoryID: strings.TrimSpace(q.Get("category")),
	}
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return f, err
		}
		f.Period = report.Period{From: d}
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return f, err
		}
		f.Period.To = d
	}
	if !f.Period.From.IsZero() && !f.Period.To.IsZero() && f.Period.To.Before(f.Period.From) {
		return f, fmt.Errorf("%w: to must not be before from", core.ErrValidation)
	}
	return f, nil
}

// sanitizeInput removes control characters except tab, newline and
// carriage return, and trims whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

// ownerFromHeaders places the owner announced by the identity proxy on the
// request context. Requests without the header stay anonymous and the
// stores fall back to the configured owner, if any.
func ownerFromHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := sanitizeInput(r.Header.Get(HeaderOwnerID)); id != "" {
			owner := core.Owner{ID: id, Email: sanitizeInput(r.Header.Get(HeaderOwnerEmail))}
			r = r.WithContext(auth.WithOwner(r.Context(), owner))
		}
		next.ServeHTTP(w, r)
	})
}
