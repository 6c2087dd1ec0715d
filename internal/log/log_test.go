package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"testing"

	"finboard/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonLogger(buf *bytes.Buffer) *Logger {
	return New(Config{Handler: slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})})
}

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &rec))
	return rec
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf).WithComponent(ComponentImporter)
	assert.Equal(t, ComponentImporter, logger.Component())
	assert.Equal(t, ComponentImporter, logger.With("k", "v").Component())

	logger.Info("hello")
	assert.Equal(t, ComponentImporter, lastRecord(t, &buf)[FieldComponent])
}

func TestFields(t *testing.T) {
	err := fmt.Errorf("load: %w", core.ErrNotFound)
	txn := core.Transaction{ID: "txn_1", AccountID: "acc_1", Amount: decimal.RequireFromString("-12.50")}

	f := NewFields().WithOperation(OpCreate).WithError(err).WithTransaction(txn)
	assert.Equal(t, "not_found", f[FieldErrorKind])
	assert.Equal(t, "-12.5", f[FieldAmount])
	assert.Equal(t, "txn_1", f[FieldTransactionID])
	assert.Len(t, f.ToSlice(), 2*len(f))

	assert.NotContains(t, NewFields().WithError(nil), FieldError)
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	logger := Discard()
	ctx := WithContext(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
}

func TestLogHTTPEndLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "INFO"},
		{404, "WARN"},
		{503, "ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			ctx := WithContext(context.Background(), jsonLogger(&buf))
			r := httptest.NewRequest("GET", "/api/accounts", nil)

			LogHTTPEnd(ctx, r, tt.status, 12, "10.0.0.1")

			rec := lastRecord(t, &buf)
			assert.Equal(t, tt.level, rec["level"])
			assert.Equal(t, "/api/accounts", rec[FieldPath])
			assert.EqualValues(t, tt.status, rec[FieldStatusCode])
		})
	}
}
