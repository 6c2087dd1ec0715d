package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"finboard/internal/auth"
	"finboard/internal/core"
	"finboard/internal/dataservice"
	"finboard/internal/importer"
	"finboard/internal/openfinance"
	"finboard/internal/store/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	srv  *Server
	data *dataservice.Service
}

func newTestEnv(t *testing.T, mutate ...func(*Deps)) testEnv {
	t.Helper()
	clock := func() time.Time { return testNow }
	fallback := memory.New(memory.WithClock(clock), memory.WithOwnerResolver(auth.ContextResolver{}))
	data := dataservice.New(nil, fallback)

	deps := Deps{
		Data:        data,
		OpenFinance: openfinance.New(data, "https://app.finboard.test/api/openfinance", openfinance.WithClock(clock)),
		Importer:    importer.New(data, importer.CSVExtractor{}, importer.DefaultPolicy(), nil),
		PageSize:    50,
		Now:         clock,
	}
	for _, m := range mutate {
		m(&deps)
	}
	srv := NewServer(":0", deps)
	t.Cleanup(srv.limiter.Stop)
	return testEnv{srv: srv, data: data}
}

func (e testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(HeaderOwnerID, "user_1")
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = env.do(t, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decode[map[string]any](t, rec)
	assert.Equal(t, "degraded", ready["status"])
	assert.Equal(t, "fallback", ready["mode"])
}

func TestAccountsCRUD(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/accounts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]core.Account](t, rec), 3)

	rec = env.do(t, http.MethodPost, "/api/accounts", `{"name":"  Inter  ","type":"checking","institution":"Inter","balance":"100.50"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[core.Account](t, rec)
	assert.Equal(t, "Inter", created.Name)
	assert.True(t, created.Balance.Equal(dec("100.50")))

	rec = env.do(t, http.MethodPatch, "/api/accounts/"+created.ID, `{"name":"Banco Inter"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Banco Inter", decode[core.Account](t, rec).Name)

	rec = env.do(t, http.MethodDelete, "/api/accounts/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/accounts/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[ErrorBody](t, rec).Kind)
}

func TestRequestValidation(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"credit fields on checking", http.MethodPost, "/api/accounts", `{"name":"x","type":"checking","creditLimit":"10"}`, http.StatusUnprocessableEntity},
		{"malformed json", http.MethodPost, "/api/accounts", `{"name":`, http.StatusUnprocessableEntity},
		{"unknown field", http.MethodPatch, "/api/accounts/acc_sample_1", `{"nmae":"typo"}`, http.StatusUnprocessableEntity},
		{"empty body", http.MethodPost, "/api/categories", ``, http.StatusUnprocessableEntity},
		{"bad category type", http.MethodPost, "/api/categories", `{"name":"x","type":"gift"}`, http.StatusUnprocessableEntity},
		{"transaction without account", http.MethodPost, "/api/transactions", `{"description":"x","amount":"-1","transactionDate":"2025-06-01"}`, http.StatusUnprocessableEntity},
		{"bad date", http.MethodPost, "/api/reminders", `{"title":"x","dueDate":"yesterday"}`, http.StatusUnprocessableEntity},
		{"unknown reminder", http.MethodPost, "/api/reminders/rem_missing/complete", ``, http.StatusNotFound},
		{"wrong method", http.MethodPut, "/api/accounts", `{}`, http.StatusMethodNotAllowed},
		{"bad calendar month", http.MethodGet, "/api/calendar?month=june", ``, http.StatusUnprocessableEntity},
		{"inverted report window", http.MethodGet, "/api/reports?from=2025-06-10&to=2025-06-01", ``, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestTransactionsMoveBalance(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/transactions",
		`{"accountId":"acc_sample_1","description":"Padaria","amount":"-100","transactionDate":"2025-06-15","type":"expense"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	txn := decode[core.Transaction](t, rec)
	assert.Equal(t, 1, txn.InstallmentNumber)

	balance := func() decimal.Decimal {
		for _, a := range decode[[]core.Account](t, env.do(t, http.MethodGet, "/api/accounts", "")) {
			if a.ID == "acc_sample_1" {
				return a.Balance
			}
		}
		t.Fatal("account missing")
		return decimal.Zero
	}
	assert.True(t, balance().Equal(dec("2400")))

	rec = env.do(t, http.MethodPatch, "/api/transactions/"+txn.ID, `{"amount":"-40"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, balance().Equal(dec("2460")))

	require.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/transactions/"+txn.ID, "").Code)
	assert.True(t, balance().Equal(dec("2500")))

	rec = env.do(t, http.MethodGet, "/api/transactions?limit=2", "")
	assert.Len(t, decode[[]core.Transaction](t, rec), 2)

	rec = env.do(t, http.MethodGet, "/api/transactions?account=acc_sample_2", "")
	assert.Len(t, decode[[]core.Transaction](t, rec), 3)
}

func TestCompleteMonthlyReminder(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/reminders/rem_sample_2/complete", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[completeResponse](t, rec)
	assert.True(t, got.Completed.IsCompleted)
	require.NotNil(t, got.Next)
	assert.Equal(t, core.NewDate(2025, 7, 20), got.Next.DueDate)
	assert.False(t, got.Next.IsCompleted)
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[dashboardResponse](t, rec)

	assert.Equal(t, "fallback", got.Mode)
	assert.True(t, got.TotalBalance.Equal(dec("7500")), got.TotalBalance.String())
	assert.True(t, got.CreditUsed.Equal(dec("350")))
	assert.Equal(t, 3, got.Accounts)
	assert.True(t, got.MonthTotals.Income.Equal(dec("3500")))
	assert.True(t, got.MonthTotals.Expenses.Equal(dec("206.27")), got.MonthTotals.Expenses.String())
	assert.Empty(t, got.Reminders.Overdue)
	require.Len(t, got.Reminders.Upcoming, 1)
	assert.Equal(t, "rem_sample_2", got.Reminders.Upcoming[0].ID)
	assert.Len(t, got.Recent, recentCount)
}

func TestReports(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/reports?period=1month", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[reportsResponse](t, rec)

	assert.True(t, got.Totals.Expenses.Equal(dec("1406.27")), got.Totals.Expenses.String())
	require.NotEmpty(t, got.Categories)
	assert.Equal(t, "Moradia", got.Categories[0].Name)
	sum := decimal.Zero
	for _, c := range got.Categories {
		sum = sum.Add(c.Amount)
	}
	assert.True(t, sum.Equal(got.Totals.Expenses))
	require.NotEmpty(t, got.TopExpenses)
	assert.Equal(t, "Aluguel", got.TopExpenses[0].Description)

	rec = env.do(t, http.MethodGet, "/api/reports?period=1month&account=acc_sample_1", "")
	got = decode[reportsResponse](t, rec)
	assert.True(t, got.Totals.Expenses.Equal(dec("156.87")))
}

func TestCalendar(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/calendar?month=2025-06", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[calendarResponse](t, rec)
	assert.Equal(t, "2025-06", got.Month)
	require.Len(t, got.Days, 3)
	assert.Equal(t, core.NewDate(2025, 6, 20), got.Days[0].Date)
	assert.Len(t, got.Upcoming, 1)

	rec = env.do(t, http.MethodGet, "/api/calendar?month=2025-08", "")
	assert.Empty(t, decode[calendarResponse](t, rec).Days)
}

func TestImportStatement(t *testing.T) {
	env := newTestEnv(t)
	csv := "data;descricao;valor;categoria\n10/06/2025;Supermercado;-50,00;Alimentação\n11/06/2025;Cinema;-30,00;Lazer\n"

	req := httptest.NewRequest(http.MethodPost, "/api/import?account=acc_sample_1", strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set(HeaderOwnerID, "user_1")
	rec := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[importer.Result](t, rec)
	assert.True(t, got.Success)
	assert.Equal(t, 2, got.Processed)
	assert.Empty(t, got.Errors)

	rec = env.do(t, http.MethodPost, "/api/import", "x")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestOpenFinanceFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/openfinance/institutions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]openfinance.Institution](t, rec), 8)

	rec = env.do(t, http.MethodPost, "/api/openfinance/connect", `{"institutionId":"nubank"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["authUrl"], "/connect/nubank?")

	rec = env.do(t, http.MethodPost, "/api/openfinance/connect", `{"institutionId":"banco_x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/openfinance/callback?code=abc&institution=nubank", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	linked := decode[openfinance.Linked](t, rec)
	assert.Len(t, linked.Accounts, 2)

	rec = env.do(t, http.MethodPost, "/api/openfinance/connections/"+linked.ID+"/sync", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sync := decode[openfinance.SyncRequest](t, rec)
	assert.False(t, sync.Queued)
	require.NotNil(t, sync.Result)
	assert.Positive(t, sync.Result.Imported)

	rec = env.do(t, http.MethodGet, "/api/openfinance/health", "")
	assert.Equal(t, 1, decode[map[string]int](t, rec)["active"])

	require.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/openfinance/connections/"+linked.ID, "").Code)
	rec = env.do(t, http.MethodGet, "/api/openfinance/connections", "")
	assert.Empty(t, decode[[]openfinance.Linked](t, rec))
}

func TestOptionalRoutesAreNotMounted(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.OpenFinance, d.Importer = nil, nil })
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/openfinance/institutions", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/import?account=a", "x").Code)
}

// stubData fails every call with err and records the owner it saw.
type stubData struct {
	DataService
	err   error
	owner string
}

func (s *stubData) ListAccounts(ctx context.Context) ([]core.Account, error) {
	if o, err := auth.SessionFrom(ctx).Owner(); err == nil {
		s.owner = o.ID
	}
	return nil, s.err
}

func (s *stubData) Mode() dataservice.Mode { return dataservice.ModePrimary }

func TestErrorKindsMapToStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		kind   string
	}{
		{fmt.Errorf("resolve owner: %w", core.ErrUnauthenticated), http.StatusUnauthorized, "unauthenticated"},
		{core.NotFound("account", "x"), http.StatusNotFound, "not_found"},
		{fmt.Errorf("%w: name is required", core.ErrValidation), http.StatusUnprocessableEntity, "validation"},
		{errors.New("dial tcp: connection refused"), http.StatusInternalServerError, "backend_unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			env := newTestEnv(t, func(d *Deps) { d.Data = &stubData{err: tt.err} })
			rec := env.do(t, http.MethodGet, "/api/accounts", "")
			assert.Equal(t, tt.status, rec.Code)
			body := decode[ErrorBody](t, rec)
			assert.Equal(t, tt.kind, body.Kind)
			if tt.status == http.StatusInternalServerError {
				assert.Equal(t, "internal error", body.Error, "backend details are not leaked")
			}
		})
	}
}

func TestOwnerHeaderReachesStore(t *testing.T) {
	stub := &stubData{}
	env := newTestEnv(t, func(d *Deps) { d.Data = stub })

	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	req.Header.Set(HeaderOwnerID, " user_42\x00 ")
	env.srv.Handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "user_42", stub.owner)

	stub.owner = ""
	env.srv.Handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/accounts", nil))
	assert.Empty(t, stub.owner, "no header leaves the request anonymous")
}

func TestMutationsAreRateLimited(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.RateLimitPerMinute = 1 })

	body := `{"name":"Lazer extra","type":"expense"}`
	assert.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/categories", body).Code)
	rec := env.do(t, http.MethodPost, "/api/categories", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/categories", "").Code)
}

func TestDefaultCategories(t *testing.T) {
	empty := dataservice.New(nil, memory.New(memory.WithoutSampleData(), memory.WithOwnerResolver(auth.ContextResolver{})))
	env := newTestEnv(t, func(d *Deps) { d.Data = empty })

	rec := env.do(t, http.MethodPost, "/api/categories/defaults", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]core.Category](t, rec), len(dataservice.DefaultCategories))

	rec = env.do(t, http.MethodPost, "/api/categories/defaults", "")
	assert.Len(t, decode[[]core.Category](t, rec), len(dataservice.DefaultCategories), "second call creates nothing")
}
