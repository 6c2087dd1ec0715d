package http

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"finboard/internal/core"
	"finboard/internal/dataservice"
	"finboard/internal/importer"
	"finboard/internal/log"
	"finboard/internal/middleware/ratelimit"
	"finboard/internal/middleware/security"
	"finboard/internal/middleware/trace"
	"finboard/internal/openfinance"
	"finboard/internal/report"
)

// reportWindow is how many transactions aggregation endpoints load.
const reportWindow = 5000

// DataService is what the handlers need from the data layer.
type DataService interface {
	ListAccounts(ctx context.Context) ([]core.Account, error)
	CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
	UpdateAccount(ctx context.Context, id string, p core.AccountPatch) (core.Account, error)
	DeleteAccount(ctx context.Context, id string) error

	ListCategories(ctx context.Context) ([]core.Category, error)
	EnsureDefaultCategories(ctx context.Context) ([]core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	UpdateCategory(ctx context.Context, id string, p core.CategoryPatch) (core.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	ListTransactions(ctx context.Context, limit int) ([]core.Transaction, error)
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, p core.TransactionPatch) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error

	ListReminders(ctx context.Context) ([]core.Reminder, error)
	CreateReminder(ctx context.Context, r core.Reminder) (core.Reminder, error)
	UpdateReminder(ctx context.Context, id string, p core.ReminderPatch) (core.Reminder, error)
	DeleteReminder(ctx context.Context, id string) error
	CompleteReminder(ctx context.Context, id string) (core.Reminder, *core.Reminder, error)

	Snapshot(ctx context.Context, limit int) (dataservice.Snapshot, error)
	Mode() dataservice.Mode
}

// OpenFinance is the bank-linking surface exposed under /api/openfinance.
type OpenFinance interface {
	Connect(institutionID string) (string, error)
	HandleCallback(ctx context.Context, code, institutionID string) (openfinance.Linked, error)
	Connections(ctx context.Context) ([]openfinance.Linked, error)
	RequestSync(ctx context.Context, connectionID string) (openfinance.SyncRequest, error)
	Remove(ctx context.Context, id string) error
	Health(ctx context.Context) (report.Health, error)
}

// StatementImporter turns an uploaded statement into transactions.
type StatementImporter interface {
	Import(ctx context.Context, accountID string, source io.Reader) (importer.Result, error)
}

// Deps wires the server. OpenFinance and Importer are optional; their
// routes are not mounted when nil.
type Deps struct {
	Data        DataService
	OpenFinance OpenFinance
	Importer    StatementImporter
	Logger      *log.Logger

	// PageSize is the default ?limit for transaction listings.
	PageSize           int
	RateLimitPerMinute int
	Now                func() time.Time
}

type Server struct {
	http.Server

	data        DataService
	openFinance OpenFinance
	importer    StatementImporter
	logger      *log.Logger
	pageSize    int
	now         func() time.Time
	started     time.Time

	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	detector *security.Detector

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.Discard()
	}
	if deps.PageSize <= 0 {
		deps.PageSize = 50
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	logger := deps.Logger.WithComponent(log.ComponentHTTP)
	detector := security.NewDetector(deps.Logger)
	s := &Server{
		data:        deps.Data,
		openFinance: deps.OpenFinance,
		importer:    deps.Importer,
		logger:      logger,
		pageSize:    deps.PageSize,
		now:         deps.Now,
		started:     deps.Now(),
		limiter:     ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		tracer:      trace.NewMiddleware(deps.Logger, detector.ExtractClientIP),
		detector:    detector,
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = ownerFromHeaders(h)
	h = s.limiter.Middleware(detector.ExtractClientIP, ratelimit.Mutations, s.onRateLimited)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = detector.Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/accounts", s.handleListAccounts)
	mux.HandleFunc("POST /api/accounts", s.handleCreateAccount)
	mux.HandleFunc("PATCH /api/accounts/{id}", s.handleUpdateAccount)
	mux.HandleFunc("DELETE /api/accounts/{id}", s.handleDeleteAccount)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("POST /api/categories/defaults", s.handleDefaultCategories)
	mux.HandleFunc("PATCH /api/categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("PATCH /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/reminders", s.handleListReminders)
	mux.HandleFunc("POST /api/reminders", s.handleCreateReminder)
	mux.HandleFunc("PATCH /api/reminders/{id}", s.handleUpdateReminder)
	mux.HandleFunc("DELETE /api/reminders/{id}", s.handleDeleteReminder)
	mux.HandleFunc("POST /api/reminders/{id}/complete", s.handleCompleteReminder)

	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/reports", s.handleReports)
	mux.HandleFunc("GET /api/calendar", s.handleCalendar)

	if s.importer != nil {
		mux.HandleFunc("POST /api/import", s.handleImport)
	}
	if s.openFinance != nil {
		mux.HandleFunc("GET /api/openfinance/institutions", s.handleInstitutions)
		mux.HandleFunc("POST /api/openfinance/connect", s.handleConnect)
		mux.HandleFunc("GET /api/openfinance/callback", s.handleCallback)
		mux.HandleFunc("GET /api/openfinance/connections", s.handleConnections)
		mux.HandleFunc("POST /api/openfinance/connections/{id}/sync", s.handleSync)
		mux.HandleFunc("DELETE /api/openfinance/connections/{id}", s.handleRemoveConnection)
		mux.HandleFunc("GET /api/openfinance/health", s.handleOpenFinanceHealth)
	}
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.NewFields().
			WithClientIP(s.detector.ExtractClientIP(r)).
			WithHTTPRequest(r.Method, r.URL.Path, r.Header.Get("User-Agent")).
			ToSlice()...)
	ErrorResponse(http.StatusTooManyRequests, "rate_limited", "Rate limit exceeded. Please try again later.").Write(w)
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
