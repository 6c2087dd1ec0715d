// Package openfinance links the owner's bank accounts through the Brazilian
// Open Finance flow: consent (connect and callback), account discovery and
// statement sync into local mirror accounts. The institutions themselves are
// simulated deterministically.
package openfinance

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"finboard/internal/auth"
	"finboard/internal/cache"
	"finboard/internal/core"
	"finboard/internal/importer"
	"finboard/internal/log"
	"finboard/internal/report"

	"github.com/shopspring/decimal"
)

const (
	authBaseURL     = "https://auth.openfinance.com.br/connect/"
	defaultClientID = "finboard"
	consentValidity = 365 * 24 * time.Hour
	notesPrefix     = "openfinance:"
	// dedupWindow bounds how many recent transactions are scanned for
	// already imported statement lines.
	dedupWindow = 5000
)

var (
	ErrConsentExpired = fmt.Errorf("consent expired: %w", core.ErrValidation)
	ErrDisconnected   = fmt.Errorf("connection is disconnected: %w", core.ErrValidation)
)

type (
	// DataStore is the subset of the data service the sync needs.
	DataStore interface {
		ListConnections(ctx context.Context) ([]core.Connection, error)
		CreateConnection(ctx context.Context, c core.Connection) (core.Connection, error)
		UpdateConnection(ctx context.Context, id string, p core.ConnectionPatch) (core.Connection, error)
		DeleteConnection(ctx context.Context, id string) error
		ListAccounts(ctx context.Context) ([]core.Account, error)
		CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
		ListCategories(ctx context.Context) ([]core.Category, error)
		ListTransactions(ctx context.Context, limit int) ([]core.Transaction, error)
		CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	}

	// Publisher queues a sync job for the worker.
	Publisher interface {
		PublishConnectionSync(ctx context.Context, connectionID, ownerID, ownerEmail string) error
	}

	// Linked is a stored connection together with what the institution
	// reports for it.
	Linked struct {
		core.Connection
		InstitutionID string    `json:"institutionId"`
		Accounts      []Account `json:"accounts"`
	}

	SyncResult struct {
		Accounts     []Account     `json:"accounts"`
		Transactions []Transaction `json:"transactions"`
		Imported     int           `json:"imported"`
	}

	// SyncRequest reports whether a sync was queued or ran inline.
	SyncRequest struct {
		Queued bool        `json:"queued"`
		Result *SyncResult `json:"result,omitempty"`
	}
)

type Service struct {
	data        DataStore
	owners      auth.OwnerResolver
	publisher   Publisher
	accounts    *cache.LRUCache[[]Account]
	redirectURL string
	clientID    string
	now         func() time.Time
	logger      *log.Logger
}

type Option func(*Service)

// WithPublisher makes RequestSync queue jobs instead of syncing inline. The
// resolver supplies the owner the job runs for.
func WithPublisher(p Publisher, owners auth.OwnerResolver) Option {
	return func(s *Service) { s.publisher, s.owners = p, owners }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithAccountCache(c *cache.LRUCache[[]Account]) Option {
	return func(s *Service) { s.accounts = c }
}

func WithClientID(id string) Option {
	return func(s *Service) { s.clientID = id }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l.WithComponent(log.ComponentOpenFinance) }
}

func New(data DataStore, redirectURL string, opts ...Option) *Service {
	s := &Service{
		data:        data,
		redirectURL: strings.TrimRight(redirectURL, "/"),
		clientID:    defaultClientID,
		now:         time.Now,
		logger:      log.Discard(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.accounts == nil {
		s.accounts = cache.NewLRUCache[[]Account](256, 10*time.Minute)
	}
	if s.owners == nil {
		s.owners = auth.ContextResolver{}
	}
	return s
}

// Connect returns the consent URL the owner is sent to.
func (s *Service) Connect(institutionID string) (string, error) {
	inst, err := institutionByID(institutionID)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("client_id", s.clientID)
	q.Set("redirect_uri", s.redirectURL+"/callback")
	return authBaseURL + url.PathEscape(inst.ID) + "?" + q.Encode(), nil
}

// HandleCallback completes the consent flow and stores the connection.
func (s *Service) HandleCallback(ctx context.Context, code, institutionID string) (Linked, error) {
	inst, err := institutionByID(institutionID)
	if err != nil {
		return Linked{}, err
	}
	if strings.TrimSpace(code) == "" {
		return Linked{}, fmt.Errorf("%w: authorization code is required", core.ErrValidation)
	}

	now := s.now().UTC()
	expiry := now.Add(consentValidity)
	conn, err := s.data.CreateConnection(ctx, core.Connection{
		InstitutionName: inst.Name,
		ConnectionID:    consentID(inst.ID, code),
		Status:          core.ConnectionConnected,
		ConsentExpiry:   &expiry,
		LastSync:        &now,
	})
	if err != nil {
		return Linked{}, fmt.Errorf("store connection: %w", err)
	}
	s.logger.InfoContext(ctx, "Institution connected", log.NewFields().WithConnection(conn).ToSlice()...)
	return s.link(ctx, conn, inst)
}

func (s *Service) link(ctx context.Context, conn core.Connection, inst Institution) (Linked, error) {
	accounts, err := s.accountsFor(ctx, conn, inst)
	if err != nil {
		return Linked{}, err
	}
	return Linked{Connection: conn, InstitutionID: inst.ID, Accounts: accounts}, nil
}

func (s *Service) accountsFor(ctx context.Context, conn core.Connection, inst Institution) ([]Account, error) {
	return s.accounts.GetOrLoad(ctx, conn.ID, func(context.Context) ([]Account, error) {
		return simulatedAccounts(inst, conn), nil
	})
}

// Connections lists the owner's connections. Connections whose consent has
// lapsed are marked expired, in the store as well.
func (s *Service) Connections(ctx context.Context) ([]Linked, error) {
	conns, err := s.refreshed(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Linked, 0, len(conns))
	for _, c := range conns {
		inst, err := institutionOf(c)
		if err != nil {
			out = append(out, Linked{Connection: c, Accounts: []Account{}})
			continue
		}
		l, err := s.link(ctx, c, inst)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *Service) refreshed(ctx context.Context) ([]core.Connection, error) {
	conns, err := s.data.ListConnections(ctx)
	if err != nil {
		return nil, err
	}
	for i := range conns {
		c, err := s.expireIfLapsed(ctx, conns[i])
		if err != nil {
			return nil, err
		}
		conns[i] = c
	}
	return conns, nil
}

func (s *Service) expireIfLapsed(ctx context.Context, c core.Connection) (core.Connection, error) {
	if c.Status == core.ConnectionExpired || c.ConsentExpiry == nil || !s.now().After(*c.ConsentExpiry) {
		return c, nil
	}
	expired := core.ConnectionExpired
	updated, err := s.data.UpdateConnection(ctx, c.ID, core.ConnectionPatch{Status: &expired})
	if err != nil {
		return c, fmt.Errorf("mark connection expired: %w", err)
	}
	s.logger.InfoContext(ctx, "Connection consent expired", log.FieldConnectionID, c.ID)
	return updated, nil
}

func (s *Service) find(ctx context.Context, id string) (core.Connection, error) {
	conns, err := s.data.ListConnections(ctx)
	if err != nil {
		return core.Connection{}, err
	}
	for _, c := range conns {
		if c.ID == id {
			return s.expireIfLapsed(ctx, c)
		}
	}
	return core.Connection{}, core.NotFound("connection", id)
}

// Sync pulls the institution's statements into local mirror accounts.
// Statement lines imported by an earlier sync are skipped.
func (s *Service) Sync(ctx context.Context, connectionID string) (SyncResult, error) {
	conn, err := s.find(ctx, connectionID)
	if err != nil {
		return SyncResult{}, err
	}
	switch conn.Status {
	case core.ConnectionExpired:
		return SyncResult{}, ErrConsentExpired
	case core.ConnectionDisconnected:
		return SyncResult{}, ErrDisconnected
	}
	inst, err := institutionOf(conn)
	if err != nil {
		return SyncResult{}, err
	}

	res, err := s.sync(ctx, conn, inst)
	if err != nil {
		if core.KindOf(err) != core.KindUnauthenticated {
			s.markFailed(ctx, conn, err)
		}
		return SyncResult{}, err
	}

	now := s.now().UTC()
	status := core.ConnectionConnected
	if _, err := s.data.UpdateConnection(ctx, conn.ID, core.ConnectionPatch{Status: &status, LastSync: &now}); err != nil {
		return SyncResult{}, fmt.Errorf("record sync time: %w", err)
	}
	s.logger.InfoContext(ctx, "Connection synced",
		log.FieldConnectionID, conn.ID,
		log.FieldInstitution, inst.Name,
		log.FieldCount, res.Imported)
	return res, nil
}

func (s *Service) sync(ctx context.Context, conn core.Connection, inst Institution) (SyncResult, error) {
	accounts, err := s.accountsFor(ctx, conn, inst)
	if err != nil {
		return SyncResult{}, err
	}
	txns := simulatedTransactions(conn, accounts, s.now())

	imported, err := s.importedIDs(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	categories, err := s.data.ListCategories(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("load categories: %w", err)
	}
	mirrors, err := s.mirrorAccounts(ctx, conn, inst, accounts, txns, imported)
	if err != nil {
		return SyncResult{}, err
	}

	res := SyncResult{Accounts: accounts, Transactions: txns}
	for _, t := range txns {
		if _, ok := imported[t.ID]; ok {
			continue
		}
		if _, err := s.data.CreateTransaction(ctx, localTransaction(t, mirrors[t.AccountID], categories)); err != nil {
			return SyncResult{}, fmt.Errorf("import %s: %w", t.ID, err)
		}
		res.Imported++
	}
	return res, nil
}

// importedIDs maps the external id of every recently imported transaction to
// the local account it landed on.
func (s *Service) importedIDs(ctx context.Context) (map[string]string, error) {
	existing, err := s.data.ListTransactions(ctx, dedupWindow)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	ids := make(map[string]string)
	for _, t := range existing {
		if t.Notes != nil && strings.HasPrefix(*t.Notes, notesPrefix) {
			ids[strings.TrimPrefix(*t.Notes, notesPrefix)] = t.AccountID
		}
	}
	return ids, nil
}

// mirrorAccounts maps external account ids to local account ids, creating
// the local account on first sync. Mirrors belong to one connection: they are
// recognised by the transactions already imported through it, so a second
// connection to the same institution gets its own accounts. A new mirror opens
// with the balance that makes its ledger end at the reported balance once
// txns are imported.
func (s *Service) mirrorAccounts(ctx context.Context, conn core.Connection, inst Institution, accounts []Account, txns []Transaction, imported map[string]string) (map[string]string, error) {
	local, err := s.data.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	exists := make(map[string]bool, len(local))
	for _, a := range local {
		exists[a.ID] = true
	}

	mirrors := make(map[string]string, len(accounts))
	for _, ext := range accounts {
		if id, ok := findMirror(imported, transactionPrefix(conn, ext.ID)); ok && exists[id] {
			mirrors[ext.ID] = id
			continue
		}
		opening := ext.Balance
		for _, t := range txns {
			if t.AccountID == ext.ID {
				opening = opening.Sub(t.Amount)
			}
		}
		created, err := s.data.CreateAccount(ctx, core.Account{
			Name:        ext.Name,
			Type:        ext.Type,
			Institution: inst.Name,
			Balance:     opening,
			Color:       inst.Color,
			IsActive:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("create mirror account %s: %w", ext.ID, err)
		}
		mirrors[ext.ID] = created.ID
	}
	return mirrors, nil
}

// findMirror returns the local account holding a transaction whose external
// id is prefix followed by a sequence number.
func findMirror(imported map[string]string, prefix string) (string, bool) {
	for extID, accountID := range imported {
		seq, ok := strings.CutPrefix(extID, prefix)
		if !ok || seq == "" {
			continue
		}
		if strings.Trim(seq, "0123456789") == "" {
			return accountID, true
		}
	}
	return "", false
}

func localTransaction(t Transaction, accountID string, categories []core.Category) core.Transaction {
	notes := notesPrefix + t.ID
	local := core.Transaction{
		AccountID:         accountID,
		Description:       t.Description,
		Amount:            t.Amount,
		TransactionDate:   t.Date,
		Type:              core.Expense,
		InstallmentNumber: 1,
		TotalInstallments: 1,
		Notes:             &notes,
	}
	if t.Credit {
		local.Type = core.Income
		return local
	}
	if c := importer.MatchCategory(t.Category, categories, 0); c != nil {
		id := c.ID
		local.CategoryID = &id
	}
	return local
}

func (s *Service) markFailed(ctx context.Context, conn core.Connection, cause error) {
	status, msg := core.ConnectionError, cause.Error()
	if _, err := s.data.UpdateConnection(ctx, conn.ID, core.ConnectionPatch{Status: &status, ErrorMessage: &msg}); err != nil {
		s.logger.ErrorContext(ctx, "Failed to record sync failure",
			log.NewFields().WithConnection(conn).WithError(err).ToSlice()...)
	}
}

// RequestSync queues a sync when a publisher is configured and otherwise
// syncs inline.
func (s *Service) RequestSync(ctx context.Context, connectionID string) (SyncRequest, error) {
	if s.publisher == nil {
		res, err := s.Sync(ctx, connectionID)
		if err != nil {
			return SyncRequest{}, err
		}
		return SyncRequest{Result: &res}, nil
	}

	if _, err := s.find(ctx, connectionID); err != nil {
		return SyncRequest{}, err
	}
	owner, err := s.owners.CurrentOwner(ctx)
	if err != nil {
		return SyncRequest{}, err
	}
	if err := s.publisher.PublishConnectionSync(ctx, connectionID, owner.ID, owner.Email); err != nil {
		s.logger.WarnContext(ctx, "Queueing sync failed, syncing inline",
			log.FieldConnectionID, connectionID, log.FieldError, err)
		res, err := s.Sync(ctx, connectionID)
		if err != nil {
			return SyncRequest{}, err
		}
		return SyncRequest{Result: &res}, nil
	}
	return SyncRequest{Queued: true}, nil
}

// SyncStale syncs every connected connection whose last sync is older than
// maxAge. Failures are logged and do not stop the sweep; the first one is
// returned.
func (s *Service) SyncStale(ctx context.Context, maxAge time.Duration) (int, error) {
	conns, err := s.refreshed(ctx)
	if err != nil {
		return 0, err
	}
	var errs []error
	synced := 0
	for _, c := range conns {
		if c.Status != core.ConnectionConnected {
			continue
		}
		if c.LastSync != nil && s.now().Sub(*c.LastSync) < maxAge {
			continue
		}
		if _, err := s.Sync(ctx, c.ID); err != nil {
			errs = append(errs, fmt.Errorf("sync %s: %w", c.ID, err))
			continue
		}
		synced++
	}
	return synced, errors.Join(errs...)
}

// Remove deletes the connection. Mirror accounts and imported transactions
// stay, they are the owner's history.
func (s *Service) Remove(ctx context.Context, id string) error {
	if err := s.data.DeleteConnection(ctx, id); err != nil {
		return err
	}
	s.accounts.Delete(id)
	return nil
}

func (s *Service) Health(ctx context.Context) (report.Health, error) {
	conns, err := s.refreshed(ctx)
	if err != nil {
		return report.Health{}, err
	}
	return report.ConnectionHealth(conns), nil
}

// Balance is the sum the institution reports across the linked accounts.
func (l Linked) Balance() decimal.Decimal {
	total := decimal.Zero
	for _, a := range l.Accounts {
		total = total.Add(a.Balance)
	}
	return total
}
