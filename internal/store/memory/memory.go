// Package memory is the in-process replica served when the relational store
// cannot be reached. It is seeded with demo data on first access and keeps
// account balances consistent with the transactions it stores. Every record
// belongs to an owner and is only visible to that owner, the same way the
// relational store scopes its rows.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"finboard/internal/auth"
	"finboard/internal/core"
	"finboard/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Store struct {
	mu     sync.Mutex
	owners auth.OwnerResolver
	now    func() time.Time
	seeded bool

	accounts     []core.Account
	categories   []core.Category
	transactions []core.Transaction // newest first
	reminders    []core.Reminder
	connections  []core.Connection
}

var _ store.Store = (*Store)(nil)

type Option func(*Store)

// WithOwnerResolver attributes seeded and created records to the resolved
// owner instead of PlaceholderOwner.
func WithOwnerResolver(r auth.OwnerResolver) Option {
	return func(s *Store) { s.owners = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithoutSampleData starts the store empty and never seeds it.
func WithoutSampleData() Option {
	return func(s *Store) { s.seeded = true }
}

func New(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Seed loads the sample data set once. Later calls are no-ops.
func (s *Store) Seed(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureSeeded(ctx)
	return nil
}

// Seeded reports whether the sample data has been loaded.
func (s *Store) Seeded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seeded
}

// ensureSeeded must be called with mu held. The sample set is loaded once and
// attributed to the owner of the first request that reaches the store.
func (s *Store) ensureSeeded(ctx context.Context) {
	if s.seeded {
		return
	}
	sample := SampleData(s.ownerID(ctx), s.now())
	s.accounts = sample.Accounts
	s.categories = sample.Categories
	s.transactions = sample.Transactions
	s.reminders = sample.Reminders
	s.seeded = true
}

func (s *Store) ownerID(ctx context.Context) string {
	if s.owners != nil {
		if o, err := s.owners.CurrentOwner(ctx); err == nil {
			return o.ID
		}
	}
	return PlaceholderOwner
}

// lock acquires mu and seeds the store; callers defer s.mu.Unlock().
func (s *Store) lock(ctx context.Context) {
	s.mu.Lock()
	s.ensureSeeded(ctx)
}

func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// indexOwned finds id among the records of owner; another owner's record with
// the same id is treated as missing.
func indexOwned[T any](items []T, owner, id string, key func(T) (string, string)) int {
	return slices.IndexFunc(items, func(v T) bool {
		vid, vowner := key(v)
		return vid == id && vowner == owner
	})
}

func owned[T any](items []T, owner string, key func(T) (string, string)) []T {
	out := make([]T, 0, len(items))
	for _, v := range items {
		if _, vowner := key(v); vowner == owner {
			out = append(out, v)
		}
	}
	return out
}

func accountKey(a core.Account) (string, string)         { return a.ID, a.UserID }
func categoryKey(c core.Category) (string, string)       { return c.ID, c.UserID }
func transactionKey(t core.Transaction) (string, string) { return t.ID, t.UserID }
func reminderKey(r core.Reminder) (string, string)       { return r.ID, r.UserID }
func connectionKey(c core.Connection) (string, string)   { return c.ID, c.UserID }

// Accounts

func (s *Store) ListAccounts(ctx context.Context) ([]core.Account, error) {
	s.lock(ctx)
	defer s.mu.Unlock()
	return owned(s.accounts, s.ownerID(ctx), accountKey), nil
}

func (s *Store) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	s.lock(ctx)
	defer s.mu.Unlock()
	now := s.now()
	a.ID, a.UserID, a.CreatedAt, a.UpdatedAt = newID("acc"), s.ownerID(ctx), now, now
	if a.Color == "" {
		a.Color = core.DefaultAccountColor
	}
	s.accounts = append(s.accounts, a)
	return a, nil
}

func (s *Store) UpdateAccount(ctx context.Context, id string, p core.AccountPatch) (core.Account, error) {
	s.lock(ctx)
	defer s.mu.Unlock()
	i := indexOwned(s.accounts, s.ownerID(ctx), id, accountKey)
	if i < 0 {
		return core.Account{}, core.NotFound("account", id)
	}
	next := p.Apply(s.accounts[i])
	if err := next.Validate(); err != nil {
		return core.Account{}, err
	}
	next.UpdatedAt = s.now()
	s.accounts[i] = next
	return next, nil
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	s.lock(ctx)
	defer s.mu.Unlock()
	i := indexOwned(s.accounts, s.ownerID(ctx), id, accountKey)
	if i < 0 {
		return core.NotFound("account", id)
	}
	s.accounts = slices.Delete(s.accounts, i, i+1)
	return nil
}

// adjustBalance adds delta to the owner's account balance; a missing account
// is ignored. Must be called with mu held.
func (s *Store) adjustBalance(owner, accID string, delta decimal.Decimal) {
	i := indexOwned(s.accounts, owner, accID, accountKey)
	if i < 0 || delta.IsZero() {
		return
	}
	s.accounts[i].Balance = s.accounts[i].Balance.Add(delta)
	s.accounts[i].UpdatedAt = s.now()
}

// Categories

func (s *Store) ListCategories(ctx context.Context) ([]core.Category, error) {
	s.lock(ctx)
	defer s.mu.Unlock()
	return owned(s.categories, s.ownerID(ctx), categoryKey), nil
}

func (s *Store) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	s.lock(ctx)
	defer s.mu.Unlock()
	c.ID, c.UserID, c.CreatedAt = newID("cat"), s.ownerID(ctx), s.now()
	s.categories = append(s.categories, c)
	return c, nil
}

func (s *Store) UpdateCategory(ctx context.Context, id string, p core.CategoryPatch) (core.Category, error) {
	s.lock(ctx)
	defer s.mu.Unlock()
	i := indexOwned(s.categories, s.ownerID(ctx), id, categoryKey)
	if i < 0 {
		return core.Category{}, core.NotFound("category", id)
	}
	next := p.Apply(s.categories[i])
	if err := next.Validate(); err != nil {
		return core.Category{}, err
	}
	s.categories[i] = next
	return next, nil
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	s.lock(ctx)
	defer s.mu.Unlock()
	i := indexOwned(s.categories, s.ownerID(ctx), id, categoryKey)
	if i < 0 {
		return core.NotFound("category", id)
	}
	s.categories = slices.Delete(s.categories, i, i+1)
	return nil
}

// Transactions

func (s *Store) ListTransactions(ctx context.Context, limit int) ([]core.Transaction, error) {
	s.lock(ctx)
	defer s.mu.Unlock()
	mine := owned(s.transactions, s.ownerID(ctx), transactionKey)
	return mine[:min(store.Limit(limit), len(mine))], nil
}

func (s *Store) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t = t.WithDefaults()
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.lock(ctx)
	defer s.mu.Unlock()
	now := s.now()
	t.ID, t.UserID, t.CreatedAt, t.UpdatedAt = newID("txn"), s.ownerID(ctx), now, now
	s.transactions = slices.Insert(s.transactions, 0, t)
	s.adjustBalance(t.UserID, t.AccountID, t.Amount)
	return t, nil
}

// UpdateTransaction moves the amount difference onto the account. When the
// patch also moves the transaction to another account, the old amount leaves
// the old account and the new amount lands on the new one.
func (s *Store) UpdateTransaction(ctx context.Context, id string, p core.TransactionPatch) (core.Transaction, error) {
	s.lock(ctx)
	defer s.mu.Unlock()
	owner := s.ownerID(ctx)
	i := indexOwned(s.transactions, owner, id, transactionKey)
	if i < 0 {
		return core.Transaction{}, core.NotFound("transaction", id)
	}
	prev := s.transactions[i]
	next := p.Apply(prev)
	if err := next.Validate(); err != nil {
		return core.Transaction{}, err
	}
	next.UpdatedAt = s.now()
	s.transactions[i] = next

	if next.AccountID != prev.AccountID {
		s.adjustBalance(owner, prev.AccountID, prev.Amount.Neg())
		s.adjustBalance(owner, next.AccountID, next.Amount)
	} else if p.AmountChanged(prev) {
		s.adjustBalance(owner, next.AccountID, next.Amount.Sub(prev.Amount))
	}
	return next, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	s.lock(ctx)
	defer s.mu.Unlock()
	owner := s.ownerID(ctx)
	i := indexOwned(s.transactions, owner, id, transactionKey)
	if i < 0 {
		return core.NotFound("transaction", id)
	}
	t := s.transactions[i]
	s.transactions = slices.Delete(s.transactions, i, i+1)
	s.adjustBalance(owner, t.AccountID, t.Amount.Neg())
	return nil
}

// Reminders

func (s *Store) ListReminders(ctx context.Context) ([]core.Reminder, error) {
	s.lock(ctx)
	defer s.mu.Unlock()
	return owned(s.reminders, s.ownerID(ctx), reminderKey), nil
}

func (s *Store) CreateReminder(ctx context.Context, r core.Reminder) (core.Reminder, error) {
	r = r.WithDefaults()
	if err := r.Validate(); err != nil {
		return core.Reminder{}, err
	}
	s.lock(ctx)
	defer s.mu.Unlock()
	r.ID, r.UserID, r.CreatedAt = newID("rem"), s.ownerID(ctx), s.now()
	s.reminders = append(s.reminders, r)
	return r, nil
}

func (s *Store) UpdateReminder(ctx context.Context, id string, p core.ReminderPatch) (core.Reminder, error) {
	s.lock(ctx)
	defer s.mu.Unlock()
	i := indexOwned(s.reminders, s.ownerID(ctx), id, reminderKey)
	if i < 0 {
		return core.Reminder{}, core.NotFound("reminder", id)
	}
	next := p.Apply(s.reminders[i])
	if err := next.Validate(); err != nil {
		return core.Reminder{}, err
	}
	s.reminders[i] = next
	return next, nil
}

func (s *Store) DeleteReminder(ctx context.Context, id string) error {
	s.lock(ctx)
	defer s.mu.Unlock()
	i := indexOwned(s.reminders, s.ownerID(ctx), id, reminderKey)
	if i < 0 {
		return core.NotFound("reminder", id)
	}
	s.reminders = slices.Delete(s.reminders, i, i+1)
	return nil
}

// Connections

func (s *Store) ListConnections(ctx context.Context) ([]core.Connection, error) {
	s.lock(ctx)
	defer s.mu.Unlock()
	return owned(s.connections, s.ownerID(ctx), connectionKey), nil
}

func (s *Store) CreateConnection(ctx context.Context, c core.Connection) (core.Connection, error) {
	if err := c.Validate(); err != nil {
		return core.Connection{}, err
	}
	s.lock(ctx)
	defer s.mu.Unlock()
	now := s.now()
	c.ID, c.UserID, c.CreatedAt, c.UpdatedAt = newID("conn"), s.ownerID(ctx), now, now
	s.connections = slices.Insert(s.connections, 0, c)
	return c, nil
}

func (s *Store) UpdateConnection(ctx context.Context, id string, p core.ConnectionPatch) (core.Connection, error) {
	s.lock(ctx)
	defer s.mu.Unlock()
	i := indexOwned(s.connections, s.ownerID(ctx), id, connectionKey)
	if i < 0 {
		return core.Connection{}, core.NotFound("connection", id)
	}
	next := p.Apply(s.connections[i])
	if err := next.Validate(); err != nil {
		return core.Connection{}, err
	}
	next.UpdatedAt = s.now()
	s.connections[i] = next
	return next, nil
}

func (s *Store) DeleteConnection(ctx context.Context, id string) error {
	s.lock(ctx)
	defer s.mu.Unlock()
	i := indexOwned(s.connections, s.ownerID(ctx), id, connectionKey)
	if i < 0 {
		return core.NotFound("connection", id)
	}
	s.connections = slices.Delete(s.connections, i, i+1)
	return nil
}
