// Package dataservice is the single entry point the API, the CLI and the
// workers use to read and write finance data. It prefers the relational
// store and falls back, permanently for the life of the process, to the
// in-memory replica once the relational store proves unavailable.
package dataservice

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/services"
	"finboard/internal/store"

	"golang.org/x/sync/errgroup"
)

// Mode reports which store is serving calls.
type Mode int

const (
	ModeProbe Mode = iota
	ModePrimary
	ModeFallback
)

func (m Mode) String() string {
	switch m {
	case ModeProbe:
		return "probe"
	case ModePrimary:
		return "primary"
	case ModeFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Fallback is the replica served when the primary is unavailable.
type Fallback interface {
	store.Store
	// Seed loads the demo data set; repeated calls are no-ops.
	Seed(ctx context.Context) error
}

type Service struct {
	primary  store.Store
	fallback Fallback
	logger   *log.Logger

	mu   sync.Mutex
	mode Mode
}

type Option func(*Service)

func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l.WithComponent(log.ComponentDataService) }
}

// New builds the mediator. A nil primary starts the service in fallback mode.
func New(primary store.Store, fallback Fallback, opts ...Option) *Service {
	s := &Service{
		primary:  primary,
		fallback: fallback,
		logger:   log.New(log.Config{Component: log.ComponentDataService}),
	}
	for _, o := range opts {
		o(s)
	}
	if primary == nil {
		s.mode = ModeFallback
	}
	return s
}

// Mode returns the current mode without probing.
func (s *Service) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// selectStore probes the primary on first use. The probe runs under mu so
// concurrent first calls share its outcome. Only a backend failure switches
// to the replica; a missing owner or a rejected request leaves the mode
// undecided so the next call tries the primary again.
func (s *Service) selectStore(ctx context.Context) (store.Store, Mode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.mode {
	case ModePrimary:
		return s.primary, ModePrimary, nil
	case ModeFallback:
		return s.fallback, ModeFallback, nil
	}

	_, err := s.primary.ListAccounts(ctx)
	if err == nil {
		s.mode = ModePrimary
		s.logger.InfoContext(ctx, "Primary store reachable", log.FieldStoreMode, s.mode.String())
		return s.primary, ModePrimary, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ModeProbe, fmt.Errorf("probe primary store: %w", ctxErr)
	}
	if core.KindOf(err) != core.KindBackend {
		return nil, ModeProbe, err
	}
	s.enterFallbackLocked(ctx, log.OpProbe, err)
	return s.fallback, ModeFallback, nil
}

func (s *Service) switchToFallback(ctx context.Context, op string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeFallback {
		s.enterFallbackLocked(ctx, op, cause)
	}
}

func (s *Service) enterFallbackLocked(ctx context.Context, op string, cause error) {
	s.mode = ModeFallback
	fields := log.NewFields().WithOperation(op).WithError(cause)
	fields[log.FieldStoreMode] = s.mode.String()
	s.logger.WarnContext(ctx, "Primary store unavailable, serving in-memory data", fields.ToSlice()...)
}

// run executes fn on the selected store. A backend failure on the primary
// moves the service to fallback mode and replays fn there once; every other
// error is returned to the caller unchanged.
func run[T any](ctx context.Context, s *Service, op string, fn func(store.Store) (T, error)) (T, error) {
	st, mode, err := s.selectStore(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	v, err := fn(st)
	if err == nil || mode == ModeFallback {
		return v, err
	}
	if core.KindOf(err) != core.KindBackend || ctx.Err() != nil {
		return v, err
	}

	s.switchToFallback(ctx, op, err)
	return fn(s.fallback)
}

func exec(ctx context.Context, s *Service, op string, fn func(store.Store) error) error {
	_, err := run(ctx, s, op, func(st store.Store) (struct{}, error) {
		return struct{}{}, fn(st)
	})
	return err
}

// Accounts

func (s *Service) ListAccounts(ctx context.Context) ([]core.Account, error) {
	return run(ctx, s, log.OpList, func(st store.Store) ([]core.Account, error) {
		return st.ListAccounts(ctx)
	})
}

func (s *Service) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	return run(ctx, s, log.OpCreate, func(st store.Store) (core.Account, error) {
		return st.CreateAccount(ctx, a)
	})
}

func (s *Service) UpdateAccount(ctx context.Context, id string, p core.AccountPatch) (core.Account, error) {
	return run(ctx, s, log.OpUpdate, func(st store.Store) (core.Account, error) {
		return st.UpdateAccount(ctx, id, p)
	})
}

func (s *Service) DeleteAccount(ctx context.Context, id string) error {
	return exec(ctx, s, log.OpDelete, func(st store.Store) error {
		return st.DeleteAccount(ctx, id)
	})
}

// Categories

func (s *Service) ListCategories(ctx context.Context) ([]core.Category, error) {
	return run(ctx, s, log.OpList, func(st store.Store) ([]core.Category, error) {
		return st.ListCategories(ctx)
	})
}

func (s *Service) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	return run(ctx, s, log.OpCreate, func(st store.Store) (core.Category, error) {
		return st.CreateCategory(ctx, c)
	})
}

func (s *Service) UpdateCategory(ctx context.Context, id string, p core.CategoryPatch) (core.Category, error) {
	return run(ctx, s, log.OpUpdate, func(st store.Store) (core.Category, error) {
		return st.UpdateCategory(ctx, id, p)
	})
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	return exec(ctx, s, log.OpDelete, func(st store.Store) error {
		return st.DeleteCategory(ctx, id)
	})
}

// EnsureDefaultCategories creates the standard category set when the owner
// has none at all, and returns whatever categories are visible afterwards.
func (s *Service) EnsureDefaultCategories(ctx context.Context) ([]core.Category, error) {
	existing, err := s.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing, nil
	}

	created := make([]core.Category, 0, len(DefaultCategories))
	for _, c := range DefaultCategories {
		c.IsDefault = true
		saved, err := s.CreateCategory(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("create default category %q: %w", c.Name, err)
		}
		created = append(created, saved)
	}
	s.logger.InfoContext(ctx, "Created default categories", log.FieldCount, len(created))
	return created, nil
}

// Transactions

// ListTransactions returns at most limit transactions, newest first; a
// non-positive limit means store.DefaultTransactionLimit.
func (s *Service) ListTransactions(ctx context.Context, limit int) ([]core.Transaction, error) {
	return run(ctx, s, log.OpList, func(st store.Store) ([]core.Transaction, error) {
		return st.ListTransactions(ctx, store.Limit(limit))
	})
}

func (s *Service) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	created, err := run(ctx, s, log.OpCreate, func(st store.Store) (core.Transaction, error) {
		return st.CreateTransaction(ctx, t)
	})
	if err == nil {
		s.logger.DebugContext(ctx, "Transaction created", log.NewFields().WithTransaction(created).ToSlice()...)
	}
	return created, err
}

func (s *Service) UpdateTransaction(ctx context.Context, id string, p core.TransactionPatch) (core.Transaction, error) {
	return run(ctx, s, log.OpUpdate, func(st store.Store) (core.Transaction, error) {
		return st.UpdateTransaction(ctx, id, p)
	})
}

func (s *Service) DeleteTransaction(ctx context.Context, id string) error {
	return exec(ctx, s, log.OpDelete, func(st store.Store) error {
		return st.DeleteTransaction(ctx, id)
	})
}

// Reminders

func (s *Service) ListReminders(ctx context.Context) ([]core.Reminder, error) {
	return run(ctx, s, log.OpList, func(st store.Store) ([]core.Reminder, error) {
		return st.ListReminders(ctx)
	})
}

func (s *Service) CreateReminder(ctx context.Context, r core.Reminder) (core.Reminder, error) {
	return run(ctx, s, log.OpCreate, func(st store.Store) (core.Reminder, error) {
		return st.CreateReminder(ctx, r)
	})
}

func (s *Service) UpdateReminder(ctx context.Context, id string, p core.ReminderPatch) (core.Reminder, error) {
	return run(ctx, s, log.OpUpdate, func(st store.Store) (core.Reminder, error) {
		return st.UpdateReminder(ctx, id, p)
	})
}

func (s *Service) DeleteReminder(ctx context.Context, id string) error {
	return exec(ctx, s, log.OpDelete, func(st store.Store) error {
		return st.DeleteReminder(ctx, id)
	})
}

// CompleteReminder marks the reminder completed. For repeating reminders it
// also schedules the next occurrence, which is returned as next. Completing
// an already completed reminder returns it unchanged and schedules nothing.
func (s *Service) CompleteReminder(ctx context.Context, id string) (done core.Reminder, next *core.Reminder, err error) {
	reminders, err := s.ListReminders(ctx)
	if err != nil {
		return core.Reminder{}, nil, err
	}
	i := slices.IndexFunc(reminders, func(r core.Reminder) bool { return r.ID == id })
	if i < 0 {
		return core.Reminder{}, nil, core.NotFound("reminder", id)
	}
	if reminders[i].IsCompleted {
		return reminders[i], nil, nil
	}

	completed := true
	done, err = s.UpdateReminder(ctx, id, core.ReminderPatch{IsCompleted: &completed})
	if err != nil {
		return core.Reminder{}, nil, err
	}

	following, ok := services.NextOccurrence(done)
	if !ok {
		return done, nil, nil
	}
	created, err := s.CreateReminder(ctx, following)
	if err != nil {
		return done, nil, fmt.Errorf("schedule next occurrence: %w", err)
	}
	return done, &created, nil
}

// Connections

func (s *Service) ListConnections(ctx context.Context) ([]core.Connection, error) {
	return run(ctx, s, log.OpList, func(st store.Store) ([]core.Connection, error) {
		return st.ListConnections(ctx)
	})
}

func (s *Service) CreateConnection(ctx context.Context, c core.Connection) (core.Connection, error) {
	return run(ctx, s, log.OpCreate, func(st store.Store) (core.Connection, error) {
		return st.CreateConnection(ctx, c)
	})
}

func (s *Service) UpdateConnection(ctx context.Context, id string, p core.ConnectionPatch) (core.Connection, error) {
	return run(ctx, s, log.OpUpdate, func(st store.Store) (core.Connection, error) {
		return st.UpdateConnection(ctx, id, p)
	})
}

func (s *Service) DeleteConnection(ctx context.Context, id string) error {
	return exec(ctx, s, log.OpDelete, func(st store.Store) error {
		return st.DeleteConnection(ctx, id)
	})
}

// InitializeSampleData seeds the in-memory replica when it is the store in
// use. Against a reachable primary it does nothing.
func (s *Service) InitializeSampleData(ctx context.Context) error {
	_, mode, err := s.selectStore(ctx)
	if err != nil {
		return err
	}
	if mode != ModeFallback {
		return nil
	}
	return s.fallback.Seed(ctx)
}

// Snapshot is everything a dashboard needs in one read.
type Snapshot struct {
	Mode         Mode
	Accounts     []core.Account
	Categories   []core.Category
	Transactions []core.Transaction
	Reminders    []core.Reminder
	Connections  []core.Connection
}

// Snapshot loads all collections concurrently. limit bounds the
// transactions the same way ListTransactions does.
func (s *Service) Snapshot(ctx context.Context, limit int) (Snapshot, error) {
	// Resolve the mode first so the loads below do not queue behind the probe.
	if _, _, err := s.selectStore(ctx); err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Accounts, err = s.ListAccounts(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Categories, err = s.ListCategories(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Transactions, err = s.ListTransactions(gctx, limit)
		return err
	})
	g.Go(func() (err error) {
		snap.Reminders, err = s.ListReminders(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Connections, err = s.ListConnections(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	snap.Mode = s.Mode()
	return snap, nil
}
