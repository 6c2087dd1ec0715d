// Package relational is the primary store: a database/sql adapter over
// Postgres (pgx) or SQLite (modernc) that maps entities to the snake_case
// schema created by the embedded migrations.
package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"finboard/internal/auth"
	"finboard/internal/core"
	"finboard/internal/store"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// systemOwner owns the categories shared by every user.
const systemOwner = "system"

type Store struct {
	db      *sql.DB
	dialect Dialect
	owners  auth.OwnerResolver
	now     func() time.Time
}

var _ store.Store = (*Store)(nil)

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open connects, pings and migrates the database before returning the store.
func Open(ctx context.Context, dialect Dialect, dsn string, owners auth.OwnerResolver, opts ...Option) (*Store, error) {
	if dialect == SQLite {
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db directory: %w", err)
			}
		}
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if dialect == SQLite {
		// One writer avoids SQLITE_BUSY between the pool's connections.
		db.SetMaxOpenConns(1)
	}

	s := New(db, dialect, owners, opts...)
	if err := s.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// New wraps an already open database handle.
func New(db *sql.DB, dialect Dialect, owners auth.OwnerResolver, opts ...Option) *Store {
	s := &Store{db: db, dialect: dialect, owners: owners, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *Store) Dialect() Dialect { return s.dialect }

// owner resolves the current owner before any SQL is issued.
func (s *Store) owner(ctx context.Context) (string, error) {
	if s.owners == nil {
		return "", fmt.Errorf("no owner resolver: %w", core.ErrUnauthenticated)
	}
	o, err := s.owners.CurrentOwner(ctx)
	if err != nil {
		if errors.Is(err, core.ErrUnauthenticated) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", core.ErrUnauthenticated, err)
	}
	return o.ID, nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.Rebind(q), args...)
}

func (s *Store) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.Rebind(q), args...)
}

// inTx runs fn inside a transaction, rolling back on error.
func (s *Store) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return unavailable(op, err)
	}
	return nil
}

// unavailable marks a driver error as a backend failure.
func unavailable(op string, err error) error {
	if errors.Is(err, core.ErrBackendUnavailable) || errors.Is(err, core.ErrNotFound) || errors.Is(err, core.ErrValidation) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, core.ErrBackendUnavailable, err)
}

// affected maps a zero row count to ErrNotFound.
func affected(res sql.Result, op, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable(op, err)
	}
	if n == 0 {
		return core.NotFound(entity, id)
	}
	return nil
}

func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

func collect[T any](rows *sql.Rows, op string, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, unavailable(op, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return out, nil
}
