// Package store defines the persistence ports shared by the relational
// adapter and the in-memory replica.
package store

import (
	"context"

	"finboard/internal/core"
)

// DefaultTransactionLimit caps ListTransactions when the caller passes no
// positive limit.
const DefaultTransactionLimit = 50

// Ports for outbound adapters. Every implementation attributes records to
// the owner it resolves and reports failures as core sentinel errors.
type (
	AccountStore interface {
		ListAccounts(ctx context.Context) ([]core.Account, error)
		CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
		UpdateAccount(ctx context.Context, id string, p core.AccountPatch) (core.Account, error)
		DeleteAccount(ctx context.Context, id string) error
	}

	CategoryStore interface {
		// ListCategories includes the shared system categories.
		ListCategories(ctx context.Context) ([]core.Category, error)
		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
		UpdateCategory(ctx context.Context, id string, p core.CategoryPatch) (core.Category, error)
		DeleteCategory(ctx context.Context, id string) error
	}

	// TransactionStore keeps the owning account's balance in step with every
	// create, amount change and delete.
	TransactionStore interface {
		// ListTransactions returns the newest transactions first.
		ListTransactions(ctx context.Context, limit int) ([]core.Transaction, error)
		CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, id string, p core.TransactionPatch) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, id string) error
	}

	ReminderStore interface {
		ListReminders(ctx context.Context) ([]core.Reminder, error)
		CreateReminder(ctx context.Context, r core.Reminder) (core.Reminder, error)
		UpdateReminder(ctx context.Context, id string, p core.ReminderPatch) (core.Reminder, error)
		DeleteReminder(ctx context.Context, id string) error
	}

	ConnectionStore interface {
		ListConnections(ctx context.Context) ([]core.Connection, error)
		CreateConnection(ctx context.Context, c core.Connection) (core.Connection, error)
		UpdateConnection(ctx context.Context, id string, p core.ConnectionPatch) (core.Connection, error)
		DeleteConnection(ctx context.Context, id string) error
	}

	Store interface {
		AccountStore
		CategoryStore
		TransactionStore
		ReminderStore
		ConnectionStore
	}
)

// Limit normalizes a caller supplied page size.
func Limit(n int) int {
	if n <= 0 {
		return DefaultTransactionLimit
	}
	return n
}
