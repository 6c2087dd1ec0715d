package relational

import (
	"context"
	"database/sql"
	"errors"

	"finboard/internal/core"
	"finboard/internal/store"
)

const transactionColumns = `id, user_id, account_id, category_id, description, amount,
	transaction_date, type, installment_number, total_installments, installment_group_id,
	is_recurring, recurring_frequency, notes, is_pending, created_at, updated_at`

func scanTransaction(row scanner) (core.Transaction, error) {
	var (
		t                         core.Transaction
		category, group, freq, nt sql.NullString
	)
	err := row.Scan(&t.ID, &t.UserID, &t.AccountID, &category, &t.Description, &t.Amount,
		&t.TransactionDate, &t.Type, &t.InstallmentNumber, &t.TotalInstallments, &group,
		&t.IsRecurring, &freq, &nt, &t.IsPending, scanTime(&t.CreatedAt), scanTime(&t.UpdatedAt))
	if err != nil {
		return core.Transaction{}, err
	}
	t.CategoryID, t.InstallmentGroupID = stringPtr(category), stringPtr(group)
	t.RecurringFrequency, t.Notes = stringPtr(freq), stringPtr(nt)
	return t, nil
}

func (s *Store) transactionArgs(t core.Transaction) []any {
	return []any{
		t.AccountID, nullable(t.CategoryID), t.Description, t.Amount, t.TransactionDate,
		string(t.Type), t.InstallmentNumber, t.TotalInstallments, nullable(t.InstallmentGroupID),
		t.IsRecurring, nullable(t.RecurringFrequency), nullable(t.Notes), t.IsPending,
	}
}

func (s *Store) ListTransactions(ctx context.Context, limit int) ([]core.Transaction, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = ? ORDER BY transaction_date DESC, created_at DESC LIMIT ?`,
		owner, store.Limit(limit))
	if err != nil {
		return nil, unavailable("list transactions", err)
	}
	return collect(rows, "list transactions", scanTransaction)
}

// CreateTransaction inserts the row and moves the account balance in the
// same SQL transaction.
func (s *Store) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	t = t.WithDefaults()
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	now := s.now().UTC()
	t.ID, t.UserID, t.CreatedAt, t.UpdatedAt = newID("txn"), owner, now, now

	err = s.inTx(ctx, "create transaction", func(tx *sql.Tx) error {
		args := append([]any{t.ID, t.UserID}, s.transactionArgs(t)...)
		args = append(args, s.dialect.timeArg(t.CreatedAt), s.dialect.timeArg(t.UpdatedAt))
		if _, err := tx.ExecContext(ctx, s.dialect.Rebind(`INSERT INTO transactions (`+transactionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`), args...); err != nil {
			return unavailable("create transaction", err)
		}
		return s.adjustBalance(ctx, tx, owner, t.AccountID, t.Amount)
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, id string, p core.TransactionPatch) (core.Transaction, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	var out core.Transaction
	err = s.inTx(ctx, "update transaction", func(tx *sql.Tx) error {
		prev, err := s.getTransaction(ctx, tx, owner, id)
		if err != nil {
			return err
		}
		next := p.Apply(prev)
		if err := next.Validate(); err != nil {
			return err
		}
		next.UpdatedAt = s.now().UTC()

		args := append(s.transactionArgs(next), s.dialect.timeArg(next.UpdatedAt), id, owner)
		res, err := tx.ExecContext(ctx, s.dialect.Rebind(`UPDATE transactions SET
			account_id = ?, category_id = ?, description = ?, amount = ?, transaction_date = ?,
			type = ?, installment_number = ?, total_installments = ?, installment_group_id = ?,
			is_recurring = ?, recurring_frequency = ?, notes = ?, is_pending = ?, updated_at = ?
			WHERE id = ? AND user_id = ?`), args...)
		if err != nil {
			return unavailable("update transaction", err)
		}
		if err := affected(res, "update transaction", "transaction", id); err != nil {
			return err
		}

		switch {
		case next.AccountID != prev.AccountID:
			if err := s.adjustBalance(ctx, tx, owner, prev.AccountID, prev.Amount.Neg()); err != nil {
				return err
			}
			if err := s.adjustBalance(ctx, tx, owner, next.AccountID, next.Amount); err != nil {
				return err
			}
		case p.AmountChanged(prev):
			if err := s.adjustBalance(ctx, tx, owner, next.AccountID, next.Amount.Sub(prev.Amount)); err != nil {
				return err
			}
		}
		out = next
		return nil
	})
	return out, err
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	owner, err := s.owner(ctx)
	if err != nil {
		return err
	}
	return s.inTx(ctx, "delete transaction", func(tx *sql.Tx) error {
		prev, err := s.getTransaction(ctx, tx, owner, id)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, s.dialect.Rebind(`DELETE FROM transactions WHERE id = ? AND user_id = ?`), id, owner)
		if err != nil {
			return unavailable("delete transaction", err)
		}
		if err := affected(res, "delete transaction", "transaction", id); err != nil {
			return err
		}
		return s.adjustBalance(ctx, tx, owner, prev.AccountID, prev.Amount.Neg())
	})
}

func (s *Store) getTransaction(ctx context.Context, tx *sql.Tx, owner, id string) (core.Transaction, error) {
	row := tx.QueryRowContext(ctx, s.dialect.Rebind(`SELECT `+transactionColumns+` FROM transactions
		WHERE id = ? AND user_id = ?`+s.dialect.forUpdate()), id, owner)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.NotFound("transaction", id)
	}
	if err != nil {
		return core.Transaction{}, unavailable("get transaction", err)
	}
	return t, nil
}
