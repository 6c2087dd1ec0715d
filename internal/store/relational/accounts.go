package relational

import (
	"context"
	"database/sql"
	"errors"

	"finboard/internal/core"

	"github.com/shopspring/decimal"
)

const accountColumns = `id, user_id, name, type, bank_name, balance, credit_limit,
	due_date, closing_date, color, is_active, created_at, updated_at`

func scanAccount(row scanner) (core.Account, error) {
	var (
		a                    core.Account
		limit                decimal.NullDecimal
		dueDate, closingDate sql.NullInt64
	)
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Type, &a.Institution, &a.Balance, &limit,
		&dueDate, &closingDate, &a.Color, &a.IsActive, scanTime(&a.CreatedAt), scanTime(&a.UpdatedAt))
	if err != nil {
		return core.Account{}, err
	}
	if limit.Valid {
		a.CreditLimit = &limit.Decimal
	}
	a.DueDate, a.ClosingDate = intPtr(dueDate), intPtr(closingDate)
	if a.Color == "" {
		a.Color = core.DefaultAccountColor
	}
	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]core.Account, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, `SELECT `+accountColumns+` FROM accounts
		WHERE user_id = ? ORDER BY created_at DESC`, owner)
	if err != nil {
		return nil, unavailable("list accounts", err)
	}
	return collect(rows, "list accounts", scanAccount)
}

func (s *Store) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return core.Account{}, err
	}
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	now := s.now().UTC()
	a.ID, a.UserID, a.CreatedAt, a.UpdatedAt = newID("acc"), owner, now, now
	if a.Color == "" {
		a.Color = core.DefaultAccountColor
	}
	_, err = s.exec(ctx, `INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Name, string(a.Type), a.Institution, a.Balance, nullable(a.CreditLimit),
		nullable(a.DueDate), nullable(a.ClosingDate), a.Color, a.IsActive,
		s.dialect.timeArg(a.CreatedAt), s.dialect.timeArg(a.UpdatedAt))
	if err != nil {
		return core.Account{}, unavailable("create account", err)
	}
	return a, nil
}

// UpdateAccount reads the row, applies and validates the patch, then writes
// every mapped column back inside one transaction.
func (s *Store) UpdateAccount(ctx context.Context, id string, p core.AccountPatch) (core.Account, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return core.Account{}, err
	}
	var out core.Account
	err = s.inTx(ctx, "update account", func(tx *sql.Tx) error {
		prev, err := s.getAccount(ctx, tx, owner, id)
		if err != nil {
			return err
		}
		next := p.Apply(prev)
		if err := next.Validate(); err != nil {
			return err
		}
		next.UpdatedAt = s.now().UTC()
		res, err := tx.ExecContext(ctx, s.dialect.Rebind(`UPDATE accounts SET
			name = ?, type = ?, bank_name = ?, balance = ?, credit_limit = ?, due_date = ?,
			closing_date = ?, color = ?, is_active = ?, updated_at = ?
			WHERE id = ? AND user_id = ?`),
			next.Name, string(next.Type), next.Institution, next.Balance, nullable(next.CreditLimit),
			nullable(next.DueDate), nullable(next.ClosingDate), next.Color, next.IsActive,
			s.dialect.timeArg(next.UpdatedAt), id, owner)
		if err != nil {
			return unavailable("update account", err)
		}
		out = next
		return affected(res, "update account", "account", id)
	})
	return out, err
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	owner, err := s.owner(ctx)
	if err != nil {
		return err
	}
	res, err := s.exec(ctx, `DELETE FROM accounts WHERE id = ? AND user_id = ?`, id, owner)
	if err != nil {
		return unavailable("delete account", err)
	}
	return affected(res, "delete account", "account", id)
}

func (s *Store) getAccount(ctx context.Context, tx *sql.Tx, owner, id string) (core.Account, error) {
	row := tx.QueryRowContext(ctx, s.dialect.Rebind(`SELECT `+accountColumns+` FROM accounts
		WHERE id = ? AND user_id = ?`+s.dialect.forUpdate()), id, owner)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.NotFound("account", id)
	}
	if err != nil {
		return core.Account{}, unavailable("get account", err)
	}
	return a, nil
}

// adjustBalance adds delta to the owner's account inside tx. A missing account
// leaves the transaction write in place and skips the balance step.
func (s *Store) adjustBalance(ctx context.Context, tx *sql.Tx, owner, accountID string, delta decimal.Decimal) error {
	if delta.IsZero() {
		return nil
	}
	var balance decimal.Decimal
	err := tx.QueryRowContext(ctx, s.dialect.Rebind(`SELECT balance FROM accounts
		WHERE id = ? AND user_id = ?`+s.dialect.forUpdate()), accountID, owner).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return unavailable("read balance", err)
	}
	_, err = tx.ExecContext(ctx, s.dialect.Rebind(`UPDATE accounts SET balance = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`),
		balance.Add(delta), s.dialect.timeArg(s.now()), accountID, owner)
	if err != nil {
		return unavailable("update balance", err)
	}
	return nil
}
