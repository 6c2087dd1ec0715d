package relational

import (
	"context"
	"database/sql"
	"errors"

	"finboard/internal/core"

	"github.com/shopspring/decimal"
)

const reminderColumns = `id, user_id, account_id, title, description, amount, due_date,
	repeat_type, is_completed, created_at`

func scanReminder(row scanner) (core.Reminder, error) {
	var (
		r             core.Reminder
		account, desc sql.NullString
		amount        decimal.NullDecimal
	)
	err := row.Scan(&r.ID, &r.UserID, &account, &r.Title, &desc, &amount, &r.DueDate,
		&r.RepeatType, &r.IsCompleted, scanTime(&r.CreatedAt))
	if err != nil {
		return core.Reminder{}, err
	}
	r.AccountID, r.Description = stringPtr(account), stringPtr(desc)
	if amount.Valid {
		r.Amount = &amount.Decimal
	}
	return r, nil
}

func (s *Store) ListReminders(ctx context.Context) ([]core.Reminder, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, `SELECT `+reminderColumns+` FROM reminders
		WHERE user_id = ? ORDER BY due_date ASC`, owner)
	if err != nil {
		return nil, unavailable("list reminders", err)
	}
	return collect(rows, "list reminders", scanReminder)
}

func (s *Store) CreateReminder(ctx context.Context, r core.Reminder) (core.Reminder, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return core.Reminder{}, err
	}
	r = r.WithDefaults()
	if err := r.Validate(); err != nil {
		return core.Reminder{}, err
	}
	r.ID, r.UserID, r.CreatedAt = newID("rem"), owner, s.now().UTC()
	_, err = s.exec(ctx, `INSERT INTO reminders (`+reminderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, nullable(r.AccountID), r.Title, nullable(r.Description), nullable(r.Amount),
		r.DueDate, string(r.RepeatType), r.IsCompleted, s.dialect.timeArg(r.CreatedAt))
	if err != nil {
		return core.Reminder{}, unavailable("create reminder", err)
	}
	return r, nil
}

func (s *Store) UpdateReminder(ctx context.Context, id string, p core.ReminderPatch) (core.Reminder, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return core.Reminder{}, err
	}
	var out core.Reminder
	err = s.inTx(ctx, "update reminder", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, s.dialect.Rebind(`SELECT `+reminderColumns+` FROM reminders
			WHERE id = ? AND user_id = ?`+s.dialect.forUpdate()), id, owner)
		prev, err := scanReminder(row)
		if errors.Is(err, sql.ErrNoRows) {
			return core.NotFound("reminder", id)
		}
		if err != nil {
			return unavailable("get reminder", err)
		}
		next := p.Apply(prev)
		if err := next.Validate(); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, s.dialect.Rebind(`UPDATE reminders SET account_id = ?, title = ?,
			description = ?, amount = ?, due_date = ?, repeat_type = ?, is_completed = ?
			WHERE id = ? AND user_id = ?`),
			nullable(next.AccountID), next.Title, nullable(next.Description), nullable(next.Amount),
			next.DueDate, string(next.RepeatType), next.IsCompleted, id, owner)
		if err != nil {
			return unavailable("update reminder", err)
		}
		out = next
		return affected(res, "update reminder", "reminder", id)
	})
	return out, err
}

func (s *Store) DeleteReminder(ctx context.Context, id string) error {
	owner, err := s.owner(ctx)
	if err != nil {
		return err
	}
	res, err := s.exec(ctx, `DELETE FROM reminders WHERE id = ? AND user_id = ?`, id, owner)
	if err != nil {
		return unavailable("delete reminder", err)
	}
	return affected(res, "delete reminder", "reminder", id)
}
