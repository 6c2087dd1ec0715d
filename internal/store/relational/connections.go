package relational

import (
	"context"
	"database/sql"
	"errors"

	"finboard/internal/core"
)

const connectionColumns = `id, user_id, institution_name, connection_id, status,
	consent_expiry, last_sync, error_message, created_at, updated_at`

func scanConnection(row scanner) (core.Connection, error) {
	var (
		c       core.Connection
		message sql.NullString
	)
	err := row.Scan(&c.ID, &c.UserID, &c.InstitutionName, &c.ConnectionID, &c.Status,
		scanNullTime(&c.ConsentExpiry), scanNullTime(&c.LastSync), &message,
		scanTime(&c.CreatedAt), scanTime(&c.UpdatedAt))
	if err != nil {
		return core.Connection{}, err
	}
	c.ErrorMessage = stringPtr(message)
	return c, nil
}

func (s *Store) ListConnections(ctx context.Context) ([]core.Connection, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, `SELECT `+connectionColumns+` FROM open_finance_connections
		WHERE user_id = ? ORDER BY created_at DESC`, owner)
	if err != nil {
		return nil, unavailable("list connections", err)
	}
	return collect(rows, "list connections", scanConnection)
}

func (s *Store) CreateConnection(ctx context.Context, c core.Connection) (core.Connection, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return core.Connection{}, err
	}
	if err := c.Validate(); err != nil {
		return core.Connection{}, err
	}
	now := s.now().UTC()
	c.ID, c.UserID, c.CreatedAt, c.UpdatedAt = newID("conn"), owner, now, now
	_, err = s.exec(ctx, `INSERT INTO open_finance_connections (`+connectionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.InstitutionName, c.ConnectionID, string(c.Status),
		s.dialect.nullTimeArg(c.ConsentExpiry), s.dialect.nullTimeArg(c.LastSync), nullable(c.ErrorMessage),
		s.dialect.timeArg(c.CreatedAt), s.dialect.timeArg(c.UpdatedAt))
	if err != nil {
		return core.Connection{}, unavailable("create connection", err)
	}
	return c, nil
}

func (s *Store) UpdateConnection(ctx context.Context, id string, p core.ConnectionPatch) (core.Connection, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return core.Connection{}, err
	}
	var out core.Connection
	err = s.inTx(ctx, "update connection", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, s.dialect.Rebind(`SELECT `+connectionColumns+` FROM open_finance_connections
			WHERE id = ? AND user_id = ?`+s.dialect.forUpdate()), id, owner)
		prev, err := scanConnection(row)
		if errors.Is(err, sql.ErrNoRows) {
			return core.NotFound("connection", id)
		}
		if err != nil {
			return unavailable("get connection", err)
		}
		next := p.Apply(prev)
		if err := next.Validate(); err != nil {
			return err
		}
		next.UpdatedAt = s.now().UTC()
		res, err := tx.ExecContext(ctx, s.dialect.Rebind(`UPDATE open_finance_connections SET
			institution_name = ?, status = ?, consent_expiry = ?, last_sync = ?, error_message = ?, updated_at = ?
			WHERE id = ? AND user_id = ?`),
			next.InstitutionName, string(next.Status), s.dialect.nullTimeArg(next.ConsentExpiry),
			s.dialect.nullTimeArg(next.LastSync), nullable(next.ErrorMessage),
			s.dialect.timeArg(next.UpdatedAt), id, owner)
		if err != nil {
			return unavailable("update connection", err)
		}
		out = next
		return affected(res, "update connection", "connection", id)
	})
	return out, err
}

func (s *Store) DeleteConnection(ctx context.Context, id string) error {
	owner, err := s.owner(ctx)
	if err != nil {
		return err
	}
	res, err := s.exec(ctx, `DELETE FROM open_finance_connections WHERE id = ? AND user_id = ?`, id, owner)
	if err != nil {
		return unavailable("delete connection", err)
	}
	return affected(res, "delete connection", "connection", id)
}
