package relational

import (
	"context"
	"database/sql"
	"errors"

	"finboard/internal/core"
)

const categoryColumns = `id, user_id, name, type, color, icon, is_system, created_at`

func scanCategory(row scanner) (core.Category, error) {
	var c core.Category
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Type, &c.Color, &c.Icon, &c.IsDefault, scanTime(&c.CreatedAt))
	return c, err
}

// ListCategories returns the owner's categories plus the shared system set,
// ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]core.Category, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, `SELECT `+categoryColumns+` FROM categories
		WHERE user_id = ? OR user_id = ? ORDER BY name ASC`, owner, systemOwner)
	if err != nil {
		return nil, unavailable("list categories", err)
	}
	return collect(rows, "list categories", scanCategory)
}

func (s *Store) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return core.Category{}, err
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	c.ID, c.UserID, c.CreatedAt = newID("cat"), owner, s.now().UTC()
	_, err = s.exec(ctx, `INSERT INTO categories (`+categoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, string(c.Type), c.Color, c.Icon, c.IsDefault, s.dialect.timeArg(c.CreatedAt))
	if err != nil {
		return core.Category{}, unavailable("create category", err)
	}
	return c, nil
}

// UpdateCategory only touches the owner's own categories; system categories
// report NotFound.
func (s *Store) UpdateCategory(ctx context.Context, id string, p core.CategoryPatch) (core.Category, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return core.Category{}, err
	}
	var out core.Category
	err = s.inTx(ctx, "update category", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, s.dialect.Rebind(`SELECT `+categoryColumns+` FROM categories
			WHERE id = ? AND user_id = ?`+s.dialect.forUpdate()), id, owner)
		prev, err := scanCategory(row)
		if errors.Is(err, sql.ErrNoRows) {
			return core.NotFound("category", id)
		}
		if err != nil {
			return unavailable("get category", err)
		}
		next := p.Apply(prev)
		if err := next.Validate(); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, s.dialect.Rebind(`UPDATE categories SET name = ?, type = ?, color = ?, icon = ?
			WHERE id = ? AND user_id = ?`), next.Name, string(next.Type), next.Color, next.Icon, id, owner)
		if err != nil {
			return unavailable("update category", err)
		}
		out = next
		return affected(res, "update category", "category", id)
	})
	return out, err
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	owner, err := s.owner(ctx)
	if err != nil {
		return err
	}
	res, err := s.exec(ctx, `DELETE FROM categories WHERE id = ? AND user_id = ?`, id, owner)
	if err != nil {
		return unavailable("delete category", err)
	}
	return affected(res, "delete category", "category", id)
}
