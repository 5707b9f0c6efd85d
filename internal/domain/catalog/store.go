package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"hrpayroll/internal/domain/payroll"
	"hrpayroll/internal/platform/querier"
)

type Store struct {
	DB querier.Pool
}

func NewStore(db querier.Pool) *Store {
	return &Store{DB: db}
}

const allowanceColumns = `id, name, kind, percentage, amount, description, is_active, created_at, updated_at`

func scanAllowance(row pgx.Row) (Allowance, error) {
	var a Allowance
	err := row.Scan(&a.ID, &a.Name, &a.Kind, &a.Percentage, &a.Amount, &a.Description, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (s *Store) ListAllowances(ctx context.Context, activeOnly bool) ([]Allowance, error) {
	query := "SELECT " + allowanceColumns + " FROM allowances WHERE is_deleted = false"
	if activeOnly {
		query += " AND is_active = true"
	}
	query += " ORDER BY created_at DESC"
	rows, err := s.DB.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Allowance
	for rows.Next() {
		a, err := scanAllowance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GetAllowance(ctx context.Context, id string) (Allowance, error) {
	a, err := scanAllowance(s.DB.QueryRow(ctx, "SELECT "+allowanceColumns+" FROM allowances WHERE id::text = $1 AND is_deleted = false", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Allowance{}, ErrAllowanceNotFound
	}
	return a, err
}

func (s *Store) AllowanceNameTaken(ctx context.Context, name, excludeID string) (bool, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM allowances
    WHERE lower(name) = lower($1) AND is_deleted = false AND id::text <> $2
  `, name, excludeID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) InsertAllowance(ctx context.Context, a Allowance) (Allowance, error) {
	return scanAllowance(s.DB.QueryRow(ctx, `
    INSERT INTO allowances (name, kind, percentage, amount, description, is_active)
    VALUES ($1,$2,$3,$4,$5,$6)
    RETURNING `+allowanceColumns,
		a.Name, a.Kind, a.Percentage, a.Amount, a.Description, a.IsActive))
}

func (s *Store) UpdateAllowance(ctx context.Context, a Allowance) (Allowance, error) {
	updated, err := scanAllowance(s.DB.QueryRow(ctx, `
    UPDATE allowances
    SET name = $2, kind = $3, percentage = $4, amount = $5, description = $6, is_active = $7, updated_at = now()
    WHERE id::text = $1 AND is_deleted = false
    RETURNING `+allowanceColumns,
		a.ID, a.Name, a.Kind, a.Percentage, a.Amount, a.Description, a.IsActive))
	if errors.Is(err, pgx.ErrNoRows) {
		return Allowance{}, ErrAllowanceNotFound
	}
	return updated, err
}

func (s *Store) SoftDeleteAllowance(ctx context.Context, id string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE allowances
    SET is_deleted = true, deleted_at = now(), updated_at = now()
    WHERE id::text = $1 AND is_deleted = false
  `, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAllowanceNotFound
	}
	return nil
}

func (s *Store) ListAllowancesByIDs(ctx context.Context, ids []string) ([]payroll.AllowanceRule, error) {
	rows, err := s.DB.Query(ctx, "SELECT "+allowanceColumns+`
    FROM allowances
    WHERE id::text = ANY($1) AND is_active = true AND is_deleted = false`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.AllowanceRule
	for rows.Next() {
		a, err := scanAllowance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a.Rule())
	}
	return out, rows.Err()
}

// ExistingAllowanceIDs returns the non-deleted allowance ids among ids.
func (s *Store) ExistingAllowanceIDs(ctx context.Context, ids []string) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id::text
    FROM allowances
    WHERE id::text = ANY($1) AND is_deleted = false
  `, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

const categoryColumns = `id, type, description, is_active, data, updated_at`

func scanCategory(row pgx.Row) (payroll.DeductionCategory, error) {
	var c payroll.DeductionCategory
	var data []byte
	if err := row.Scan(&c.ID, &c.Type, &c.Description, &c.IsActive, &data, &c.UpdatedAt); err != nil {
		return payroll.DeductionCategory{}, err
	}
	c.Data = data
	return c, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]payroll.DeductionCategory, error) {
	rows, err := s.DB.Query(ctx, "SELECT "+categoryColumns+" FROM deduction_categories ORDER BY position")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.DeductionCategory
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) FetchCategory(ctx context.Context, category payroll.Category) (payroll.DeductionCategory, error) {
	c, err := scanCategory(s.DB.QueryRow(ctx, "SELECT "+categoryColumns+" FROM deduction_categories WHERE type = $1", string(category)))
	if errors.Is(err, pgx.ErrNoRows) {
		return payroll.DeductionCategory{}, fmt.Errorf("%w: %s", payroll.ErrCategoryNotFound, category)
	}
	return c, err
}

func (s *Store) UpdateCategory(ctx context.Context, category payroll.Category, fn func(*payroll.DeductionCategory) error) (payroll.DeductionCategory, error) {
	var out payroll.DeductionCategory
	err := pgx.BeginFunc(ctx, s.DB, func(tx pgx.Tx) error {
		c, err := scanCategory(tx.QueryRow(ctx, "SELECT "+categoryColumns+" FROM deduction_categories WHERE type = $1 FOR UPDATE", string(category)))
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", payroll.ErrCategoryNotFound, category)
		}
		if err != nil {
			return err
		}
		if err := fn(&c); err != nil {
			return err
		}
		out, err = scanCategory(tx.QueryRow(ctx, `
      UPDATE deduction_categories
      SET description = $2, is_active = $3, data = $4, updated_at = now()
      WHERE id = $1
      RETURNING `+categoryColumns,
			c.ID, c.Description, c.IsActive, []byte(c.Data)))
		return err
	})
	if err != nil {
		return payroll.DeductionCategory{}, err
	}
	return out, nil
}
