package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"hrpayroll/internal/platform/querier"
)

type Store struct {
	DB querier.Pool
}

func NewStore(db querier.Pool) *Store {
	return &Store{DB: db}
}

const employeeColumns = `
    e.id,
    COALESCE(e.employee_code, ''),
    e.first_name, e.last_name, e.email,
    COALESCE(e.phone, ''),
    COALESCE(e.job_title, ''),
    COALESCE(e.employment_type, ''),
    COALESCE(e.department_id::text, ''),
    COALESCE(d.name, ''),
    e.hire_date,
    e.basic_salary,
    e.currency,
    e.allowance_ids,
    e.deduction_ids,
    e.is_active,
    e.created_at,
    e.updated_at
  FROM employees e
  LEFT JOIN departments d ON e.department_id = d.id`

func scanEmployee(row pgx.Row) (Employee, error) {
	var emp Employee
	err := row.Scan(
		&emp.ID, &emp.EmployeeCode, &emp.FirstName, &emp.LastName, &emp.Email, &emp.Phone,
		&emp.JobTitle, &emp.EmploymentType, &emp.DepartmentID, &emp.DepartmentName, &emp.HireDate,
		&emp.BasicSalary, &emp.Currency, &emp.AllowanceIDs, &emp.DeductionIDs, &emp.IsActive,
		&emp.CreatedAt, &emp.UpdatedAt,
	)
	return emp, err
}

func employeeFilter(activeOnly bool) string {
	if activeOnly {
		return " WHERE e.is_deleted = false AND e.is_active = true"
	}
	return " WHERE e.is_deleted = false"
}

func (s *Store) CountEmployees(ctx context.Context, activeOnly bool) (int, error) {
	var total int
	err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM employees e"+employeeFilter(activeOnly)).Scan(&total)
	return total, err
}

func (s *Store) ListEmployees(ctx context.Context, activeOnly bool, limit, offset int) ([]Employee, error) {
	rows, err := s.DB.Query(ctx, "SELECT"+employeeColumns+employeeFilter(activeOnly)+`
    ORDER BY e.last_name, e.first_name
    LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}

func (s *Store) GetEmployee(ctx context.Context, employeeID string) (Employee, error) {
	emp, err := scanEmployee(s.DB.QueryRow(ctx, "SELECT"+employeeColumns+" WHERE e.id::text = $1 AND e.is_deleted = false", employeeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrEmployeeNotFound
	}
	return emp, err
}

func (s *Store) EmailTaken(ctx context.Context, email, excludeID string) (bool, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM employees
    WHERE lower(email) = lower($1) AND id::text <> $2
  `, email, excludeID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) CreateEmployee(ctx context.Context, emp Employee) (Employee, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO employees (employee_code, first_name, last_name, email, phone, job_title, employment_type,
      department_id, hire_date, basic_salary, currency, allowance_ids, deduction_ids, is_active)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
    RETURNING id
  `,
		nullIfEmpty(emp.EmployeeCode), emp.FirstName, emp.LastName, emp.Email, nullIfEmpty(emp.Phone),
		nullIfEmpty(emp.JobTitle), nullIfEmpty(emp.EmploymentType), nullIfEmpty(emp.DepartmentID), emp.HireDate,
		emp.BasicSalary, emp.Currency, nonNil(emp.AllowanceIDs), nonNil(emp.DeductionIDs), emp.IsActive,
	).Scan(&id)
	if isUniqueViolation(err) {
		return Employee{}, ErrDuplicateEmail
	}
	if err != nil {
		return Employee{}, err
	}
	return s.GetEmployee(ctx, id)
}

func (s *Store) UpdateEmployee(ctx context.Context, emp Employee) (Employee, error) {
	cmd, err := s.DB.Exec(ctx, `
    UPDATE employees
    SET employee_code = $1,
        first_name = $2,
        last_name = $3,
        email = $4,
        phone = $5,
        job_title = $6,
        employment_type = $7,
        department_id = $8,
        hire_date = $9,
        basic_salary = $10,
        currency = $11,
        allowance_ids = $12,
        deduction_ids = $13,
        is_active = $14,
        updated_at = now()
    WHERE id::text = $15 AND is_deleted = false
  `,
		nullIfEmpty(emp.EmployeeCode), emp.FirstName, emp.LastName, emp.Email, nullIfEmpty(emp.Phone),
		nullIfEmpty(emp.JobTitle), nullIfEmpty(emp.EmploymentType), nullIfEmpty(emp.DepartmentID), emp.HireDate,
		emp.BasicSalary, emp.Currency, nonNil(emp.AllowanceIDs), nonNil(emp.DeductionIDs), emp.IsActive, emp.ID,
	)
	if isUniqueViolation(err) {
		return Employee{}, ErrDuplicateEmail
	}
	if err != nil {
		return Employee{}, err
	}
	if cmd.RowsAffected() == 0 {
		return Employee{}, ErrEmployeeNotFound
	}
	return s.GetEmployee(ctx, emp.ID)
}

func (s *Store) SoftDeleteEmployee(ctx context.Context, employeeID string) error {
	cmd, err := s.DB.Exec(ctx, `
    UPDATE employees
    SET is_deleted = true, is_active = false, deleted_at = now(), updated_at = now()
    WHERE id::text = $1 AND is_deleted = false
  `, employeeID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEmployeeNotFound
	}
	return nil
}

func (s *Store) DepartmentCount(ctx context.Context) (int, error) {
	var total int
	err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM departments WHERE is_deleted = false").Scan(&total)
	return total, err
}

func (s *Store) ListDepartments(ctx context.Context, limit, offset int) ([]Department, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, COALESCE(manager_id::text, ''), is_active, created_at
    FROM departments
    WHERE is_deleted = false
    ORDER BY name
    LIMIT $1 OFFSET $2
  `, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Department
	for rows.Next() {
		var dep Department
		if err := rows.Scan(&dep.ID, &dep.Name, &dep.ManagerID, &dep.IsActive, &dep.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, dep)
	}
	return out, rows.Err()
}

func (s *Store) DepartmentExists(ctx context.Context, departmentID string) (bool, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM departments
    WHERE id::text = $1 AND is_deleted = false
  `, departmentID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) CreateDepartment(ctx context.Context, dep Department) (Department, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO departments (name, manager_id, is_active)
    VALUES ($1,$2,$3)
    RETURNING id, created_at
  `, dep.Name, nullIfEmpty(dep.ManagerID), dep.IsActive).Scan(&dep.ID, &dep.CreatedAt)
	if err != nil {
		return Department{}, err
	}
	return dep, nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
