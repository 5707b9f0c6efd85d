package payroll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"hrpayroll/internal/platform/querier"
)

type Store struct {
	DB querier.Pool
}

func NewStore(db querier.Pool) *Store {
	return &Store{DB: db}
}

const employeePayColumns = `
    e.id,
    e.first_name || ' ' || e.last_name,
    COALESCE(e.department_id::text, ''),
    COALESCE(d.name, ''),
    e.basic_salary,
    e.currency,
    e.allowance_ids,
    e.deduction_ids,
    e.is_active,
    e.is_deleted
  FROM employees e
  LEFT JOIN departments d ON e.department_id = d.id`

func scanEmployeePay(row pgx.Row) (EmployeePay, error) {
	var emp EmployeePay
	err := row.Scan(
		&emp.ID, &emp.FullName, &emp.DepartmentID, &emp.DepartmentName,
		&emp.BasicSalary, &emp.Currency, &emp.AllowanceIDs, &emp.DeductionIDs,
		&emp.IsActive, &emp.IsDeleted,
	)
	return emp, err
}

func (s *Store) GetPayableEmployee(ctx context.Context, employeeID string) (EmployeePay, error) {
	emp, err := scanEmployeePay(s.DB.QueryRow(ctx, "SELECT"+employeePayColumns+" WHERE e.id::text = $1", employeeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return EmployeePay{}, fmt.Errorf("%w: %s", ErrEmployeeNotFound, employeeID)
	}
	return emp, err
}

func (s *Store) ListPayableEmployees(ctx context.Context) ([]EmployeePay, error) {
	rows, err := s.DB.Query(ctx, "SELECT"+employeePayColumns+`
  WHERE e.is_active = true AND e.is_deleted = false
  ORDER BY e.last_name, e.first_name, e.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EmployeePay
	for rows.Next() {
		emp, err := scanEmployeePay(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}

// InsertPayrolls stores every record in one transaction and returns them with
// their generated ids and timestamps.
func (s *Store) InsertPayrolls(ctx context.Context, records []Payroll) ([]Payroll, error) {
	out := make([]Payroll, len(records))
	err := pgx.BeginFunc(ctx, s.DB, func(tx pgx.Tx) error {
		for i, record := range records {
			allowanceJSON, err := json.Marshal(record.Allowance)
			if err != nil {
				return err
			}
			deductionJSON, err := json.Marshal(record.Deduction)
			if err != nil {
				return err
			}
			warningsJSON, err := json.Marshal(record.Warnings)
			if err != nil {
				return err
			}
			if err := tx.QueryRow(ctx, `
        INSERT INTO payrolls (employee_id, basic_salary, currency, allowance, deduction, gross, net, payment_date, warnings)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at
      `, record.Employee.ID, record.BasicSalary, record.Currency, allowanceJSON, deductionJSON,
				record.Gross, record.Net, record.PaymentDate, warningsJSON).Scan(&record.ID, &record.CreatedAt); err != nil {
				return fmt.Errorf("insert payroll for employee %s: %w", record.Employee.ID, err)
			}
			out[i] = record
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

const payrollColumns = `
    p.id,
    p.employee_id,
    e.first_name || ' ' || e.last_name,
    COALESCE(e.department_id::text, ''),
    COALESCE(d.name, ''),
    p.basic_salary,
    p.currency,
    p.allowance,
    p.deduction,
    p.gross,
    p.net,
    p.payment_date,
    p.warnings,
    p.created_at
  FROM payrolls p
  JOIN employees e ON p.employee_id = e.id
  LEFT JOIN departments d ON e.department_id = d.id`

func scanPayroll(row pgx.Row) (Payroll, error) {
	var record Payroll
	var allowanceJSON, deductionJSON, warningsJSON []byte
	if err := row.Scan(
		&record.ID, &record.Employee.ID, &record.Employee.FullName,
		&record.Employee.DepartmentID, &record.Employee.DepartmentName,
		&record.BasicSalary, &record.Currency, &allowanceJSON, &deductionJSON,
		&record.Gross, &record.Net, &record.PaymentDate, &warningsJSON, &record.CreatedAt,
	); err != nil {
		return Payroll{}, err
	}
	if err := json.Unmarshal(allowanceJSON, &record.Allowance); err != nil {
		return Payroll{}, fmt.Errorf("decode allowance breakdown: %w", err)
	}
	if err := json.Unmarshal(deductionJSON, &record.Deduction); err != nil {
		return Payroll{}, fmt.Errorf("decode deduction breakdown: %w", err)
	}
	if len(warningsJSON) > 0 {
		if err := json.Unmarshal(warningsJSON, &record.Warnings); err != nil {
			return Payroll{}, fmt.Errorf("decode payroll warnings: %w", err)
		}
	}
	return record, nil
}

func (s *Store) CountPayrolls(ctx context.Context, employeeID string) (int, error) {
	query := "SELECT COUNT(1) FROM payrolls"
	var args []any
	if employeeID != "" {
		query += " WHERE employee_id::text = $1"
		args = append(args, employeeID)
	}
	var total int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ListPayrolls(ctx context.Context, employeeID string, limit, offset int) ([]Payroll, error) {
	query := "SELECT" + payrollColumns
	var args []any
	if employeeID != "" {
		query += " WHERE p.employee_id::text = $1"
		args = append(args, employeeID)
	}
	query += " ORDER BY p.payment_date DESC, p.created_at DESC"
	args = append(args, limit, offset)
	query += " LIMIT $" + itoa(len(args)-1) + " OFFSET $" + itoa(len(args))

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payroll
	for rows.Next() {
		record, err := scanPayroll(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func (s *Store) GetPayroll(ctx context.Context, payrollID, employeeID string) (Payroll, error) {
	query := "SELECT" + payrollColumns + " WHERE p.id::text = $1"
	args := []any{payrollID}
	if employeeID != "" {
		query += " AND p.employee_id::text = $2"
		args = append(args, employeeID)
	}
	record, err := scanPayroll(s.DB.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Payroll{}, ErrPayrollNotFound
	}
	return record, err
}

func (s *Store) PayslipData(ctx context.Context, payrollID string) (PayslipData, error) {
	record, err := s.GetPayroll(ctx, payrollID, "")
	if err != nil {
		return PayslipData{}, err
	}
	data := PayslipData{Payroll: record}
	if err := s.DB.QueryRow(ctx, "SELECT email FROM employees WHERE id::text = $1", record.Employee.ID).Scan(&data.Email); err != nil {
		return PayslipData{}, err
	}
	return data, nil
}

func itoa(value int) string {
	return strconv.Itoa(value)
}
