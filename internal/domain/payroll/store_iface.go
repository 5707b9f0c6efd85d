package payroll

import (
	"context"

	"hrpayroll/internal/platform/email"
)

type StoreAPI interface {
	GetPayableEmployee(ctx context.Context, employeeID string) (EmployeePay, error)
	ListPayableEmployees(ctx context.Context) ([]EmployeePay, error)
	InsertPayrolls(ctx context.Context, records []Payroll) ([]Payroll, error)
	CountPayrolls(ctx context.Context, employeeID string) (int, error)
	ListPayrolls(ctx context.Context, employeeID string, limit, offset int) ([]Payroll, error)
	GetPayroll(ctx context.Context, payrollID, employeeID string) (Payroll, error)
	PayslipData(ctx context.Context, payrollID string) (PayslipData, error)
}

// CatalogAPI is the read side of the allowance and deduction catalog.
// ListAllowancesByIDs returns only active, non-deleted allowances.
type CatalogAPI interface {
	CategoryReader
	ListAllowancesByIDs(ctx context.Context, ids []string) ([]AllowanceRule, error)
}

// Runner records a unit of background work, such as a payroll run.
type Runner interface {
	RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error)
}

type Mailer interface {
	Send(ctx context.Context, to, subject, body string, attachments ...email.Attachment) error
}
