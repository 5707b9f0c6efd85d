package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payroll is a persisted computation for one employee and payment date. It is
// never updated; regenerating creates a new record.
type Payroll struct {
	ID          string              `json:"id"`
	Employee    EmployeeRef         `json:"employee"`
	BasicSalary decimal.Decimal     `json:"basicSalary"`
	Currency    string              `json:"currency"`
	Allowance   AllowanceBreakdown  `json:"allowance"`
	Deduction   DeductionBreakdown  `json:"deduction"`
	Gross       decimal.Decimal     `json:"gross"`
	Net         decimal.Decimal     `json:"net"`
	PaymentDate time.Time           `json:"paymentDate"`
	Warnings    map[string][]string `json:"warnings,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
}

type EmployeeRef struct {
	ID             string `json:"id"`
	FullName       string `json:"fullName"`
	DepartmentID   string `json:"departmentId,omitempty"`
	DepartmentName string `json:"departmentName,omitempty"`
}

// EmployeePay is the slice of an employee record payroll needs.
type EmployeePay struct {
	EmployeeRef
	BasicSalary  decimal.Decimal
	Currency     string
	AllowanceIDs []string
	DeductionIDs []string
	IsActive     bool
	IsDeleted    bool
}

// Preview is a breakdown computed without persisting anything.
type Preview struct {
	BasicSalary decimal.Decimal     `json:"basicSalary"`
	Breakdown   Breakdown           `json:"breakdown"`
	Gross       decimal.Decimal     `json:"gross"`
	Net         decimal.Decimal     `json:"net"`
	Warnings    map[string][]string `json:"warnings,omitempty"`
}

type SkippedEmployee struct {
	EmployeeID string `json:"employeeId"`
	Reason     string `json:"reason"`
}

// RunResult summarises a payroll run over all active employees.
type RunResult struct {
	PaymentDate time.Time         `json:"paymentDate"`
	Payrolls    []Payroll         `json:"payrolls"`
	Skipped     []SkippedEmployee `json:"skipped"`
	TotalGross  decimal.Decimal   `json:"totalGross"`
	TotalNet    decimal.Decimal   `json:"totalNet"`
}

type PayslipData struct {
	Payroll Payroll
	Email   string
}

// Summary is what a payroll run records about itself in the job log.
func (r RunResult) Summary() any {
	return map[string]any{
		"paymentDate": r.PaymentDate.Format(dateLayout),
		"payrolls":    len(r.Payrolls),
		"skipped":     r.Skipped,
		"totalGross":  r.TotalGross,
		"totalNet":    r.TotalNet,
	}
}
