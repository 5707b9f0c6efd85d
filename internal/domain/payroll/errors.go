package payroll

import "errors"

var (
	// ErrConfigurationMissing reports a mandatory deduction category (Tax or
	// Pension) that was never seeded. It aborts the computation.
	ErrConfigurationMissing = errors.New("payroll configuration missing")
	ErrCategoryNotFound     = errors.New("deduction category not found")
	ErrUnknownCategory      = errors.New("unknown deduction category")
	ErrPayrollNotFound      = errors.New("payroll not found")
	ErrEmployeeNotFound     = errors.New("employee not found")
	ErrEmployeeNotPayable   = errors.New("employee not eligible for payroll")
	ErrInvalidPaymentDate   = errors.New("invalid payment date")
	ErrPayslipsDisabled     = errors.New("payslip rendering is not configured")
	ErrEmailDisabled        = errors.New("payslip email delivery is not configured")
	ErrNoRecipient          = errors.New("employee has no email address")
)
