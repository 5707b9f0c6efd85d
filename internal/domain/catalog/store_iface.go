package catalog

import (
	"context"

	"hrpayroll/internal/domain/payroll"
)

type StoreAPI interface {
	ListAllowances(ctx context.Context, activeOnly bool) ([]Allowance, error)
	GetAllowance(ctx context.Context, id string) (Allowance, error)
	AllowanceNameTaken(ctx context.Context, name, excludeID string) (bool, error)
	InsertAllowance(ctx context.Context, allowance Allowance) (Allowance, error)
	UpdateAllowance(ctx context.Context, allowance Allowance) (Allowance, error)
	SoftDeleteAllowance(ctx context.Context, id string) error
	ListAllowancesByIDs(ctx context.Context, ids []string) ([]payroll.AllowanceRule, error)
	ExistingAllowanceIDs(ctx context.Context, ids []string) ([]string, error)

	ListCategories(ctx context.Context) ([]payroll.DeductionCategory, error)
	FetchCategory(ctx context.Context, category payroll.Category) (payroll.DeductionCategory, error)
	// UpdateCategory loads the container, applies fn and saves the result
	// atomically. Returning an error from fn aborts the update.
	UpdateCategory(ctx context.Context, category payroll.Category, fn func(*payroll.DeductionCategory) error) (payroll.DeductionCategory, error)
}
