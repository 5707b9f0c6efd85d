package core

import "context"

type StoreAPI interface {
	CountEmployees(ctx context.Context, activeOnly bool) (int, error)
	ListEmployees(ctx context.Context, activeOnly bool, limit, offset int) ([]Employee, error)
	GetEmployee(ctx context.Context, employeeID string) (Employee, error)
	EmailTaken(ctx context.Context, email, excludeID string) (bool, error)
	CreateEmployee(ctx context.Context, emp Employee) (Employee, error)
	UpdateEmployee(ctx context.Context, emp Employee) (Employee, error)
	SoftDeleteEmployee(ctx context.Context, employeeID string) error

	ListDepartments(ctx context.Context, limit, offset int) ([]Department, error)
	DepartmentCount(ctx context.Context) (int, error)
	DepartmentExists(ctx context.Context, departmentID string) (bool, error)
	CreateDepartment(ctx context.Context, dep Department) (Department, error)
}

// References checks catalog ids assigned to an employee. Both methods return
// the subset of ids that exist, in the order given.
type References interface {
	KnownAllowanceIDs(ctx context.Context, ids []string) ([]string, error)
	KnownDeductionIDs(ctx context.Context, ids []string) ([]string, error)
}
