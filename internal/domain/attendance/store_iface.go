package attendance

import "context"

type StoreAPI interface {
	GetEmployee(ctx context.Context, employeeID string) (Employee, error)
	Count(ctx context.Context, filter Filter) (int, error)
	List(ctx context.Context, filter Filter, limit, offset int) ([]Record, error)
	Get(ctx context.Context, attendanceID string) (Record, error)
	Exists(ctx context.Context, employeeID, date string) (bool, error)
	Create(ctx context.Context, rec Record) (Record, error)
	UpdateCheckOut(ctx context.Context, rec Record) (Record, error)
	Delete(ctx context.Context, attendanceID string) error
}
