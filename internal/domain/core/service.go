package core

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type EmployeeInput struct {
	EmployeeCode   string           `json:"employeeCode"`
	FirstName      string           `json:"firstName"`
	LastName       string           `json:"lastName"`
	Email          string           `json:"email"`
	Phone          string           `json:"phone"`
	JobTitle       string           `json:"jobTitle"`
	EmploymentType string           `json:"employmentType"`
	DepartmentID   string           `json:"departmentId"`
	HireDate       string           `json:"hireDate"`
	BasicSalary    *decimal.Decimal `json:"basicSalary"`
	Currency       string           `json:"currency"`
	AllowanceIDs   []string         `json:"allowanceIds"`
	DeductionIDs   []string         `json:"deductionIds"`
	IsActive       *bool            `json:"isActive"`
}

type DepartmentInput struct {
	Name      string `json:"name"`
	ManagerID string `json:"managerId"`
}

// FieldError reports invalid input on a single field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

type Service struct {
	store StoreAPI
	refs  References
}

func NewService(store StoreAPI, refs References) *Service {
	return &Service{store: store, refs: refs}
}

func (s *Service) ListEmployees(ctx context.Context, activeOnly bool, limit, offset int) ([]Employee, int, error) {
	total, err := s.store.CountEmployees(ctx, activeOnly)
	if err != nil {
		return nil, 0, err
	}
	employees, err := s.store.ListEmployees(ctx, activeOnly, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return employees, total, nil
}

func (s *Service) GetEmployee(ctx context.Context, employeeID string) (Employee, error) {
	return s.store.GetEmployee(ctx, employeeID)
}

func (s *Service) CreateEmployee(ctx context.Context, input EmployeeInput) (Employee, error) {
	emp, err := s.buildEmployee(ctx, "", input)
	if err != nil {
		return Employee{}, err
	}
	return s.store.CreateEmployee(ctx, emp)
}

func (s *Service) UpdateEmployee(ctx context.Context, employeeID string, input EmployeeInput) (Employee, error) {
	if _, err := s.store.GetEmployee(ctx, employeeID); err != nil {
		return Employee{}, err
	}
	emp, err := s.buildEmployee(ctx, employeeID, input)
	if err != nil {
		return Employee{}, err
	}
	emp.ID = employeeID
	return s.store.UpdateEmployee(ctx, emp)
}

func (s *Service) DeleteEmployee(ctx context.Context, employeeID string) error {
	return s.store.SoftDeleteEmployee(ctx, employeeID)
}

func (s *Service) ListDepartments(ctx context.Context, limit, offset int) ([]Department, int, error) {
	total, err := s.store.DepartmentCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	deps, err := s.store.ListDepartments(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return deps, total, nil
}

func (s *Service) CreateDepartment(ctx context.Context, input DepartmentInput) (Department, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Department{}, &FieldError{Field: "name", Reason: "is required"}
	}
	return s.store.CreateDepartment(ctx, Department{Name: name, ManagerID: strings.TrimSpace(input.ManagerID), IsActive: true})
}

// buildEmployee validates input and keeps only catalog ids that exist.
// Unknown ids are dropped here rather than rejected.
func (s *Service) buildEmployee(ctx context.Context, employeeID string, input EmployeeInput) (Employee, error) {
	emp := Employee{
		EmployeeCode:   strings.TrimSpace(input.EmployeeCode),
		FirstName:      strings.TrimSpace(input.FirstName),
		LastName:       strings.TrimSpace(input.LastName),
		Email:          strings.ToLower(strings.TrimSpace(input.Email)),
		Phone:          strings.TrimSpace(input.Phone),
		JobTitle:       strings.TrimSpace(input.JobTitle),
		EmploymentType: strings.ToLower(strings.TrimSpace(input.EmploymentType)),
		DepartmentID:   strings.TrimSpace(input.DepartmentID),
		Currency:       strings.ToUpper(strings.TrimSpace(input.Currency)),
		IsActive:       true,
	}
	if emp.FirstName == "" {
		return Employee{}, &FieldError{Field: "firstName", Reason: "is required"}
	}
	if emp.LastName == "" {
		return Employee{}, &FieldError{Field: "lastName", Reason: "is required"}
	}
	if _, err := mail.ParseAddress(emp.Email); err != nil {
		return Employee{}, &FieldError{Field: "email", Reason: "must be a valid email"}
	}
	if emp.EmploymentType == "" {
		emp.EmploymentType = "permanent"
	} else if !contains(EmploymentTypes, emp.EmploymentType) {
		return Employee{}, &FieldError{Field: "employmentType", Reason: "must be one of " + strings.Join(EmploymentTypes, ", ")}
	}
	if input.BasicSalary == nil {
		return Employee{}, &FieldError{Field: "basicSalary", Reason: "is required"}
	}
	if input.BasicSalary.IsNegative() {
		return Employee{}, &FieldError{Field: "basicSalary", Reason: "must be >= 0"}
	}
	emp.BasicSalary = *input.BasicSalary
	if emp.Currency == "" {
		emp.Currency = DefaultCurrency
	} else if len(emp.Currency) != 3 {
		return Employee{}, &FieldError{Field: "currency", Reason: "must be a 3-letter code"}
	}
	if strings.TrimSpace(input.HireDate) != "" {
		hired, err := time.Parse("2006-01-02", strings.TrimSpace(input.HireDate))
		if err != nil {
			return Employee{}, &FieldError{Field: "hireDate", Reason: "must be a valid date in YYYY-MM-DD format"}
		}
		emp.HireDate = &hired
	}
	if input.IsActive != nil {
		emp.IsActive = *input.IsActive
	}

	taken, err := s.store.EmailTaken(ctx, emp.Email, employeeID)
	if err != nil {
		return Employee{}, err
	}
	if taken {
		return Employee{}, ErrDuplicateEmail
	}
	if emp.DepartmentID != "" {
		ok, err := s.store.DepartmentExists(ctx, emp.DepartmentID)
		if err != nil {
			return Employee{}, err
		}
		if !ok {
			return Employee{}, fmt.Errorf("%w: %s", ErrDepartmentNotFound, emp.DepartmentID)
		}
	}

	emp.AllowanceIDs = dedupe(input.AllowanceIDs)
	emp.DeductionIDs = dedupe(input.DeductionIDs)
	if s.refs == nil {
		return emp, nil
	}
	if len(emp.AllowanceIDs) > 0 {
		if emp.AllowanceIDs, err = s.refs.KnownAllowanceIDs(ctx, emp.AllowanceIDs); err != nil {
			return Employee{}, fmt.Errorf("check allowance ids: %w", err)
		}
	}
	if len(emp.DeductionIDs) > 0 {
		if emp.DeductionIDs, err = s.refs.KnownDeductionIDs(ctx, emp.DeductionIDs); err != nil {
			return Employee{}, fmt.Errorf("check deduction ids: %w", err)
		}
	}
	return emp, nil
}

func dedupe(ids []string) []string {
	cleaned := make([]string, 0, len(ids))
	seen := map[string]bool{}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		cleaned = append(cleaned, id)
	}
	return cleaned
}

func contains(values []string, value string) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}
