package core

import (
	"time"

	"github.com/shopspring/decimal"
)

const DefaultCurrency = "ETB"

type Employee struct {
	ID             string          `json:"id"`
	EmployeeCode   string          `json:"employeeCode"`
	FirstName      string          `json:"firstName"`
	LastName       string          `json:"lastName"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	JobTitle       string          `json:"jobTitle"`
	EmploymentType string          `json:"employmentType"`
	DepartmentID   string          `json:"departmentId"`
	DepartmentName string          `json:"departmentName,omitempty"`
	HireDate       *time.Time      `json:"hireDate,omitempty"`
	BasicSalary    decimal.Decimal `json:"basicSalary"`
	Currency       string          `json:"currency"`
	AllowanceIDs   []string        `json:"allowanceIds"`
	DeductionIDs   []string        `json:"deductionIds"`
	IsActive       bool            `json:"isActive"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

type Department struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ManagerID string    `json:"managerId,omitempty"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// EmploymentTypes lists the accepted employment types.
var EmploymentTypes = []string{"permanent", "contract", "temporary", "intern", "freelance", "other"}
