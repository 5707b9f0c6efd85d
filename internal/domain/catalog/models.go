package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"hrpayroll/internal/domain/payroll"
)

type Allowance struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Kind        payroll.Kind    `json:"kind"`
	Percentage  decimal.Decimal `json:"percentage"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	IsActive    bool            `json:"isActive"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (a Allowance) Rule() payroll.AllowanceRule {
	return payroll.AllowanceRule{
		ID:          a.ID,
		Name:        a.Name,
		Kind:        a.Kind,
		Percentage:  a.Percentage,
		Amount:      a.Amount,
		Description: a.Description,
		IsActive:    a.IsActive,
	}
}

type AllowanceInput struct {
	Name        string          `json:"name"`
	Kind        string          `json:"kind"`
	Percentage  decimal.Decimal `json:"percentage"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	IsActive    *bool           `json:"isActive"`
}

// Issue is one field-level validation failure.
type Issue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}
