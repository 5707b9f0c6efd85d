package payroll

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Category string

// ParseCategory maps a path or payload value onto one of the fixed categories.
func ParseCategory(value string) (Category, error) {
	for _, category := range Categories {
		if strings.EqualFold(strings.TrimSpace(value), string(category)) {
			return category, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, value)
}

type Kind string

func (k Kind) Valid() bool {
	return k == KindPercentage || k == KindFixed
}

// Rule is a named amount that is either fixed or a percentage of the basic
// salary. Allowances and Other deductions share this shape.
type Rule struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Kind        Kind            `json:"kind"`
	Percentage  decimal.Decimal `json:"percentage"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	IsActive    bool            `json:"isActive"`
}

type (
	AllowanceRule = Rule
	OtherRule     = Rule
)

func (r Rule) RuleID() string { return r.ID }

// Contribution returns the amount this rule adds for the given salary. Rules of
// an unknown kind contribute nothing.
func (r Rule) Contribution(salary decimal.Decimal) decimal.Decimal {
	switch r.Kind {
	case KindFixed:
		return r.Amount
	case KindPercentage:
		return percentOf(salary, r.Percentage)
	default:
		return decimal.Zero
	}
}

// Bound is a tax bracket limit exactly as authored in the catalog. It may be
// a number, a numeric string, the unlimited sentinel, or absent.
type Bound string

func BoundOf(value decimal.Decimal) Bound {
	return Bound(value.String())
}

// Unlimited reports whether the bound stands for +infinity.
func (b Bound) Unlimited() bool {
	value := strings.TrimSpace(string(b))
	return value == "" || strings.EqualFold(value, UnlimitedSentinel)
}

func (b Bound) Decimal() (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(string(b)))
}

func (b Bound) MarshalJSON() ([]byte, error) {
	if strings.TrimSpace(string(b)) == "" {
		return []byte("null"), nil
	}
	if value, err := b.Decimal(); err == nil {
		return []byte(value.String()), nil
	}
	return json.Marshal(string(b))
}

func (b *Bound) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*b = ""
	case len(data) > 0 && data[0] == '"':
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*b = Bound(value)
	default:
		// Numbers keep their literal text; anything else is kept verbatim and
		// fails to parse later, which skips the row.
		*b = Bound(data)
	}
	return nil
}

// TaxRule is one bracket of the progressive tax table.
type TaxRule struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	MinSalary Bound           `json:"minSalary"`
	MaxSalary Bound           `json:"maxSalary"`
	Rate      decimal.Decimal `json:"rate"`
	Deduction decimal.Decimal `json:"deduction"`
}

func (r TaxRule) RuleID() string { return r.ID }

// Contribution is salary*rate/100 minus the flat bracket offset.
func (r TaxRule) Contribution(salary decimal.Decimal) decimal.Decimal {
	return percentOf(salary, r.Rate).Sub(r.Deduction)
}

// matches reports whether salary falls inside [min, max]. Both bounds are
// parsed before comparing, so a bad row is rejected for every salary.
func (r TaxRule) matches(salary decimal.Decimal) (bool, error) {
	minSalary, err := r.MinSalary.Decimal()
	if err != nil {
		return false, fmt.Errorf("tax rule %q min salary: %w", r.ID, err)
	}
	if r.MaxSalary.Unlimited() {
		return salary.GreaterThanOrEqual(minSalary), nil
	}
	maxSalary, err := r.MaxSalary.Decimal()
	if err != nil {
		return false, fmt.Errorf("tax rule %q max salary: %w", r.ID, err)
	}
	return salary.GreaterThanOrEqual(minSalary) && salary.LessThanOrEqual(maxSalary), nil
}

type PensionRule struct {
	ID         string          `json:"id"`
	Percentage decimal.Decimal `json:"percentage"`
}

func (r PensionRule) RuleID() string { return r.ID }

func (r PensionRule) Contribution(salary decimal.Decimal) decimal.Decimal {
	return percentOf(salary, r.Percentage)
}

func percentOf(value, rate decimal.Decimal) decimal.Decimal {
	return value.Mul(rate).Div(hundred)
}
