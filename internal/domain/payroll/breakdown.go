package payroll

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// BreakdownItem is an applied allowance or Other deduction rendered for
// transport.
type BreakdownItem struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Kind         string  `json:"kind"`
	Percentage   float64 `json:"percentage"`
	Amount       float64 `json:"amount"`
	Description  string  `json:"description"`
	IsActive     bool    `json:"isActive"`
	Contribution float64 `json:"contribution"`
}

func itemFromRule(rule Rule, contribution decimal.Decimal) BreakdownItem {
	return BreakdownItem{
		ID:           rule.ID,
		Name:         rule.Name,
		Kind:         string(rule.Kind),
		Percentage:   rule.Percentage.InexactFloat64(),
		Amount:       rule.Amount.InexactFloat64(),
		Description:  rule.Description,
		IsActive:     rule.IsActive,
		Contribution: contribution.InexactFloat64(),
	}
}

type TaxItem struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	MinSalary float64  `json:"minSalary"`
	MaxSalary *float64 `json:"maxSalary"`
	Rate      float64  `json:"rate"`
	Deduction float64  `json:"deduction"`
}

func taxItemFromRule(rule TaxRule) *TaxItem {
	minSalary, _ := rule.MinSalary.Decimal()
	item := &TaxItem{
		ID:        rule.ID,
		Name:      rule.Name,
		MinSalary: minSalary.InexactFloat64(),
		Rate:      rule.Rate.InexactFloat64(),
		Deduction: rule.Deduction.InexactFloat64(),
	}
	if !rule.MaxSalary.Unlimited() {
		maxSalary, _ := rule.MaxSalary.Decimal()
		value := maxSalary.InexactFloat64()
		item.MaxSalary = &value
	}
	return item
}

type PensionItem struct {
	ID         string  `json:"id"`
	Percentage float64 `json:"percentage"`
}

type AllowanceBreakdown struct {
	Items []BreakdownItem `json:"items"`
	Total float64         `json:"total"`

	Sum decimal.Decimal `json:"-"`
}

func (a *AllowanceBreakdown) UnmarshalJSON(data []byte) error {
	type plain AllowanceBreakdown
	var view plain
	if err := json.Unmarshal(data, &view); err != nil {
		return err
	}
	*a = AllowanceBreakdown(view)
	a.Sum = decimal.NewFromFloat(a.Total)
	return nil
}

// DeductionBreakdown renders an unmatched tax bracket or an empty pension
// list as {} rather than null.
type DeductionBreakdown struct {
	Tax           *TaxItem
	Pension       *PensionItem
	Other         []BreakdownItem
	TaxAmount     float64
	PensionAmount float64
	OtherAmount   float64
	Total         float64

	Sum decimal.Decimal
}

type deductionView struct {
	Tax           json.RawMessage `json:"tax"`
	Pension       json.RawMessage `json:"pension"`
	Other         []BreakdownItem `json:"other"`
	TaxAmount     float64         `json:"taxAmount"`
	PensionAmount float64         `json:"pensionAmount"`
	OtherAmount   float64         `json:"otherAmount"`
	Total         float64         `json:"total"`
}

var emptyRecord = json.RawMessage("{}")

func (d DeductionBreakdown) MarshalJSON() ([]byte, error) {
	view := deductionView{
		Tax:           emptyRecord,
		Pension:       emptyRecord,
		Other:         d.Other,
		TaxAmount:     d.TaxAmount,
		PensionAmount: d.PensionAmount,
		OtherAmount:   d.OtherAmount,
		Total:         d.Total,
	}
	if view.Other == nil {
		view.Other = []BreakdownItem{}
	}
	if d.Tax != nil {
		raw, err := json.Marshal(d.Tax)
		if err != nil {
			return nil, err
		}
		view.Tax = raw
	}
	if d.Pension != nil {
		raw, err := json.Marshal(d.Pension)
		if err != nil {
			return nil, err
		}
		view.Pension = raw
	}
	return json.Marshal(view)
}

func (d *DeductionBreakdown) UnmarshalJSON(data []byte) error {
	var view deductionView
	if err := json.Unmarshal(data, &view); err != nil {
		return err
	}
	*d = DeductionBreakdown{
		Other:         view.Other,
		TaxAmount:     view.TaxAmount,
		PensionAmount: view.PensionAmount,
		OtherAmount:   view.OtherAmount,
		Total:         view.Total,
		Sum:           decimal.NewFromFloat(view.Total),
	}
	if !isEmptyRecord(view.Tax) {
		d.Tax = &TaxItem{}
		if err := json.Unmarshal(view.Tax, d.Tax); err != nil {
			return err
		}
	}
	if !isEmptyRecord(view.Pension) {
		d.Pension = &PensionItem{}
		if err := json.Unmarshal(view.Pension, d.Pension); err != nil {
			return err
		}
	}
	return nil
}

func isEmptyRecord(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(bytes.Join(bytes.Fields(trimmed), nil), []byte("{}"))
}

// Breakdown is the calculator output embedded into a payroll record.
type Breakdown struct {
	Allowance AllowanceBreakdown `json:"allowance"`
	Deduction DeductionBreakdown `json:"deduction"`

	// MalformedTaxRules holds ids of tax brackets skipped because a salary
	// bound did not parse.
	MalformedTaxRules []string `json:"-"`
}

// Gross is basic salary plus allowances.
func (b Breakdown) Gross(salary decimal.Decimal) decimal.Decimal {
	return salary.Add(b.Allowance.Sum)
}

// Net is gross minus all deductions.
func (b Breakdown) Net(salary decimal.Decimal) decimal.Decimal {
	return b.Gross(salary).Sub(b.Deduction.Sum)
}
