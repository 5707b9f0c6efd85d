package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hrpayroll/internal/domain/payroll"
)

type taxInput struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	MinSalary *payroll.Bound   `json:"minSalary"`
	MaxSalary payroll.Bound    `json:"maxSalary"`
	Rate      *decimal.Decimal `json:"rate"`
	Deduction *decimal.Decimal `json:"deduction"`
}

type pensionInput struct {
	ID         string           `json:"id"`
	Percentage *decimal.Decimal `json:"percentage"`
}

type otherInput struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Kind        string           `json:"kind"`
	Percentage  *decimal.Decimal `json:"percentage"`
	Amount      *decimal.Decimal `json:"amount"`
	Description string           `json:"description"`
	IsActive    *bool            `json:"isActive"`
}

func decodeStrict(raw json.RawMessage, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func splitItems(data json.RawMessage) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("data must be a list of rules: %w", err)
	}
	return items, nil
}

func decodeTaxRule(raw json.RawMessage, field string, list *issues) (payroll.TaxRule, bool) {
	var in taxInput
	if err := decodeStrict(raw, &in); err != nil {
		list.add(field, "must be a valid tax rule: "+err.Error())
		return payroll.TaxRule{}, false
	}
	before := len(*list)
	if strings.TrimSpace(in.Name) == "" {
		list.add(field+".name", "is required")
	}

	minSalary := decimal.Zero
	if in.MinSalary == nil {
		list.add(field+".minSalary", "is required")
	} else if value, err := in.MinSalary.Decimal(); err != nil {
		list.add(field+".minSalary", "must be a number")
	} else if value.IsNegative() {
		list.add(field+".minSalary", "must be >= 0")
	} else {
		minSalary = value
	}

	if !in.MaxSalary.Unlimited() {
		value, err := in.MaxSalary.Decimal()
		switch {
		case err != nil:
			list.add(field+".maxSalary", "must be a number or 'unlimited'")
		case !value.IsPositive():
			list.add(field+".maxSalary", "must be > 0")
		case value.LessThan(minSalary):
			list.add(field+".maxSalary", "must be >= minSalary")
		}
	}

	requireNonNegative(list, field+".rate", in.Rate)
	requireNonNegative(list, field+".deduction", in.Deduction)
	if len(*list) > before {
		return payroll.TaxRule{}, false
	}

	rule := payroll.TaxRule{
		ID:        in.ID,
		Name:      strings.TrimSpace(in.Name),
		MinSalary: payroll.BoundOf(minSalary),
		Rate:      *in.Rate,
		Deduction: *in.Deduction,
	}
	if in.MaxSalary.Unlimited() {
		rule.MaxSalary = payroll.UnlimitedSentinel
	} else {
		maxSalary, _ := in.MaxSalary.Decimal()
		rule.MaxSalary = payroll.BoundOf(maxSalary)
	}
	return rule, true
}

func decodePensionRule(raw json.RawMessage, field string, list *issues) (payroll.PensionRule, bool) {
	var in pensionInput
	if err := decodeStrict(raw, &in); err != nil {
		list.add(field, "must be a valid pension rule: "+err.Error())
		return payroll.PensionRule{}, false
	}
	if in.Percentage == nil || !in.Percentage.IsPositive() {
		list.add(field+".percentage", "must be greater than 0")
		return payroll.PensionRule{}, false
	}
	return payroll.PensionRule{ID: in.ID, Percentage: *in.Percentage}, true
}

func decodeOtherRule(raw json.RawMessage, field string, list *issues) (payroll.OtherRule, bool) {
	var in otherInput
	if err := decodeStrict(raw, &in); err != nil {
		list.add(field, "must be a valid deduction rule: "+err.Error())
		return payroll.OtherRule{}, false
	}
	before := len(*list)
	if strings.TrimSpace(in.Name) == "" {
		list.add(field+".name", "is required")
	}
	kind := payroll.Kind(strings.ToLower(strings.TrimSpace(in.Kind)))
	percentage, amount := decimal.Zero, decimal.Zero
	if in.Percentage != nil {
		percentage = *in.Percentage
	}
	if in.Amount != nil {
		amount = *in.Amount
	}
	validateKind(list, field, kind, percentage, amount)
	if strings.TrimSpace(in.Description) == "" {
		list.add(field+".description", "is required")
	}
	if len(*list) > before {
		return payroll.OtherRule{}, false
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	return payroll.OtherRule{
		ID:          in.ID,
		Name:        strings.TrimSpace(in.Name),
		Kind:        kind,
		Percentage:  percentage,
		Amount:      amount,
		Description: strings.TrimSpace(in.Description),
		IsActive:    active,
	}, true
}

func validateKind(list *issues, field string, kind payroll.Kind, percentage, amount decimal.Decimal) {
	prefix := ""
	if field != "" {
		prefix = field + "."
	}
	switch kind {
	case payroll.KindPercentage:
		if !percentage.IsPositive() {
			list.add(prefix+"percentage", "must be greater than 0")
		}
	case payroll.KindFixed:
		if !amount.IsPositive() {
			list.add(prefix+"amount", "must be greater than 0")
		}
	default:
		list.add(prefix+"kind", "must be either percentage or fixed")
	}
}

func requireNonNegative(list *issues, field string, value *decimal.Decimal) {
	switch {
	case value == nil:
		list.add(field, "is required")
	case value.IsNegative():
		list.add(field, "must be >= 0")
	}
}

func ensureID(id string) string {
	if strings.TrimSpace(id) == "" {
		return uuid.NewString()
	}
	return id
}

// mergeRule overlays patch onto the JSON form of existing, the way a partial
// update of one catalog entry works.
func mergeRule(existing any, patch json.RawMessage) (json.RawMessage, error) {
	base, err := json.Marshal(existing)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	overlay := map[string]json.RawMessage{}
	if err := json.Unmarshal(patch, &overlay); err != nil {
		return nil, fmt.Errorf("rule update must be an object: %w", err)
	}
	for key, value := range overlay {
		fields[key] = value
	}
	return json.Marshal(fields)
}
