package payroll

import "github.com/shopspring/decimal"

// Input is everything one computation needs. Rules are trusted as given:
// active filtering and id resolution happen before Compute is called.
type Input struct {
	BasicSalary decimal.Decimal
	Allowances  []AllowanceRule
	Tax         []TaxRule
	Pension     []PensionRule
	Other       []OtherRule
}

// Compute builds the allowance and deduction breakdown for one employee. It is
// pure: identical inputs always produce identical output.
func Compute(in Input) Breakdown {
	salary := in.BasicSalary
	var out Breakdown

	out.Allowance = computeAllowances(salary, in.Allowances)

	taxRule, taxAmount, malformed := MatchTax(in.Tax, salary)
	out.MalformedTaxRules = malformed
	deduction := DeductionBreakdown{Other: []BreakdownItem{}}
	total := decimal.Zero
	if taxRule != nil {
		deduction.Tax = taxItemFromRule(*taxRule)
		total = total.Add(taxAmount)
	}

	pensionAmount := decimal.Zero
	if len(in.Pension) > 0 {
		// Only the first pension policy applies.
		policy := in.Pension[0]
		deduction.Pension = &PensionItem{ID: policy.ID, Percentage: policy.Percentage.InexactFloat64()}
		pensionAmount = policy.Contribution(salary)
		total = total.Add(pensionAmount)
	}

	otherAmount := decimal.Zero
	for _, rule := range in.Other {
		contribution := rule.Contribution(salary)
		otherAmount = otherAmount.Add(contribution)
		deduction.Other = append(deduction.Other, itemFromRule(rule, contribution))
	}
	total = total.Add(otherAmount)

	deduction.TaxAmount = taxAmount.InexactFloat64()
	deduction.PensionAmount = pensionAmount.InexactFloat64()
	deduction.OtherAmount = otherAmount.InexactFloat64()
	deduction.Sum = total
	deduction.Total = total.InexactFloat64()
	out.Deduction = deduction
	return out
}

func computeAllowances(salary decimal.Decimal, rules []AllowanceRule) AllowanceBreakdown {
	out := AllowanceBreakdown{Items: make([]BreakdownItem, 0, len(rules)), Sum: decimal.Zero}
	for _, rule := range rules {
		contribution := rule.Contribution(salary)
		out.Sum = out.Sum.Add(contribution)
		out.Items = append(out.Items, itemFromRule(rule, contribution))
	}
	out.Total = out.Sum.InexactFloat64()
	return out
}

// MatchTax scans brackets in the order given and returns the first one whose
// [min, max] range holds salary, with its contribution. Every bracket is
// parsed, so an unparsable one is reported wherever it sits in the table. A
// nil rule means no bracket matched and the tax contribution is zero.
func MatchTax(rules []TaxRule, salary decimal.Decimal) (*TaxRule, decimal.Decimal, []string) {
	var malformed []string
	var matched *TaxRule
	for i := range rules {
		ok, err := rules[i].matches(salary)
		if err != nil {
			malformed = append(malformed, rules[i].ID)
			continue
		}
		if ok && matched == nil {
			rule := rules[i]
			matched = &rule
		}
	}
	if matched == nil {
		return nil, decimal.Zero, malformed
	}
	return matched, matched.Contribution(salary), malformed
}
