package payroll

const (
	CategoryTax     Category = "Tax"
	CategoryPension Category = "Pension"
	CategoryOther   Category = "Other"

	KindPercentage Kind = "percentage"
	KindFixed      Kind = "fixed"

	// UnlimitedSentinel marks a tax bracket without an upper bound.
	UnlimitedSentinel = "unlimited"

	WarningDroppedAllowance  = "dropped_allowance"
	WarningDroppedDeduction  = "dropped_deduction"
	WarningInactiveDeduction = "inactive_deduction"
	WarningMalformedTaxRule  = "malformed_tax_rule"
	WarningNegativeNet       = "negative_net"

	JobPayrollRun = "payroll_run"
)

// Categories lists the deduction containers in seeding order.
var Categories = []Category{CategoryTax, CategoryPension, CategoryOther}

var categoryDescriptions = map[Category]string{
	CategoryTax:     "Mandatory government income tax deducted from employee salaries in accordance with national tax regulations.",
	CategoryPension: "Employee contributions to the national or company-managed pension scheme.",
	CategoryOther:   "Any additional deductions not classified under tax or pension, such as loan repayments, insurance premiums, or voluntary contributions.",
}

// DefaultDescription returns the seeded description of a deduction category.
func DefaultDescription(category Category) string {
	return categoryDescriptions[category]
}
