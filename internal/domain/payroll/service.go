package payroll

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"hrpayroll/internal/platform/email"
	"hrpayroll/internal/platform/metrics"
)

const (
	DefaultWorkers       = 4
	DefaultMaxPaymentAge = 365 * 24 * time.Hour

	dateLayout = "2006-01-02"
)

type Options struct {
	Workers       int
	MaxPaymentAge time.Duration
	Now           func() time.Time
	Mailer        Mailer
}

type Service struct {
	store    StoreAPI
	catalog  CatalogAPI
	resolver *Resolver
	runner   Runner
	metrics  *metrics.Collector
	payslips *PayslipWriter
	opts     Options
}

func NewService(store StoreAPI, catalog CatalogAPI, runner Runner, collector *metrics.Collector, payslips *PayslipWriter, opts Options) *Service {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.MaxPaymentAge <= 0 {
		opts.MaxPaymentAge = DefaultMaxPaymentAge
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:    store,
		catalog:  catalog,
		resolver: NewResolver(catalog),
		runner:   runner,
		metrics:  collector,
		payslips: payslips,
		opts:     opts,
	}
}

func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// Resolve looks up the rules of the named category. ids only filter Other.
func (s *Service) Resolve(ctx context.Context, raw string, ids []string) (Resolution, error) {
	category, err := ParseCategory(raw)
	if err != nil {
		return Resolution{}, err
	}
	return s.resolver.Resolve(ctx, category, uniqueIDs(ids))
}

// ValidatePaymentDate parses a YYYY-MM-DD payment date. The date may not lie
// in the future or further in the past than the configured maximum age.
func (s *Service) ValidatePaymentDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: payment date is required", ErrInvalidPaymentDate)
	}
	date, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: payment date must be in YYYY-MM-DD format", ErrInvalidPaymentDate)
	}
	now := s.opts.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if date.After(today) {
		return time.Time{}, fmt.Errorf("%w: payment date cannot be in the future", ErrInvalidPaymentDate)
	}
	if today.Sub(date) > s.opts.MaxPaymentAge {
		days := int(s.opts.MaxPaymentAge.Hours() / 24)
		return time.Time{}, fmt.Errorf("%w: payment date cannot be more than %d days in the past", ErrInvalidPaymentDate, days)
	}
	return date, nil
}

type PreviewInput struct {
	BasicSalary  decimal.Decimal
	AllowanceIDs []string
	DeductionIDs []string
}

// Preview computes a breakdown against the current catalog without storing it.
func (s *Service) Preview(ctx context.Context, input PreviewInput) (Preview, error) {
	snapshot, err := s.resolver.Snapshot(ctx)
	if err != nil {
		return Preview{}, err
	}
	allowances, err := s.lookupAllowances(ctx, input.AllowanceIDs)
	if err != nil {
		return Preview{}, err
	}
	breakdown, warnings := s.compute(snapshot, allowances, input.BasicSalary, input.AllowanceIDs, input.DeductionIDs)
	s.metrics.PayrollComputed("preview", 1)
	return Preview{
		BasicSalary: input.BasicSalary,
		Breakdown:   breakdown,
		Gross:       breakdown.Gross(input.BasicSalary),
		Net:         breakdown.Net(input.BasicSalary),
		Warnings:    warnings,
	}, nil
}

// CreateForEmployee computes and stores one payroll record.
func (s *Service) CreateForEmployee(ctx context.Context, employeeID, paymentDate string) (Payroll, error) {
	date, err := s.ValidatePaymentDate(paymentDate)
	if err != nil {
		return Payroll{}, err
	}
	employee, err := s.store.GetPayableEmployee(ctx, employeeID)
	if err != nil {
		return Payroll{}, err
	}
	if reason := payableReason(employee); reason != "" {
		return Payroll{}, fmt.Errorf("%w: %s", ErrEmployeeNotPayable, reason)
	}

	snapshot, err := s.resolver.Snapshot(ctx)
	if err != nil {
		return Payroll{}, err
	}
	allowances, err := s.lookupAllowances(ctx, employee.AllowanceIDs)
	if err != nil {
		return Payroll{}, err
	}

	record := s.build(ctx, snapshot, allowances, employee, date)
	stored, err := s.store.InsertPayrolls(ctx, []Payroll{record})
	if err != nil {
		return Payroll{}, err
	}
	s.metrics.PayrollComputed("single", 1)
	return stored[0], nil
}

// CreateForAll runs payroll for every active employee. The catalog is read
// once for the whole run and all records are stored together.
func (s *Service) CreateForAll(ctx context.Context, paymentDate string) (RunResult, error) {
	date, err := s.ValidatePaymentDate(paymentDate)
	if err != nil {
		return RunResult{}, err
	}

	started := s.opts.Now()
	run := func(ctx context.Context) (any, error) {
		return s.runAll(ctx, date)
	}
	var details any
	if s.runner != nil {
		details, err = s.runner.RunNow(ctx, JobPayrollRun, run)
	} else {
		details, err = run(ctx)
	}
	status := "completed"
	if err != nil {
		status = "failed"
	}
	s.metrics.ObserveRun(status, s.opts.Now().Sub(started))
	if err != nil {
		return RunResult{}, err
	}
	result, ok := details.(RunResult)
	if !ok {
		return RunResult{}, fmt.Errorf("unexpected payroll run result %T", details)
	}
	return result, nil
}

func (s *Service) runAll(ctx context.Context, date time.Time) (RunResult, error) {
	employees, err := s.store.ListPayableEmployees(ctx)
	if err != nil {
		return RunResult{}, err
	}
	snapshot, err := s.resolver.Snapshot(ctx)
	if err != nil {
		return RunResult{}, err
	}

	var wanted []string
	for _, employee := range employees {
		wanted = append(wanted, employee.AllowanceIDs...)
	}
	allowances, err := s.lookupAllowances(ctx, wanted)
	if err != nil {
		return RunResult{}, err
	}

	result := RunResult{PaymentDate: date, Payrolls: []Payroll{}, Skipped: []SkippedEmployee{}, TotalGross: decimal.Zero, TotalNet: decimal.Zero}
	records := make([]*Payroll, len(employees))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(s.opts.Workers)
	for i, employee := range employees {
		if reason := payableReason(employee); reason != "" {
			result.Skipped = append(result.Skipped, SkippedEmployee{EmployeeID: employee.ID, Reason: reason})
			continue
		}
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			record := s.build(gctx, snapshot, allowances, employee, date)
			records[i] = &record
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return RunResult{}, err
	}

	batch := make([]Payroll, 0, len(records))
	for _, record := range records {
		if record != nil {
			batch = append(batch, *record)
		}
	}
	if len(batch) > 0 {
		stored, err := s.store.InsertPayrolls(ctx, batch)
		if err != nil {
			return RunResult{}, err
		}
		result.Payrolls = stored
	}
	for _, record := range result.Payrolls {
		result.TotalGross = result.TotalGross.Add(record.Gross)
		result.TotalNet = result.TotalNet.Add(record.Net)
	}

	s.metrics.PayrollComputed("run", len(result.Payrolls))
	zerolog.Ctx(ctx).Info().
		Str("paymentDate", date.Format(dateLayout)).
		Int("employees", len(employees)).
		Int("payrolls", len(result.Payrolls)).
		Int("skipped", len(result.Skipped)).
		Msg("payroll run completed")
	return result, nil
}

func (s *Service) List(ctx context.Context, employeeID string, limit, offset int) ([]Payroll, int, error) {
	total, err := s.store.CountPayrolls(ctx, employeeID)
	if err != nil {
		return nil, 0, err
	}
	records, err := s.store.ListPayrolls(ctx, employeeID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// Get returns a payroll record. A non-empty employeeID must also match.
func (s *Service) Get(ctx context.Context, payrollID, employeeID string) (Payroll, error) {
	return s.store.GetPayroll(ctx, payrollID, employeeID)
}

// Payslip renders the PDF payslip of a stored record under the payslip
// directory and returns the plain PDF bytes.
func (s *Service) Payslip(ctx context.Context, payrollID string) ([]byte, error) {
	if s.payslips == nil {
		return nil, ErrPayslipsDisabled
	}
	data, err := s.store.PayslipData(ctx, payrollID)
	if err != nil {
		return nil, err
	}
	path, err := s.payslips.Write(data)
	if err != nil {
		return nil, fmt.Errorf("write payslip: %w", err)
	}
	return s.payslips.Read(path)
}

// SendPayslip emails the rendered payslip to the employee on record.
func (s *Service) SendPayslip(ctx context.Context, payrollID string) error {
	if s.opts.Mailer == nil {
		return ErrEmailDisabled
	}
	if s.payslips == nil {
		return ErrPayslipsDisabled
	}
	data, err := s.store.PayslipData(ctx, payrollID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(data.Email) == "" {
		return ErrNoRecipient
	}
	path, err := s.payslips.Write(data)
	if err != nil {
		return fmt.Errorf("write payslip: %w", err)
	}
	pdf, err := s.payslips.Read(path)
	if err != nil {
		return err
	}

	date := data.Payroll.PaymentDate.Format(dateLayout)
	subject := fmt.Sprintf("Payslip for %s", date)
	body := fmt.Sprintf("Hello %s,\n\nYour payslip for the payment dated %s is attached.\n", data.Payroll.Employee.FullName, date)
	attachment := email.Attachment{
		Name:        fmt.Sprintf("payslip-%s.pdf", date),
		ContentType: "application/pdf",
		Data:        pdf,
	}
	if err := s.opts.Mailer.Send(ctx, data.Email, subject, body, attachment); err != nil {
		return fmt.Errorf("send payslip: %w", err)
	}
	return nil
}

func (s *Service) build(ctx context.Context, snapshot Snapshot, allowances map[string]AllowanceRule, employee EmployeePay, date time.Time) Payroll {
	breakdown, warnings := s.compute(snapshot, allowances, employee.BasicSalary, employee.AllowanceIDs, employee.DeductionIDs)
	if len(warnings) > 0 {
		zerolog.Ctx(ctx).Warn().
			Str("employeeId", employee.ID).
			Interface("warnings", warnings).
			Msg("payroll computed with unresolved references")
	}
	return Payroll{
		Employee:    employee.EmployeeRef,
		BasicSalary: employee.BasicSalary,
		Currency:    employee.Currency,
		Allowance:   breakdown.Allowance,
		Deduction:   breakdown.Deduction,
		Gross:       breakdown.Gross(employee.BasicSalary),
		Net:         breakdown.Net(employee.BasicSalary),
		PaymentDate: date,
		Warnings:    warnings,
	}
}

func (s *Service) compute(snapshot Snapshot, allowances map[string]AllowanceRule, salary decimal.Decimal, allowanceIDs, deductionIDs []string) (Breakdown, map[string][]string) {
	selected, droppedAllowances := pickAllowances(allowanceIDs, allowances)
	other := snapshot.ResolveOther(deductionIDs)

	breakdown := Compute(Input{
		BasicSalary: salary,
		Allowances:  selected,
		Tax:         snapshot.Tax,
		Pension:     snapshot.Pension,
		Other:       other.Other,
	})

	warnings := map[string][]string{}
	addWarning(warnings, WarningDroppedAllowance, droppedAllowances)
	addWarning(warnings, WarningDroppedDeduction, other.Dropped)
	addWarning(warnings, WarningInactiveDeduction, other.Inactive)
	addWarning(warnings, WarningMalformedTaxRule, breakdown.MalformedTaxRules)
	if net := breakdown.Net(salary); net.IsNegative() {
		addWarning(warnings, WarningNegativeNet, []string{net.StringFixed(2)})
	}

	s.metrics.DroppedReferences("allowance", len(droppedAllowances))
	s.metrics.DroppedReferences("deduction", len(other.Dropped)+len(other.Inactive))
	s.metrics.MalformedTaxRules(len(breakdown.MalformedTaxRules))

	if len(warnings) == 0 {
		return breakdown, nil
	}
	return breakdown, warnings
}

func (s *Service) lookupAllowances(ctx context.Context, ids []string) (map[string]AllowanceRule, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return map[string]AllowanceRule{}, nil
	}
	rules, err := s.catalog.ListAllowancesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load allowances: %w", err)
	}
	out := make(map[string]AllowanceRule, len(rules))
	for _, rule := range rules {
		out[rule.ID] = rule
	}
	return out, nil
}

// pickAllowances keeps the employee's assignment order and drops ids that
// are unknown, inactive or deleted.
func pickAllowances(ids []string, known map[string]AllowanceRule) ([]AllowanceRule, []string) {
	var selected []AllowanceRule
	var dropped []string
	for _, id := range uniqueIDs(ids) {
		rule, ok := known[id]
		if !ok {
			dropped = append(dropped, id)
			continue
		}
		selected = append(selected, rule)
	}
	return selected, dropped
}

func payableReason(employee EmployeePay) string {
	switch {
	case employee.IsDeleted:
		return "employee is deleted"
	case !employee.IsActive:
		return "employee is not active"
	case strings.TrimSpace(employee.DepartmentID) == "":
		return "employee must be assigned to a department"
	case !employee.BasicSalary.IsPositive():
		return "basic salary must be greater than 0"
	}
	return ""
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func addWarning(warnings map[string][]string, key string, values []string) {
	if len(values) > 0 {
		warnings[key] = values
	}
}
