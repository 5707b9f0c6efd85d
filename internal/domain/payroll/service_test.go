package payroll

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrpayroll/internal/platform/email"
	"hrpayroll/internal/platform/metrics"
)

type fakeStore struct {
	mu        sync.Mutex
	employees []EmployeePay
	records   []Payroll
	inserts   int
	insertErr error
}

func (f *fakeStore) GetPayableEmployee(_ context.Context, employeeID string) (EmployeePay, error) {
	for _, emp := range f.employees {
		if emp.ID == employeeID {
			return emp, nil
		}
	}
	return EmployeePay{}, fmt.Errorf("%w: %s", ErrEmployeeNotFound, employeeID)
}

func (f *fakeStore) ListPayableEmployees(context.Context) ([]EmployeePay, error) {
	var out []EmployeePay
	for _, emp := range f.employees {
		if emp.IsActive && !emp.IsDeleted {
			out = append(out, emp)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertPayrolls(_ context.Context, records []Payroll) ([]Payroll, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	out := make([]Payroll, len(records))
	for i, record := range records {
		record.ID = fmt.Sprintf("pay-%d", len(f.records)+1)
		record.CreatedAt = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		f.records = append(f.records, record)
		out[i] = record
	}
	return out, nil
}

func (f *fakeStore) CountPayrolls(_ context.Context, employeeID string) (int, error) {
	records, _ := f.ListPayrolls(context.Background(), employeeID, 1000, 0)
	return len(records), nil
}

func (f *fakeStore) ListPayrolls(_ context.Context, employeeID string, limit, offset int) ([]Payroll, error) {
	var out []Payroll
	for _, record := range f.records {
		if employeeID == "" || record.Employee.ID == employeeID {
			out = append(out, record)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) GetPayroll(_ context.Context, payrollID, employeeID string) (Payroll, error) {
	for _, record := range f.records {
		if record.ID == payrollID && (employeeID == "" || record.Employee.ID == employeeID) {
			return record, nil
		}
	}
	return Payroll{}, ErrPayrollNotFound
}

func (f *fakeStore) PayslipData(ctx context.Context, payrollID string) (PayslipData, error) {
	record, err := f.GetPayroll(ctx, payrollID, "")
	if err != nil {
		return PayslipData{}, err
	}
	return PayslipData{Payroll: record, Email: "jane@example.com"}, nil
}

type fakeCatalog struct {
	*fakeCategories
	allowances []AllowanceRule
	lookups    int
}

func (f *fakeCatalog) ListAllowancesByIDs(_ context.Context, ids []string) ([]AllowanceRule, error) {
	f.lookups++
	wanted := map[string]bool{}
	for _, id := range ids {
		wanted[id] = true
	}
	var out []AllowanceRule
	for _, rule := range f.allowances {
		if wanted[rule.ID] && rule.IsActive {
			out = append(out, rule)
		}
	}
	return out, nil
}

type fakeRunner struct {
	jobs []string
}

func (f *fakeRunner) RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	f.jobs = append(f.jobs, jobType)
	return run(ctx)
}

var fixedNow = time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

func employee(id, salary string, allowanceIDs, deductionIDs []string) EmployeePay {
	return EmployeePay{
		EmployeeRef:  EmployeeRef{ID: id, FullName: "Employee " + id, DepartmentID: "d1"},
		BasicSalary:  dec(salary),
		Currency:     "USD",
		AllowanceIDs: allowanceIDs,
		DeductionIDs: deductionIDs,
		IsActive:     true,
	}
}

type serviceFixture struct {
	svc     *Service
	store   *fakeStore
	catalog *fakeCatalog
	runner  *fakeRunner
}

func newServiceFixture(t *testing.T, employees ...EmployeePay) serviceFixture {
	t.Helper()
	inactive := fixedRule("old", "999")
	inactive.IsActive = false
	catalog := &fakeCatalog{
		fakeCategories: seededCatalog(t),
		allowances:     []AllowanceRule{fixedRule("house", "300"), percentageRule("transport", "10"), inactive},
	}
	store := &fakeStore{employees: employees}
	runner := &fakeRunner{}
	svc := NewService(store, catalog, runner, metrics.New(), NewPayslipWriter(t.TempDir(), nil), Options{
		Workers: 2,
		Now:     func() time.Time { return fixedNow },
	})
	return serviceFixture{svc: svc, store: store, catalog: catalog, runner: runner}
}

func TestValidatePaymentDate(t *testing.T) {
	f := newServiceFixture(t)
	cases := []struct {
		raw   string
		valid bool
	}{
		{"2026-03-15", true},
		{"2026-03-01", true},
		{"2025-03-16", true},
		{"", false},
		{"15/03/2026", false},
		{"2026-03-16", false},
		{"2025-03-14", false},
	}
	for _, tc := range cases {
		_, err := f.svc.ValidatePaymentDate(tc.raw)
		if tc.valid {
			assert.NoError(t, err, tc.raw)
			continue
		}
		assert.ErrorIs(t, err, ErrInvalidPaymentDate, tc.raw)
	}
}

func TestPreviewReportsDroppedReferences(t *testing.T) {
	f := newServiceFixture(t)
	preview, err := f.svc.Preview(context.Background(), PreviewInput{
		BasicSalary:  dec("1500"),
		AllowanceIDs: []string{"house", "ghost", "old"},
		DeductionIDs: []string{"A", "missing"},
	})
	require.NoError(t, err)

	assert.True(t, dec("1800").Equal(preview.Gross))
	// tax 200 + pension 75 + other 50
	assert.True(t, dec("325").Equal(preview.Breakdown.Deduction.Sum))
	assert.True(t, dec("1475").Equal(preview.Net))
	assert.Equal(t, []string{"ghost", "old"}, preview.Warnings[WarningDroppedAllowance])
	assert.Equal(t, []string{"missing"}, preview.Warnings[WarningDroppedDeduction])
	assert.Empty(t, f.store.records)
}

func TestCreateForEmployeeStoresRecord(t *testing.T) {
	f := newServiceFixture(t, employee("e1", "1500", []string{"house", "transport"}, []string{"B"}))
	record, err := f.svc.CreateForEmployee(context.Background(), "e1", "2026-03-01")
	require.NoError(t, err)

	assert.Equal(t, "pay-1", record.ID)
	assert.Equal(t, "e1", record.Employee.ID)
	assert.True(t, dec("1950").Equal(record.Gross))
	// tax 200 + pension 75 + other 75
	assert.True(t, dec("1600").Equal(record.Net))
	assert.Nil(t, record.Warnings)
	assert.Equal(t, "2026-03-01", record.PaymentDate.Format("2006-01-02"))
	require.Len(t, record.Allowance.Items, 2)
	assert.Equal(t, "house", record.Allowance.Items[0].ID)
}

func TestCreateForEmployeeRejectsIneligible(t *testing.T) {
	inactive := employee("e2", "1000", nil, nil)
	inactive.IsActive = false
	unassigned := employee("e3", "1000", nil, nil)
	unassigned.DepartmentID = ""
	f := newServiceFixture(t, employee("e1", "0", nil, nil), inactive, unassigned)

	_, err := f.svc.CreateForEmployee(context.Background(), "e1", "2026-03-01")
	assert.ErrorIs(t, err, ErrEmployeeNotPayable)
	_, err = f.svc.CreateForEmployee(context.Background(), "e2", "2026-03-01")
	assert.ErrorIs(t, err, ErrEmployeeNotPayable)
	_, err = f.svc.CreateForEmployee(context.Background(), "e3", "2026-03-01")
	assert.ErrorIs(t, err, ErrEmployeeNotPayable)
	assert.Contains(t, err.Error(), "department")
	_, err = f.svc.CreateForEmployee(context.Background(), "nobody", "2026-03-01")
	assert.ErrorIs(t, err, ErrEmployeeNotFound)
	assert.Zero(t, f.store.inserts)
}

func TestCreateForEmployeeFailsWithoutTaxCategory(t *testing.T) {
	f := newServiceFixture(t, employee("e1", "1000", nil, nil))
	delete(f.catalog.containers, CategoryTax)
	_, err := f.svc.CreateForEmployee(context.Background(), "e1", "2026-03-01")
	assert.ErrorIs(t, err, ErrConfigurationMissing)
	assert.Zero(t, f.store.inserts)
}

func TestCreateForAllUsesOneSnapshotAndOneInsert(t *testing.T) {
	employees := []EmployeePay{
		employee("e1", "500", []string{"house"}, nil),
		employee("e2", "1500", []string{"transport", "ghost"}, []string{"A"}),
		employee("e3", "0", nil, nil),
		employee("e4", "2500", nil, []string{"B", "A"}),
	}
	f := newServiceFixture(t, employees...)
	result, err := f.svc.CreateForAll(context.Background(), "2026-03-10")
	require.NoError(t, err)

	for _, category := range Categories {
		assert.Equal(t, 1, f.catalog.fetches[category], "category %s", category)
	}
	assert.Equal(t, 1, f.catalog.lookups)
	assert.Equal(t, 1, f.store.inserts)
	assert.Equal(t, []string{JobPayrollRun}, f.runner.jobs)

	require.Len(t, result.Payrolls, 3)
	assert.Equal(t, []string{"e1", "e2", "e4"}, []string{result.Payrolls[0].Employee.ID, result.Payrolls[1].Employee.ID, result.Payrolls[2].Employee.ID})
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "e3", result.Skipped[0].EmployeeID)
	assert.Equal(t, []string{"ghost"}, result.Payrolls[1].Warnings[WarningDroppedAllowance])

	gross := dec("0")
	for _, record := range result.Payrolls {
		gross = gross.Add(record.Gross)
	}
	assert.True(t, gross.Equal(result.TotalGross))
}

func TestCreateForAllMatchesSingleComputation(t *testing.T) {
	emp := employee("e1", "4321.09", []string{"house", "transport"}, []string{"A", "B"})
	batch := newServiceFixture(t, emp)
	single := newServiceFixture(t, emp)

	run, err := batch.svc.CreateForAll(context.Background(), "2026-03-10")
	require.NoError(t, err)
	one, err := single.svc.CreateForEmployee(context.Background(), "e1", "2026-03-10")
	require.NoError(t, err)

	require.Len(t, run.Payrolls, 1)
	assert.True(t, one.Net.Equal(run.Payrolls[0].Net))
	assert.Equal(t, one.Deduction.Total, run.Payrolls[0].Deduction.Total)
}

func TestCreateForAllPropagatesInsertFailure(t *testing.T) {
	f := newServiceFixture(t, employee("e1", "1000", nil, nil))
	f.store.insertErr = errors.New("tx aborted")
	_, err := f.svc.CreateForAll(context.Background(), "2026-03-10")
	require.Error(t, err)
	assert.Empty(t, f.store.records)
}

func TestNegativeNetIsFlagged(t *testing.T) {
	f := newServiceFixture(t)
	f.catalog.put(t, CategoryOther, true, []OtherRule{fixedRule("loan", "5000")})
	preview, err := f.svc.Preview(context.Background(), PreviewInput{BasicSalary: dec("1000"), DeductionIDs: []string{"loan"}})
	require.NoError(t, err)
	assert.True(t, preview.Net.IsNegative())
	assert.NotEmpty(t, preview.Warnings[WarningNegativeNet])
}

func TestListAndGet(t *testing.T) {
	f := newServiceFixture(t, employee("e1", "1000", nil, nil), employee("e2", "1000", nil, nil))
	_, err := f.svc.CreateForAll(context.Background(), "2026-03-10")
	require.NoError(t, err)

	records, total, err := f.svc.List(context.Background(), "e2", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, records, 1)

	_, err = f.svc.Get(context.Background(), records[0].ID, "e1")
	assert.ErrorIs(t, err, ErrPayrollNotFound)
	got, err := f.svc.Get(context.Background(), records[0].ID, "e2")
	require.NoError(t, err)
	assert.Equal(t, "e2", got.Employee.ID)
}

func TestPayslipWritesPDF(t *testing.T) {
	f := newServiceFixture(t, employee("e1", "1500", []string{"house"}, []string{"A"}))
	record, err := f.svc.CreateForEmployee(context.Background(), "e1", "2026-03-01")
	require.NoError(t, err)

	pdf, err := f.svc.Payslip(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf[:4]))

	entries, err := os.ReadDir(f.svc.payslips.Dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, record.ID+".pdf", entries[0].Name())
}

type fakeMailer struct {
	to          string
	subject     string
	attachments []email.Attachment
}

func (m *fakeMailer) Send(_ context.Context, to, subject, _ string, attachments ...email.Attachment) error {
	m.to = to
	m.subject = subject
	m.attachments = attachments
	return nil
}

func TestSendPayslipAttachesPDF(t *testing.T) {
	f := newServiceFixture(t, employee("e1", "1500", nil, nil))
	record, err := f.svc.CreateForEmployee(context.Background(), "e1", "2026-03-01")
	require.NoError(t, err)

	require.ErrorIs(t, f.svc.SendPayslip(context.Background(), record.ID), ErrEmailDisabled)

	mailer := &fakeMailer{}
	f.svc.opts.Mailer = mailer
	require.NoError(t, f.svc.SendPayslip(context.Background(), record.ID))
	assert.Equal(t, "jane@example.com", mailer.to)
	assert.Equal(t, "Payslip for 2026-03-01", mailer.subject)
	require.Len(t, mailer.attachments, 1)
	assert.Equal(t, "payslip-2026-03-01.pdf", mailer.attachments[0].Name)
	assert.Equal(t, "%PDF", string(mailer.attachments[0].Data[:4]))

	assert.ErrorIs(t, f.svc.SendPayslip(context.Background(), "missing"), ErrPayrollNotFound)
}

func TestResolveByName(t *testing.T) {
	f := newServiceFixture(t)
	res, err := f.svc.Resolve(context.Background(), "other", []string{"B", " ", "B", "Z"})
	require.NoError(t, err)
	require.Len(t, res.Other, 1)
	assert.Equal(t, "B", res.Other[0].ID)
	assert.Equal(t, []string{"Z"}, res.Dropped)

	_, err = f.svc.Resolve(context.Background(), "bonus", nil)
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestCreateForEmployeeFailsWithInactiveMandatoryCategory(t *testing.T) {
	f := newServiceFixture(t, employee("e1", "1500", nil, nil))
	for _, category := range []Category{CategoryTax, CategoryPension} {
		container := f.catalog.containers[category]
		container.IsActive = false
		f.catalog.containers[category] = container
	}

	_, err := f.svc.CreateForEmployee(context.Background(), "e1", "2026-03-01")
	assert.ErrorIs(t, err, ErrConfigurationMissing)
	_, err = f.svc.CreateForAll(context.Background(), "2026-03-01")
	assert.ErrorIs(t, err, ErrConfigurationMissing)
	assert.Zero(t, f.store.inserts)
}

func TestRunLogsCarryRequestLogger(t *testing.T) {
	f := newServiceFixture(t, employee("e1", "1500", nil, []string{"ghost"}))
	var buf bytes.Buffer
	logger := zerolog.New(&buf).With().Str("requestId", "req-7").Logger()
	ctx := logger.WithContext(context.Background())

	_, err := f.svc.CreateForAll(ctx, "2026-03-01")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "payroll computed with unresolved references")
	assert.Contains(t, out, "payroll run completed")
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte(`"requestId":"req-7"`)))
}
