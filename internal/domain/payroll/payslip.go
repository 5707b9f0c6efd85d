package payroll

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	cryptoutil "hrpayroll/internal/platform/crypto"
)

// PayslipWriter renders stored payroll records as PDF files under Dir. When
// a sealer is configured the file is encrypted at rest and gets the sealed suffix.
type PayslipWriter struct {
	Dir    string
	Sealer *cryptoutil.Sealer
}

func NewPayslipWriter(dir string, sealer *cryptoutil.Sealer) *PayslipWriter {
	return &PayslipWriter{Dir: dir, Sealer: sealer}
}

func (w *PayslipWriter) Write(data PayslipData) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", err
	}
	filePath := filepath.Join(w.Dir, data.Payroll.ID+".pdf")

	pdf := RenderPayslip(data)
	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", err
	}

	if w.Sealer == nil || !w.Sealer.Configured() {
		return filePath, nil
	}
	plain, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	sealed, err := w.Sealer.Seal(plain)
	if err != nil {
		return "", err
	}
	sealedPath := filePath + cryptoutil.SealedSuffix
	if err := os.WriteFile(sealedPath, sealed, 0o600); err != nil {
		return "", err
	}
	if err := os.Remove(filePath); err != nil {
		return "", err
	}
	return sealedPath, nil
}

// Read returns the plain PDF bytes of a file produced by Write.
func (w *PayslipWriter) Read(path string) ([]byte, error) {
	return w.Sealer.ReadFile(path)
}

// RenderPayslip lays out one payroll record. Amounts come from the stored
// breakdown and are never recomputed.
func RenderPayslip(data PayslipData) *gofpdf.Fpdf {
	record := data.Payroll
	currency := record.Currency

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Payslip")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s", record.Employee.FullName))
	pdf.Ln(7)
	if data.Email != "" {
		pdf.Cell(0, 8, fmt.Sprintf("Email: %s", data.Email))
		pdf.Ln(7)
	}
	if record.Employee.DepartmentName != "" {
		pdf.Cell(0, 8, fmt.Sprintf("Department: %s", record.Employee.DepartmentName))
		pdf.Ln(7)
	}
	pdf.Cell(0, 8, fmt.Sprintf("Payment date: %s", record.PaymentDate.Format(dateLayout)))
	pdf.Ln(10)

	line := func(label string, amount float64) {
		pdf.CellFormat(120, 7, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 7, fmt.Sprintf("%.2f %s", amount, currency), "", 1, "R", false, 0, "")
	}
	heading := func(title string) {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 8, title)
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 11)
	}

	heading("Earnings")
	line("Basic salary", record.BasicSalary.InexactFloat64())
	for _, item := range record.Allowance.Items {
		line(item.Name, item.Contribution)
	}
	line("Gross", record.Gross.InexactFloat64())
	pdf.Ln(4)

	heading("Deductions")
	deduction := record.Deduction
	if deduction.Tax != nil {
		line(fmt.Sprintf("Tax (%s)", deduction.Tax.Name), deduction.TaxAmount)
	}
	if deduction.Pension != nil {
		line(fmt.Sprintf("Pension (%s%%)", decimal.NewFromFloat(deduction.Pension.Percentage).String()), deduction.PensionAmount)
	}
	for _, item := range deduction.Other {
		line(item.Name, item.Contribution)
	}
	line("Total deductions", deduction.Total)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	line("Net pay", record.Net.InexactFloat64())
	return pdf
}
