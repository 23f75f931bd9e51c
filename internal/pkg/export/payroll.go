package export

import (
	"bytes"
	"fmt"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/report"
	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypePDF  = "application/pdf"

	summarySheet = "Summary"
	detailSheet  = "Details"
)

var summaryHeaders = []string{"No", "Name", "Email", "Hourly Rate", "Days Worked", "Work Hours", "Total Salary"}

var detailHeaders = []string{"Name", "Date", "Day", "Check In", "Check Out", "Work Hours", "Earned Salary"}

// PayrollXLSX renders the report as a workbook with a summary sheet and one
// row per closed attendance on the detail sheet.
func PayrollXLSX(r report.PayrollReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(summarySheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if _, err := f.NewSheet(detailSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	f.SetCellValue(summarySheet, "A1", "PAYROLL REPORT")
	f.MergeCell(summarySheet, "A1", "G1")
	f.SetCellStyle(summarySheet, "A1", "G1", headerStyle)
	f.SetRowHeight(summarySheet, 1, 25)
	f.SetCellValue(summarySheet, "A2", fmt.Sprintf("Period: %s (%s - %s)", r.Period.Label, r.Period.StartDate, r.Period.EndDate))
	f.SetCellValue(summarySheet, "A3", fmt.Sprintf("Generated: %s", r.GeneratedAt))

	if err := writeHeader(f, summarySheet, 5, summaryHeaders, headerStyle); err != nil {
		return nil, err
	}
	if err := writeHeader(f, detailSheet, 1, detailHeaders, headerStyle); err != nil {
		return nil, err
	}

	row, detailRow := 6, 2
	for i, emp := range r.Employees {
		setRow(f, summarySheet, row,
			i+1, emp.UserName, emp.Email,
			emp.HourlyRate.InexactFloat64(), emp.TotalDaysWorked,
			emp.TotalWorkHours.InexactFloat64(), emp.TotalSalary.InexactFloat64(),
		)
		row++

		for _, d := range emp.Details {
			setRow(f, detailSheet, detailRow,
				emp.UserName, d.Date, d.DayOfWeek, d.CheckIn, d.CheckOut,
				d.WorkHours.InexactFloat64(), d.EarnedSalary.InexactFloat64(),
			)
			detailRow++
		}
	}

	row++
	f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), "Total employees")
	f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), r.TotalEmployees)
	f.SetCellValue(summarySheet, fmt.Sprintf("F%d", row), "Total salary")
	f.SetCellValue(summarySheet, fmt.Sprintf("G%d", row), r.TotalSalaryAll.InexactFloat64())

	f.SetColWidth(summarySheet, "A", "A", 6)
	f.SetColWidth(summarySheet, "B", "C", 28)
	f.SetColWidth(summarySheet, "D", "G", 15)
	f.SetColWidth(detailSheet, "A", "A", 28)
	f.SetColWidth(detailSheet, "B", "G", 14)

	f.DeleteSheet("Sheet1")

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeHeader(f *excelize.File, sheet string, row int, headers []string, style int) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, style)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values ...interface{}) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		f.SetCellValue(sheet, cell, v)
	}
}

// PayrollPDF renders the per-employee summary table on A4 landscape pages.
func PayrollPDF(r report.PayrollReport) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Payroll Report "+r.Period.Label, false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "Payroll Report")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 8, fmt.Sprintf("Period: %s (%s - %s)", r.Period.Label, r.Period.StartDate, r.Period.EndDate))
	pdf.Ln(8)
	pdf.Cell(0, 8, fmt.Sprintf("Employees: %d    Total salary: %s", r.TotalEmployees, r.TotalSalaryAll.StringFixed(0)))
	pdf.Ln(12)

	widths := []float64{12, 70, 70, 30, 25, 30, 40}
	header := func() {
		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(68, 114, 196)
		pdf.SetTextColor(255, 255, 255)
		for i, h := range summaryHeaders {
			pdf.CellFormat(widths[i], 8, h, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Arial", "", 10)
	}
	header()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for i, emp := range r.Employees {
		if pdf.GetY()+7 > pageHeight-bottom-10 {
			pdf.AddPage()
			header()
		}
		cells := []string{
			fmt.Sprintf("%d", i+1),
			emp.UserName,
			emp.Email,
			emp.HourlyRate.StringFixed(2),
			fmt.Sprintf("%d", emp.TotalDaysWorked),
			emp.TotalWorkHours.StringFixed(2),
			emp.TotalSalary.StringFixed(0),
		}
		for j, c := range cells {
			align := "L"
			if j == 0 || j >= 3 {
				align = "R"
			}
			pdf.CellFormat(widths[j], 7, c, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "I", 9)
	pdf.Cell(0, 8, fmt.Sprintf("Generated: %s", r.GeneratedAt))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
