package interfaces

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	hourlylog "hydrolog/internal/hourlylog/domain"
)

// BuildDaySheetPDF renders a minimal PDF summary of a day sheet.
func BuildDaySheetPDF(day *hourlylog.DaySlots, ranges hourlylog.RangeSet, finalized bool) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Hourly Log Sheet")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Equipment: %s", day.Entity.ID()))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Date: %s", day.Date.Format("2006-01-02")))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Progress: %d/%d hours logged", day.LoggedCount(), hourlylog.HoursPerDay))
	pdf.Ln(5)
	status := "open"
	if finalized {
		status = "finalized"
	}
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", status))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Out-of-range readings: %d", day.ProblemTotal(ranges)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(20, 6, "Hour", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Logged", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Problems", "1", 0, "C", false, 0, "")
	pdf.CellFormat(105, 6, "Remarks", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)

	saved := make(map[int]bool, hourlylog.HoursPerDay)
	for _, hour := range day.LoggedHours() {
		saved[hour] = true
	}
	for hour := 0; hour < hourlylog.HoursPerDay; hour++ {
		logged := "no"
		problems := ""
		remarks := ""
		if saved[hour] {
			logged = "yes"
			record := day.Slot(hour)
			problems = fmt.Sprintf("%d", hourlylog.ProblemCount(record, ranges))
			remarks = record.Remarks
		}
		pdf.CellFormat(20, 6, fmt.Sprintf("%02d:00", hour), "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, logged, "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, problems, "1", 0, "C", false, 0, "")
		pdf.CellFormat(105, 6, remarks, "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildDaySheetXLSX renders the full reading grid for a day sheet: one
// row per hour, one column per schema field.
func BuildDaySheetXLSX(day *hourlylog.DaySlots, ranges hourlylog.RangeSet, finalized bool) ([]byte, error) {
	schema, err := hourlylog.SchemaFor(day.Entity.Kind)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	summarySheet := "summary"
	readingsSheet := "readings"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(readingsSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Hourly Log Sheet")
	_ = f.SetCellValue(summarySheet, "A3", "Equipment")
	_ = f.SetCellValue(summarySheet, "B3", day.Entity.ID())
	_ = f.SetCellValue(summarySheet, "A4", "Date")
	_ = f.SetCellValue(summarySheet, "B4", day.Date.Format("2006-01-02"))
	_ = f.SetCellValue(summarySheet, "A5", "Hours Logged")
	_ = f.SetCellValue(summarySheet, "B5", day.LoggedCount())
	_ = f.SetCellValue(summarySheet, "A6", "Complete")
	_ = f.SetCellValue(summarySheet, "B6", day.IsComplete())
	_ = f.SetCellValue(summarySheet, "A7", "Finalized")
	_ = f.SetCellValue(summarySheet, "B7", finalized)
	_ = f.SetCellValue(summarySheet, "A8", "Out-of-range Readings")
	_ = f.SetCellValue(summarySheet, "B8", day.ProblemTotal(ranges))

	fields := schema.Fields()
	header := func(col int) (string, error) {
		return excelize.CoordinatesToCellName(col, 1)
	}
	cell, err := header(1)
	if err != nil {
		return nil, err
	}
	_ = f.SetCellValue(readingsSheet, cell, "Hour")
	for i, field := range fields {
		cell, err = header(i + 2)
		if err != nil {
			return nil, err
		}
		label := field.Label
		if field.Unit != "" {
			label = fmt.Sprintf("%s (%s)", field.Label, field.Unit)
		}
		_ = f.SetCellValue(readingsSheet, cell, label)
	}
	cell, err = header(len(fields) + 2)
	if err != nil {
		return nil, err
	}
	_ = f.SetCellValue(readingsSheet, cell, "Remarks")

	saved := make(map[int]bool, hourlylog.HoursPerDay)
	for _, hour := range day.LoggedHours() {
		saved[hour] = true
	}
	for hour := 0; hour < hourlylog.HoursPerDay; hour++ {
		row := hour + 2
		cell, err = excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(readingsSheet, cell, fmt.Sprintf("%02d:00", hour))
		if !saved[hour] {
			continue
		}
		record := day.Slot(hour)
		for i, field := range fields {
			value := record.Value(field.Key)
			if !value.Entered() {
				continue
			}
			cell, err = excelize.CoordinatesToCellName(i+2, row)
			if err != nil {
				return nil, err
			}
			if value.Numeric != nil {
				_ = f.SetCellValue(readingsSheet, cell, *value.Numeric)
			} else if value.Text != nil {
				_ = f.SetCellValue(readingsSheet, cell, *value.Text)
			}
		}
		cell, err = excelize.CoordinatesToCellName(len(fields)+2, row)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(readingsSheet, cell, record.Remarks)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
