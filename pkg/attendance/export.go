package attendance

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ExportSheet is the worksheet name used by ExportXLSX.
const ExportSheet = "Attendance"

// ExportXLSX writes records as an Excel workbook.
func ExportXLSX(w io.Writer, records []Record) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(ExportSheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	header := []interface{}{"employee_id", "name", "date", "time", "timestamp", "kind"}
	if err := f.SetSheetRow(ExportSheet, "A1", &header); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(ExportSheet, "A1", "F1", bold); err != nil {
		return err
	}

	for i, r := range records {
		kind := r.Kind
		if kind == "" {
			kind = KindNormal
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{r.EmployeeID, r.Name, r.Date, r.Time, r.Timestamp, kind}
		if err := f.SetSheetRow(ExportSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if err := f.SetColWidth(ExportSheet, "A", "B", 14); err != nil {
		return err
	}
	if err := f.SetColWidth(ExportSheet, "E", "E", 20); err != nil {
		return err
	}

	_, err = f.WriteTo(w)
	return err
}
