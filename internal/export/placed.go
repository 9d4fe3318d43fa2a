package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"placement/internal/domain/drive"
)

const placedSheet = "Placed Students"

var placedHeader = []any{"#", "Name", "Roll Number", "Department", "Email", "Phone", "Company", "CTC (LPA)"}

// WritePlacedStudents renders the drive's placed students as an XLSX workbook.
func WritePlacedStudents(w io.Writer, d drive.JobDrive) (err error) {
	f := excelize.NewFile()
	defer func() {
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = closeErr
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), placedSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(placedSheet, "A1", &placedHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetRowStyle(placedSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}

	for i, p := range d.PlacedStudents {
		row := []any{i + 1, p.Name, p.RollNumber, p.Department, p.Email, p.Phone, d.CompanyName, d.CTC}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(placedSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(placedSheet, "B", "F", 22); err != nil {
		return fmt.Errorf("column width: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
