// Package report renders spreadsheet exports.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/smis-school/smis/internal/app/models"
)

// FeeSheet is the sheet name of the fee export.
const FeeSheet = "Fees"

// ContentTypeXLSX is the MIME type of xlsx workbooks.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var feeHeaders = []string{
	"Fee ID", "Student Number", "Student", "Description", "Term",
	"Amount", "Paid", "Outstanding", "Due Date", "Status",
}

// FeeWorkbook builds a workbook with one row per fee and a totals row.
func FeeWorkbook(fees []models.Fee) (*excelize.File, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(FeeSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	for i, header := range feeHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(FeeSheet, cell, header); err != nil {
			return nil, err
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetRowStyle(FeeSheet, 1, 1, bold)
	}

	var billed, paid, outstanding float64
	for i, fee := range fees {
		row := i + 2
		values := []interface{}{
			fee.ID, fee.StudentNumber, fee.StudentName, fee.Description, fee.Term,
			fee.Amount, fee.AmountPaid, fee.Outstanding(), fee.DueDate.Format("2006-01-02"), string(fee.Status),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(FeeSheet, cell, v); err != nil {
				return nil, err
			}
		}
		billed += fee.Amount
		paid += fee.AmountPaid
		outstanding += fee.Outstanding()
	}

	total := len(fees) + 2
	_ = f.SetCellValue(FeeSheet, fmt.Sprintf("A%d", total), "Total")
	_ = f.SetCellValue(FeeSheet, fmt.Sprintf("F%d", total), models.RoundMoney(billed))
	_ = f.SetCellValue(FeeSheet, fmt.Sprintf("G%d", total), models.RoundMoney(paid))
	_ = f.SetCellValue(FeeSheet, fmt.Sprintf("H%d", total), models.RoundMoney(outstanding))
	if bold != 0 {
		_ = f.SetRowStyle(FeeSheet, total, total, bold)
	}
	return f, nil
}

// WriteFees renders the fee workbook to w.
func WriteFees(w io.Writer, fees []models.Fee) error {
	f, err := FeeWorkbook(fees)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
