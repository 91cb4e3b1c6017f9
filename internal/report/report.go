// Package report renders the rejected records of an import as an Excel
// workbook.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/CRM/internal/core"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the rejections.
const SheetName = "Rejected Records"

// ContentType is the MIME type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var headers = []string{"Row", "Reason", "Field"}

// Filename suggests a download name for the report of sum.
func Filename(sum core.ImportSummary) string {
	id := sum.ImportID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s-rejected-%s.xlsx", strings.ToLower(sum.Entity), id)
}

// WriteRejections writes one row per rejection reason followed by a summary
// block.
func WriteRejections(w io.Writer, sum core.ImportSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return err
	}

	for i, h := range headers {
		if err := f.SetCellValue(SheetName, cell(i, 1), h); err != nil {
			return err
		}
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFE6E6"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, cell(0, 1), cell(len(headers)-1, 1), headerStyle); err != nil {
		return err
	}

	row := 2
	for _, rej := range sum.Rejected {
		for _, reason := range rej.Reasons {
			code, field, _ := strings.Cut(reason, ":")
			values := []any{rej.Index, code, field}
			for col, v := range values {
				if err := f.SetCellValue(SheetName, cell(col, row), v); err != nil {
					return err
				}
			}
			row++
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 10)
	_ = f.SetColWidth(SheetName, "B", "B", 28)
	_ = f.SetColWidth(SheetName, "C", "C", 24)

	start := row + 1
	summary := [][2]any{
		{"Import", sum.ImportID},
		{"Entity", sum.Entity},
		{"Total records", sum.TotalRecords},
		{"Imported", sum.ImportedCount},
		{"Rejected", len(sum.Rejected)},
	}
	for i, kv := range summary {
		if err := f.SetCellValue(SheetName, cell(0, start+i), kv[0]); err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell(1, start+i), kv[1]); err != nil {
			return err
		}
	}
	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	_ = f.SetCellStyle(SheetName, cell(0, start), cell(0, start+len(summary)-1), boldStyle)

	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col+1, row)
	return name
}
