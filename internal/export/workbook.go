// Package export renders assessment reports as xlsx workbooks.
package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"tutoria/server/internal/model"
	"tutoria/server/internal/tracker"
)

var exportHeader = []string{
	"Student ID", "Student", "National ID", "Course", "Team",
	"Unit", "Unit name", "Module", "Module name", "Result",
}

func sheetTitle(kind model.AssessmentKind) string {
	if kind == model.KindDiagnostic {
		return "Diagnostics"
	}
	return "Tickets"
}

// AssessmentWorkbook renders the flattened export rows as a single-sheet
// workbook with a bold, filterable header.
func AssessmentWorkbook(kind model.AssessmentKind, rows []tracker.ExportRow) (*excelize.File, error) {
	f := excelize.NewFile()
	name := sheetTitle(kind)
	if err := f.SetSheetName("Sheet1", name); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	bold, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	for col, h := range exportHeader {
		cell := fmt.Sprintf("%s1", colName(col+1))
		if err := f.SetCellStr(name, cell, h); err != nil {
			return nil, fmt.Errorf("set cell %s: %w", cell, err)
		}
	}
	end := colName(len(exportHeader)) + "1"
	_ = f.SetCellStyle(name, "A1", end, bold)
	_ = f.AutoFilter(name, "A1:"+end, nil)

	for r, row := range rows {
		values := []string{
			strconv.FormatInt(row.StudentID, 10),
			row.StudentName,
			row.NationalID,
			row.Course,
			strconv.FormatInt(row.TeamID, 10),
			row.UnitKey,
			row.UnitName,
			row.ModuleKey,
			row.ModuleName,
			row.Result,
		}
		for c, val := range values {
			cell := fmt.Sprintf("%s%d", colName(c+1), r+2)
			if err := f.SetCellStr(name, cell, val); err != nil {
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	for c := 1; c <= len(exportHeader); c++ {
		w := float64(len(exportHeader[c-1])) * 1.2
		if w < 12 {
			w = 12
		}
		if w > 40 {
			w = 40
		}
		_ = f.SetColWidth(name, colName(c), colName(c), w)
	}
	return f, nil
}

// WriteAssessmentWorkbook streams the workbook to w, typically an HTTP
// response.
func WriteAssessmentWorkbook(w io.Writer, kind model.AssessmentKind, rows []tracker.ExportRow) error {
	f, err := AssessmentWorkbook(kind, rows)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func colName(n int) string {
	s := ""
	for n > 0 {
		n--
		s = string(rune('A'+(n%26))) + s
		n /= 26
	}
	return s
}
