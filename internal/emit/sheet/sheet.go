// Package sheet emits a described Package as a spreadsheet workbook:
// one sheet per resource holding its field/type/format/stats table,
// plus a summary sheet listing every resource and its row count.
package sheet

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/csvdescribe/csvdescribe/internal/model"
)

const summarySheetName = "Summary"

// WriteFile writes pkg's schema as a workbook at path.
func WriteFile(path string, pkg *model.Package) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheetName); err != nil {
		return fmt.Errorf("sheet: rename default sheet: %w", err)
	}
	writeSummary(f, pkg)

	for _, res := range pkg.Resources {
		if res == nil {
			continue
		}
		name := sheetNameFor(res.Name)
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("sheet: create sheet %q: %w", name, err)
		}
		writeResourceSheet(f, name, res)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("sheet: save %s: %w", path, err)
	}
	return nil
}

func writeSummary(f *excelize.File, pkg *model.Package) {
	headers := []string{"resource", "path", "row_count", "fields", "delimiter", "error"}
	for c, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		f.SetCellValue(summarySheetName, cell, h)
	}
	for r, res := range pkg.Resources {
		if res == nil {
			continue
		}
		row := r + 2
		errText := ""
		if res.FatalError != nil {
			errText = res.FatalError.Error()
		}
		values := []any{res.Name, res.Path, res.RowCount, len(res.Fields), string(res.Dialect.Delimiter), errText}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, row)
			f.SetCellValue(summarySheetName, cell, v)
		}
	}
}

func writeResourceSheet(f *excelize.File, sheetName string, res *model.Resource) {
	headers := []string{"name", "type", "format", "count", "empty_count", "unique", "min", "max", "mean", "stddev"}
	for c, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		f.SetCellValue(sheetName, cell, h)
	}
	for r, field := range res.Fields {
		row := r + 2
		s := field.Stats
		unique := ""
		if s.ExactUnique != nil {
			unique = fmt.Sprintf("%d", *s.ExactUnique)
		} else if s.EstimateUnique != nil {
			unique = fmt.Sprintf("~%d", *s.EstimateUnique)
		}
		values := []any{
			field.Name, string(field.Type), field.Format, s.Count, s.EmptyCount, unique,
			numOrBlank(s.MinNumber), numOrBlank(s.MaxNumber), numOrBlank(s.Mean), numOrBlank(s.StdDev),
		}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, row)
			f.SetCellValue(sheetName, cell, v)
		}
	}
}

func numOrBlank(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

// sheetNameFor truncates to Excel's 31-character sheet name limit and
// strips characters the format forbids.
func sheetNameFor(name string) string {
	const maxLen = 31
	cleaned := make([]rune, 0, len(name))
	for _, r := range name {
		switch r {
		case '\\', '/', '?', '*', '[', ']', ':':
			cleaned = append(cleaned, '_')
		default:
			cleaned = append(cleaned, r)
		}
	}
	s := string(cleaned)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}
