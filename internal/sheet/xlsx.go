package sheet

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"

	"voucher-service/internal/domain"
)

var (
	quotedSection  = regexp.MustCompile(`"[^"]*"|\[[^\]]*\]|\\.`)
	dateFormatChar = regexp.MustCompile(`[yd]|e/|ee|g{2,}`)
)

// builtin number formats that display dates, including the CJK ones
func builtinDateFormat(id int) bool {
	switch {
	case id >= 14 && id <= 22,
		id >= 27 && id <= 36,
		id >= 45 && id <= 47,
		id >= 50 && id <= 58:
		return true
	}
	return false
}

func customDateFormat(code string) bool {
	code = strings.ToLower(quotedSection.ReplaceAllString(code, ""))
	if code == "general" {
		return false
	}
	return dateFormatChar.MatchString(code)
}

type xlsxReader struct {
	f          *excelize.File
	sheet      string
	date1904   bool
	dateStyles map[int]bool
}

func readXLSX(data []byte, sheetName string) (*grid, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("open xlsx: workbook has no sheets")
	}
	name := sheets[0]
	if sheetName != "" {
		if idx, err := f.GetSheetIndex(sheetName); err != nil || idx < 0 {
			return nil, fmt.Errorf("open xlsx: sheet %q not found", sheetName)
		}
		name = sheetName
	}

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", name, err)
	}

	x := &xlsxReader{f: f, sheet: name, dateStyles: make(map[int]bool)}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		x.date1904 = *props.Date1904
	}

	g := &grid{sheet: name, cells: make([][]domain.CellValue, len(rows))}
	for r, row := range rows {
		g.cells[r] = make([]domain.CellValue, len(row))
		for c, raw := range row {
			g.cells[r][c] = x.value(r, c, raw)
		}
	}
	return g, nil
}

// value types a raw cell string using the cell's type and number format.
func (x *xlsxReader) value(r, c int, raw string) domain.CellValue {
	if strings.TrimSpace(raw) == "" {
		return domain.CellValue{}
	}
	cell, err := excelize.CoordinatesToCellName(c+1, r+1)
	if err != nil {
		return domain.Text(raw)
	}
	if typ, err := x.f.GetCellType(x.sheet, cell); err == nil {
		switch typ {
		case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeBool, excelize.CellTypeError:
			return domain.Text(raw)
		}
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return domain.Text(raw)
	}
	if x.isDateCell(cell) {
		if t, err := excelize.ExcelDateToTime(f, x.date1904); err == nil {
			return domain.Time(t)
		}
	}
	return domain.Number(f)
}

func (x *xlsxReader) isDateCell(cell string) bool {
	id, err := x.f.GetCellStyle(x.sheet, cell)
	if err != nil {
		return false
	}
	if known, ok := x.dateStyles[id]; ok {
		return known
	}
	isDate := false
	if style, err := x.f.GetStyle(id); err == nil && style != nil {
		isDate = builtinDateFormat(style.NumFmt)
		if style.CustomNumFmt != nil {
			isDate = customDateFormat(*style.CustomNumFmt)
		}
	}
	x.dateStyles[id] = isDate
	return isDate
}

// readXLS reads the first sheet of a BIFF workbook. The legacy reader only
// exposes display strings, so numeric strings become number cells.
func readXLS(data []byte) (*grid, error) {
	workbook, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}
	if len(workbook.GetSheets()) == 0 {
		return nil, fmt.Errorf("open xls: workbook has no sheets")
	}
	sheet, err := workbook.GetSheet(0)
	if err != nil {
		return nil, fmt.Errorf("open xls sheet: %w", err)
	}

	g := &grid{}
	for _, row := range sheet.GetRows() {
		var line []domain.CellValue
		for _, cell := range row.GetCols() {
			line = append(line, typedString(cell.GetString()))
		}
		g.cells = append(g.cells, line)
	}
	return g, nil
}

func typedString(s string) domain.CellValue {
	t := strings.TrimSpace(s)
	if t == "" {
		return domain.CellValue{}
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil {
		return domain.Number(f)
	}
	return domain.Text(s)
}
