package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"voucher-service/internal/domain"
)

// ErrUnsupportedFormat is returned for file extensions no reader handles.
var ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")

// DefaultHeaderScan is how many leading rows are searched for the header.
const DefaultHeaderScan = 20

// Table is a sheet reduced to its header labels and the data rows below.
type Table struct {
	Sheet string
	// HeaderRow is the 1-based row number of the header.
	HeaderRow int
	Headers   []string
	Rows      []domain.Row
}

// Options tune how the header row is located.
type Options struct {
	// SheetName selects an xlsx worksheet; the first sheet is used when empty.
	SheetName  string
	HeaderScan int
	// Score counts recognised labels in a candidate row. When nil the first
	// non-empty row is the header.
	Score   func(labels []string) int
	MinHits int
}

type grid struct {
	sheet string
	cells [][]domain.CellValue
}

// Read loads the first data table of a workbook or CSV file. The format is
// chosen by the extension of filename.
func Read(r io.Reader, filename string, opts Options) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read spreadsheet: %w", err)
	}

	var g *grid
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".xlsx", ".xlsm":
		g, err = readXLSX(data, opts.SheetName)
	case ".xls":
		g, err = readXLS(data)
		if err != nil {
			// legacy extension on an OOXML workbook
			if gx, errX := readXLSX(data, opts.SheetName); errX == nil {
				g, err = gx, nil
			}
		}
	case ".csv":
		g, err = readCSV(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}
	return build(g, opts), nil
}

func build(g *grid, opts Options) *Table {
	scan := opts.HeaderScan
	if scan <= 0 {
		scan = DefaultHeaderScan
	}
	minHits := opts.MinHits
	if minHits <= 0 {
		minHits = 2
	}

	header := findHeaderRow(g.cells, scan, minHits, opts.Score)
	t := &Table{Sheet: g.sheet}
	if header < 0 {
		return t
	}
	t.HeaderRow = header + 1

	columns := headerColumns(g.cells[header])
	for _, c := range columns {
		t.Headers = append(t.Headers, c.label)
	}
	for i := header + 1; i < len(g.cells); i++ {
		row := domain.Row{Line: i + 1, Cells: make(map[string]domain.CellValue, len(columns))}
		empty := true
		for _, c := range columns {
			if c.index >= len(g.cells[i]) {
				continue
			}
			v := g.cells[i][c.index]
			if v.IsEmpty() {
				continue
			}
			row.Cells[c.label] = v
			empty = false
		}
		if !empty {
			t.Rows = append(t.Rows, row)
		}
	}
	return t
}

func labels(row []domain.CellValue) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = strings.TrimSpace(v.String())
	}
	return out
}

// findHeaderRow returns the first row within scan scoring at least minHits,
// falling back to the first non-empty row; -1 for an empty sheet.
func findHeaderRow(rows [][]domain.CellValue, scan, minHits int, score func([]string) int) int {
	first := -1
	for i := 0; i < len(rows) && i < scan; i++ {
		ls := labels(rows[i])
		if !hasText(ls) {
			continue
		}
		if first < 0 {
			first = i
			if score == nil {
				return i
			}
		}
		if score(ls) >= minHits {
			return i
		}
	}
	if first < 0 {
		for i := scan; i < len(rows); i++ {
			if hasText(labels(rows[i])) {
				return i
			}
		}
	}
	return first
}

func hasText(ls []string) bool {
	for _, l := range ls {
		if l != "" {
			return true
		}
	}
	return false
}

type column struct {
	index int
	label string
}

// headerColumns skips blank labels and disambiguates repeats as "label.1",
// "label.2" in column order.
func headerColumns(row []domain.CellValue) []column {
	seen := make(map[string]int)
	var out []column
	for i, l := range labels(row) {
		if l == "" {
			continue
		}
		label := l
		if n := seen[l]; n > 0 {
			label = fmt.Sprintf("%s.%d", l, n)
		}
		seen[l]++
		out = append(out, column{index: i, label: label})
	}
	return out
}

func trimBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
}
