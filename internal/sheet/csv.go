package sheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"

	"voucher-service/internal/domain"
)

// decodeText converts CSV bytes to UTF-8. Non-UTF-8 input is tried as Big5
// first, then Windows-1252.
func decodeText(data []byte) (string, error) {
	data = trimBOM(data)
	if utf8.Valid(data) {
		return string(data), nil
	}
	for _, enc := range []encoding.Encoding{traditionalchinese.Big5, charmap.Windows1252} {
		out, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), enc.NewDecoder()))
		if err != nil {
			continue
		}
		if !bytes.ContainsRune(out, utf8.RuneError) {
			return string(out), nil
		}
	}
	return "", fmt.Errorf("csv: unrecognised text encoding")
}

func delimiter(text string) rune {
	line := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		line = text[:i]
	}
	if strings.Count(line, ";") > strings.Count(line, ",") {
		return ';'
	}
	if strings.Count(line, "\t") > strings.Count(line, ",") {
		return '\t'
	}
	return ','
}

func readCSV(data []byte) (*grid, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delimiter(text)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	g := &grid{cells: make([][]domain.CellValue, len(records))}
	for i, rec := range records {
		g.cells[i] = make([]domain.CellValue, len(rec))
		for j, field := range rec {
			g.cells[i][j] = domain.Text(field)
		}
	}
	return g, nil
}
