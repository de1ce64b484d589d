package sheet

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/traditionalchinese"

	"voucher-service/internal/core/fields"
	"voucher-service/internal/domain"
)

func scoreOptions() Options {
	return Options{Score: fields.NewResolver(fields.Options{}).Hits}
}

func ledgerWorkbook(t *testing.T) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		t.Fatalf("style: %v", err)
	}
	rows := [][]interface{}{
		{"XX社區發展協會 收支明細"},
		{},
		{"日期", "收入", "支出", "項目", "用途", "備註"},
		{45721, 1000, nil, "捐款收入", "善心人士捐款", "現金"},
		{"114/03/06", nil, "500", "文具", "購買文具"},
		{},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("row %d: %v", i, err)
		}
	}
	if err := f.SetCellStyle(sheet, "A4", "A4", dateStyle); err != nil {
		t.Fatalf("set style: %v", err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	return buf.Bytes()
}

func TestReadXLSXFindsHeaderAndTypesCells(t *testing.T) {
	t.Parallel()

	table, err := Read(bytes.NewReader(ledgerWorkbook(t)), "ledger.xlsx", scoreOptions())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if table.HeaderRow != 3 {
		t.Fatalf("header row=%d", table.HeaderRow)
	}
	if want := []string{"日期", "收入", "支出", "項目", "用途", "備註"}; !reflect.DeepEqual(table.Headers, want) {
		t.Fatalf("headers=%v", table.Headers)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("rows=%d", len(table.Rows))
	}

	first := table.Rows[0]
	if first.Line != 4 {
		t.Fatalf("line=%d", first.Line)
	}
	date, ok := first.Lookup("日期")
	if !ok || date.Kind != domain.CellTime {
		t.Fatalf("date cell=%+v", date)
	}
	if want := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC); !date.Time.Equal(want) {
		t.Fatalf("date=%v", date.Time)
	}
	income, _ := first.Lookup("收入")
	if income.Kind != domain.CellNumber || income.Number != 1000 {
		t.Fatalf("income=%+v", income)
	}
	if _, ok := first.Lookup("支出"); ok {
		t.Fatalf("expense should be absent")
	}

	second := table.Rows[1]
	if v, _ := second.Lookup("日期"); v.Kind != domain.CellText || v.Text != "114/03/06" {
		t.Fatalf("text date=%+v", v)
	}
	if v, _ := second.Lookup("支出"); v.Kind != domain.CellText || v.Text != "500" {
		t.Fatalf("string amount=%+v", v)
	}
}

func TestReadCSVBig5(t *testing.T) {
	t.Parallel()

	text := "日期,收入,支出,項目,用途\n114/03/05,\"1,000\",,捐款收入,捐款\n"
	encoded, err := traditionalchinese.Big5.NewEncoder().String(text)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	table, err := Read(strings.NewReader(encoded), "LEDGER.CSV", scoreOptions())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if table.HeaderRow != 1 || len(table.Rows) != 1 {
		t.Fatalf("header=%d rows=%d", table.HeaderRow, len(table.Rows))
	}
	if v, _ := table.Rows[0].Lookup("收入"); v.Text != "1,000" {
		t.Fatalf("income=%+v", v)
	}
	if v, _ := table.Rows[0].Lookup("項目"); v.Text != "捐款收入" {
		t.Fatalf("subject=%+v", v)
	}
}

func TestReadCSVSemicolonAndDuplicateHeaders(t *testing.T) {
	t.Parallel()

	text := "\xef\xbb\xbf日期;摘要;摘要;;金額\n2025-03-05;a;b;x;10\n;;;;\n"
	table, err := Read(strings.NewReader(text), "x.csv", Options{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if want := []string{"日期", "摘要", "摘要.1", "金額"}; !reflect.DeepEqual(table.Headers, want) {
		t.Fatalf("headers=%v", table.Headers)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("rows=%d", len(table.Rows))
	}
	if v, _ := table.Rows[0].Lookup("摘要.1"); v.Text != "b" {
		t.Fatalf("dup column=%+v", v)
	}
}

func TestFindHeaderRowFallsBackToFirstNonEmpty(t *testing.T) {
	t.Parallel()

	rows := [][]domain.CellValue{
		{},
		{domain.Text("title")},
		{domain.Text("a"), domain.Text("b")},
	}
	if got := findHeaderRow(rows, 20, 2, func([]string) int { return 0 }); got != 1 {
		t.Fatalf("header=%d", got)
	}
	if got := findHeaderRow(nil, 20, 2, nil); got != -1 {
		t.Fatalf("empty header=%d", got)
	}
}

func TestDateFormats(t *testing.T) {
	t.Parallel()

	for _, id := range []int{14, 22, 31, 57} {
		if !builtinDateFormat(id) {
			t.Fatalf("builtin %d should be a date", id)
		}
	}
	if builtinDateFormat(4) {
		t.Fatalf("format 4 is numeric")
	}
	cases := map[string]bool{
		"yyyy/mm/dd":   true,
		`[$-404]e/m/d`: true,
		"#,##0":        false,
		"General":      false,
		`[Red]0.00`:    false,
		`"days "0`:     false,
		"0.00E+00":     false,
		"mm-dd-yy;@":   true,
	}
	for code, want := range cases {
		if got := customDateFormat(code); got != want {
			t.Fatalf("customDateFormat(%q)=%v", code, got)
		}
	}
}

func TestReadRejectsUnknownExtension(t *testing.T) {
	t.Parallel()

	_, err := Read(strings.NewReader("x"), "notes.txt", Options{})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err=%v", err)
	}
}
