package records

import (
	"errors"
	"slices"
	"testing"

	"voucher-service/internal/domain"
)

var testMapping = domain.ColumnMapping{
	domain.FieldDate:        "日期",
	domain.FieldIncome:      "收入",
	domain.FieldExpense:     "支出",
	domain.FieldSubject:     "項目",
	domain.FieldDescription: "用途",
}

func row(line int, cells map[string]domain.CellValue) domain.Row {
	return domain.Row{Line: line, Cells: cells}
}

func TestExtractScenarioIncomeRow(t *testing.T) {
	t.Parallel()

	rows := []domain.Row{row(2, map[string]domain.CellValue{
		"日期": domain.Text("114/03/05"),
		"收入": domain.Number(5000),
		"項目": domain.Text("捐款"),
		"用途": domain.Text("年度贊助"),
	})}
	e := NewExtractor(rows, testMapping, Options{})
	got := slices.Collect(e.Records())
	if err := e.Err(); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("records=%d, want 1", len(got))
	}
	want := domain.TransactionRecord{
		Line:        2,
		Type:        domain.TypeIncome,
		Date:        domain.EraDate{Year: 114, Month: 3, Day: 5},
		Amount:      5000,
		Subject:     "捐款",
		Description: "年度贊助",
	}
	if got[0] != want {
		t.Fatalf("record=%+v, want %+v", got[0], want)
	}
}

func TestExtractSkipsRowsWithoutAmounts(t *testing.T) {
	t.Parallel()

	rows := []domain.Row{row(3, map[string]domain.CellValue{
		"日期": domain.Text("114/03/05"),
		"項目": domain.Text("期初餘額"),
	})}
	e := NewExtractor(rows, testMapping, Options{})
	got := slices.Collect(e.Records())
	if len(got) != 0 {
		t.Fatalf("records=%d, want 0", len(got))
	}
	s := e.Summary()
	if s.Skipped != 1 || s.SkipReasons[domain.SkipZeroAmount] != 1 {
		t.Fatalf("summary=%+v", s)
	}
}

func TestExtractClassification(t *testing.T) {
	t.Parallel()

	rows := []domain.Row{
		row(2, map[string]domain.CellValue{"日期": domain.Text("114/03/05"), "收入": domain.Number(100), "支出": domain.Number(40)}),
		row(3, map[string]domain.CellValue{"日期": domain.Text("114/03/05"), "收入": domain.Number(0), "支出": domain.Text("1,234.9")}),
		row(4, map[string]domain.CellValue{"日期": domain.Text("114/03/05"), "收入": domain.Text("n/a")}),
		row(5, map[string]domain.CellValue{"日期": domain.Text("114/03/05"), "支出": domain.Number(0.4)}),
		row(6, map[string]domain.CellValue{"日期": domain.Text("114/03/05"), "收入": domain.Number(5000.7)}),
		row(7, map[string]domain.CellValue{"日期": domain.Text("114/03/05"), "收入": domain.Text("NT$ 2,000")}),
		row(8, map[string]domain.CellValue{"日期": domain.Text("114/03/05"), "支出": domain.Number(-30)}),
		row(9, map[string]domain.CellValue{"日期": domain.Text("114/03/05"), "收入": domain.Number(1e19)}),
		row(10, map[string]domain.CellValue{"日期": domain.Text("114/03/05"), "支出": domain.Text("99999999999999999999")}),
	}
	e := NewExtractor(rows, testMapping, Options{})
	got := slices.Collect(e.Records())

	type tv struct {
		typ    domain.TransactionType
		amount int64
	}
	want := []tv{
		{domain.TypeIncome, 100},
		{domain.TypeExpense, 1234},
		{domain.TypeIncome, 5000},
		{domain.TypeIncome, 2000},
	}
	if len(got) != len(want) {
		t.Fatalf("records=%d, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Type != w.typ || got[i].Amount != w.amount {
			t.Fatalf("record %d = %s/%d, want %s/%d", i, got[i].Type, got[i].Amount, w.typ, w.amount)
		}
	}
	s := e.Summary()
	if s.BothAmounts != 1 {
		t.Fatalf("both amounts=%d, want 1", s.BothAmounts)
	}
	if s.SkipReasons[domain.SkipInvalidAmount] != 4 || s.SkipReasons[domain.SkipZeroAmount] != 1 {
		t.Fatalf("skip reasons=%v", s.SkipReasons)
	}
}

func TestExtractBothAmountsSkipPolicy(t *testing.T) {
	t.Parallel()

	rows := []domain.Row{
		row(2, map[string]domain.CellValue{"日期": domain.Text("114/03/05"), "收入": domain.Number(100), "支出": domain.Number(40)}),
	}
	e := NewExtractor(rows, testMapping, Options{BothAmounts: BothAmountsSkip})
	if got := slices.Collect(e.Records()); len(got) != 0 {
		t.Fatalf("records=%d, want 0", len(got))
	}
	if s := e.Summary(); s.SkipReasons[domain.SkipAmbiguousType] != 1 {
		t.Fatalf("summary=%+v", s)
	}
}

func TestExtractDateFailures(t *testing.T) {
	t.Parallel()

	rows := []domain.Row{
		row(2, map[string]domain.CellValue{"日期": domain.Text("不明"), "收入": domain.Number(100)}),
		row(3, map[string]domain.CellValue{"日期": domain.Text("114/03/06"), "收入": domain.Number(200)}),
	}

	lenient := NewExtractor(rows, testMapping, Options{})
	got := slices.Collect(lenient.Records())
	if len(got) != 1 || got[0].Line != 3 {
		t.Fatalf("records=%+v", got)
	}
	if s := lenient.Summary(); s.SkipReasons[domain.SkipUnparseableDate] != 1 || s.SkippedRows[0].Line != 2 {
		t.Fatalf("summary=%+v", s)
	}

	strict := NewExtractor(rows, testMapping, Options{StrictDates: true})
	got = slices.Collect(strict.Records())
	if len(got) != 0 {
		t.Fatalf("strict mode yielded %d records", len(got))
	}
	if err := strict.Err(); !errors.Is(err, domain.ErrInvalidDate) {
		t.Fatalf("strict err=%v", err)
	}
}

func TestExtractIsNotRestartable(t *testing.T) {
	t.Parallel()

	rows := []domain.Row{
		row(2, map[string]domain.CellValue{"日期": domain.Text("114/03/05"), "支出": domain.Number(10)}),
		row(3, map[string]domain.CellValue{"日期": domain.Text("114/03/05"), "支出": domain.Number(20)}),
	}
	e := NewExtractor(rows, testMapping, Options{})
	for rec := range e.Records() {
		if rec.Amount != 10 {
			t.Fatalf("first record amount=%d", rec.Amount)
		}
		break
	}
	rest := slices.Collect(e.Records())
	if len(rest) != 1 || rest[0].Amount != 20 {
		t.Fatalf("rest=%+v", rest)
	}
	if again := slices.Collect(e.Records()); len(again) != 0 {
		t.Fatalf("exhausted extractor yielded %d records", len(again))
	}
}
