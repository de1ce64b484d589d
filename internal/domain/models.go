// package domain/models.go
package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CanonicalField is the semantic role a raw column or template label can play.
type CanonicalField string

// Canonical fields. FieldAmount is a render-side label that stands for the
// amount of either transaction type; it is never resolved from raw columns.
const (
	FieldDate          CanonicalField = "date"
	FieldIncome        CanonicalField = "income"
	FieldExpense       CanonicalField = "expense"
	FieldSubject       CanonicalField = "subject"
	FieldDescription   CanonicalField = "description"
	FieldVoucherNumber CanonicalField = "voucher_number"
	FieldAmount        CanonicalField = "amount"
)

// ResolutionOrder is the order in which fields are resolved against raw
// columns. On a column collision the earlier field keeps the column.
var ResolutionOrder = []CanonicalField{
	FieldDate,
	FieldIncome,
	FieldExpense,
	FieldSubject,
	FieldDescription,
	FieldVoucherNumber,
}

// TransactionType classifies a record as income or expense.
type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// Letter returns the voucher-number type letter.
func (t TransactionType) Letter() byte {
	if t == TypeIncome {
		return 'A'
	}
	return 'B'
}

// EraDate is a calendar date expressed in the Republic-of-China era.
// The zero value is the "unparseable" sentinel.
type EraDate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// IsZero reports whether d is the unparseable sentinel.
func (d EraDate) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Code is the 7-digit date part of a voucher number.
func (d EraDate) Code() string {
	return fmt.Sprintf("%03d%02d%02d", d.Year, d.Month, d.Day)
}

// Gregorian returns the Gregorian year of d.
func (d EraDate) Gregorian() int {
	return d.Year + 1911
}

func (d EraDate) String() string {
	return fmt.Sprintf("%d/%02d/%02d", d.Year, d.Month, d.Day)
}

// CellKind tells which member of a CellValue is meaningful.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
	CellTime
)

// CellValue is one raw spreadsheet cell.
type CellValue struct {
	Kind   CellKind
	Text   string
	Number float64
	Time   time.Time
}

// Text builds a text cell; blank strings become empty cells.
func Text(s string) CellValue {
	if strings.TrimSpace(s) == "" {
		return CellValue{Kind: CellEmpty}
	}
	return CellValue{Kind: CellText, Text: s}
}

// Number builds a numeric cell.
func Number(f float64) CellValue {
	return CellValue{Kind: CellNumber, Number: f}
}

// Time builds a native date cell.
func Time(t time.Time) CellValue {
	return CellValue{Kind: CellTime, Time: t}
}

// IsEmpty reports whether the cell carries no value.
func (v CellValue) IsEmpty() bool {
	return v.Kind == CellEmpty
}

// String renders the cell the way a spreadsheet would display it.
func (v CellValue) String() string {
	switch v.Kind {
	case CellText:
		return v.Text
	case CellNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case CellTime:
		return v.Time.Format("2006-01-02")
	}
	return ""
}

// Row is one raw data row keyed by column header label.
type Row struct {
	// Line is the 1-based sheet row number, used in diagnostics.
	Line  int
	Cells map[string]CellValue
}

// Lookup returns the cell under column and whether the row has a non-empty
// value there. Callers decide their own fallback for absent cells.
func (r Row) Lookup(column string) (CellValue, bool) {
	if column == "" {
		return CellValue{}, false
	}
	v, ok := r.Cells[column]
	if !ok || v.IsEmpty() {
		return CellValue{}, false
	}
	return v, true
}

// ColumnMapping binds canonical fields to concrete raw column labels.
type ColumnMapping map[CanonicalField]string

// Column returns the raw column resolved for field.
func (m ColumnMapping) Column(field CanonicalField) (string, bool) {
	col, ok := m[field]
	return col, ok && col != ""
}

// TransactionRecord is the resolved semantic content of one raw row.
type TransactionRecord struct {
	Line        int             `json:"line"`
	Type        TransactionType `json:"type"`
	Date        EraDate         `json:"date"`
	Amount      int64           `json:"amount"`
	Subject     string          `json:"subject"`
	Description string          `json:"description"`
	// VoucherNumber is empty until numbering runs.
	VoucherNumber string `json:"voucher_number,omitempty"`
}

// SkipReason explains why a raw row produced no record.
type SkipReason string

const (
	SkipUnparseableDate SkipReason = "unparseable_date"
	SkipZeroAmount      SkipReason = "zero_amount"
	SkipInvalidAmount   SkipReason = "invalid_amount"
	SkipAmbiguousType   SkipReason = "ambiguous_type"
)

// SkippedRow records one dropped row.
type SkippedRow struct {
	Line   int        `json:"line"`
	Reason SkipReason `json:"reason"`
}

// RunSummary is reported to the caller after a generation run.
type RunSummary struct {
	RunID       string             `json:"run_id"`
	Records     int                `json:"records"`
	Skipped     int                `json:"skipped"`
	SkipReasons map[SkipReason]int `json:"skip_reasons"`
	SkippedRows []SkippedRow       `json:"skipped_rows,omitempty"`
	BothAmounts int                `json:"both_amounts"`
	Warnings    []string           `json:"warnings,omitempty"`
}

// AddSkip counts one skipped row.
func (s *RunSummary) AddSkip(line int, reason SkipReason) {
	if s.SkipReasons == nil {
		s.SkipReasons = make(map[SkipReason]int)
	}
	s.Skipped++
	s.SkipReasons[reason]++
	s.SkippedRows = append(s.SkippedRows, SkippedRow{Line: line, Reason: reason})
}
