package records

import (
	"fmt"
	"iter"
	"strings"

	"go.uber.org/zap"

	"voucher-service/internal/core/dates"
	"voucher-service/internal/domain"
)

// BothAmountsPolicy decides rows that carry both an income and an expense amount.
type BothAmountsPolicy string

const (
	// BothAmountsIncome classifies the row as income (income is checked first).
	BothAmountsIncome BothAmountsPolicy = "income"
	// BothAmountsSkip drops the row as ambiguous.
	BothAmountsSkip BothAmountsPolicy = "skip"
)

// Options configure an Extractor.
type Options struct {
	Dates *dates.Normalizer
	// StrictDates turns an unparseable date into a run error instead of a skip.
	StrictDates bool
	BothAmounts BothAmountsPolicy
	Logger      *zap.Logger
}

// Extractor walks resolved rows once and yields transaction records.
// It is not restartable: every row is consumed at most once.
type Extractor struct {
	rows    []domain.Row
	pos     int
	mapping domain.ColumnMapping
	opts    Options
	summary domain.RunSummary
	err     error
}

// NewExtractor prepares an extraction over rows using mapping.
func NewExtractor(rows []domain.Row, mapping domain.ColumnMapping, opts Options) *Extractor {
	if opts.Dates == nil {
		opts.Dates = dates.NewNormalizer(dates.Options{})
	}
	if opts.BothAmounts == "" {
		opts.BothAmounts = BothAmountsIncome
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Extractor{rows: rows, mapping: mapping, opts: opts}
}

// Records yields one record per qualifying row in row order. Iteration
// stops early on a strict-mode date failure; check Err afterwards.
func (e *Extractor) Records() iter.Seq[domain.TransactionRecord] {
	return func(yield func(domain.TransactionRecord) bool) {
		for e.err == nil && e.pos < len(e.rows) {
			row := e.rows[e.pos]
			e.pos++
			rec, ok := e.extract(row)
			if !ok {
				continue
			}
			e.summary.Records++
			if !yield(rec) {
				return
			}
		}
	}
}

// Summary reports records produced and rows skipped so far.
func (e *Extractor) Summary() domain.RunSummary {
	return e.summary
}

// Err returns the error that stopped iteration, if any.
func (e *Extractor) Err() error {
	return e.err
}

func (e *Extractor) lookup(row domain.Row, field domain.CanonicalField) (domain.CellValue, bool) {
	col, ok := e.mapping.Column(field)
	if !ok {
		return domain.CellValue{}, false
	}
	return row.Lookup(col)
}

func (e *Extractor) extract(row domain.Row) (domain.TransactionRecord, bool) {
	income, incomeState := parseAmount(e.lookup(row, domain.FieldIncome))
	expense, expenseState := parseAmount(e.lookup(row, domain.FieldExpense))

	rec := domain.TransactionRecord{Line: row.Line}
	switch {
	case incomeState == amountValid && expenseState == amountValid:
		e.summary.BothAmounts++
		if e.opts.BothAmounts == BothAmountsSkip {
			e.skip(row, domain.SkipAmbiguousType)
			return rec, false
		}
		rec.Type, rec.Amount = domain.TypeIncome, income
	case incomeState == amountValid:
		rec.Type, rec.Amount = domain.TypeIncome, income
	case expenseState == amountValid:
		rec.Type, rec.Amount = domain.TypeExpense, expense
	case incomeState == amountInvalid || expenseState == amountInvalid:
		e.skip(row, domain.SkipInvalidAmount)
		return rec, false
	default:
		e.skip(row, domain.SkipZeroAmount)
		return rec, false
	}

	raw, _ := e.lookup(row, domain.FieldDate)
	date, err := e.opts.Dates.Normalize(raw)
	if err != nil {
		if e.opts.StrictDates {
			e.err = fmt.Errorf("row %d: %w", row.Line, err)
			return rec, false
		}
		e.skip(row, domain.SkipUnparseableDate)
		return rec, false
	}
	rec.Date = date

	if v, ok := e.lookup(row, domain.FieldSubject); ok {
		rec.Subject = strings.TrimSpace(v.String())
	}
	if v, ok := e.lookup(row, domain.FieldDescription); ok {
		rec.Description = strings.TrimSpace(v.String())
	}
	return rec, true
}

func (e *Extractor) skip(row domain.Row, reason domain.SkipReason) {
	e.summary.AddSkip(row.Line, reason)
	e.opts.Logger.Debug("row skipped", zap.Int("line", row.Line), zap.String("reason", string(reason)))
}
