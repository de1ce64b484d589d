package numbering

import (
	"fmt"

	"voucher-service/internal/domain"
)

type key struct {
	date string
	typ  domain.TransactionType
}

// Counter hands out 1-based sequence numbers per (date code, type) pair.
// A Counter belongs to a single run and is not safe for concurrent use.
type Counter struct {
	seq map[key]int
}

// NewCounter returns an empty counter.
func NewCounter() *Counter {
	return &Counter{seq: make(map[key]int)}
}

// Next increments the counter for rec's key and returns its voucher number.
func (c *Counter) Next(rec domain.TransactionRecord) string {
	k := key{date: rec.Date.Code(), typ: rec.Type}
	c.seq[k]++
	return Format(rec.Date, rec.Type, c.seq[k])
}

// Format builds {era-year:3}{month:2}{day:2}{A|B}{seq:2}. Sequences past 99
// widen to three digits instead of wrapping.
func Format(date domain.EraDate, typ domain.TransactionType, seq int) string {
	return fmt.Sprintf("%s%c%02d", date.Code(), typ.Letter(), seq)
}

// Assign numbers records in input order with a fresh counter and returns
// the amended copies; the input slice is not modified.
func Assign(records []domain.TransactionRecord) []domain.TransactionRecord {
	counter := NewCounter()
	out := make([]domain.TransactionRecord, len(records))
	for i, rec := range records {
		rec.VoucherNumber = counter.Next(rec)
		out[i] = rec
	}
	return out
}
