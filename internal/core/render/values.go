package render

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"voucher-service/internal/core/dates"
	"voucher-service/internal/core/template"
	"voucher-service/internal/domain"
)

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount renders whole currency units with thousands separators.
func FormatAmount(n int64) string {
	return amountPrinter.Sprintf("%d", n)
}

// TypeLabel is the short label of a transaction type.
func TypeLabel(typ domain.TransactionType) string {
	if typ == domain.TypeExpense {
		return "支出"
	}
	return "收入"
}

// pageValues holds the display strings of one record.
type pageValues struct {
	fields map[domain.CanonicalField]string
	typ    string
	title  string
}

func newPageValues(rec domain.TransactionRecord, style dates.Style, titles template.Titles) pageValues {
	amount := FormatAmount(rec.Amount)
	v := pageValues{
		fields: map[domain.CanonicalField]string{
			domain.FieldDate:          dates.Format(rec.Date, style),
			domain.FieldAmount:        amount,
			domain.FieldIncome:        "",
			domain.FieldExpense:       "",
			domain.FieldSubject:       rec.Subject,
			domain.FieldDescription:   rec.Description,
			domain.FieldVoucherNumber: rec.VoucherNumber,
		},
		typ:   TypeLabel(rec.Type),
		title: titles.For(rec.Type),
	}
	if rec.Type == domain.TypeIncome {
		v.fields[domain.FieldIncome] = amount
	} else {
		v.fields[domain.FieldExpense] = amount
	}
	return v
}

// markerValue resolves a {{FIELD}} name. Canonical names match case
// insensitively; other names go through the label matcher.
func (v pageValues) markerValue(name string, labels LabelMatcher) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "type":
		return v.typ, true
	case "title":
		return v.title, v.title != ""
	case "voucher", "voucher_no", "voucherno", "vouchernumber":
		key = string(domain.FieldVoucherNumber)
	}
	if s, ok := v.fields[domain.CanonicalField(key)]; ok {
		return s, true
	}
	if labels != nil {
		if f, ok := labels.MatchLabel(name); ok {
			s, ok := v.fields[f]
			return s, ok
		}
	}
	return "", false
}
