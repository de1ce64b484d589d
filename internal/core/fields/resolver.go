package fields

import (
	"fmt"
	"strings"

	"voucher-service/internal/domain"
)

// MatchMode selects how aliases are compared against raw labels.
type MatchMode string

const (
	// MatchContains accepts a raw label that contains the alias.
	MatchContains MatchMode = "contains"
	// MatchExact accepts only whole-label equality.
	MatchExact MatchMode = "exact"
)

// DefaultThreshold is the minimum similarity a fuzzy match must reach.
const DefaultThreshold = 0.6

// Method records how a field was resolved.
type Method string

const (
	MethodOverride Method = "override"
	MethodAlias    Method = "alias"
	MethodFuzzy    Method = "fuzzy"
)

// Options configure a Resolver. Aliases are ordered per field; the first
// alias is the preferred label unless Preferred overrides it.
type Options struct {
	Aliases   map[domain.CanonicalField][]string
	Preferred map[domain.CanonicalField]string
	Threshold float64
	Mode      MatchMode
}

// DefaultAliases returns the alias table for Traditional Chinese ledgers.
func DefaultAliases() map[domain.CanonicalField][]string {
	return map[domain.CanonicalField][]string{
		domain.FieldDate:          {"日期", "交易日期", "傳票日期", "憑證日期", "date"},
		domain.FieldIncome:        {"收入", "收入金額", "收入額", "income"},
		domain.FieldExpense:       {"支出", "支出金額", "支出額", "expense"},
		domain.FieldSubject:       {"會計科目", "科目", "項目", "subject"},
		domain.FieldDescription:   {"摘要", "用途", "說明", "備註", "description"},
		domain.FieldVoucherNumber: {"憑證編號", "傳票編號", "編號", "voucher"},
		domain.FieldAmount:        {"金額", "amount"},
	}
}

// Resolution is the outcome of one resolution pass.
type Resolution struct {
	Mapping  domain.ColumnMapping
	Methods  map[domain.CanonicalField]Method
	Scores   map[domain.CanonicalField]float64
	Warnings []*domain.AmbiguousMappingError
}

// Resolver maps raw labels to canonical fields. It holds only static
// configuration and is safe for concurrent use.
type Resolver struct {
	aliases   map[domain.CanonicalField][]string
	keys      map[domain.CanonicalField][]string
	preferred map[domain.CanonicalField]string
	threshold float64
	mode      MatchMode
}

// NewResolver builds a Resolver, filling unset options with defaults.
func NewResolver(opts Options) *Resolver {
	aliases := opts.Aliases
	if len(aliases) == 0 {
		aliases = DefaultAliases()
	}
	r := &Resolver{
		aliases:   aliases,
		keys:      make(map[domain.CanonicalField][]string, len(aliases)),
		preferred: make(map[domain.CanonicalField]string, len(aliases)),
		threshold: opts.Threshold,
		mode:      opts.Mode,
	}
	if r.threshold <= 0 {
		r.threshold = DefaultThreshold
	}
	if r.mode == "" {
		r.mode = MatchContains
	}
	for field, list := range aliases {
		for _, a := range list {
			if k := Normalize(a); k != "" {
				r.keys[field] = append(r.keys[field], k)
			}
		}
		if len(list) > 0 {
			r.preferred[field] = list[0]
		}
	}
	for field, label := range opts.Preferred {
		if label != "" {
			r.preferred[field] = label
		}
	}
	return r
}

// Threshold returns the fuzzy acceptance threshold.
func (r *Resolver) Threshold() float64 {
	return r.threshold
}

// Aliases returns the ordered alias list of field.
func (r *Resolver) Aliases(field domain.CanonicalField) []string {
	return r.aliases[field]
}

// Preferred returns the label fuzzy matching compares against for field.
func (r *Resolver) Preferred(field domain.CanonicalField) string {
	return r.preferred[field]
}

func fuzzyEligible(field domain.CanonicalField) bool {
	switch field {
	case domain.FieldDate, domain.FieldSubject, domain.FieldDescription:
		return true
	}
	return false
}

// Resolve builds a ColumnMapping for labels. Overrides pin fields to
// columns before any matching. A MissingFieldsError is returned when date,
// subject, description, or both amount fields stay unresolved; the
// returned Resolution is still populated for diagnostics.
func (r *Resolver) Resolve(labels []string, overrides map[domain.CanonicalField]string) (*Resolution, error) {
	res := &Resolution{
		Mapping: make(domain.ColumnMapping),
		Methods: make(map[domain.CanonicalField]Method),
		Scores:  make(map[domain.CanonicalField]float64),
	}
	claimed := make(map[string]domain.CanonicalField)

	for _, field := range domain.ResolutionOrder {
		col, ok := overrides[field]
		if !ok || col == "" {
			continue
		}
		if !containsLabel(labels, col) {
			return res, fmt.Errorf("override for %s: column %q not found", field, col)
		}
		if owner, taken := claimed[col]; taken {
			res.Warnings = append(res.Warnings, &domain.AmbiguousMappingError{Column: col, Kept: owner, Lost: field})
			continue
		}
		res.Mapping[field] = col
		res.Methods[field] = MethodOverride
		claimed[col] = field
	}

	for _, field := range domain.ResolutionOrder {
		if _, done := res.Mapping[field]; done {
			continue
		}
		if overrides[field] != "" {
			continue
		}
		col, method, score, ok := r.match(field, labels)
		if !ok {
			continue
		}
		if owner, taken := claimed[col]; taken {
			res.Warnings = append(res.Warnings, &domain.AmbiguousMappingError{Column: col, Kept: owner, Lost: field})
			continue
		}
		res.Mapping[field] = col
		res.Methods[field] = method
		if method == MethodFuzzy {
			res.Scores[field] = score
		}
		claimed[col] = field
	}

	if missing := missingFields(res.Mapping); len(missing) > 0 {
		return res, &domain.MissingFieldsError{Fields: missing}
	}
	return res, nil
}

func (r *Resolver) match(field domain.CanonicalField, labels []string) (string, Method, float64, bool) {
	if col, ok := r.aliasMatch(field, labels); ok {
		return col, MethodAlias, 1, true
	}
	if !fuzzyEligible(field) {
		return "", "", 0, false
	}
	idx, score := Best(r.preferred[field], labels, r.threshold)
	if idx < 0 {
		return "", "", score, false
	}
	return labels[idx], MethodFuzzy, score, true
}

func (r *Resolver) aliasMatch(field domain.CanonicalField, labels []string) (string, bool) {
	normalized := make([]string, len(labels))
	for i, l := range labels {
		normalized[i] = Normalize(l)
	}
	for _, alias := range r.keys[field] {
		for i, key := range normalized {
			if key == "" {
				continue
			}
			if key == alias || (r.mode == MatchContains && strings.Contains(key, alias)) {
				return labels[i], true
			}
		}
	}
	return "", false
}

// MatchLabel maps a template label to a canonical field by whole-label
// alias equality, or by the canonical name itself ("subject").
func (r *Resolver) MatchLabel(label string) (domain.CanonicalField, bool) {
	key := Normalize(label)
	if key == "" {
		return "", false
	}
	order := append(append([]domain.CanonicalField{}, domain.ResolutionOrder...), domain.FieldAmount)
	for _, field := range order {
		if key == Normalize(string(field)) {
			return field, true
		}
		for _, alias := range r.keys[field] {
			if key == alias {
				return field, true
			}
		}
	}
	return "", false
}

func missingFields(m domain.ColumnMapping) []domain.CanonicalField {
	var missing []domain.CanonicalField
	for _, f := range []domain.CanonicalField{domain.FieldDate, domain.FieldSubject, domain.FieldDescription} {
		if _, ok := m.Column(f); !ok {
			missing = append(missing, f)
		}
	}
	_, hasIncome := m.Column(domain.FieldIncome)
	_, hasExpense := m.Column(domain.FieldExpense)
	if !hasIncome && !hasExpense {
		missing = append(missing, domain.FieldIncome, domain.FieldExpense)
	}
	return missing
}

func containsLabel(labels []string, col string) bool {
	for _, l := range labels {
		if l == col {
			return true
		}
	}
	return false
}

// Hits counts the labels that match any alias under the resolver's mode.
// Sheet readers use it to locate the header row.
func (r *Resolver) Hits(labels []string) int {
	n := 0
	for _, l := range labels {
		key := Normalize(l)
		if key == "" {
			continue
		}
	fields:
		for _, aliases := range r.keys {
			for _, alias := range aliases {
				if key == alias || (r.mode == MatchContains && strings.Contains(key, alias)) {
					n++
					break fields
				}
			}
		}
	}
	return n
}
