package template

import "voucher-service/internal/core/fields"

// Suggestion pairs a template label with the closest spreadsheet column.
type Suggestion struct {
	Label  string  `json:"label"`
	Column string  `json:"column,omitempty"`
	Score  float64 `json:"score"`
}

// Suggest proposes a spreadsheet column for every available template field.
// Labels with no column reaching threshold get an empty Column.
func Suggest(inv Inventory, columns []string, threshold float64) []Suggestion {
	if threshold <= 0 {
		threshold = fields.DefaultThreshold
	}
	out := make([]Suggestion, 0, len(inv.AvailableFields))
	for _, label := range inv.AvailableFields {
		s := Suggestion{Label: label}
		if idx, score := fields.Best(label, columns, threshold); idx >= 0 {
			s.Column = columns[idx]
			s.Score = score
		}
		out = append(out, s)
	}
	return out
}
