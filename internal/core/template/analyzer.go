package template

import (
	"regexp"
	"strings"

	"voucher-service/internal/document"
	"voucher-service/internal/domain"
)

// Strategy names how a template is filled.
type Strategy string

const (
	// StrategyMarkers substitutes {{FIELD}} tokens in place.
	StrategyMarkers Strategy = "markers"
	// StrategyTable fills the first table by label position.
	StrategyTable Strategy = "table"
	// StrategyParagraphs only rewrites date and title paragraphs.
	StrategyParagraphs Strategy = "paragraphs"
)

var (
	// DatePattern matches a year/month/day placeholder such as "年 月 日".
	DatePattern = regexp.MustCompile(`年\s*月\s*日`)
	// MarkerPattern matches {{FIELD}} tokens; the name is submatch 1.
	MarkerPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)
)

// Titles lists, per transaction type, the keywords that identify a title.
// The first keyword of a type is the title written for that type.
type Titles map[domain.TransactionType][]string

// DefaultTitles returns the voucher title keywords.
func DefaultTitles() Titles {
	return Titles{
		domain.TypeIncome:  {"收入憑證", "收入傳票"},
		domain.TypeExpense: {"支出憑證", "支出傳票"},
	}
}

// For returns the title written for typ.
func (t Titles) For(typ domain.TransactionType) string {
	if list := t[typ]; len(list) > 0 {
		return list[0]
	}
	return ""
}

// Find returns the first keyword of any type contained in text.
func (t Titles) Find(text string) (string, bool) {
	for _, typ := range []domain.TransactionType{domain.TypeIncome, domain.TypeExpense} {
		for _, kw := range t[typ] {
			if kw != "" && strings.Contains(text, kw) {
				return kw, true
			}
		}
	}
	return "", false
}

// Options configure Analyze.
type Options struct {
	Titles Titles
}

// ParagraphInfo describes one body paragraph.
type ParagraphInfo struct {
	Index       int    `json:"index"`
	Text        string `json:"text"`
	Style       string `json:"style"`
	IsDateField bool   `json:"is_date_field"`
	IsTitle     bool   `json:"is_title"`
}

// TableInfo describes one body table.
type TableInfo struct {
	Index   int      `json:"index"`
	Rows    int      `json:"rows"`
	Columns int      `json:"columns"`
	Headers []string `json:"headers"`
}

// Inventory is a read-only snapshot of a template's placeholders.
type Inventory struct {
	Paragraphs      []ParagraphInfo `json:"paragraphs"`
	Tables          []TableInfo     `json:"tables"`
	AvailableFields []string        `json:"available_fields"`
	Markers         []string        `json:"markers"`
	Strategy        Strategy        `json:"strategy"`
}

// Analyze inspects doc without modifying it.
func Analyze(doc *document.Document, opts Options) Inventory {
	titles := opts.Titles
	if titles == nil {
		titles = DefaultTitles()
	}

	inv := Inventory{}
	seen := make(map[string]bool)
	addMarkers := func(text string) {
		for _, m := range MarkerPattern.FindAllStringSubmatch(text, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				inv.Markers = append(inv.Markers, m[1])
			}
		}
	}

	for i, p := range doc.Paragraphs() {
		text := p.Text()
		_, isTitle := titles.Find(text)
		inv.Paragraphs = append(inv.Paragraphs, ParagraphInfo{
			Index:       i,
			Text:        strings.TrimSpace(text),
			Style:       p.Style,
			IsDateField: DatePattern.MatchString(text),
			IsTitle:     isTitle,
		})
		addMarkers(text)
	}

	for i, t := range doc.Tables() {
		info := TableInfo{Index: i, Rows: len(t.Rows)}
		for r, row := range t.Rows {
			if len(row.Cells) > info.Columns {
				info.Columns = len(row.Cells)
			}
			for _, cell := range row.Cells {
				text := cell.Text()
				if r == 0 {
					info.Headers = append(info.Headers, strings.TrimSpace(text))
				}
				addMarkers(text)
			}
		}
		for _, h := range info.Headers {
			if h != "" {
				inv.AvailableFields = append(inv.AvailableFields, h)
			}
		}
		inv.Tables = append(inv.Tables, info)
	}

	switch {
	case len(inv.Markers) > 0:
		inv.Strategy = StrategyMarkers
	case len(inv.Tables) > 0:
		inv.Strategy = StrategyTable
	default:
		inv.Strategy = StrategyParagraphs
	}
	return inv
}
