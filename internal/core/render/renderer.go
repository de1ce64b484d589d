package render

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"voucher-service/internal/core/dates"
	"voucher-service/internal/core/fields"
	"voucher-service/internal/core/template"
	"voucher-service/internal/document"
	"voucher-service/internal/domain"
)

// ErrNilTemplate is returned when Render is called without a template.
var ErrNilTemplate = errors.New("render: nil template")

// LabelMatcher maps template label text to a canonical field.
type LabelMatcher interface {
	MatchLabel(label string) (domain.CanonicalField, bool)
}

// Options configure a Renderer.
type Options struct {
	Labels    LabelMatcher
	Titles    template.Titles
	DateStyle dates.Style
	// BreakAfterLast also ends the final page with a page break.
	BreakAfterLast bool
	Logger         *zap.Logger
}

// Renderer fills a template once per record. It keeps no per-run state and
// is safe for concurrent use.
type Renderer struct {
	labels         LabelMatcher
	titles         template.Titles
	style          dates.Style
	breakAfterLast bool
	logger         *zap.Logger
}

// NewRenderer builds a Renderer, filling unset options with defaults.
func NewRenderer(opts Options) *Renderer {
	r := &Renderer{
		labels:         opts.Labels,
		titles:         opts.Titles,
		style:          opts.DateStyle,
		breakAfterLast: opts.BreakAfterLast,
		logger:         opts.Logger,
	}
	if r.labels == nil {
		r.labels = fields.NewResolver(fields.Options{})
	}
	if r.titles == nil {
		r.titles = template.DefaultTitles()
	}
	if r.style == "" {
		r.style = dates.StyleROC
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// DefaultTemplate holds the built-in layout used when the caller supplies a
// template with no body.
func DefaultTemplate() *document.Document {
	font := document.Font{Family: "標楷體", Size: 12}
	doc := document.New()
	doc.Append(document.NewParagraph("收入憑證", document.Font{Family: font.Family, Size: 18, Bold: true}))
	doc.Append(document.NewParagraph("中華民國 年 月 日", font))
	doc.Append(document.NewTable([][]string{
		{"憑證編號", "會計科目", "摘要", "金額"},
		{"", "", "", ""},
	}, font))
	return doc
}

// PageTemplate returns the document pages are cloned from: tpl itself, or
// when tpl has no body, a copy of tpl carrying the built-in layout. The copy
// keeps tpl's section, styles, headers and other package parts.
func PageTemplate(tpl *document.Document) *document.Document {
	if len(tpl.Blocks) > 0 {
		return tpl
	}
	out := tpl.Shell()
	out.Append(DefaultTemplate().CloneBlocks()...)
	return out
}

// Render produces one page per record in input order. Pages are separated
// by page breaks; the last page gets one only when BreakAfterLast is set.
// The template is never modified.
func (r *Renderer) Render(tpl *document.Document, records []domain.TransactionRecord) (*document.Document, []domain.RenderingGapWarning, error) {
	if tpl == nil {
		return nil, nil, ErrNilTemplate
	}
	tpl = PageTemplate(tpl)
	inv := template.Analyze(tpl, template.Options{Titles: r.titles})

	out := tpl.Shell()
	var warnings []domain.RenderingGapWarning
	for i, rec := range records {
		blocks, gaps := r.page(tpl, inv.Strategy, rec)
		out.Append(blocks...)
		warnings = append(warnings, gaps...)
		if i < len(records)-1 || r.breakAfterLast {
			out.AppendPageBreak()
		}
	}
	r.logger.Debug("rendered document",
		zap.String("strategy", string(inv.Strategy)),
		zap.Int("pages", len(records)),
		zap.Int("gaps", len(warnings)),
	)
	return out, warnings, nil
}

func (r *Renderer) page(tpl *document.Document, strategy template.Strategy, rec domain.TransactionRecord) ([]document.Block, []domain.RenderingGapWarning) {
	values := newPageValues(rec, r.style, r.titles)
	blocks := tpl.CloneBlocks()

	var gaps []domain.RenderingGapWarning
	switch strategy {
	case template.StrategyMarkers:
		gaps = r.substituteMarkers(blocks, values, rec.VoucherNumber)
	case template.StrategyTable:
		r.fillFirstTable(tpl, blocks, values)
	}
	if strategy != template.StrategyMarkers {
		forEachParagraph(blocks, func(p *document.Paragraph) {
			rewrite(p, func(s string) string { return replaceDate(s, values.fields[domain.FieldDate]) })
		})
	}
	forEachParagraph(blocks, func(p *document.Paragraph) {
		rewrite(p, func(s string) string { return r.replaceTitle(s, values.title) })
	})
	return blocks, gaps
}

// forEachParagraph visits body paragraphs and paragraphs inside table cells.
func forEachParagraph(blocks []document.Block, fn func(*document.Paragraph)) {
	for _, b := range blocks {
		switch v := b.(type) {
		case *document.Paragraph:
			fn(v)
		case *document.Table:
			for _, row := range v.Rows {
				for _, cell := range row.Cells {
					for _, p := range cell.Paragraphs {
						fn(p)
					}
				}
			}
		}
	}
}

// rewrite applies fn run by run so formatting stays where it was. When the
// text to replace spans runs, the paragraph collapses to one run carrying
// the representative run's formatting.
func rewrite(p *document.Paragraph, fn func(string) string) {
	whole := p.Text()
	want := fn(whole)
	if want == whole {
		return
	}
	for _, run := range p.Runs {
		run.Text = fn(run.Text)
	}
	if p.Text() != want {
		p.SetText(want)
	}
}

func replaceDate(text, date string) string {
	loc := template.DatePattern.FindStringIndex(text)
	if loc == nil || date == "" {
		return text
	}
	prefix := strings.TrimRight(text[:loc[0]], " \t　")
	if prefix != "" {
		prefix += " "
	}
	return prefix + date + text[loc[1]:]
}

func (r *Renderer) replaceTitle(text, title string) string {
	if title == "" {
		return text
	}
	kw, ok := r.titles.Find(text)
	if !ok || kw == title {
		return text
	}
	return strings.Replace(text, kw, title, 1)
}

func (r *Renderer) substituteMarkers(blocks []document.Block, values pageValues, voucher string) []domain.RenderingGapWarning {
	replace := func(s string) string {
		return template.MarkerPattern.ReplaceAllStringFunc(s, func(m string) string {
			name := template.MarkerPattern.FindStringSubmatch(m)[1]
			if v, ok := values.markerValue(name, r.labels); ok {
				return v
			}
			return m
		})
	}

	var gaps []domain.RenderingGapWarning
	seen := make(map[string]bool)
	forEachParagraph(blocks, func(p *document.Paragraph) {
		rewrite(p, replace)
		for _, m := range template.MarkerPattern.FindAllStringSubmatch(p.Text(), -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				gaps = append(gaps, domain.RenderingGapWarning{Marker: m[1], VoucherNumber: voucher})
			}
		}
	})
	return gaps
}
