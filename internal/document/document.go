package document

import "strings"

// Font is the subset of run formatting the renderer must carry over when it
// replaces text.
type Font struct {
	Family string
	// Size is in points; 0 means inherited from the style.
	Size   float64
	Bold   bool
	Italic bool
}

// Run is a span of uniformly formatted text.
type Run struct {
	Text string
	Font Font
	// Props holds the remaining run properties as raw WordprocessingML.
	Props     string
	PageBreak bool
	// Objects holds non-text run content (drawings, pictures, embedded
	// objects, field characters) as raw WordprocessingML.
	Objects string
	// Bare runs carry paragraph-level markup such as bookmarks; Objects is
	// written as is, without a w:r wrapper.
	Bare bool
}

// Clone returns a copy of r.
func (r *Run) Clone() *Run {
	c := *r
	return &c
}

// Block is a body-level element: *Paragraph, *Table or *RawBlock.
type Block interface {
	cloneBlock() Block
}

// RawBlock is a body-level element the model does not interpret, such as a
// content control. It is written back unchanged.
type RawBlock struct {
	XML string
}

func (b *RawBlock) cloneBlock() Block { return &RawBlock{XML: b.XML} }

// Paragraph is an ordered list of runs.
type Paragraph struct {
	Style string
	// Props holds the paragraph properties as raw WordprocessingML.
	Props string
	Runs  []*Run
}

// NewParagraph builds a single-run paragraph.
func NewParagraph(text string, font Font) *Paragraph {
	return &Paragraph{Runs: []*Run{{Text: text, Font: font}}}
}

// PageBreak builds a paragraph holding only a page break.
func PageBreak() *Paragraph {
	return &Paragraph{Runs: []*Run{{PageBreak: true}}}
}

// Text concatenates the text of all runs.
func (p *Paragraph) Text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

// IsPageBreak reports whether p only carries a page break.
func (p *Paragraph) IsPageBreak() bool {
	if len(p.Runs) == 0 {
		return false
	}
	for _, r := range p.Runs {
		if !r.PageBreak || r.Text != "" || r.Objects != "" {
			return false
		}
	}
	return true
}

// FirstRun returns the run whose formatting represents the paragraph: the
// first run with text, else the first real run, else nil.
func (p *Paragraph) FirstRun() *Run {
	for _, r := range p.Runs {
		if r.Text != "" {
			return r
		}
	}
	for _, r := range p.Runs {
		if !r.Bare {
			return r
		}
	}
	return nil
}

// SetText replaces the text runs with one run that keeps the formatting of
// the representative run. Runs holding objects stay in place with their
// text cleared.
func (p *Paragraph) SetText(text string) {
	first := p.FirstRun()
	run := &Run{Text: text}
	if first != nil {
		run.Font = first.Font
		run.Props = first.Props
	}

	runs := make([]*Run, 0, 1)
	placed := false
	for _, r := range p.Runs {
		if r == first {
			runs = append(runs, run)
			placed = true
		}
		if r.Objects != "" {
			kept := r.Clone()
			kept.Text = ""
			kept.PageBreak = false
			runs = append(runs, kept)
		}
	}
	if !placed {
		runs = append(runs, run)
	}
	p.Runs = runs
}

// dropObjects removes the runs that hold objects.
func (p *Paragraph) dropObjects() {
	kept := p.Runs[:0]
	for _, r := range p.Runs {
		if r.Objects == "" {
			kept = append(kept, r)
		}
	}
	p.Runs = kept
}

// Align is a paragraph alignment.
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// SetAlign sets the paragraph justification, keeping the other paragraph
// properties.
func (p *Paragraph) SetAlign(a Align) {
	props := p.Props
	if props == "" && p.Style != "" {
		props = `<w:pStyle w:val="` + escapeAttr(p.Style) + `"/>`
	}
	elements := splitProps(props)
	kept := elements[:0]
	for _, el := range elements {
		if el.name != "jc" {
			kept = append(kept, el)
		}
	}
	kept = append(kept, propElement{name: "jc", raw: `<w:jc w:val="` + string(a) + `"/>`})
	p.Props = joinProps(kept, paraPropRank)
}

// Clone returns a deep copy of p.
func (p *Paragraph) Clone() *Paragraph {
	c := &Paragraph{Style: p.Style, Props: p.Props, Runs: make([]*Run, len(p.Runs))}
	for i, r := range p.Runs {
		c.Runs[i] = r.Clone()
	}
	return c
}

func (p *Paragraph) cloneBlock() Block { return p.Clone() }

// Cell is a table cell holding paragraphs.
type Cell struct {
	Props string
	// Objects holds other cell content, such as nested tables, as raw
	// WordprocessingML. It is written ahead of the paragraphs.
	Objects    string
	Paragraphs []*Paragraph
}

// NewCell builds a cell with one paragraph.
func NewCell(text string, font Font) *Cell {
	return &Cell{Paragraphs: []*Paragraph{NewParagraph(text, font)}}
}

// Text joins the paragraph texts with newlines.
func (c *Cell) Text() string {
	parts := make([]string, len(c.Paragraphs))
	for i, p := range c.Paragraphs {
		parts[i] = p.Text()
	}
	return strings.Join(parts, "\n")
}

// SetText writes text into the cell, one paragraph per line, each reusing
// the first paragraph's properties and run formatting.
func (c *Cell) SetText(text string) {
	proto := &Paragraph{}
	if len(c.Paragraphs) > 0 {
		proto = c.Paragraphs[0]
	}
	lines := strings.Split(text, "\n")
	out := make([]*Paragraph, len(lines))
	for i, line := range lines {
		p := proto.Clone()
		p.SetText(line)
		if i > 0 {
			p.dropObjects()
		}
		out[i] = p
	}
	c.Paragraphs = out
}

// Clone returns a deep copy of c.
func (c *Cell) Clone() *Cell {
	out := &Cell{Props: c.Props, Objects: c.Objects, Paragraphs: make([]*Paragraph, len(c.Paragraphs))}
	for i, p := range c.Paragraphs {
		out.Paragraphs[i] = p.Clone()
	}
	return out
}

// TableRow is one row of cells.
type TableRow struct {
	Props string
	Cells []*Cell
}

// Table is a grid of cells.
type Table struct {
	Props string
	// Grid holds column widths in twentieths of a point.
	Grid []int
	Rows []*TableRow
}

// NewTable builds a rows x cols table of cells holding the given texts.
func NewTable(texts [][]string, font Font) *Table {
	t := &Table{}
	for _, line := range texts {
		row := &TableRow{}
		for _, text := range line {
			row.Cells = append(row.Cells, NewCell(text, font))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Cell returns the cell at row r, column c.
func (t *Table) Cell(r, c int) (*Cell, bool) {
	if r < 0 || r >= len(t.Rows) || c < 0 || c >= len(t.Rows[r].Cells) {
		return nil, false
	}
	return t.Rows[r].Cells[c], true
}

// Clone returns a deep copy of t.
func (t *Table) Clone() *Table {
	out := &Table{Props: t.Props, Grid: append([]int(nil), t.Grid...), Rows: make([]*TableRow, len(t.Rows))}
	for i, row := range t.Rows {
		nr := &TableRow{Props: row.Props, Cells: make([]*Cell, len(row.Cells))}
		for j, cell := range row.Cells {
			nr.Cells[j] = cell.Clone()
		}
		out.Rows[i] = nr
	}
	return out
}

func (t *Table) cloneBlock() Block { return t.Clone() }

// Document is an in-memory word-processing document: ordered body blocks,
// the trailing section properties and, when decoded from a file, the other
// package parts needed to write it back.
type Document struct {
	Blocks []Block
	// Section holds the body's sectPr content as raw WordprocessingML.
	Section string

	rootAttrs string
	// prelude holds document children written ahead of the body.
	prelude  string
	parts    []part
	drawings int
}

type part struct {
	name string
	data []byte
}

// New returns an empty document.
func New() *Document {
	return &Document{}
}

// Tables returns the body-level tables in order.
func (d *Document) Tables() []*Table {
	var out []*Table
	for _, b := range d.Blocks {
		if t, ok := b.(*Table); ok {
			out = append(out, t)
		}
	}
	return out
}

// Paragraphs returns the body-level paragraphs in order.
func (d *Document) Paragraphs() []*Paragraph {
	var out []*Paragraph
	for _, b := range d.Blocks {
		if p, ok := b.(*Paragraph); ok {
			out = append(out, p)
		}
	}
	return out
}

// Append adds blocks to the end of the body.
func (d *Document) Append(blocks ...Block) {
	d.Blocks = append(d.Blocks, blocks...)
}

// AppendPageBreak adds a page-break paragraph.
func (d *Document) AppendPageBreak() {
	d.Blocks = append(d.Blocks, PageBreak())
}

// CloneBlocks returns deep copies of the body blocks.
func (d *Document) CloneBlocks() []Block {
	out := make([]Block, len(d.Blocks))
	for i, b := range d.Blocks {
		out[i] = b.cloneBlock()
	}
	return out
}

// Clone returns a deep copy of d. Package parts are shared until either
// side stores one.
func (d *Document) Clone() *Document {
	c := d.Shell()
	c.Blocks = d.CloneBlocks()
	return c
}

// Shell returns a document with d's section, root and package parts but an
// empty body, ready to receive rendered pages.
func (d *Document) Shell() *Document {
	return &Document{
		Section:   d.Section,
		rootAttrs: d.rootAttrs,
		prelude:   d.prelude,
		parts:     d.parts,
		drawings:  d.drawings,
	}
}
