package render

import (
	"voucher-service/internal/document"
	"voucher-service/internal/domain"
)

// fixedGeometry is the layout assumed when the first table has no
// recognisable label cells: row 1 holds voucher, subject, description and
// amount in its first four columns.
var fixedGeometry = []domain.CanonicalField{
	domain.FieldVoucherNumber,
	domain.FieldSubject,
	domain.FieldDescription,
	domain.FieldAmount,
}

type slot struct {
	row, col int
	field    domain.CanonicalField
	// font of the label cell, used when the slot has no formatting of its own
	font document.Font
}

// fillFirstTable writes values into the clone of the template's first
// table. Slots are found on the template, which still holds the original
// cell texts.
func (r *Renderer) fillFirstTable(tpl *document.Document, blocks []document.Block, values pageValues) {
	tables := tpl.Tables()
	if len(tables) == 0 {
		return
	}
	var clone *document.Table
	for _, b := range blocks {
		if t, ok := b.(*document.Table); ok {
			clone = t
			break
		}
	}
	if clone == nil {
		return
	}

	for _, s := range r.slots(tables[0]) {
		cell, ok := clone.Cell(s.row, s.col)
		if !ok {
			continue
		}
		fill(cell, values.fields[s.field], s.font)
	}
}

// slots finds where each field's value goes. A label cell's value goes to
// the empty cell below it, else the empty cell to its right; when neither
// neighbour is empty the label cell itself is overwritten. A table with no
// recognisable labels falls back to fixedGeometry.
func (r *Renderer) slots(t *document.Table) []slot {
	var out []slot
	for ri, row := range t.Rows {
		for ci, cell := range row.Cells {
			field, ok := r.labels.MatchLabel(cell.Text())
			if !ok {
				continue
			}
			font, _ := cellFont(cell)
			s := slot{row: ri, col: ci, field: field, font: font}
			switch {
			case emptyCell(t, ri+1, ci):
				s.row = ri + 1
			case emptyCell(t, ri, ci+1):
				s.col = ci + 1
			}
			out = append(out, s)
		}
	}
	if len(out) > 0 {
		return out
	}

	var header document.Font
	if c, ok := t.Cell(0, 0); ok {
		header, _ = cellFont(c)
	}
	for ci, field := range fixedGeometry {
		if _, ok := t.Cell(1, ci); ok {
			out = append(out, slot{row: 1, col: ci, field: field, font: header})
		}
	}
	return out
}

func emptyCell(t *document.Table, r, c int) bool {
	cell, ok := t.Cell(r, c)
	return ok && cell.Text() == ""
}

// cellFont returns the formatting of the cell's representative run.
func cellFont(c *document.Cell) (document.Font, bool) {
	for _, p := range c.Paragraphs {
		if run := p.FirstRun(); run != nil && run.Font != (document.Font{}) {
			return run.Font, true
		}
	}
	return document.Font{}, false
}

// fill replaces the cell text. Created runs keep the cell's own font, or
// fallback when the cell had none.
func fill(cell *document.Cell, text string, fallback document.Font) {
	font, ok := cellFont(cell)
	if !ok {
		font = fallback
	}
	cell.SetText(text)
	for _, p := range cell.Paragraphs {
		for _, run := range p.Runs {
			if run.Font == (document.Font{}) {
				run.Font = font
			}
		}
	}
}
