package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

const (
	documentPart = "word/document.xml"

	relationshipContent = `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

	contentTypes = `<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="xml" ContentType="application/xml"/>
  <Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

	defaultRootAttrs = ` xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`
	defaultSection   = `<w:pgSz w:w="11906" w:h="16838"/><w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440"/>`
)

var (
	rootPattern   = regexp.MustCompile(`<([A-Za-z0-9_]+:)?document\b([^>]*)>`)
	pStylePattern = regexp.MustCompile(`pStyle\b[^>]*\bval="([^"]*)"`)
)

// Decode parses a DOCX payload into a Document. Parts other than the main
// document are kept verbatim so Encode can write them back.
func Decode(data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("docx_empty")
	}
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("docx_open: %w", err)
	}

	doc := &Document{}
	var body []byte
	for _, file := range archive.File {
		content, err := readZipFile(file)
		if err != nil {
			return nil, err
		}
		if file.Name == documentPart {
			body = content
		}
		doc.parts = append(doc.parts, part{name: file.Name, data: content})
	}
	if body == nil {
		return nil, fmt.Errorf("docx_document_missing")
	}
	if m := rootPattern.FindSubmatch(body); m != nil {
		doc.rootAttrs = string(m[2])
	}
	if err := decodeBody(body, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func readZipFile(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("docx_read %s: %w", file.Name, err)
	}
	defer rc.Close()
	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("docx_read %s: %w", file.Name, err)
	}
	return content, nil
}

type rawXML struct {
	Inner string `xml:",innerxml"`
}

// bodyDecoder walks a part's XML tokens while tracking input offsets, so
// elements the model does not interpret can be kept as their source text.
type bodyDecoder struct {
	src []byte
	dec *xml.Decoder
}

func newBodyDecoder(src []byte) *bodyDecoder {
	return &bodyDecoder{src: src, dec: xml.NewDecoder(bytes.NewReader(src))}
}

// next returns the next token and the offset it starts at.
func (b *bodyDecoder) next() (xml.Token, int64, error) {
	begin := b.dec.InputOffset()
	tok, err := b.dec.Token()
	return tok, begin, err
}

// outer skips the element just started at begin and returns its source.
func (b *bodyDecoder) outer(begin int64) (string, error) {
	if err := b.dec.Skip(); err != nil {
		return "", fmt.Errorf("docx_decode: %w", err)
	}
	return string(b.src[begin:b.dec.InputOffset()]), nil
}

// inner returns the source between the element's tags.
func (b *bodyDecoder) inner(start xml.StartElement) (string, error) {
	var raw rawXML
	if err := b.dec.DecodeElement(&raw, &start); err != nil {
		return "", fmt.Errorf("docx_decode: %w", err)
	}
	return raw.Inner, nil
}

// runContainers wrap runs without changing how they read: hyperlinks,
// tracked insertions, content controls and similar.
var runContainers = map[string]bool{
	"hyperlink": true, "ins": true, "smartTag": true, "sdt": true,
	"sdtContent": true, "fldSimple": true, "customXml": true,
}

// paragraphNoise is markup dropped from paragraphs.
var paragraphNoise = map[string]bool{"proofErr": true, "sdtPr": true, "sdtEndPr": true}

func (b *bodyDecoder) paragraph() (*Paragraph, error) {
	p := &Paragraph{}
	if err := b.collect(p); err != nil {
		return nil, err
	}
	return p, nil
}

// collect reads paragraph content up to the closing tag, flattening runs
// nested in containers.
func (b *bodyDecoder) collect(p *Paragraph) error {
	for {
		tok, begin, err := b.next()
		if err != nil {
			return fmt.Errorf("docx_decode: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch name := t.Name.Local; {
			case name == "pPr":
				if p.Props, err = b.inner(t); err != nil {
					return err
				}
				if m := pStylePattern.FindStringSubmatch(p.Props); m != nil {
					p.Style = m[1]
				}
			case name == "r":
				run, err := b.run()
				if err != nil {
					return err
				}
				p.Runs = append(p.Runs, run)
			case runContainers[name]:
				if err := b.collect(p); err != nil {
					return err
				}
			case paragraphNoise[name]:
				if err := b.dec.Skip(); err != nil {
					return fmt.Errorf("docx_decode: %w", err)
				}
			default:
				raw, err := b.outer(begin)
				if err != nil {
					return err
				}
				p.Runs = append(p.Runs, &Run{Objects: raw, Bare: true})
			}
		case xml.EndElement:
			return nil
		}
	}
}

func (b *bodyDecoder) run() (*Run, error) {
	run := &Run{}
	var text, objects strings.Builder
	for {
		tok, begin, err := b.next()
		if err != nil {
			return nil, fmt.Errorf("docx_decode: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "rPr":
				inner, err := b.inner(t)
				if err != nil {
					return nil, err
				}
				run.Font, run.Props = parseRunProps(inner)
				continue
			case "t":
				var s string
				if err := b.dec.DecodeElement(&s, &t); err != nil {
					return nil, fmt.Errorf("docx_decode: %w", err)
				}
				text.WriteString(s)
				continue
			case "tab":
				text.WriteString("\t")
			case "br", "cr":
				if attrValue(t, "type") == "page" {
					run.PageBreak = true
				} else {
					text.WriteString("\n")
				}
			case "lastRenderedPageBreak":
			default:
				raw, err := b.outer(begin)
				if err != nil {
					return nil, err
				}
				objects.WriteString(raw)
				continue
			}
			if err := b.dec.Skip(); err != nil {
				return nil, fmt.Errorf("docx_decode: %w", err)
			}
		case xml.EndElement:
			run.Text = text.String()
			run.Objects = objects.String()
			return run, nil
		}
	}
}

func attrValue(start xml.StartElement, local string) string {
	for _, a := range start.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func (b *bodyDecoder) table() (*Table, error) {
	t := &Table{}
	for {
		tok, _, err := b.next()
		if err != nil {
			return nil, fmt.Errorf("docx_decode: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "tblPr":
				if t.Props, err = b.inner(el); err != nil {
					return nil, err
				}
			case "tblGrid":
				if t.Grid, err = b.grid(); err != nil {
					return nil, err
				}
			case "tr":
				row, err := b.row()
				if err != nil {
					return nil, err
				}
				t.Rows = append(t.Rows, row)
			default:
				if err := b.dec.Skip(); err != nil {
					return nil, fmt.Errorf("docx_decode: %w", err)
				}
			}
		case xml.EndElement:
			return t, nil
		}
	}
}

func (b *bodyDecoder) grid() ([]int, error) {
	var widths []int
	for {
		tok, _, err := b.next()
		if err != nil {
			return nil, fmt.Errorf("docx_decode: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == "gridCol" {
				w, _ := strconv.Atoi(attrValue(el, "w"))
				widths = append(widths, w)
			}
			if err := b.dec.Skip(); err != nil {
				return nil, fmt.Errorf("docx_decode: %w", err)
			}
		case xml.EndElement:
			return widths, nil
		}
	}
}

func (b *bodyDecoder) row() (*TableRow, error) {
	row := &TableRow{}
	for {
		tok, _, err := b.next()
		if err != nil {
			return nil, fmt.Errorf("docx_decode: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "trPr":
				if row.Props, err = b.inner(el); err != nil {
					return nil, err
				}
			case "tc":
				cell, err := b.cell()
				if err != nil {
					return nil, err
				}
				row.Cells = append(row.Cells, cell)
			default:
				if err := b.dec.Skip(); err != nil {
					return nil, fmt.Errorf("docx_decode: %w", err)
				}
			}
		case xml.EndElement:
			return row, nil
		}
	}
}

func (b *bodyDecoder) cell() (*Cell, error) {
	cell := &Cell{}
	var objects strings.Builder
	for {
		tok, begin, err := b.next()
		if err != nil {
			return nil, fmt.Errorf("docx_decode: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "tcPr":
				if cell.Props, err = b.inner(el); err != nil {
					return nil, err
				}
			case "p":
				p, err := b.paragraph()
				if err != nil {
					return nil, err
				}
				cell.Paragraphs = append(cell.Paragraphs, p)
			default:
				raw, err := b.outer(begin)
				if err != nil {
					return nil, err
				}
				objects.WriteString(raw)
			}
		case xml.EndElement:
			cell.Objects = objects.String()
			return cell, nil
		}
	}
}

// decodeBody fills doc from the main document part. Body children the
// model does not interpret become RawBlocks.
func decodeBody(src []byte, doc *Document) error {
	b := newBodyDecoder(src)
	inBody := false
	for {
		tok, begin, err := b.next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("docx_decode: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "document":
		case "body":
			inBody = true
		case "p":
			p, err := b.paragraph()
			if err != nil {
				return err
			}
			doc.Blocks = append(doc.Blocks, p)
		case "tbl":
			t, err := b.table()
			if err != nil {
				return err
			}
			doc.Blocks = append(doc.Blocks, t)
		case "sectPr":
			if doc.Section, err = b.inner(start); err != nil {
				return err
			}
		default:
			raw, err := b.outer(begin)
			if err != nil {
				return err
			}
			if inBody {
				doc.Blocks = append(doc.Blocks, &RawBlock{XML: raw})
			} else {
				doc.prelude += raw
			}
		}
	}
}

// Encode serializes doc. A decoded document keeps every original package
// part except the main document, which is regenerated.
func Encode(doc *Document) ([]byte, error) {
	documentXML, err := buildDocumentXML(doc)
	if err != nil {
		return nil, err
	}

	buffer := &bytes.Buffer{}
	archive := zip.NewWriter(buffer)

	if len(doc.parts) == 0 {
		if err := writeZipFile(archive, "[Content_Types].xml", []byte(contentTypes)); err != nil {
			return nil, err
		}
		if err := writeZipFile(archive, "_rels/.rels", []byte(relationshipContent)); err != nil {
			return nil, err
		}
		if err := writeZipFile(archive, documentPart, documentXML); err != nil {
			return nil, err
		}
	}
	for _, p := range doc.parts {
		data := p.data
		if p.name == documentPart {
			data = documentXML
		}
		if err := writeZipFile(archive, p.name, data); err != nil {
			return nil, err
		}
	}

	if err := archive.Close(); err != nil {
		return nil, fmt.Errorf("docx_close: %w", err)
	}
	return buffer.Bytes(), nil
}

func writeZipFile(archive *zip.Writer, name string, data []byte) error {
	writer, err := archive.Create(name)
	if err != nil {
		return fmt.Errorf("docx_zip_entry: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("docx_zip_write: %w", err)
	}
	return nil
}

func buildDocumentXML(doc *Document) ([]byte, error) {
	var b bytes.Buffer
	attrs := doc.rootAttrs
	if attrs == "" {
		attrs = defaultRootAttrs
	}
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString(`<w:document` + attrs + `>`)
	b.WriteString(doc.prelude)
	b.WriteString(`<w:body>`)
	if err := writeBlocks(&b, doc.Blocks); err != nil {
		return nil, err
	}
	section := doc.Section
	if section == "" {
		section = defaultSection
	}
	b.WriteString(`<w:sectPr>` + section + `</w:sectPr>`)
	b.WriteString(`</w:body></w:document>`)
	return b.Bytes(), nil
}

func writeBlocks(b *bytes.Buffer, blocks []Block) error {
	for _, block := range blocks {
		var err error
		switch v := block.(type) {
		case *Paragraph:
			err = writeParagraph(b, v)
		case *Table:
			err = writeTable(b, v)
		case *RawBlock:
			b.WriteString(v.XML)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func writeParagraph(b *bytes.Buffer, p *Paragraph) error {
	b.WriteString(`<w:p>`)
	switch {
	case p.Props != "":
		b.WriteString(`<w:pPr>` + p.Props + `</w:pPr>`)
	case p.Style != "":
		b.WriteString(`<w:pPr><w:pStyle w:val="`)
		if err := xml.EscapeText(b, []byte(p.Style)); err != nil {
			return fmt.Errorf("docx_escape: %w", err)
		}
		b.WriteString(`"/></w:pPr>`)
	}
	for _, r := range p.Runs {
		if err := writeRun(b, r); err != nil {
			return err
		}
	}
	b.WriteString(`</w:p>`)
	return nil
}

func writeRun(b *bytes.Buffer, r *Run) error {
	if r.Bare {
		b.WriteString(r.Objects)
		return nil
	}
	b.WriteString(`<w:r>`)
	if props := buildRunProps(r.Font, r.Props); props != "" {
		b.WriteString(`<w:rPr>` + props + `</w:rPr>`)
	}
	if r.PageBreak {
		b.WriteString(`<w:br w:type="page"/>`)
	}
	b.WriteString(r.Objects)
	lines := strings.Split(r.Text, "\n")
	for i, line := range lines {
		if i > 0 {
			b.WriteString(`<w:br/>`)
		}
		for j, segment := range strings.Split(line, "\t") {
			if j > 0 {
				b.WriteString(`<w:tab/>`)
			}
			if segment == "" {
				continue
			}
			b.WriteString(`<w:t xml:space="preserve">`)
			if err := xml.EscapeText(b, []byte(segment)); err != nil {
				return fmt.Errorf("docx_escape: %w", err)
			}
			b.WriteString(`</w:t>`)
		}
	}
	b.WriteString(`</w:r>`)
	return nil
}

func writeTable(b *bytes.Buffer, t *Table) error {
	b.WriteString(`<w:tbl>`)
	props := t.Props
	if props == "" {
		props = `<w:tblW w:w="0" w:type="auto"/>`
	}
	b.WriteString(`<w:tblPr>` + props + `</w:tblPr>`)
	b.WriteString(`<w:tblGrid>`)
	for _, w := range t.Grid {
		fmt.Fprintf(b, `<w:gridCol w:w="%d"/>`, w)
	}
	b.WriteString(`</w:tblGrid>`)
	for _, row := range t.Rows {
		b.WriteString(`<w:tr>`)
		if row.Props != "" {
			b.WriteString(`<w:trPr>` + row.Props + `</w:trPr>`)
		}
		for _, cell := range row.Cells {
			b.WriteString(`<w:tc>`)
			if cell.Props != "" {
				b.WriteString(`<w:tcPr>` + cell.Props + `</w:tcPr>`)
			}
			b.WriteString(cell.Objects)
			if len(cell.Paragraphs) == 0 {
				b.WriteString(`<w:p/>`)
			}
			for _, p := range cell.Paragraphs {
				if err := writeParagraph(b, p); err != nil {
					return err
				}
			}
			b.WriteString(`</w:tc>`)
		}
		b.WriteString(`</w:tr>`)
	}
	b.WriteString(`</w:tbl>`)
	return nil
}
