package document

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"
)

const (
	contentTypesPart = "[Content_Types].xml"

	relImage  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	relHeader = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/header"

	headerContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.header+xml"
)

type relationships struct {
	XMLName xml.Name       `xml:"http://schemas.openxmlformats.org/package/2006/relationships Relationships"`
	Items   []relationship `xml:"Relationship"`
}

type relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr,omitempty"`
}

type typesXML struct {
	XMLName   xml.Name       `xml:"http://schemas.openxmlformats.org/package/2006/content-types Types"`
	Defaults  []typeDefault  `xml:"Default"`
	Overrides []typeOverride `xml:"Override"`
}

type typeDefault struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

type typeOverride struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}

func (d *Document) part(name string) ([]byte, bool) {
	for _, p := range d.parts {
		if p.name == name {
			return p.data, true
		}
	}
	return nil, false
}

// setPart stores a part. The part list is copied first because shells
// share it with the document they came from.
func (d *Document) setPart(name string, data []byte) {
	parts := make([]part, 0, len(d.parts)+1)
	replaced := false
	for _, p := range d.parts {
		if p.name == name {
			p.data = data
			replaced = true
		}
		parts = append(parts, p)
	}
	if !replaced {
		parts = append(parts, part{name: name, data: data})
	}
	d.parts = parts
}

// materialize gives a document built in memory the minimal package parts,
// so more parts can be added next to them.
func (d *Document) materialize() {
	if len(d.parts) > 0 {
		return
	}
	d.parts = []part{
		{name: contentTypesPart, data: []byte(contentTypes)},
		{name: "_rels/.rels", data: []byte(relationshipContent)},
		{name: documentPart},
	}
}

// unusedPart returns the first name of the pattern not taken yet. pattern
// holds one %d verb.
func (d *Document) unusedPart(pattern string) string {
	for n := 1; ; n++ {
		name := fmt.Sprintf(pattern, n)
		if _, ok := d.part(name); !ok {
			return name
		}
	}
}

func relsPath(partName string) string {
	dir, file := path.Split(partName)
	return dir + "_rels/" + file + ".rels"
}

func (d *Document) relationships(partName string) (*relationships, error) {
	rels := &relationships{}
	data, ok := d.part(relsPath(partName))
	if !ok {
		return rels, nil
	}
	if err := xml.Unmarshal(data, rels); err != nil {
		return nil, fmt.Errorf("docx_rels %s: %w", partName, err)
	}
	return rels, nil
}

// addRelationship records a relationship from partName and returns its id.
func (d *Document) addRelationship(partName, typ, target string) (string, error) {
	rels, err := d.relationships(partName)
	if err != nil {
		return "", err
	}
	used := make(map[string]bool, len(rels.Items))
	for _, r := range rels.Items {
		used[r.ID] = true
	}
	id := ""
	for n := len(rels.Items) + 1; ; n++ {
		if id = fmt.Sprintf("rId%d", n); !used[id] {
			break
		}
	}
	rels.Items = append(rels.Items, relationship{ID: id, Type: typ, Target: target})

	data, err := xml.Marshal(rels)
	if err != nil {
		return "", fmt.Errorf("docx_rels %s: %w", partName, err)
	}
	d.setPart(relsPath(partName), append([]byte(xml.Header), data...))
	return id, nil
}

// target resolves a relationship id of partName to a part name.
func (d *Document) target(partName, id string) (string, bool, error) {
	rels, err := d.relationships(partName)
	if err != nil {
		return "", false, err
	}
	for _, r := range rels.Items {
		if r.ID != id || r.TargetMode == "External" {
			continue
		}
		if strings.HasPrefix(r.Target, "/") {
			return strings.TrimPrefix(r.Target, "/"), true, nil
		}
		return path.Join(path.Dir(partName), r.Target), true, nil
	}
	return "", false, nil
}

func (d *Document) types() (*typesXML, error) {
	types := &typesXML{}
	data, ok := d.part(contentTypesPart)
	if !ok {
		return types, nil
	}
	if err := xml.Unmarshal(data, types); err != nil {
		return nil, fmt.Errorf("docx_content_types: %w", err)
	}
	return types, nil
}

func (d *Document) saveContentTypes(types *typesXML) error {
	data, err := xml.Marshal(types)
	if err != nil {
		return fmt.Errorf("docx_content_types: %w", err)
	}
	d.setPart(contentTypesPart, append([]byte(xml.Header), data...))
	return nil
}

// registerExtension declares the content type of every part with ext.
func (d *Document) registerExtension(ext, contentType string) error {
	types, err := d.types()
	if err != nil {
		return err
	}
	for _, def := range types.Defaults {
		if strings.EqualFold(def.Extension, ext) {
			return nil
		}
	}
	types.Defaults = append(types.Defaults, typeDefault{Extension: ext, ContentType: contentType})
	return d.saveContentTypes(types)
}

// registerPart declares the content type of one part.
func (d *Document) registerPart(partName, contentType string) error {
	types, err := d.types()
	if err != nil {
		return err
	}
	types.Overrides = append(types.Overrides, typeOverride{PartName: "/" + partName, ContentType: contentType})
	return d.saveContentTypes(types)
}

// defaultHeader returns the part holding the section's default header.
func (d *Document) defaultHeader() (string, bool, error) {
	for _, el := range splitProps(d.Section) {
		if el.name != "headerReference" {
			continue
		}
		if typ := attr(el.raw, "type"); typ != "" && typ != "default" {
			continue
		}
		name, ok, err := d.target(documentPart, attr(el.raw, "id"))
		if err != nil || !ok {
			return "", false, err
		}
		if _, exists := d.part(name); !exists {
			return "", false, nil
		}
		return name, true, nil
	}
	return "", false, nil
}

// newHeader creates a default header part holding p and references it from
// the section.
func (d *Document) newHeader(name string, p *Paragraph) error {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString(`<w:hdr` + defaultRootAttrs + `>`)
	if err := writeParagraph(&b, p); err != nil {
		return err
	}
	b.WriteString(`</w:hdr>`)
	d.setPart(name, b.Bytes())

	if err := d.registerPart(name, headerContentType); err != nil {
		return err
	}
	rel, err := d.addRelationship(documentPart, relHeader, path.Base(name))
	if err != nil {
		return err
	}
	section := d.Section
	if section == "" {
		section = defaultSection
	}
	// headerReference leads the section properties
	d.Section = `<w:headerReference w:type="default" r:id="` + rel + `"/>` + section
	return nil
}

// addToHeader adds run to the first top-level paragraph of a header
// part and aligns that paragraph. A header without paragraphs gets one.
// The rest of the part is kept byte for byte.
func addToHeader(src []byte, run *Run, align Align) ([]byte, error) {
	var runXML bytes.Buffer
	if err := writeRun(&runXML, run); err != nil {
		return nil, err
	}

	b := newBodyDecoder(src)
	depth := 0
	rootEnd := int64(-1)
	for {
		tok, begin, err := b.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("docx_header: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 2 && t.Name.Local == "p" {
				return b.extendParagraph(begin, runXML.Bytes(), align)
			}
		case xml.EndElement:
			if depth == 1 {
				rootEnd = begin
			}
			depth--
		}
	}
	if rootEnd < 0 {
		return nil, fmt.Errorf("docx_header: no root element")
	}

	p := &Paragraph{Runs: []*Run{run}}
	p.SetAlign(align)
	var out bytes.Buffer
	out.Write(src[:rootEnd])
	if err := writeParagraph(&out, p); err != nil {
		return nil, err
	}
	out.Write(src[rootEnd:])
	return out.Bytes(), nil
}

// extendParagraph rewrites the paragraph whose start tag begins at begin
// and has just been read: its pPr gets the alignment and runXML is added
// as its last child.
func (b *bodyDecoder) extendParagraph(begin int64, runXML []byte, align Align) ([]byte, error) {
	open := b.dec.InputOffset()
	if bytes.HasSuffix(b.src[begin:open], []byte("/>")) {
		p := &Paragraph{}
		p.SetAlign(align)
		var out bytes.Buffer
		out.Write(b.src[:begin])
		out.WriteString(`<w:p><w:pPr>` + p.Props + `</w:pPr>`)
		out.Write(runXML)
		out.WriteString(`</w:p>`)
		out.Write(b.src[open:])
		return out.Bytes(), nil
	}

	p := &Paragraph{}
	propsBegin, propsEnd := open, open
	depth := 0
	var closeAt int64
walk:
	for {
		tok, at, err := b.next()
		if err != nil {
			return nil, fmt.Errorf("docx_header: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 && t.Name.Local == "pPr" {
				if p.Props, err = b.inner(t); err != nil {
					return nil, err
				}
				propsBegin, propsEnd = at, b.dec.InputOffset()
				continue
			}
			depth++
		case xml.EndElement:
			if depth == 0 {
				closeAt = at
				break walk
			}
			depth--
		}
	}
	p.SetAlign(align)

	var out bytes.Buffer
	out.Write(b.src[:propsBegin])
	out.WriteString(`<w:pPr>` + p.Props + `</w:pPr>`)
	out.Write(b.src[propsEnd:closeAt])
	out.Write(runXML)
	out.Write(b.src[closeAt:])
	return out.Bytes(), nil
}
