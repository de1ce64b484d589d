package document

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// rPr children must appear in schema order or Word refuses the file.
var runPropOrder = []string{
	"rStyle", "rFonts", "b", "bCs", "i", "iCs", "caps", "smallCaps", "strike",
	"dstrike", "outline", "shadow", "emboss", "imprint", "noProof", "snapToGrid",
	"vanish", "webHidden", "color", "spacing", "w", "kern", "position", "sz",
	"szCs", "highlight", "u", "effect", "bdr", "shd", "fitText", "vertAlign",
	"rtl", "cs", "em", "lang", "eastAsianLayout", "specVanish", "oMath",
}

// pPr children, same constraint.
var paraPropOrder = []string{
	"pStyle", "keepNext", "keepLines", "pageBreakBefore", "framePr", "widowControl",
	"numPr", "suppressLineNumbers", "pBdr", "shd", "tabs", "suppressAutoHyphens",
	"kinsoku", "wordWrap", "overflowPunct", "topLinePunct", "autoSpaceDE",
	"autoSpaceDN", "bidi", "adjustRightInd", "snapToGrid", "spacing", "ind",
	"contextualSpacing", "mirrorIndents", "suppressOverlap", "jc", "textDirection",
	"textAlignment", "textboxTightWrap", "outlineLvl", "divId", "cnfStyle", "rPr",
	"sectPr", "pPrChange",
}

var (
	runPropRank  = rankOf(runPropOrder)
	paraPropRank = rankOf(paraPropOrder)
)

func rankOf(order []string) map[string]int {
	m := make(map[string]int, len(order))
	for i, name := range order {
		m[name] = i
	}
	return m
}

// owned by Font; dropped from Props on decode and regenerated on encode
var fontProps = map[string]bool{"b": true, "bCs": true, "i": true, "iCs": true, "sz": true, "szCs": true}

type propElement struct {
	name string
	raw  string
}

// splitProps breaks raw property XML into its top-level elements.
func splitProps(inner string) []propElement {
	if strings.TrimSpace(inner) == "" {
		return nil
	}
	wrapped := "<x>" + inner + "</x>"
	dec := xml.NewDecoder(strings.NewReader(wrapped))
	dec.Strict = false

	var out []propElement
	depth := 0
	var name string
	var begin int64
	for {
		offset := dec.InputOffset()
		tok, err := dec.RawToken()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 2 {
				name = t.Name.Local
				begin = offset
			}
		case xml.EndElement:
			if depth == 2 {
				end := dec.InputOffset()
				out = append(out, propElement{name: name, raw: wrapped[begin:end]})
			}
			depth--
		}
	}
	return out
}

func attr(raw, local string) string {
	dec := xml.NewDecoder(strings.NewReader(raw))
	dec.Strict = false
	tok, err := dec.RawToken()
	if err != nil {
		return ""
	}
	start, ok := tok.(xml.StartElement)
	if !ok {
		return ""
	}
	for _, a := range start.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// toggle reads an on/off property; a bare element means on.
func toggle(raw string) bool {
	switch attr(raw, "val") {
	case "", "1", "true", "on":
		return true
	}
	return false
}

// parseRunProps extracts the Font and returns the remaining properties.
func parseRunProps(inner string) (Font, string) {
	var font Font
	var rest strings.Builder
	for _, el := range splitProps(inner) {
		switch el.name {
		case "rFonts":
			font.Family = familyOf(el.raw)
			rest.WriteString(el.raw)
		case "sz":
			if half, err := strconv.ParseFloat(attr(el.raw, "val"), 64); err == nil {
				font.Size = half / 2
			}
		case "b":
			font.Bold = toggle(el.raw)
		case "i":
			font.Italic = toggle(el.raw)
		case "szCs", "bCs", "iCs":
		default:
			rest.WriteString(el.raw)
		}
	}
	return font, rest.String()
}

// familyOf returns the family a rFonts element stands for: the East Asian
// font first, then the ASCII and high-ANSI fonts.
func familyOf(raw string) string {
	for _, key := range []string{"eastAsia", "ascii", "hAnsi"} {
		if v := attr(raw, key); v != "" {
			return v
		}
	}
	return ""
}

// buildRunProps merges font back into the raw properties in schema order.
// A rFonts element is only rewritten when font names another family, so
// mixed Latin and East Asian fonts survive a round trip.
func buildRunProps(font Font, props string) string {
	elements := splitProps(props)
	kept := elements[:0]
	hasFonts := false
	for _, el := range elements {
		if fontProps[el.name] {
			continue
		}
		if el.name == "rFonts" {
			hasFonts = true
			if font.Family != "" && font.Family != familyOf(el.raw) {
				el.raw = rFonts(font.Family)
			}
		}
		kept = append(kept, el)
	}
	if !hasFonts && font.Family != "" {
		kept = append(kept, propElement{name: "rFonts", raw: rFonts(font.Family)})
	}
	if font.Bold {
		kept = append(kept, propElement{name: "b", raw: "<w:b/>"}, propElement{name: "bCs", raw: "<w:bCs/>"})
	}
	if font.Italic {
		kept = append(kept, propElement{name: "i", raw: "<w:i/>"}, propElement{name: "iCs", raw: "<w:iCs/>"})
	}
	if font.Size > 0 {
		half := strconv.FormatFloat(font.Size*2, 'f', -1, 64)
		kept = append(kept,
			propElement{name: "sz", raw: fmt.Sprintf(`<w:sz w:val="%s"/>`, half)},
			propElement{name: "szCs", raw: fmt.Sprintf(`<w:szCs w:val="%s"/>`, half)},
		)
	}

	return joinProps(kept, runPropRank)
}

// joinProps writes elements in the order given by ranks; unknown names go
// last, keeping their relative order.
func joinProps(elements []propElement, ranks map[string]int) string {
	rank := func(name string) int {
		if r, ok := ranks[name]; ok {
			return r
		}
		return len(ranks)
	}
	sort.SliceStable(elements, func(a, b int) bool {
		return rank(elements[a].name) < rank(elements[b].name)
	})
	var b strings.Builder
	for _, el := range elements {
		b.WriteString(el.raw)
	}
	return b.String()
}

func rFonts(family string) string {
	var b strings.Builder
	b.WriteString(`<w:rFonts`)
	for _, key := range []string{"ascii", "hAnsi", "eastAsia", "cs"} {
		b.WriteString(` w:` + key + `="` + escapeAttr(family) + `"`)
	}
	b.WriteString(`/>`)
	return b.String()
}

func escapeAttr(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
