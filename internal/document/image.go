package document

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path"

	"github.com/gabriel-vasile/mimetype"
)

// Inch is one inch in EMUs, the unit of drawing extents.
const Inch int64 = 914400

var imageTypes = []struct{ mime, ext string }{
	{"image/png", "png"},
	{"image/jpeg", "jpeg"},
	{"image/gif", "gif"},
}

// Image is a picture that can be placed in a document.
type Image struct {
	data []byte
	mime string
	ext  string
	// Width and Height are in pixels.
	Width  int
	Height int
}

// NewImage detects the format of data and reads its dimensions. PNG, JPEG
// and GIF are accepted.
func NewImage(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("image_empty")
	}
	detected := mimetype.Detect(data)
	img := &Image{data: data}
	for _, t := range imageTypes {
		if detected.Is(t.mime) {
			img.mime, img.ext = t.mime, t.ext
			break
		}
	}
	if img.ext == "" {
		return nil, fmt.Errorf("image_unsupported_format: %s", detected.String())
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("image_decode: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("image_decode: empty image")
	}
	img.Width, img.Height = cfg.Width, cfg.Height
	return img, nil
}

// extent scales the image to width EMUs, keeping its aspect ratio.
func (img *Image) extent(width int64) (int64, int64) {
	return width, width * int64(img.Height) / int64(img.Width)
}

// Picture stores img in the package and returns a paragraph that shows it
// width EMUs wide.
func (d *Document) Picture(img *Image, width int64, align Align) (*Paragraph, error) {
	run, err := d.pictureRun(documentPart, img, width)
	if err != nil {
		return nil, err
	}
	p := &Paragraph{Runs: []*Run{run}}
	p.SetAlign(align)
	return p, nil
}

// AddHeaderPicture places img in the first paragraph of the default
// header, aligned as given. A section without a default header gets one.
func (d *Document) AddHeaderPicture(img *Image, width int64, align Align) error {
	d.materialize()
	name, ok, err := d.defaultHeader()
	if err != nil {
		return err
	}
	if !ok {
		name = d.unusedPart("word/header%d.xml")
	}
	run, err := d.pictureRun(name, img, width)
	if err != nil {
		return err
	}

	if !ok {
		p := &Paragraph{Runs: []*Run{run}}
		p.SetAlign(align)
		return d.newHeader(name, p)
	}
	src, _ := d.part(name)
	out, err := addToHeader(src, run, align)
	if err != nil {
		return err
	}
	d.setPart(name, out)
	return nil
}

// pictureRun adds the media part and its relationship from owner, then
// builds the run holding the inline drawing.
func (d *Document) pictureRun(owner string, img *Image, width int64) (*Run, error) {
	d.materialize()
	media := d.unusedPart("word/media/image%d." + img.ext)
	d.setPart(media, img.data)
	if err := d.registerExtension(img.ext, img.mime); err != nil {
		return nil, err
	}
	rel, err := d.addRelationship(owner, relImage, "media/"+path.Base(media))
	if err != nil {
		return nil, err
	}
	d.drawings++
	cx, cy := img.extent(width)
	return &Run{Objects: inlineDrawing(rel, path.Base(media), drawingIDBase+d.drawings, cx, cy)}, nil
}

// drawingIDBase keeps generated drawing ids clear of the ones a template
// already uses.
const drawingIDBase = 1000

func inlineDrawing(rel, name string, id int, cx, cy int64) string {
	return fmt.Sprintf(`<w:drawing>`+
		`<wp:inline distT="0" distB="0" distL="0" distR="0" xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing">`+
		`<wp:extent cx="%[4]d" cy="%[5]d"/>`+
		`<wp:docPr id="%[3]d" name="Picture %[3]d"/>`+
		`<a:graphic xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">`+
		`<a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:pic xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:nvPicPr><pic:cNvPr id="0" name="%[2]s"/><pic:cNvPicPr/></pic:nvPicPr>`+
		`<pic:blipFill><a:blip r:embed="%[1]s" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"/>`+
		`<a:stretch><a:fillRect/></a:stretch></pic:blipFill>`+
		`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%[4]d" cy="%[5]d"/></a:xfrm>`+
		`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>`+
		`</pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing>`,
		rel, name, id, cx, cy)
}
