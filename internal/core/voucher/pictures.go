package voucher

import (
	"fmt"
	"strings"

	"voucher-service/internal/core/render"
	"voucher-service/internal/document"
	"voucher-service/internal/domain"
)

// Picture widths; heights follow the image's aspect ratio.
const (
	LogoWidth  = 3 * document.Inch / 2
	ImageWidth = 4 * document.Inch
)

// Picture is an uploaded image and where to put it. Position takes left,
// center or right; top-left, below-center and similar labels, and labels
// naming 左, 置中 or 右, are read the same way.
type Picture struct {
	Data     []byte
	Position string
}

// LogoAlign reads a logo position: left or right, right when empty.
func LogoAlign(position string) (document.Align, error) {
	key := strings.ToLower(strings.TrimSpace(position))
	switch {
	case key == "" || key == "right" || key == "top-right":
		return document.AlignRight, nil
	case key == "left" || key == "top-left" || strings.Contains(key, "左"):
		return document.AlignLeft, nil
	case strings.Contains(key, "右"):
		return document.AlignRight, nil
	}
	return "", &domain.InputError{Source: "logo_position", Err: fmt.Errorf("%q is not left or right", position)}
}

// ImageAlign reads an image position: left, center or right, center when
// empty.
func ImageAlign(position string) (document.Align, error) {
	key := strings.ToLower(strings.TrimSpace(position))
	switch {
	case key == "" || key == "center" || key == "below-center" || strings.Contains(key, "置中"):
		return document.AlignCenter, nil
	case key == "right" || key == "below-right" || strings.Contains(key, "右"):
		return document.AlignRight, nil
	case key == "left" || key == "below-left" || strings.Contains(key, "左"):
		return document.AlignLeft, nil
	}
	return "", &domain.InputError{Source: "image_position", Err: fmt.Errorf("%q is not left, center or right", position)}
}

// decorate returns a copy of tpl carrying the logo in its default header
// and the image below the content of every page. tpl is not modified.
func decorate(tpl *document.Document, logo, image *Picture) (*document.Document, error) {
	if logo == nil && image == nil {
		return tpl, nil
	}
	out := render.PageTemplate(tpl)
	if out == tpl {
		out = tpl.Clone()
	}

	if logo != nil {
		align, err := LogoAlign(logo.Position)
		if err != nil {
			return nil, err
		}
		img, err := document.NewImage(logo.Data)
		if err != nil {
			return nil, &domain.InputError{Source: "logo", Err: err}
		}
		if err := out.AddHeaderPicture(img, LogoWidth, align); err != nil {
			return nil, fmt.Errorf("place logo: %w", err)
		}
	}
	if image != nil {
		align, err := ImageAlign(image.Position)
		if err != nil {
			return nil, err
		}
		img, err := document.NewImage(image.Data)
		if err != nil {
			return nil, &domain.InputError{Source: "image", Err: err}
		}
		p, err := out.Picture(img, ImageWidth, align)
		if err != nil {
			return nil, fmt.Errorf("place image: %w", err)
		}
		out.Append(p)
	}
	return out, nil
}
