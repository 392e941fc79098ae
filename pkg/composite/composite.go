// Package composite places a resized overlay onto a garment base image.
//
// Compositing is a pure function of (base, overlay, rule). The overlay is
// scaled to exactly the rule's size, the placement is checked against the
// base's dimensions before any pixel is written, and every overlay pixel whose
// alpha is greater than zero replaces the base pixel's color channels. This is
// a hard threshold rather than a blend: alpha 1 and alpha 255 both replace,
// alpha 0 keeps the base pixel.
//
// # Usage
//
//	out, err := composite.Composite(base, overlay, rule)
//	if errors.Is(err, errors.ErrCodeBounds) {
//	    // rule does not fit this base photo
//	}
package composite

import (
	"image"
	"image/color"
	"image/draw"
	"io"

	_ "image/gif"  // register GIF overlays
	_ "image/jpeg" // register JPEG bases and overlays
	_ "image/png"  // register PNG bases and overlays

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP overlays

	errs "github.com/matzehuels/mockup/pkg/errors"
	"github.com/matzehuels/mockup/pkg/placement"
)

// Decode decodes an image in any registered format (PNG, JPEG, GIF, WebP).
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", errs.Wrap(errs.ErrCodeValidation, err, "decode image")
	}
	return img, format, nil
}

// Resize scales img to exactly w×h with bilinear interpolation.
// Interpolation runs on premultiplied values; the result is stored
// non-premultiplied, so at very low alpha a color channel can drift by a
// level or two. Alpha itself is exact for an identity resize.
func Resize(img image.Image, w, h int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}

// Composite returns a copy of base with overlay placed according to rule.
//
// If the placement does not fit inside base, Composite fails with a BOUNDS
// error and returns nil. base is never modified.
func Composite(base, overlay image.Image, rule placement.Rule) (*image.RGBA, error) {
	if rule.Width <= 0 || rule.Height <= 0 {
		return nil, errs.New(errs.ErrCodeBounds, "%s: overlay size %dx%d is not positive", rule.Category, rule.Width, rule.Height)
	}
	resized := Resize(overlay, rule.Width, rule.Height)

	if err := CheckBounds(base.Bounds(), rule); err != nil {
		return nil, err
	}

	out := Flatten(base)
	if !CarriesAlpha(overlay) {
		return out, nil
	}

	paint, mask := split(resized)
	footprint := image.Rect(rule.X, rule.Y, rule.X+rule.Width, rule.Y+rule.Height)
	// Opaque paint under a 0/0xff mask: Over reduces to replace-or-keep.
	draw.DrawMask(out, footprint, paint, image.Point{}, mask, image.Point{}, draw.Over)
	return out, nil
}

// CheckBounds reports a BOUNDS error if rule's footprint does not lie inside
// a base image with bounds b.
func CheckBounds(b image.Rectangle, rule placement.Rule) error {
	if rule.X < 0 || rule.Y < 0 ||
		rule.X+rule.Width > b.Dx() || rule.Y+rule.Height > b.Dy() {
		return errs.New(errs.ErrCodeBounds,
			"%s: overlay %dx%d at (%d,%d) exceeds base %dx%d",
			rule.Category, rule.Width, rule.Height, rule.X, rule.Y, b.Dx(), b.Dy())
	}
	return nil
}

// CarriesAlpha reports whether img has an alpha channel. Images decoded from
// JPEG (YCbCr, CMYK) or grayscale sources have none.
func CarriesAlpha(img image.Image) bool {
	switch img.ColorModel() {
	case color.YCbCrModel, color.GrayModel, color.Gray16Model, color.CMYKModel:
		return false
	}
	return true
}

// Flatten copies img into a new opaque RGBA buffer anchored at (0,0).
// Color channels are kept and any alpha is discarded, so a base photo with
// transparency behaves like a three-channel image.
func Flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if !CarriesAlpha(img) {
		draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
		return out
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			i := out.PixOffset(x-b.Min.X, y-b.Min.Y)
			out.Pix[i+0] = c.R
			out.Pix[i+1] = c.G
			out.Pix[i+2] = c.B
			out.Pix[i+3] = 0xff
		}
	}
	return out
}

// split separates a resized overlay into opaque paint and a binary mask
// (0xff where alpha > 0, 0 elsewhere).
func split(src *image.NRGBA) (*image.RGBA, *image.Alpha) {
	paint := image.NewRGBA(src.Bounds())
	mask := image.NewAlpha(src.Bounds())
	for i := 0; i < len(src.Pix); i += 4 {
		paint.Pix[i+0] = src.Pix[i+0]
		paint.Pix[i+1] = src.Pix[i+1]
		paint.Pix[i+2] = src.Pix[i+2]
		paint.Pix[i+3] = 0xff
		if src.Pix[i+3] > 0 {
			mask.Pix[i/4] = 0xff
		}
	}
	return paint, mask
}
