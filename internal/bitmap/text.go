// internal/bitmap/text.go
package bitmap

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
)

// TextOptions controls RenderText. Zero values pick defaults.
type TextOptions struct {
	FontData []byte  // TTF data, Go Mono when nil
	Size     float64 // points, default 24
	DPI      float64 // default 203, the usual thermal head resolution
	Padding  int     // dots around the text, default 4
	Hinting  bool
}

func (o *TextOptions) defaults() {
	if o.Size <= 0 {
		o.Size = 24
	}
	if o.DPI <= 0 {
		o.DPI = 203
	}
	if o.Padding <= 0 {
		o.Padding = 4
	}
	if o.FontData == nil {
		o.FontData = gomono.TTF
	}
}

// RenderText draws a single line of black text on white and returns it
// as an image sized to fit the text.
func RenderText(text string, opts TextOptions) (image.Image, error) {
	opts.defaults()

	f, err := freetype.ParseFont(opts.FontData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}

	hinting := font.HintingNone
	if opts.Hinting {
		hinting = font.HintingFull
	}

	face := truetype.NewFace(f, &truetype.Options{Size: opts.Size, DPI: opts.DPI, Hinting: hinting})
	defer face.Close()

	metrics := face.Metrics()
	width := font.MeasureString(face, text).Ceil() + 2*opts.Padding
	height := (metrics.Ascent + metrics.Descent).Ceil() + 2*opts.Padding

	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(rgba, rgba.Bounds(), image.White, image.Point{}, draw.Src)

	c := freetype.NewContext()
	c.SetDPI(opts.DPI)
	c.SetFont(f)
	c.SetFontSize(opts.Size)
	c.SetClip(rgba.Bounds())
	c.SetDst(rgba)
	c.SetSrc(image.Black)
	c.SetHinting(hinting)

	pt := freetype.Pt(opts.Padding, opts.Padding+metrics.Ascent.Ceil())
	if _, err := c.DrawString(text, pt); err != nil {
		return nil, fmt.Errorf("failed to draw text: %w", err)
	}
	return rgba, nil
}
