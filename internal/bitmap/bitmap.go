// internal/bitmap/bitmap.go
package bitmap

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

var (
	// ErrInvalidPixels is returned when a pixel buffer does not match its
	// declared dimensions.
	ErrInvalidPixels = errors.New("invalid pixel data")
	// ErrInvalidBandHeight is returned for band heights that are not a
	// positive multiple of 8.
	ErrInvalidBandHeight = errors.New("band height must be a positive multiple of 8")
)

// Bitmap is a one-bit-per-pixel ink mask. A set bit means the printer puts
// a dot there.
type Bitmap struct {
	Width  int
	Height int
	ink    []bool
}

// New returns a blank bitmap of the given size.
func New(width, height int) *Bitmap {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Bitmap{Width: width, Height: height, ink: make([]bool, width*height)}
}

// At reports whether (x, y) carries ink. Coordinates outside the bitmap
// read as no ink.
func (b *Bitmap) At(x, y int) bool {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return false
	}
	return b.ink[y*b.Width+x]
}

// Set marks (x, y) as ink or no ink. Out of range coordinates are ignored.
func (b *Bitmap) Set(x, y int, ink bool) {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return
	}
	b.ink[y*b.Width+x] = ink
}

// IsInk applies the monochrome rule: fully transparent pixels and pure
// white pixels are blank, everything else is ink.
func IsInk(r, g, b, a uint8) bool {
	if a == 0 {
		return false
	}
	return !(r == 0xFF && g == 0xFF && b == 0xFF)
}

// FromImage derives the ink mask of img.
func FromImage(img image.Image) *Bitmap {
	bounds := img.Bounds()
	bm := New(bounds.Dx(), bounds.Dy())
	for y := 0; y < bm.Height; y++ {
		for x := 0; x < bm.Width; x++ {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			bm.ink[y*bm.Width+x] = IsInk(c.R, c.G, c.B, c.A)
		}
	}
	return bm
}

// FromRGBA derives the ink mask of a packed pixel buffer with 3 (RGB) or 4
// (RGBA) channels per pixel.
func FromRGBA(width, height, channels int, pix []byte) (*Bitmap, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("%w: negative size %dx%d", ErrInvalidPixels, width, height)
	}
	if channels != 3 && channels != 4 {
		return nil, fmt.Errorf("%w: unsupported channel count %d", ErrInvalidPixels, channels)
	}
	if len(pix) != width*height*channels {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPixels, width*height*channels, len(pix))
	}

	bm := New(width, height)
	for i := 0; i < width*height; i++ {
		p := pix[i*channels:]
		alpha := uint8(0xFF)
		if channels == 4 {
			alpha = p[3]
		}
		bm.ink[i] = IsInk(p[0], p[1], p[2], alpha)
	}
	return bm, nil
}
