// internal/bitmap/pack.go
package bitmap

import "fmt"

// DefaultBandHeight is the band height used by 24-dot bit image modes.
const DefaultBandHeight = 24

// Banded is the column-major projection used by bit image commands. Each
// band holds Width columns of BandHeight/8 bytes, topmost dot in the MSB.
type Banded struct {
	Bands      [][]byte
	BandHeight int
	Width      int
}

// BytesPerColumn returns the number of bytes each column occupies in a band.
func (b *Banded) BytesPerColumn() int {
	return b.BandHeight / 8
}

// ToBanded splits bm into horizontal bands of bandHeight dots. Rows past
// the bottom of the image in the last band read as blank.
func ToBanded(bm *Bitmap, bandHeight int) (*Banded, error) {
	if bandHeight <= 0 || bandHeight%8 != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBandHeight, bandHeight)
	}

	n := bandHeight / 8
	count := (bm.Height + bandHeight - 1) / bandHeight
	out := &Banded{
		Bands:      make([][]byte, 0, count),
		BandHeight: bandHeight,
		Width:      bm.Width,
	}

	for top := 0; top < bm.Height; top += bandHeight {
		band := make([]byte, bm.Width*n)
		for x := 0; x < bm.Width; x++ {
			for k := 0; k < n; k++ {
				var v byte
				for bit := 0; bit < 8; bit++ {
					if bm.At(x, top+k*8+bit) {
						v |= 0x80 >> uint(bit)
					}
				}
				band[x*n+k] = v
			}
		}
		out.Bands = append(out.Bands, band)
	}
	return out, nil
}

// Ink reports whether the dot at (x, y) is set in the banded projection.
func (b *Banded) Ink(x, y int) bool {
	if x < 0 || y < 0 || x >= b.Width {
		return false
	}
	band := y / b.BandHeight
	if band >= len(b.Bands) {
		return false
	}
	row := y % b.BandHeight
	n := b.BytesPerColumn()
	return b.Bands[band][x*n+row/8]&(0x80>>uint(row%8)) != 0
}

// Raster is the row-major projection used by GS v 0. Each row is Stride
// bytes, leftmost pixel in the MSB.
type Raster struct {
	Data   []byte
	Stride int
	Height int
}

// ToRaster packs bm row by row.
func ToRaster(bm *Bitmap) *Raster {
	stride := (bm.Width + 7) / 8
	data := make([]byte, stride*bm.Height)
	for y := 0; y < bm.Height; y++ {
		row := data[y*stride : (y+1)*stride]
		for x := 0; x < bm.Width; x++ {
			if bm.At(x, y) {
				row[x/8] |= 0x80 >> uint(x%8)
			}
		}
	}
	return &Raster{Data: data, Stride: stride, Height: bm.Height}
}

// Bitmap unpacks the raster back into a bitmap of the given width. Padding
// bits beyond width are dropped.
func (r *Raster) Bitmap(width int) *Bitmap {
	if width > r.Stride*8 {
		width = r.Stride * 8
	}
	bm := New(width, r.Height)
	for y := 0; y < r.Height; y++ {
		for x := 0; x < width; x++ {
			bm.Set(x, y, r.Data[y*r.Stride+x/8]&(0x80>>uint(x%8)) != 0)
		}
	}
	return bm
}
