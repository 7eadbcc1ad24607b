// Package export turns a filtered list of circulars into downloadable documents.
package export

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
)

// PageLayout describes the physical page and the capture density of the bitmap.
type PageLayout struct {
	WidthMM    float64
	HeightMM   float64
	MarginMM   float64
	PixelRatio float64
}

// A4Portrait is the layout used for every exported document.
var A4Portrait = PageLayout{WidthMM: 210, HeightMM: 297, MarginMM: 5, PixelRatio: 3}

// AvailableWidth is the printable width inside the margins.
func (l PageLayout) AvailableWidth() float64 { return l.WidthMM - 2*l.MarginMM }

// AvailableHeight is the printable height inside the margins.
func (l PageLayout) AvailableHeight() float64 { return l.HeightMM - 2*l.MarginMM }

// Scale maps logical bitmap pixels (pixels / PixelRatio) to millimetres.
func (l PageLayout) Scale(bitmapWidth int) float64 {
	return l.AvailableWidth() / (float64(bitmapWidth) / l.PixelRatio)
}

// MaxSliceHeight is the number of bitmap rows that fit on one page.
func (l PageLayout) MaxSliceHeight(bitmapWidth, bitmapHeight int) float64 {
	scaledHeight := (float64(bitmapHeight) / l.PixelRatio) * l.Scale(bitmapWidth)
	return l.AvailableHeight() * float64(bitmapHeight) / scaledHeight
}

// Slice is one page worth of the source bitmap.
type Slice struct {
	// Top is the first source row, Height the number of source rows.
	Top    int
	Height int
	// HeightMM is the placed height on the page.
	HeightMM float64
	Image    *image.RGBA
}

var errEmptyBitmap = errors.New("bitmap has no pixels")

// Paginate cuts the bitmap into page slices from top to bottom. The slice
// heights always add up to the bitmap height.
func Paginate(src image.Image, layout PageLayout) ([]Slice, error) {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, errEmptyBitmap
	}
	if layout.PixelRatio <= 0 || layout.AvailableWidth() <= 0 || layout.AvailableHeight() <= 0 {
		return nil, fmt.Errorf("invalid page layout %+v", layout)
	}

	scale := layout.Scale(width)
	maxRows := int(math.Floor(layout.MaxSliceHeight(width, height)))
	if maxRows < 1 {
		maxRows = 1
	}

	var slices []Slice
	for consumed := 0; consumed < height; {
		rows := min(height-consumed, maxRows)

		page := image.NewRGBA(image.Rect(0, 0, width, rows))
		draw.Draw(page, page.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
		draw.Draw(page, page.Bounds(), src, image.Pt(bounds.Min.X, bounds.Min.Y+consumed), draw.Over)

		slices = append(slices, Slice{
			Top:      consumed,
			Height:   rows,
			HeightMM: (float64(rows) / layout.PixelRatio) * scale,
			Image:    page,
		})
		consumed += rows
	}

	return slices, nil
}
