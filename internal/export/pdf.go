package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"

	"github.com/go-pdf/fpdf"
)

// ErrNothingToExport is returned when the selected category has no records.
var ErrNothingToExport = errors.New("no data to export, please refresh first")

// Rasterizer turns an HTML page into a bitmap captured at the given pixel ratio.
type Rasterizer interface {
	Rasterize(ctx context.Context, html string, widthPx int, pixelRatio float64) (image.Image, error)
}

// PDFExporter renders the circulars table to a bitmap and spreads it over A4 pages.
type PDFExporter struct {
	rasterizer Rasterizer
	layout     PageLayout
	quality    int
	logger     *slog.Logger
}

// NewPDFExporter wires a rasterizer; the layout is always A4 portrait.
func NewPDFExporter(r Rasterizer, logger *slog.Logger) *PDFExporter {
	return &PDFExporter{rasterizer: r, layout: A4Portrait, quality: 95, logger: logger}
}

// Export writes a multi-page PDF for the document to w.
func (e *PDFExporter) Export(ctx context.Context, doc Document, w io.Writer) error {
	if len(doc.Records) == 0 {
		return ErrNothingToExport
	}
	if e.rasterizer == nil {
		return errors.New("pdf exporter has no rasterizer")
	}

	html, err := RenderTableHTML(doc)
	if err != nil {
		return err
	}

	bitmap, err := e.rasterizer.Rasterize(ctx, html, TableWidthPx, e.layout.PixelRatio)
	if err != nil {
		return fmt.Errorf("rasterize table: %w", err)
	}

	slices, err := Paginate(bitmap, e.layout)
	if err != nil {
		return fmt.Errorf("paginate: %w", err)
	}

	pdf, err := e.assemble(slices)
	if err != nil {
		return err
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}

	e.debug("pdf exported", "category", doc.Category, "records", len(doc.Records), "pages", len(slices))
	return nil
}

func (e *PDFExporter) assemble(slices []Slice) (*fpdf.Fpdf, error) {
	margin := e.layout.MarginMM
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, 0)

	opts := fpdf.ImageOptions{ImageType: "JPG"}
	for i, s := range slices {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, s.Image, &jpeg.Options{Quality: e.quality}); err != nil {
			return nil, fmt.Errorf("encode page %d: %w", i+1, err)
		}

		name := fmt.Sprintf("page-%d", i+1)
		pdf.RegisterImageOptionsReader(name, opts, &buf)
		pdf.AddPage()
		pdf.ImageOptions(name, margin, margin, e.layout.AvailableWidth(), s.HeightMM, false, opts, 0, "")

		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("add page %d: %w", i+1, err)
		}
	}

	return pdf, nil
}

func (e *PDFExporter) debug(msg string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
