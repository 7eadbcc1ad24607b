package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gingfrederik/docx"

	"CircularsDesk/internal/catalog"
)

// DOCXExporter writes the same table as the PDF export as a Word document.
type DOCXExporter struct {
	tempDir string
}

// NewDOCXExporter stages documents under tempDir (os.TempDir when empty).
func NewDOCXExporter(tempDir string) *DOCXExporter {
	return &DOCXExporter{tempDir: tempDir}
}

// Export writes the document to w.
func (e *DOCXExporter) Export(doc Document, w io.Writer) error {
	if len(doc.Records) == 0 {
		return ErrNothingToExport
	}

	f := docx.NewFile()

	run := f.AddParagraph().AddText("DTE Karnataka Circulars")
	run.Size(20)
	run.Color("007bff")

	run = f.AddParagraph().AddText("Department: " + catalog.SectionName(doc.Category))
	run.Size(14)

	run = f.AddParagraph().AddText(fmt.Sprintf("Generated on: %s | Total Records: %d",
		doc.GeneratedAt.Format("02/01/2006"), len(doc.Records)))
	run.Size(10)
	run.Color("666666")
	f.AddParagraph()

	for i, row := range catalog.Rows(doc.Records, doc.Category) {
		run = f.AddParagraph().AddText(fmt.Sprintf("%s. %s", row.Serial, row.Subject))
		run.Size(12)

		run = f.AddParagraph().AddText(fmt.Sprintf("Date: %s | Order No.: %s | Section: %s", row.Date, row.OrderNo, row.Section))
		run.Size(9)
		run.Color("808080")

		link := catalog.ResolveLink(doc.Records[i], doc.Category)
		run = f.AddParagraph().AddText(link)
		run.Size(9)
		run.Color("0000FF")
		f.AddParagraph()
	}

	run = f.AddParagraph().AddText(fmt.Sprintf("This document contains %d circulars from %s",
		len(doc.Records), catalog.SectionName(doc.Category)))
	run.Size(9)

	tmp, err := os.CreateTemp(e.tempDir, "circulars-*.docx")
	if err != nil {
		return fmt.Errorf("create temp docx: %w", err)
	}
	path := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(path)

	if err := f.Save(filepath.Clean(path)); err != nil {
		return fmt.Errorf("save docx: %w", err)
	}

	saved, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open docx: %w", err)
	}
	defer saved.Close()

	if _, err := io.Copy(w, saved); err != nil {
		return fmt.Errorf("copy docx: %w", err)
	}
	return nil
}
