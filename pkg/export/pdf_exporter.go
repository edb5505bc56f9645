package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// Document is a titled table with optional heading lines and footer rows.
type Document struct {
	Title     string
	Subtitles []string
	Table     Dataset
	// Footer rows are printed after the table as label/value lines.
	Footer    [][2]string
	Landscape bool
}

// PDFExporter renders documents into a tabular PDF.
type PDFExporter struct {
	// FirstColumnWidth widens the leading column, usually the student name.
	FirstColumnWidth float64
}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{FirstColumnWidth: 50}
}

// Render creates a PDF document with a title block and table body.
func (e *PDFExporter) Render(doc Document) ([]byte, error) {
	data := doc.Table
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}

	orientation, pageWidth := "P", 190.0
	if doc.Landscape {
		orientation, pageWidth = "L", 277.0
	}
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if doc.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(doc.Title), "", 1, "C", false, 0, "")
	}
	if len(doc.Subtitles) > 0 {
		pdf.SetFont("Arial", "", 10)
		for _, line := range doc.Subtitles {
			pdf.CellFormat(0, 6, line, "", 1, "C", false, 0, "")
		}
	}
	pdf.Ln(5)

	widths := e.columnWidths(len(data.Headers), pageWidth)

	pdf.SetFont("Arial", "B", 9)
	for i, header := range data.Headers {
		pdf.CellFormat(widths[i], 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, row := range data.Rows {
		for i, header := range data.Headers {
			align := "C"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(widths[i], 7, row[header], "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(doc.Footer) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "", 9)
		for _, line := range doc.Footer {
			pdf.CellFormat(60, 6, line[0], "", 0, "L", false, 0, "")
			pdf.CellFormat(0, 6, line[1], "", 1, "L", false, 0, "")
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) columnWidths(columns int, pageWidth float64) []float64 {
	widths := make([]float64, columns)
	first := e.FirstColumnWidth
	if columns == 1 || first <= 0 || first >= pageWidth {
		for i := range widths {
			widths[i] = pageWidth / float64(columns)
		}
		return widths
	}
	widths[0] = first
	rest := (pageWidth - first) / float64(columns-1)
	for i := 1; i < columns; i++ {
		widths[i] = rest
	}
	return widths
}
