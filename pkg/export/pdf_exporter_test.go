package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDFExporterRendersDocument(t *testing.T) {
	exporter := NewPDFExporter()
	out, err := exporter.Render(Document{
		Title:     "Rekap Nilai",
		Subtitles: []string{"Kelas 7A", "Semester 1 2024/2025"},
		Table: Dataset{
			Headers: []string{"Nama", "Matematika", "Rata-rata"},
			Rows: []map[string]string{
				{"Nama": "Ani", "Matematika": "90.00", "Rata-rata": "90.00"},
				{"Nama": "Budi", "Matematika": "-", "Rata-rata": "-"},
			},
		},
		Footer:    [][2]string{{"Rata-rata kelas", "90.00"}},
		Landscape: true,
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterRequiresHeaders(t *testing.T) {
	_, err := NewPDFExporter().Render(Document{Title: "empty"})
	assert.EqualError(t, err, "pdf requires at least one header")
}

func TestColumnWidthsReserveFirstColumn(t *testing.T) {
	exporter := &PDFExporter{FirstColumnWidth: 50}
	widths := exporter.columnWidths(3, 190)
	assert.Equal(t, []float64{50, 70, 70}, widths)

	assert.Equal(t, []float64{190}, exporter.columnWidths(1, 190))
	assert.Equal(t, []float64{95, 95}, (&PDFExporter{}).columnWidths(2, 190))
}
