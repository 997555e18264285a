package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/noah-isme/timetable-grid-api/internal/models"
)

const reportFont = "report"

// ConflictPDFExporter renders a conflict report as a tabular PDF.
type ConflictPDFExporter struct {
	fontData []byte
}

// NewConflictPDFExporter constructs the exporter with a TrueType face able to
// draw Cyrillic text.
func NewConflictPDFExporter(fontData []byte) *ConflictPDFExporter {
	return &ConflictPDFExporter{fontData: fontData}
}

// Render creates an A4 document with one table row per colliding lesson.
func (e *ConflictPDFExporter) Render(title string, conflicts []models.Conflict, variant models.DocumentVariant) ([]byte, error) {
	if len(e.fontData) == 0 {
		return nil, fmt.Errorf("conflict pdf requires a font")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddUTF8FontFromBytes(reportFont, "", e.fontData)
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("load report font: %w", err)
	}
	pdf.AddPage()

	if title != "" {
		pdf.SetFont(reportFont, "", 14)
		pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	participant := "Группа"
	if variant == models.VariantStudent {
		participant = "Преподаватель"
	}
	headers := []string{"Дата", "Время", "Дисциплина", "Вид", participant}
	widths := []float64{22, 28, 75, 15, 50}

	pdf.SetFont(reportFont, "", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(reportFont, "", 9)
	if len(conflicts) == 0 {
		pdf.CellFormat(0, 7, "Накладок нет", "1", 1, "C", false, 0, "")
	}
	for _, c := range conflicts {
		for _, entry := range c.Entries {
			row := []string{
				c.Date.Format("02.01"),
				c.Span.String(),
				entry.Subject,
				string(entry.Kind),
				entry.PrimaryParticipant(),
			}
			for i, value := range row {
				pdf.CellFormat(widths[i], 7, value, "1", 0, "", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
