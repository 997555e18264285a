package surface

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/noah-isme/timetable-grid-api/internal/layout"
)

const pdfFontFamily = "timetable"

// PDF draws primitives straight into a single-page PDF, one user unit per
// point.
type PDF struct {
	pdf      *gofpdf.Fpdf
	measurer Measurer
	paged    bool
}

// NewPDF builds a PDF surface using the TrueType font bytes for both drawing
// and measuring.
func NewPDF(fontData []byte) (*PDF, error) {
	pdf := gofpdf.New("L", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	if len(fontData) == 0 {
		return nil, fmt.Errorf("pdf surface needs a TrueType font")
	}
	pdf.AddUTF8FontFromBytes(pdfFontFamily, "", fontData)
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("load pdf font: %w", err)
	}
	pdf.SetFont(pdfFontFamily, "", 10)
	return &PDF{pdf: pdf, measurer: &pdfMeasurer{pdf: pdf}}, nil
}

type pdfMeasurer struct {
	pdf *gofpdf.Fpdf
}

func (m *pdfMeasurer) MeasureTextWidth(content string, size float64) float64 {
	m.pdf.SetFontSize(size)
	return m.pdf.GetStringWidth(content)
}

// SetPage starts the page with the given size.
func (p *PDF) SetPage(width, height float64) {
	if p.paged {
		return
	}
	orientation := "L"
	if height > width {
		orientation = "P"
	}
	p.pdf.AddPageFormat(orientation, gofpdf.SizeType{Wd: width, Ht: height})
	p.paged = true
}

func (p *PDF) ensurePage() {
	if !p.paged {
		p.pdf.AddPage()
		p.paged = true
	}
}

// Rect draws a filled rectangle with optional outline. Corner radii are not
// reproduced.
func (p *PDF) Rect(box layout.Box) {
	p.ensurePage()
	r, g, b := parseColor(box.Fill)
	p.pdf.SetFillColor(r, g, b)
	opacity := box.Opacity
	if opacity <= 0 || opacity > 1 {
		opacity = 1
	}
	p.pdf.SetAlpha(opacity, "Normal")
	style := "F"
	if box.Stroke != "" {
		sr, sg, sb := parseColor(box.Stroke)
		p.pdf.SetDrawColor(sr, sg, sb)
		style = "FD"
	}
	p.pdf.Rect(box.X, box.Y, box.Width, box.Height, style)
	p.pdf.SetAlpha(1, "Normal")
}

// Text draws a text run on its baseline.
func (p *PDF) Text(label layout.Label) {
	p.ensurePage()
	p.pdf.SetFont(pdfFontFamily, "", label.Size)
	p.pdf.SetTextColor(0, 0, 0)
	x := label.X
	if label.Anchor == layout.AnchorMiddle {
		x -= p.pdf.GetStringWidth(label.Content) / 2
	}
	p.pdf.Text(x, label.Y, label.Content)
}

// MeasureTextWidth measures with the embedded font.
func (p *PDF) MeasureTextWidth(content string, size float64) float64 {
	return p.measurer.MeasureTextWidth(content, size)
}

// WriteTo writes the finished document.
func (p *PDF) WriteTo(w io.Writer) (int64, error) {
	p.ensurePage()
	var buf bytes.Buffer
	if err := p.pdf.Output(&buf); err != nil {
		return 0, fmt.Errorf("render pdf: %w", err)
	}
	return buf.WriteTo(w)
}

// Save writes the document to path.
func (p *PDF) Save(path string) error {
	p.ensurePage()
	if err := p.pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("save pdf: %w", err)
	}
	return nil
}

// parseColor reads "#rrggbb" and the two named colours the layout uses.
func parseColor(value string) (int, int, int) {
	switch strings.ToLower(value) {
	case "", "white":
		return 255, 255, 255
	case "black":
		return 0, 0, 0
	}
	hex := strings.TrimPrefix(value, "#")
	if len(hex) != 6 {
		return 0, 0, 0
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(n >> 16 & 0xff), int(n >> 8 & 0xff), int(n & 0xff)
}
