package surface

import (
	"fmt"
	"os"
	"sync"
	"unicode/utf8"

	"github.com/jung-kurt/gofpdf"
)

// DefaultFontPath is the bold sans face used for measuring and embedding.
const DefaultFontPath = "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf"

// approxAdvance is the average advance of a bold sans glyph in ems.
const approxAdvance = 0.62

// Measurer reports rendered text widths in points.
type Measurer interface {
	MeasureTextWidth(content string, size float64) float64
}

// FontMeasurer measures text with the metrics of a TrueType font.
type FontMeasurer struct {
	mu     sync.Mutex
	pdf    *gofpdf.Fpdf
	family string
	data   []byte
}

// NewFontMeasurer loads the TrueType font at path.
func NewFontMeasurer(path string) (*FontMeasurer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font: %w", err)
	}
	const family = "measure"
	pdf := gofpdf.New("L", "pt", "A4", "")
	pdf.AddUTF8FontFromBytes(family, "", data)
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("load font %s: %w", path, err)
	}
	pdf.SetFont(family, "", 10)
	return &FontMeasurer{pdf: pdf, family: family, data: data}, nil
}

// MeasureTextWidth returns the advance width of content at size points.
func (m *FontMeasurer) MeasureTextWidth(content string, size float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pdf.SetFontSize(size)
	return m.pdf.GetStringWidth(content)
}

// FontData returns the raw font bytes.
func (m *FontMeasurer) FontData() []byte {
	return m.data
}

// ApproxMeasurer estimates widths from the rune count when no font file is
// available.
type ApproxMeasurer struct{}

// MeasureTextWidth returns an average-glyph estimate.
func (ApproxMeasurer) MeasureTextWidth(content string, size float64) float64 {
	return float64(utf8.RuneCountInString(content)) * size * approxAdvance
}

// LoadMeasurer returns a FontMeasurer for path, falling back to ApproxMeasurer
// when the font cannot be loaded.
func LoadMeasurer(path string) (Measurer, error) {
	if path == "" {
		path = DefaultFontPath
	}
	m, err := NewFontMeasurer(path)
	if err != nil {
		return ApproxMeasurer{}, err
	}
	return m, nil
}
