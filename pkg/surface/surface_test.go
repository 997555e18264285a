package surface

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-grid-api/internal/layout"
)

var (
	_ layout.Surface = (*SVG)(nil)
	_ layout.Surface = (*PDF)(nil)
)

func TestSVGDocument(t *testing.T) {
	svg := NewSVG(ApproxMeasurer{}, "CustomFont", nil)
	svg.SetPage(1122.66, 794)
	svg.Rect(layout.Box{X: 10, Y: 20.256, Width: 30, Height: 40, Fill: "#d533dd", Opacity: 0.5, Radius: 10, Stroke: "black"})
	svg.Text(layout.Label{Content: "Алгебра & <ЛК>", X: 15, Y: 36, Family: "CustomFont", Size: 16})
	svg.Text(layout.Label{Content: "1 В", X: 100, Y: 10, Family: "CustomFont", Size: 14, Anchor: layout.AnchorMiddle})

	doc := string(svg.Bytes())
	require.True(t, strings.HasPrefix(doc, "<?xml"))
	require.Contains(t, doc, `width="1122.66" height="794"`)
	require.Contains(t, doc, `<rect x="10" y="20.26" width="30" height="40" rx="10" ry="10" fill="#d533dd" fill-opacity="0.5" stroke="black"/>`)
	require.Contains(t, doc, "Алгебра &amp; &lt;ЛК&gt;")
	require.Contains(t, doc, `text-anchor="middle">1 В</text>`)
	require.NotContains(t, doc, "@font-face")
	require.True(t, strings.HasSuffix(doc, "</svg>\n"))
}

func TestSVGEmbedsFont(t *testing.T) {
	svg := NewSVG(nil, "CustomFont", []byte("font-bytes"))
	svg.SetPage(10, 10)
	var buf bytes.Buffer
	_, err := svg.WriteTo(&buf)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "font-family: 'CustomFont'")
	require.Contains(t, buf.String(), "Zm9udC1ieXRlcw==")
}

func TestSVGSave(t *testing.T) {
	svg := NewSVG(nil, "", nil)
	svg.SetPage(10, 10)
	path := filepath.Join(t.TempDir(), "grid.svg")
	require.NoError(t, svg.Save(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "<svg")
}

func TestApproxMeasurerScalesWithSize(t *testing.T) {
	m := ApproxMeasurer{}
	require.InDelta(t, 2*m.MeasureTextWidth("Алгебра", 10), m.MeasureTextWidth("Алгебра", 20), 1e-9)
	require.Zero(t, m.MeasureTextWidth("", 12))
}

func TestParseColor(t *testing.T) {
	r, g, b := parseColor("#d533dd")
	require.Equal(t, []int{0xd5, 0x33, 0xdd}, []int{r, g, b})
	r, g, b = parseColor("white")
	require.Equal(t, []int{255, 255, 255}, []int{r, g, b})
	r, g, b = parseColor("nonsense")
	require.Equal(t, []int{0, 0, 0}, []int{r, g, b})
}

func TestLoadMeasurerFallsBack(t *testing.T) {
	m, err := LoadMeasurer(filepath.Join(t.TempDir(), "missing.ttf"))
	require.Error(t, err)
	require.IsType(t, ApproxMeasurer{}, m)
}

func fontBytes(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(DefaultFontPath)
	if err != nil {
		t.Skipf("font not installed: %v", err)
	}
	return data
}

func TestFontMeasurer(t *testing.T) {
	fontBytes(t)
	m, err := NewFontMeasurer(DefaultFontPath)
	require.NoError(t, err)
	short := m.MeasureTextWidth("ЛК", 12)
	long := m.MeasureTextWidth("Алгебра", 12)
	require.Greater(t, short, 0.0)
	require.Greater(t, long, short)
	require.InDelta(t, 2*long, m.MeasureTextWidth("Алгебра", 24), 0.01)
}

func TestPDFDocument(t *testing.T) {
	pdf, err := NewPDF(fontBytes(t))
	require.NoError(t, err)
	pdf.SetPage(1122.66, 794)
	pdf.Rect(layout.Box{X: 10, Y: 20, Width: 30, Height: 40, Fill: "#d533dd", Opacity: 0.5, Stroke: "black"})
	pdf.Text(layout.Label{Content: "Алгебра", X: 15, Y: 36, Size: 16, Anchor: layout.AnchorMiddle})

	var buf bytes.Buffer
	_, err = pdf.WriteTo(&buf)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}

func TestNewPDFRequiresFont(t *testing.T) {
	_, err := NewPDF(nil)
	require.Error(t, err)
}
