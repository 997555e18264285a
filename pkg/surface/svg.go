package surface

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/noah-isme/timetable-grid-api/internal/layout"
)

// SVG collects drawing primitives into a standalone SVG document.
type SVG struct {
	measurer Measurer
	family   string
	fontData []byte

	width, height float64
	body          bytes.Buffer
}

// NewSVG builds an SVG surface. When fontData is set the face is embedded
// as a base64 @font-face under family.
func NewSVG(measurer Measurer, family string, fontData []byte) *SVG {
	if measurer == nil {
		measurer = ApproxMeasurer{}
	}
	return &SVG{measurer: measurer, family: family, fontData: fontData}
}

// SetPage fixes the document size.
func (s *SVG) SetPage(width, height float64) {
	s.width, s.height = width, height
}

// Rect appends a rounded rectangle.
func (s *SVG) Rect(box layout.Box) {
	fmt.Fprintf(&s.body, `<rect x="%s" y="%s" width="%s" height="%s" rx="%s" ry="%s" fill="%s"`,
		num(box.X), num(box.Y), num(box.Width), num(box.Height), num(box.Radius), num(box.Radius), escape(box.Fill))
	if box.Opacity > 0 && box.Opacity < 1 {
		fmt.Fprintf(&s.body, ` fill-opacity="%s"`, num(box.Opacity))
	}
	if box.Stroke != "" {
		fmt.Fprintf(&s.body, ` stroke="%s"`, escape(box.Stroke))
	}
	s.body.WriteString("/>\n")
}

// Text appends a text run.
func (s *SVG) Text(label layout.Label) {
	fmt.Fprintf(&s.body, `<text x="%s" y="%s" font-family="%s" font-size="%s"`,
		num(label.X), num(label.Y), escape(label.Family), num(label.Size))
	if label.Anchor != "" && label.Anchor != layout.AnchorStart {
		fmt.Fprintf(&s.body, ` text-anchor="%s"`, label.Anchor)
	}
	fmt.Fprintf(&s.body, ">%s</text>\n", escape(label.Content))
}

// MeasureTextWidth delegates to the measurer.
func (s *SVG) MeasureTextWidth(content string, size float64) float64 {
	return s.measurer.MeasureTextWidth(content, size)
}

// WriteTo writes the complete document.
func (s *SVG) WriteTo(w io.Writer) (int64, error) {
	var doc bytes.Buffer
	doc.WriteString(xml.Header)
	fmt.Fprintf(&doc, `<svg xmlns="http://www.w3.org/2000/svg" version="1.1" width="%s" height="%s" viewBox="0 0 %s %s">`+"\n",
		num(s.width), num(s.height), num(s.width), num(s.height))
	if len(s.fontData) > 0 && s.family != "" {
		fmt.Fprintf(&doc, "<defs><style>@font-face { font-family: '%s'; src: url(data:font/ttf;base64,%s) format('truetype'); }</style></defs>\n",
			escape(s.family), base64.StdEncoding.EncodeToString(s.fontData))
	}
	doc.Write(s.body.Bytes())
	doc.WriteString("</svg>\n")
	return doc.WriteTo(w)
}

// Bytes returns the complete document.
func (s *SVG) Bytes() []byte {
	var buf bytes.Buffer
	_, _ = s.WriteTo(&buf)
	return buf.Bytes()
}

// Save writes the document to path.
func (s *SVG) Save(path string) error {
	if err := os.WriteFile(path, s.Bytes(), 0o644); err != nil {
		return fmt.Errorf("save svg: %w", err)
	}
	return nil
}

func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

func escape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
