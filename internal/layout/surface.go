package layout

// Anchor is the horizontal alignment of a text run relative to its x.
type Anchor string

const (
	AnchorStart  Anchor = "start"
	AnchorMiddle Anchor = "middle"
)

// Box is one rectangle drawing primitive. An empty Stroke means no outline.
type Box struct {
	X, Y          float64
	Width, Height float64
	Fill          string
	Opacity       float64
	Radius        float64
	Stroke        string
}

// Label is one text drawing primitive; Y is the baseline.
type Label struct {
	Content string
	X, Y    float64
	Family  string
	Size    float64
	Anchor  Anchor
}

// Surface receives drawing primitives and measures text for the engine.
type Surface interface {
	SetPage(width, height float64)
	Rect(box Box)
	Text(label Label)
	// MeasureTextWidth returns the advance width of content at size.
	MeasureTextWidth(content string, size float64) float64
	Save(path string) error
}
