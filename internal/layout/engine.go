package layout

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/timetable-grid-api/internal/models"
	"github.com/noah-isme/timetable-grid-api/internal/timetable"
	appErrors "github.com/noah-isme/timetable-grid-api/pkg/errors"
)

const (
	shadeFill      = "#dcdcdc"
	shadeOpacity   = 0.2
	boxOpacity     = 0.5
	cornerRadius   = 10
	strokeColor    = "black"
	lineSpacing    = 2
	textInset      = 5
	pageAspect     = 0.707
	maxHeaderFont  = 18
	weekLabelFont  = 14
	dateStripFont  = 10
	dayNameFont    = 24
	timeLabelFont  = 12
	measureFactor  = 1.1
	daysPerWeek    = 7
	renderedDays   = 6
	labelRowsExtra = 3
)

var dayNames = map[time.Weekday]string{
	time.Monday:    "Пн",
	time.Tuesday:   "Вт",
	time.Wednesday: "Ср",
	time.Thursday:  "Чт",
	time.Friday:    "Пт",
	time.Saturday:  "Сб",
}

// DefaultSemesterStart is the Monday week numbering counts from.
var DefaultSemesterStart = time.Date(2026, time.February, 9, 0, 0, 0, 0, time.UTC)

// Config holds page geometry. Lengths are in user units (1/96 inch in SVG).
type Config struct {
	PageWidth     float64
	MarginTop     float64
	MarginLeft    float64
	NameColumn    float64
	HeaderHeight  float64
	SemesterStart time.Time
	FontFamily    string
	Logger        *zap.Logger
}

// DefaultConfig returns an A4 landscape page at 3.78 units per millimetre.
func DefaultConfig() Config {
	return Config{
		PageWidth:     297 * 3.78,
		MarginTop:     50,
		MarginLeft:    20,
		NameColumn:    128,
		HeaderHeight:  20,
		SemesterStart: DefaultSemesterStart,
		FontFamily:    "CustomFont",
	}
}

// PageHeight is the page height implied by the width.
func (c Config) PageHeight() float64 {
	return math.Ceil(c.PageWidth * pageAspect)
}

// Stats summarises one render pass.
type Stats struct {
	Weeks     int `json:"weeks"`
	Boxes     int `json:"boxes"`
	Overflows int `json:"overflows"`
}

type measureKey struct {
	text string
	size float64
}

// Engine lays one grid out on one surface. It is not safe for concurrent use.
type Engine struct {
	cfg     Config
	surface Surface
	label   string
	grid    timetable.Grid
	noColor bool
	logger  *zap.Logger

	weekStartNumber int
	weekCount       int
	windowEnd       time.Time
	cellWidth       float64
	cellHeight      float64
	fullRowHeight   float64
	dayCells        map[time.Weekday]int
	dayTop          map[time.Weekday]float64

	widths map[measureKey]float64
	stats  Stats
}

// NewEngine derives the column and row geometry of a grid.
func NewEngine(cfg Config, surface Surface, label string, grid timetable.Grid, noColor bool) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		cfg:      cfg,
		surface:  surface,
		label:    label,
		grid:     grid,
		noColor:  noColor,
		logger:   logger,
		dayCells: make(map[time.Weekday]int, renderedDays),
		dayTop:   make(map[time.Weekday]float64, renderedDays),
		widths:   make(map[measureKey]float64),
	}

	days := int(grid.WindowStart.Sub(timetable.DateOnly(cfg.SemesterStart)).Hours() / 24)
	e.weekStartNumber = int(math.Floor(float64(days) / daysPerWeek))
	e.weekCount = int(grid.WindowEnd.Sub(grid.WindowStart).Hours()/24) / daysPerWeek
	if e.weekCount < 1 {
		e.weekCount = 1
	}
	e.windowEnd = grid.WindowStart.AddDate(0, 0, e.weekCount*daysPerWeek)
	e.cellWidth = (cfg.PageWidth - 2*cfg.MarginLeft - cfg.NameColumn) / float64(e.weekCount)
	e.fullRowHeight = cfg.PageHeight() - cfg.MarginTop - cfg.HeaderHeight

	needed := renderedDays
	for _, wd := range timetable.Weekdays {
		spans := len(grid.WeekdaySpans[wd])
		if spans > 0 {
			needed += spans - 1
			e.dayCells[wd] = spans
		} else {
			e.dayCells[wd] = 1
		}
	}
	e.cellHeight = math.Ceil(e.fullRowHeight/float64(needed+labelRowsExtra)) - 1

	y := cfg.MarginTop + e.cellHeight/2
	for _, wd := range timetable.Weekdays {
		e.dayTop[wd] = y
		y += e.cellHeight*float64(e.dayCells[wd]) + e.cellHeight/2
	}
	e.stats.Weeks = e.weekCount
	return e
}

// Stats returns the counters collected so far.
func (e *Engine) Stats() Stats {
	return e.stats
}

// CellSize returns the width and height of one occurrence box.
func (e *Engine) CellSize() (float64, float64) {
	return e.cellWidth, e.cellHeight
}

func (e *Engine) measure(text string, size float64) float64 {
	key := measureKey{text: text, size: size}
	if w, ok := e.widths[key]; ok {
		return w
	}
	w := e.surface.MeasureTextWidth(text, size) * measureFactor
	e.widths[key] = w
	return w
}

// HeaderFontSize is the largest size from 18pt down whose label width stays
// under 90% of the name column.
func (e *Engine) HeaderFontSize() float64 {
	for size := float64(maxHeaderFont); size > minFontSize; size-- {
		if e.measure(e.label, size) < e.cfg.NameColumn*fillRatio {
			return size
		}
	}
	return minFontSize
}

// RenderHeader draws the title and one labelled header cell per week. Every
// other week column gets a light background.
func (e *Engine) RenderHeader() {
	size := e.HeaderFontSize()
	e.surface.Text(Label{
		Content: e.label,
		X:       e.cfg.MarginLeft,
		Y:       e.cfg.MarginTop - e.cfg.HeaderHeight/2 + size/2,
		Family:  e.cfg.FontFamily,
		Size:    size,
		Anchor:  AnchorStart,
	})

	x := e.cfg.MarginLeft + e.cfg.NameColumn
	for k := 1; k <= e.weekCount; k++ {
		e.surface.Rect(Box{
			X: x, Y: e.cfg.MarginTop - e.cfg.HeaderHeight,
			Width: e.cellWidth, Height: e.cfg.HeaderHeight,
			Fill: "white", Opacity: 1, Radius: cornerRadius, Stroke: strokeColor,
		})
		e.surface.Text(Label{
			Content: WeekLabel(e.weekStartNumber + k),
			X:       x + e.cellWidth/2,
			Y:       e.cfg.MarginTop - e.cfg.HeaderHeight/2 + weekLabelFont/2 - 1,
			Family:  e.cfg.FontFamily,
			Size:    weekLabelFont,
			Anchor:  AnchorMiddle,
		})
		if k%2 == 1 {
			e.surface.Rect(Box{
				X: x, Y: e.cfg.MarginTop,
				Width: e.cellWidth, Height: e.fullRowHeight,
				Fill: shadeFill, Opacity: shadeOpacity, Radius: cornerRadius,
			})
		}
		x += e.cellWidth
	}
}

// WeekLabel renders a semester week number with its parity mark: odd weeks
// are "В" (upper), even weeks "Н" (lower).
func WeekLabel(n int) string {
	if n%2 != 0 {
		return strconv.Itoa(n) + " В"
	}
	return strconv.Itoa(n) + " Н"
}

// RenderDayAndTimeLabels draws the date strip above every day of every week,
// one block per weekday and one label per time span in use.
func (e *Engine) RenderDayAndTimeLabels() {
	x := e.cfg.MarginLeft + e.cfg.NameColumn
	for week := 0; week < e.weekCount; week++ {
		y := e.cfg.MarginTop
		for i, wd := range timetable.Weekdays {
			date := e.grid.WindowStart.AddDate(0, 0, week*daysPerWeek+i)
			e.surface.Rect(Box{
				X: x, Y: y, Width: e.cellWidth, Height: e.cellHeight / 2,
				Fill: shadeFill, Opacity: shadeOpacity, Radius: cornerRadius, Stroke: strokeColor,
			})
			e.surface.Text(Label{
				Content: date.Format("02.01"),
				X:       x + e.cellWidth/2,
				Y:       y + e.cellHeight/4 + 3,
				Family:  e.cfg.FontFamily,
				Size:    dateStripFont,
				Anchor:  AnchorMiddle,
			})
			y += e.cellHeight*float64(e.dayCells[wd]) + e.cellHeight/2
		}
		x += e.cellWidth
	}

	for _, wd := range timetable.Weekdays {
		top := e.dayTop[wd]
		height := e.cellHeight * float64(e.dayCells[wd])
		e.surface.Rect(Box{
			X: e.cfg.MarginLeft, Y: top, Width: e.cfg.NameColumn / 2, Height: height,
			Fill: shadeFill, Opacity: shadeOpacity, Radius: cornerRadius, Stroke: strokeColor,
		})
		e.surface.Text(Label{
			Content: dayNames[wd],
			X:       e.cfg.MarginLeft + e.cfg.NameColumn/4,
			Y:       top + height/2 + 6,
			Family:  e.cfg.FontFamily,
			Size:    dayNameFont,
			Anchor:  AnchorMiddle,
		})

		labelX := e.cfg.MarginLeft + e.cfg.NameColumn/2
		for i, span := range e.grid.WeekdaySpans[wd] {
			y := top + float64(i)*e.cellHeight
			e.surface.Rect(Box{
				X: labelX, Y: y, Width: e.cfg.NameColumn / 2, Height: e.cellHeight,
				Fill: shadeFill, Opacity: shadeOpacity, Radius: cornerRadius, Stroke: strokeColor,
			})
			e.surface.Text(Label{
				Content: span.Start,
				X:       labelX + e.cfg.NameColumn/4,
				Y:       y + e.cellHeight/2 - 3,
				Family:  e.cfg.FontFamily,
				Size:    timeLabelFont,
				Anchor:  AnchorMiddle,
			})
			e.surface.Text(Label{
				Content: span.End,
				X:       labelX + e.cfg.NameColumn/4,
				Y:       y + e.cellHeight/2 + 9,
				Family:  e.cfg.FontFamily,
				Size:    timeLabelFont,
				Anchor:  AnchorMiddle,
			})
		}
	}
}

// ColumnIndex is the number of whole weeks between the window start and the
// Monday of the date's week.
func (e *Engine) ColumnIndex(date time.Time) int {
	return ColumnIndex(e.grid.WindowStart, date)
}

// ColumnIndex counts weeks from windowStart, a Monday, to the week holding date.
func ColumnIndex(windowStart, date time.Time) int {
	date = timetable.DateOnly(date)
	monday := date.AddDate(0, 0, -((int(date.Weekday()) + 6) % 7))
	days := int(math.Round(monday.Sub(timetable.DateOnly(windowStart)).Hours() / 24))
	return int(math.Floor(float64(days) / daysPerWeek))
}

// Position returns the top-left corner of an occurrence's box and false when
// the occurrence has no row in this grid.
func (e *Engine) Position(occ models.Occurrence) (float64, float64, bool) {
	wd := occ.Date.Weekday()
	top, ok := e.dayTop[wd]
	if !ok {
		return 0, 0, false
	}
	row := -1
	for i, span := range e.grid.WeekdaySpans[wd] {
		if span == occ.Span() {
			row = i
			break
		}
	}
	if row < 0 {
		return 0, 0, false
	}
	x := e.cfg.MarginLeft + e.cfg.NameColumn + float64(e.ColumnIndex(occ.Date))*e.cellWidth
	return x, top + float64(row)*e.cellHeight, true
}

// RenderOccurrence draws the box (or boxes) of one occurrence at (x, y). A
// joined lab is one double-height box; any other joined lesson is drawn as two
// stacked single boxes.
func (e *Engine) RenderOccurrence(x, y float64, occ models.Occurrence) {
	subject := DisplaySubject(occ.Subject)
	fill := White
	if !e.noColor {
		fill = Color(subject, occ.Kind, occ.Participants)
	}

	if occ.Joined && occ.Kind == models.KindLab {
		e.drawBox(x, y, 2*e.cellHeight, subject, fill, occ)
		return
	}
	e.drawBox(x, y, e.cellHeight, subject, fill, occ)
	if occ.Joined {
		e.drawBox(x, y+e.cellHeight, e.cellHeight, subject, fill, occ)
	}
}

func (e *Engine) drawBox(x, y, height float64, subject, fill string, occ models.Occurrence) {
	e.surface.Rect(Box{
		X: x, Y: y, Width: e.cellWidth, Height: height,
		Fill: fill, Opacity: boxOpacity, Radius: cornerRadius, Stroke: strokeColor,
	})
	e.stats.Boxes++

	elements := BoxElements(subject, string(occ.Kind), ShortenGroups(occ.Participants), occ.Room, e.measure)
	lines, size, ok := FitText(elements, e.cellWidth, height, e.measure)
	if !ok {
		e.stats.Overflows++
		e.logger.Debug("lesson text does not fit its box",
			zap.String("subject", occ.Subject),
			zap.String("date", occ.Date.Format(time.DateOnly)),
			zap.String("span", occ.Span().String()),
		)
		return
	}
	for i, line := range lines {
		e.surface.Text(Label{
			Content: line,
			X:       x + textInset,
			Y:       y + float64(i+1)*(size+lineSpacing),
			Family:  e.cfg.FontFamily,
			Size:    size,
			Anchor:  AnchorStart,
		})
	}
}

// RenderOccurrences draws every bucketed occurrence inside the drawn weeks.
func (e *Engine) RenderOccurrences() {
	for _, date := range e.grid.Dates() {
		if date.Before(e.grid.WindowStart) || !date.Before(e.windowEnd) {
			continue
		}
		for _, key := range e.grid.Keys(date) {
			for _, occ := range e.grid.Buckets[date][key] {
				x, y, ok := e.Position(occ)
				if !ok {
					continue
				}
				e.RenderOccurrence(x, y, occ)
			}
		}
	}
}

// Render lays a grid out on a surface: page, header, labels, then every
// occurrence in the window.
func Render(label string, grid timetable.Grid, surface Surface, noColor bool, cfg Config) (Stats, error) {
	if surface == nil {
		return Stats{}, fmt.Errorf("layout: nil surface")
	}
	if grid.WindowStart.IsZero() || grid.WindowEnd.IsZero() {
		return Stats{}, appErrors.Clone(appErrors.ErrInvalidDateRange, "render window is not set")
	}
	if cfg.PageWidth <= 0 {
		cfg = DefaultConfig()
	}
	engine := NewEngine(cfg, surface, label, grid, noColor)
	surface.SetPage(cfg.PageWidth, cfg.PageHeight())
	engine.RenderHeader()
	engine.RenderDayAndTimeLabels()
	engine.RenderOccurrences()

	stats := engine.Stats()
	engine.logger.Debug("grid rendered",
		zap.String("label", label),
		zap.Int("weeks", stats.Weeks),
		zap.Int("boxes", stats.Boxes),
		zap.Int("overflows", stats.Overflows),
	)
	return stats, nil
}
