package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/timetable-grid-api/internal/layout"
	"github.com/noah-isme/timetable-grid-api/internal/models"
	"github.com/noah-isme/timetable-grid-api/internal/timetable"
	appErrors "github.com/noah-isme/timetable-grid-api/pkg/errors"
	"github.com/noah-isme/timetable-grid-api/pkg/export"
	"github.com/noah-isme/timetable-grid-api/pkg/surface"
)

// Rasterizer converts a finished SVG document to PNG.
type Rasterizer interface {
	PNG(ctx context.Context, svg []byte, width, height float64) ([]byte, error)
}

// PDFRasterizer prints a finished SVG document to PDF. It backs PDF output
// when no font is configured for the native PDF surface.
type PDFRasterizer interface {
	PDF(ctx context.Context, svg []byte, width, height float64) ([]byte, error)
}

// RendererConfig wires fonts, page geometry and optional converters.
type RendererConfig struct {
	Layout layout.Config
	// FontData is the TrueType face embedded in SVG output and required for PDF output.
	FontData []byte
	Measurer surface.Measurer
	// Location places ICS events on the wall clock of the institution.
	Location   *time.Location
	Rasterizer Rasterizer
	Logger     *zap.Logger
}

// Rendered is one produced document.
type Rendered struct {
	Data   []byte
	Format models.OutputFormat
	Stats  layout.Stats
}

// Renderer produces every output format from an extraction result.
type Renderer struct {
	cfg       RendererConfig
	logger    *zap.Logger
	csv       *export.CSVExporter
	ics       *export.ICSExporter
	conflicts *export.ConflictPDFExporter
}

// NewRenderer builds a renderer. A missing measurer falls back to glyph-count estimates.
func NewRenderer(cfg RendererConfig) *Renderer {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Layout.PageWidth <= 0 {
		cfg.Layout = layout.DefaultConfig()
	}
	if cfg.Layout.Logger == nil {
		cfg.Layout.Logger = cfg.Logger
	}
	if cfg.Measurer == nil {
		cfg.Measurer = surface.ApproxMeasurer{}
	}
	return &Renderer{
		cfg:       cfg,
		logger:    cfg.Logger,
		csv:       export.NewCSVExporter(),
		ics:       export.NewICSExporter(cfg.Location),
		conflicts: export.NewConflictPDFExporter(cfg.FontData),
	}
}

// Supports reports whether the renderer can currently produce format.
func (r *Renderer) Supports(format models.OutputFormat) bool {
	switch format {
	case models.FormatPNG:
		return r.cfg.Rasterizer != nil
	case models.FormatPDF:
		_, printable := r.cfg.Rasterizer.(PDFRasterizer)
		return len(r.cfg.FontData) > 0 || printable
	case models.FormatReport:
		return len(r.cfg.FontData) > 0
	default:
		return format.Valid()
	}
}

// Render lays out or exports result for the [start, end] window.
func (r *Renderer) Render(ctx context.Context, result *timetable.Result, start, end time.Time, format models.OutputFormat, noColor bool) (*Rendered, error) {
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedFormat, fmt.Sprintf("unsupported output format %q", format))
	}
	if !r.Supports(format) {
		return nil, appErrors.Clone(appErrors.ErrRendererUnavailable, fmt.Sprintf("%s output is not configured", format))
	}

	switch format {
	case models.FormatSVG:
		svg, stats, err := r.svg(result, start, end, noColor)
		if err != nil {
			return nil, err
		}
		return &Rendered{Data: svg, Format: format, Stats: stats}, nil
	case models.FormatPNG:
		svg, stats, err := r.svg(result, start, end, noColor)
		if err != nil {
			return nil, err
		}
		png, err := r.cfg.Rasterizer.PNG(ctx, svg, r.cfg.Layout.PageWidth, r.cfg.Layout.PageHeight())
		if err != nil {
			return nil, err
		}
		return &Rendered{Data: png, Format: format, Stats: stats}, nil
	case models.FormatPDF:
		if len(r.cfg.FontData) == 0 {
			return r.printedPDF(ctx, result, start, end, noColor)
		}
		return r.pdf(result, start, end, noColor)
	case models.FormatICS:
		data, err := r.ics.Render(result.Label, occurrencesWithin(result.Occurrences, start, end))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build calendar")
		}
		return &Rendered{Data: data, Format: format}, nil
	case models.FormatCSV:
		data, err := r.csv.Render(occurrencesWithin(result.Occurrences, start, end))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build csv")
		}
		return &Rendered{Data: data, Format: format}, nil
	default:
		title := "Накладки: " + result.Label
		data, err := r.conflicts.Render(title, conflictsWithin(result.Conflicts, start, end), result.Variant)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build conflict report")
		}
		return &Rendered{Data: data, Format: format}, nil
	}
}

func (r *Renderer) svg(result *timetable.Result, start, end time.Time, noColor bool) ([]byte, layout.Stats, error) {
	doc := surface.NewSVG(r.cfg.Measurer, r.cfg.Layout.FontFamily, r.cfg.FontData)
	grid := timetable.BuildGrid(result.Occurrences, start, end)
	stats, err := layout.Render(result.Label, grid, doc, noColor, r.cfg.Layout)
	if err != nil {
		return nil, layout.Stats{}, err
	}
	return doc.Bytes(), stats, nil
}

func (r *Renderer) pdf(result *timetable.Result, start, end time.Time, noColor bool) (*Rendered, error) {
	doc, err := surface.NewPDF(r.cfg.FontData)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrRendererUnavailable, "")
	}
	grid := timetable.BuildGrid(result.Occurrences, start, end)
	stats, err := layout.Render(result.Label, grid, doc, noColor, r.cfg.Layout)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write pdf")
	}
	return &Rendered{Data: buf.Bytes(), Format: models.FormatPDF, Stats: stats}, nil
}

func (r *Renderer) printedPDF(ctx context.Context, result *timetable.Result, start, end time.Time, noColor bool) (*Rendered, error) {
	printer := r.cfg.Rasterizer.(PDFRasterizer)
	svg, stats, err := r.svg(result, start, end, noColor)
	if err != nil {
		return nil, err
	}
	data, err := printer.PDF(ctx, svg, r.cfg.Layout.PageWidth, r.cfg.Layout.PageHeight())
	if err != nil {
		return nil, err
	}
	return &Rendered{Data: data, Format: models.FormatPDF, Stats: stats}, nil
}

func occurrencesWithin(occurrences []models.Occurrence, start, end time.Time) []models.Occurrence {
	start, end = timetable.DateOnly(start), timetable.DateOnly(end)
	out := make([]models.Occurrence, 0, len(occurrences))
	for _, o := range occurrences {
		d := timetable.DateOnly(o.Date)
		if d.Before(start) || d.After(end) {
			continue
		}
		out = append(out, o)
	}
	return out
}

func conflictsWithin(conflicts []models.Conflict, start, end time.Time) []models.Conflict {
	start, end = timetable.DateOnly(start), timetable.DateOnly(end)
	out := make([]models.Conflict, 0, len(conflicts))
	for _, c := range conflicts {
		d := timetable.DateOnly(c.Date)
		if d.Before(start) || d.After(end) {
			continue
		}
		out = append(out, c)
	}
	return out
}
