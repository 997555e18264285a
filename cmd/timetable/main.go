package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/timetable-grid-api/internal/layout"
	"github.com/noah-isme/timetable-grid-api/internal/models"
	"github.com/noah-isme/timetable-grid-api/internal/service"
	"github.com/noah-isme/timetable-grid-api/internal/timetable"
	appErrors "github.com/noah-isme/timetable-grid-api/pkg/errors"
	"github.com/noah-isme/timetable-grid-api/pkg/logger"
	"github.com/noah-isme/timetable-grid-api/pkg/raster"
	"github.com/noah-isme/timetable-grid-api/pkg/sheet"
	"github.com/noah-isme/timetable-grid-api/pkg/surface"
)

type flagConfig struct {
	in       string
	window   string
	format   string
	out      string
	noColor  bool
	grid     string
	font     string
	year     int
	semester string
	chromium bool
	verbose  bool
}

func main() {
	flags := parseFlags()
	if err := run(flags); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.in, "in", "", "Timetable spreadsheet (.xlsx)")
	flag.StringVar(&cfg.window, "range", "", "Date window DD.MM-DD.MM")
	flag.StringVar(&cfg.format, "format", "svg", "Output format: svg, pdf, png, ics, csv or report")
	flag.StringVar(&cfg.out, "out", "", "Output file (default: <label>.<ext> next to the input)")
	flag.BoolVar(&cfg.noColor, "no-color", false, "Draw every lesson in white")
	flag.StringVar(&cfg.grid, "grid", "", "YAML file overriding the sheet geometry")
	flag.StringVar(&cfg.font, "font", surface.DefaultFontPath, "TrueType font for measuring and embedding")
	flag.IntVar(&cfg.year, "year", 0, "Year the sheet dates belong to (default from grid config)")
	flag.StringVar(&cfg.semester, "semester-start", "", "First day of week 1, YYYY-MM-DD")
	flag.BoolVar(&cfg.chromium, "chromium", false, "Use headless Chromium for PNG output")
	flag.BoolVar(&cfg.verbose, "v", false, "Verbose logging")

	flag.Parse()
	return cfg
}

func run(flags flagConfig) error {
	if flags.in == "" || flags.window == "" {
		flag.Usage()
		return appErrors.Clone(appErrors.ErrValidation, "-in and -range are required")
	}
	format := models.OutputFormat(flags.format)
	if !format.Valid() {
		return appErrors.Clone(appErrors.ErrUnsupportedFormat, fmt.Sprintf("unsupported output format %q", flags.format))
	}

	logr, err := logger.NewCLI(flags.verbose)
	if err != nil {
		return err
	}
	defer logr.Sync() //nolint:errcheck

	grid, err := timetable.LoadGridConfig(flags.grid)
	if err != nil {
		return err
	}
	if flags.year > 0 {
		grid.ReferenceYear = flags.year
	}

	start, end, err := timetable.ParseDateRange(flags.window, grid.ReferenceDate())
	if err != nil {
		return err
	}

	wb, err := sheet.OpenFile(flags.in)
	if err != nil {
		return err
	}
	defer wb.Close() //nolint:errcheck

	result, err := timetable.Extract(wb, timetable.Options{Grid: grid, Logger: logr})
	if err != nil {
		return err
	}
	if result.Report != "" {
		fmt.Fprint(os.Stderr, result.Report)
	}
	if result.ParseMisses > 0 {
		logr.Warn("cells without a recognisable lesson", zap.Int("count", result.ParseMisses))
	}

	layoutCfg := layout.DefaultConfig()
	layoutCfg.Logger = logr
	if flags.semester != "" {
		semesterStart, err := time.Parse(time.DateOnly, flags.semester)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "semester-start must be YYYY-MM-DD")
		}
		layoutCfg.SemesterStart = semesterStart
	}

	rendererCfg := service.RendererConfig{Layout: layoutCfg, Location: time.Local, Logger: logr}
	if fm, err := surface.NewFontMeasurer(flags.font); err != nil {
		logr.Warn("font unavailable, text widths are estimated", zap.String("font", flags.font), zap.Error(err))
	} else {
		rendererCfg.Measurer = fm
		rendererCfg.FontData = fm.FontData()
	}
	if flags.chromium {
		rendererCfg.Rasterizer = raster.NewChromium(raster.Options{Logger: logr})
	}

	rendered, err := service.NewRenderer(rendererCfg).Render(context.Background(), result, start, end, format, flags.noColor)
	if err != nil {
		return err
	}

	out := flags.out
	if out == "" {
		out = filepath.Join(filepath.Dir(flags.in), outputName(result.Label, format))
	}
	if err := os.WriteFile(out, rendered.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	logr.Info("written",
		zap.String("file", out),
		zap.Int("weeks", rendered.Stats.Weeks),
		zap.Int("overflows", rendered.Stats.Overflows),
	)
	fmt.Println(out)
	return nil
}

func outputName(label string, format models.OutputFormat) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, strings.TrimSpace(label))
	if name == "" {
		name = "timetable"
	}
	return name + "." + format.Extension()
}

func exitCode(err error) int {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) && appErr.Status < 500 {
		return 2
	}
	return 1
}
