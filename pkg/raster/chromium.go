package raster

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"math"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/timetable-grid-api/pkg/errors"
)

// DefaultTimeout bounds one conversion including browser start-up.
const DefaultTimeout = 30 * time.Second

const cssPixelsPerInch = 96.0

// Options configures the headless browser.
type Options struct {
	Timeout time.Duration
	// ExecPath overrides the Chromium binary lookup.
	ExecPath string
	Logger   *zap.Logger
}

// Chromium converts SVG documents to PNG or PDF through a headless browser.
type Chromium struct {
	timeout   time.Duration
	allocOpts []chromedp.ExecAllocatorOption
	logger    *zap.Logger
}

// NewChromium prepares a converter. The browser is started per conversion.
func NewChromium(opts Options) *Chromium {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	alloc := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	alloc = append(alloc, chromedp.NoSandbox, chromedp.DisableGPU)
	if opts.ExecPath != "" {
		alloc = append(alloc, chromedp.ExecPath(opts.ExecPath))
	}
	return &Chromium{timeout: opts.Timeout, allocOpts: alloc, logger: opts.Logger}
}

// PNG screenshots the SVG at its natural size.
func (c *Chromium) PNG(ctx context.Context, svg []byte, width, height float64) ([]byte, error) {
	var png []byte
	err := c.run(ctx, svg, width, height,
		chromedp.FullScreenshot(&png, 100),
	)
	if err != nil {
		return nil, err
	}
	return png, nil
}

// PDF prints the SVG onto a single page of the same size.
func (c *Chromium) PDF(ctx context.Context, svg []byte, width, height float64) ([]byte, error) {
	var pdf []byte
	err := c.run(ctx, svg, width, height,
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(width / cssPixelsPerInch).
				WithPaperHeight(height / cssPixelsPerInch).
				WithMarginTop(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithMarginRight(0).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = data
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdf, nil
}

func (c *Chromium) run(parent context.Context, svg []byte, width, height float64, capture chromedp.Action) error {
	if len(svg) == 0 {
		return fmt.Errorf("raster: empty document")
	}
	start := time.Now()
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, c.allocOpts...)
	defer cancelAlloc()
	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, c.timeout)
	defer timeoutCancel()

	html := Page(svg)
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(math.Ceil(width)), int64(math.Ceil(height))),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("svg", chromedp.ByQuery),
		capture,
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		c.logger.Warn("chromium conversion failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return appErrors.WrapAs(err, appErrors.ErrRendererUnavailable, "")
	}
	c.logger.Debug("chromium conversion finished", zap.Duration("elapsed", time.Since(start)))
	return nil
}

// Page wraps an SVG document into a margin-less HTML page.
func Page(svg []byte) string {
	body := bytes.TrimSpace(svg)
	body = bytes.TrimPrefix(body, []byte(xml.Header))
	body = bytes.TrimSpace(body)
	var b bytes.Buffer
	b.WriteString("<!DOCTYPE html><html><head><meta charset=\"utf-8\">")
	b.WriteString("<style>html,body{margin:0;padding:0;background:#fff}svg{display:block}</style>")
	b.WriteString("</head><body>")
	b.Write(body)
	b.WriteString("</body></html>")
	return b.String()
}
