package report

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// DefaultPDFTimeout bounds one headless print, browser start included.
const DefaultPDFTimeout = 60 * time.Second

// Paper is a page size in inches.
type Paper struct {
	Name   string
	Width  float64
	Height float64
}

var papers = map[string]Paper{
	"letter": {Name: "letter", Width: 8.5, Height: 11},
	"legal":  {Name: "legal", Width: 8.5, Height: 14},
	"a4":     {Name: "a4", Width: 8.27, Height: 11.69},
}

// ParsePaper resolves a paper name, ignoring case. Empty means letter.
func ParsePaper(name string) (Paper, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "letter"
	}
	p, ok := papers[name]
	if !ok {
		return Paper{}, fmt.Errorf("unknown paper size %q", name)
	}
	return p, nil
}

// chromeCandidates are probed in order when no path is configured.
var chromeCandidates = []string{
	"/usr/bin/chromium-browser",
	"/usr/bin/chromium",
	"/usr/bin/google-chrome",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
}

type PDFOptions struct {
	// ChromePath overrides browser discovery.
	ChromePath string
	Timeout    time.Duration
	Paper      Paper
	Landscape  bool
}

// PDFRenderer prints report documents through a headless Chromium.
type PDFRenderer struct {
	opts PDFOptions
}

// NewPDFRenderer fills unset options: the browser is discovered, the
// timeout is DefaultPDFTimeout and the paper is letter.
func NewPDFRenderer(opts PDFOptions) *PDFRenderer {
	if opts.ChromePath == "" {
		opts.ChromePath = detectChromePath()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultPDFTimeout
	}
	if opts.Paper.Width <= 0 || opts.Paper.Height <= 0 {
		opts.Paper = papers["letter"]
	}
	return &PDFRenderer{opts: opts}
}

func (r *PDFRenderer) Print(ctx context.Context, doc Document) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, r.allocatorOptions()...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var out []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("data:text/html;base64,"+base64.StdEncoding.EncodeToString([]byte(doc.HTML))),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			out, _, err = r.printParams(doc).Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print run %s: %w", doc.RunID, err)
	}
	return out, nil
}

func (r *PDFRenderer) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if r.opts.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.opts.ChromePath))
	}
	return opts
}

func (r *PDFRenderer) printParams(doc Document) *page.PrintToPDFParams {
	return page.PrintToPDF().
		WithPrintBackground(true).
		WithLandscape(r.opts.Landscape).
		WithPaperWidth(r.opts.Paper.Width).
		WithPaperHeight(r.opts.Paper.Height).
		WithMarginTop(0.6).
		WithMarginBottom(0.6).
		WithMarginLeft(0.5).
		WithMarginRight(0.5).
		WithDisplayHeaderFooter(true).
		WithHeaderTemplate(headerTemplate(doc)).
		WithFooterTemplate(footerTemplate(doc))
}

const marginStyle = `font-size:8px;color:#666;width:100%;padding:0 0.5in;display:flex;justify-content:space-between;`

func headerTemplate(doc Document) string {
	return `<div style="` + marginStyle + `"><span>` + html.EscapeString(doc.Title) +
		`</span><span>run ` + html.EscapeString(doc.RunID) + `</span></div>`
}

func footerTemplate(doc Document) string {
	generated := ""
	if !doc.GeneratedAt.IsZero() {
		generated = doc.GeneratedAt.UTC().Format("2006-01-02 15:04 MST")
	}
	return `<div style="` + marginStyle + `"><span>` + generated +
		`</span><span><span class="pageNumber"></span> / <span class="totalPages"></span></span></div>`
}

func detectChromePath() string {
	if p := os.Getenv("CHROME_PATH"); p != "" {
		return p
	}
	for _, p := range chromeCandidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
