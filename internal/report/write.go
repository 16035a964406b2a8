package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joelkehle/techtransfer-enrich/internal/enrich"
)

var ErrUnknownFormat = errors.New("unknown report format")

// ReportTitle heads every rendered report.
const ReportTitle = "Technology Enrichment Report"

// Document is a rendered HTML report with the run it describes.
type Document struct {
	Title       string
	RunID       string
	GeneratedAt time.Time
	HTML        string
}

// HTMLPrinter turns a rendered report document into PDF bytes.
type HTMLPrinter interface {
	Print(ctx context.Context, doc Document) ([]byte, error)
}

// Render produces the report bytes for a file name, choosing the format
// by extension: .md, .html, .pdf, .xlsx or .json. printer is only used
// for PDF and defaults to headless Chromium with default options.
func Render(ctx context.Context, path string, s Summary, res enrich.Result, printer HTMLPrinter) ([]byte, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".md", ".markdown":
		return []byte(Markdown(s)), nil
	case ".html", ".htm":
		doc, err := HTML(ReportTitle, Markdown(s))
		return []byte(doc), err
	case ".pdf":
		body, err := HTML(ReportTitle, Markdown(s))
		if err != nil {
			return nil, err
		}
		if printer == nil {
			printer = NewPDFRenderer(PDFOptions{})
		}
		doc := Document{Title: ReportTitle, RunID: s.RunID, GeneratedAt: s.GeneratedAt, HTML: body}
		pdf, err := printer.Print(ctx, doc)
		if err != nil {
			return nil, fmt.Errorf("render pdf: %w", err)
		}
		return pdf, nil
	case ".xlsx":
		return Workbook(s, res)
	case ".json":
		return json.MarshalIndent(s, "", "  ")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
}

// WriteReport renders and atomically writes a report to path.
func WriteReport(ctx context.Context, path string, s Summary, res enrich.Result, printer HTMLPrinter) error {
	data, err := Render(ctx, path, s, res, printer)
	if err != nil {
		return err
	}
	return WriteFile(path, data)
}

// WriteJSON writes v as indented JSON.
func WriteJSON(path string, v any) error {
	blob, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return WriteFile(path, append(blob, '\n'))
}

// WriteFile replaces path with data through a temporary sibling so
// readers never see a partial file.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
