package report

import (
	_ "embed"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed style.css
var styleCSS string

var topOpportunitiesHeading = regexp.MustCompile(`(?i)<h2([^>]*)>\s*Top Opportunities\s*</h2>`)

// HTML renders markdown into a standalone, print-ready document.
func HTML(title, markdown string) (string, error) {
	var content strings.Builder
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(markdown), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	return "<!doctype html><html><head><meta charset='utf-8'><title>" + html.EscapeString(title) + "</title>" +
		"<style>" + styleCSS + "</style></head><body><div class='wrap'>" +
		applyPrintLayoutHooks(content.String()) +
		"</div></body></html>", nil
}

// applyPrintLayoutHooks starts the ranked opportunity table on a new page.
func applyPrintLayoutHooks(contentHTML string) string {
	return topOpportunitiesHeading.ReplaceAllString(contentHTML, `<h2$1 data-page-break-before="true">Top Opportunities</h2>`)
}
