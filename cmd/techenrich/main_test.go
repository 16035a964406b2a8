package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/techtransfer-enrich/internal/completion"
	"github.com/joelkehle/techtransfer-enrich/internal/config"
	"github.com/joelkehle/techtransfer-enrich/internal/enrich"
	"github.com/joelkehle/techtransfer-enrich/internal/report"
)

const recordsJSON = `[
  {"id": "t1", "title": "Perovskite solar film", "description": "Flexible thin-film cells. Patent pending.",
   "raw_data": {"applications": ["rooftops"], "advantages": ["cheap"]}},
  {"id": "t2", "title": "Gripper", "url": "https://tech.example.edu/tech/US9876543", "description": ""}
]`

type harness struct {
	app    *app
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	calls  *atomic.Int32
	dir    string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(config.KeyRequestSpacing, "0s")
	t.Setenv(config.KeyProvider, config.ProviderAnthropic)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "records.json"), []byte(recordsJSON), 0o644))

	h := &harness{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}, calls: &atomic.Int32{}, dir: dir}
	h.app = newApp()
	h.app.stdout = h.stdout
	h.app.stderr = h.stderr
	h.app.envFiles = []string{filepath.Join(dir, "missing.env")}
	h.app.newService = func(context.Context, config.Config) (completion.Service, error) {
		return completion.ServiceFunc(func(_ context.Context, req completion.Request) (completion.Response, error) {
			h.calls.Add(1)
			if strings.Contains(req.Prompt, "Available classification fields") {
				return completion.Response{Text: `{"top_field": "Energy", "subfield": "Solar Energy", "confidence": 0.9}`, InputTokens: 100, OutputTokens: 20}, nil
			}
			return completion.Response{Text: `{"trl_gap": {"score": 0.7}, "false_barrier": {"score": 0.3}}`, InputTokens: 300, OutputTokens: 80}, nil
		}), nil
	}
	return h
}

func (h *harness) run(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd(h.app)
	cmd.SetArgs(append(args, "--log-level", "error"))
	return cmd.ExecuteContext(context.Background())
}

func TestListFields(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run(t, "list-fields"))
	assert.Contains(t, h.stdout.String(), "Energy\n  - Solar Energy\n")
	assert.Contains(t, h.stdout.String(), "Other\n")
}

func TestPricing(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run(t, "pricing"))
	assert.Contains(t, h.stdout.String(), "claude-haiku-4-5-20251001")
	assert.Contains(t, h.stdout.String(), "0.80")
}

func TestDetectPatents(t *testing.T) {
	h := newHarness(t)
	out := filepath.Join(h.dir, "detections.json")
	require.NoError(t, h.run(t, "detect-patents", "--input", "records.json", "--out", out))

	blob, err := os.ReadFile(out)
	require.NoError(t, err)
	var got []detection
	require.NoError(t, json.Unmarshal(blob, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "pending", string(got[0].Patent.Status))
	assert.Equal(t, "granted", string(got[1].Patent.Status))
	assert.Contains(t, h.stderr.String(), "Patent status across 2 records:")
	assert.Zero(t, h.calls.Load())
}

func TestClassifyDryRunMakesNoCalls(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run(t, "classify", "--input", "records.json", "--dry-run", "--limit", "1"))
	assert.Contains(t, h.stdout.String(), "=== t1: Perovskite solar film")
	assert.NotContains(t, h.stdout.String(), "=== t2")
	assert.Zero(t, h.calls.Load())
}

func TestAssessDryRunPrintsTiers(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run(t, "assess", "--input", "records.json", "--dry-run"))
	assert.Contains(t, h.stdout.String(), "t1\tfull\trichness=2")
	assert.Contains(t, h.stdout.String(), "t2\tskipped\trichness=0")
	assert.Zero(t, h.calls.Load())
}

func TestEnrichWritesResultsAndReport(t *testing.T) {
	h := newHarness(t)
	out := filepath.Join(h.dir, "enriched.json")
	rep := filepath.Join(h.dir, "report.md")
	require.NoError(t, h.run(t, "enrich", "--input", "records.json", "--classify", "--assess", "--out", out, "--report", rep))

	blob, err := os.ReadFile(out)
	require.NoError(t, err)
	var res enrich.Result
	require.NoError(t, json.Unmarshal(blob, &res))
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, "Energy", res.Outcomes[0].Classification.TopField)
	assert.InDelta(t, 0.5, res.Outcomes[0].Assessment.CompositeScore, 1e-9)

	// Two classifications plus one assessment; t2 has no description.
	assert.EqualValues(t, 3, h.calls.Load())

	md, err := os.ReadFile(rep)
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Technology Enrichment Report")
	assert.Contains(t, string(md), "| Energy | 2 | 100.0% |")
}

type recordingPrinter struct{ docs []report.Document }

func (p *recordingPrinter) Print(_ context.Context, doc report.Document) ([]byte, error) {
	p.docs = append(p.docs, doc)
	return []byte("%PDF-1.7"), nil
}

func TestEnrichPDFReportCarriesRunID(t *testing.T) {
	h := newHarness(t)
	printer := &recordingPrinter{}
	h.app.printer = printer
	rep := filepath.Join(h.dir, "report.pdf")
	require.NoError(t, h.run(t, "enrich", "--input", "records.json", "--out", filepath.Join(h.dir, "out.json"), "--report", rep))

	require.Len(t, printer.docs, 1)
	doc := printer.docs[0]
	assert.Equal(t, report.ReportTitle, doc.Title)
	assert.Len(t, doc.RunID, 36)
	assert.Contains(t, h.stderr.String(), doc.RunID)
	assert.Contains(t, doc.HTML, "Technology Enrichment Report")

	blob, err := os.ReadFile(rep)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(blob))
}

func TestMissingInputFlag(t *testing.T) {
	h := newHarness(t)
	err := h.run(t, "detect-patents")
	assert.ErrorContains(t, err, "input")
}
