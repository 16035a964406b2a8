package report

import (
	"fmt"
	"slices"

	"github.com/xuri/excelize/v2"

	"github.com/joelkehle/techtransfer-enrich/internal/assessor"
	"github.com/joelkehle/techtransfer-enrich/internal/enrich"
	"github.com/joelkehle/techtransfer-enrich/internal/patentstatus"
)

const summarySheet = "Summary"

// Workbook builds an XLSX file with a summary sheet and one sheet per
// stage that ran.
func Workbook(s Summary, res enrich.Result) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"F1F5F9"}},
	})
	if err != nil {
		return nil, err
	}

	summaryRows := [][]any{
		{"Run", s.RunID},
		{"Generated", s.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
		{"Records", s.Records},
		{"Total cost (USD)", s.TotalCost},
		{},
		{"Patent status", "Count"},
	}
	for _, st := range patentstatus.Statuses {
		summaryRows = append(summaryRows, []any{string(st), s.PatentStatus[st]})
	}
	if c := s.Composite; c != nil {
		summaryRows = append(summaryRows, []any{},
			[]any{"Composite", "Count", "Mean", "Median", "P90", "Min", "Max"},
			[]any{"", c.Count, c.Mean, c.Median, c.P90, c.Min, c.Max},
		)
	}
	if err := writeSheet(f, summarySheet, nil, summaryRows, header); err != nil {
		return nil, err
	}

	var patentRows [][]any
	for _, o := range res.Outcomes {
		p := o.PatentStatus
		patentRows = append(patentRows, []any{o.Record.ID, o.Record.Title, o.Record.URL, string(p.Status), p.Confidence, string(p.Source), p.Details})
	}
	if err := writeSheet(f, "Patent Status", []any{"ID", "Title", "URL", "Status", "Confidence", "Source", "Details"}, patentRows, header); err != nil {
		return nil, err
	}

	if slices.Contains(s.Stages, enrich.StageClassification) {
		var rows [][]any
		for _, o := range res.Outcomes {
			row := []any{o.Record.ID, o.Record.Title}
			if c := o.Classification; c != nil {
				row = append(row, c.TopField, c.Subfield, c.Confidence, c.Reasoning, "", c.Cost)
			} else if e := o.ClassificationError; e != nil {
				row = append(row, "", "", "", "", fmt.Sprintf("%s: %s", e.Kind, e.Message), "")
			}
			rows = append(rows, row)
		}
		if err := writeSheet(f, "Classification", []any{"ID", "Title", "Field", "Subfield", "Confidence", "Reasoning", "Error", "Cost"}, rows, header); err != nil {
			return nil, err
		}
	}

	if slices.Contains(s.Stages, enrich.StageAssessment) {
		var rows [][]any
		for _, o := range res.Outcomes {
			row := []any{o.Record.ID, o.Record.Title}
			if a := o.Assessment; a != nil {
				row = append(row, string(a.Tier), a.CompositeScore, categoryScore(a.TRLGap), categoryScore(a.FalseBarrier), categoryScore(a.AltApplication), "", a.Cost)
			} else if e := o.AssessmentError; e != nil {
				row = append(row, "", "", "", "", "", fmt.Sprintf("%s: %s", e.Kind, e.Message), "")
			}
			rows = append(rows, row)
		}
		if err := writeSheet(f, "Assessment", []any{"ID", "Title", "Tier", "Composite", "TRL Gap", "False Barrier", "Alt Application", "Error", "Cost"}, rows, header); err != nil {
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func categoryScore(c *assessor.CategoryAssessment) any {
	if c == nil {
		return ""
	}
	return c.Score
}

// writeSheet writes an optional bold header row followed by rows, creating
// the sheet when needed.
func writeSheet(f *excelize.File, sheet string, header []any, rows [][]any, headerStyle int) error {
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
	}
	row := 1
	if header != nil {
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return err
		}
		last, err := excelize.CoordinatesToCellName(len(header), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return err
		}
		if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
			return err
		}
		row = 2
	}
	for _, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return err
		}
		row++
	}
	return f.SetColWidth(sheet, "B", "B", 40)
}
