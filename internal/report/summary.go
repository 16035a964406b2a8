// Package report summarizes an enrichment run and renders the summary as
// markdown, HTML, PDF or a workbook.
package report

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"

	"github.com/joelkehle/techtransfer-enrich/internal/assessor"
	"github.com/joelkehle/techtransfer-enrich/internal/completion"
	"github.com/joelkehle/techtransfer-enrich/internal/enrich"
	"github.com/joelkehle/techtransfer-enrich/internal/patentstatus"
)

// TopOpportunityCount caps the ranked opportunity list.
const TopOpportunityCount = 10

type ScoreStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

type Opportunity struct {
	ID    string        `json:"id"`
	Title string        `json:"title"`
	Field string        `json:"field,omitempty"`
	Tier  assessor.Tier `json:"tier"`
	Score float64       `json:"composite_score"`
}

type Summary struct {
	RunID            string                             `json:"run_id"`
	GeneratedAt      time.Time                          `json:"generated_at"`
	Records          int                                `json:"records"`
	Stages           []string                           `json:"stages"`
	PatentStatus     map[patentstatus.Status]int        `json:"patent_status"`
	Fields           map[string]int                     `json:"fields,omitempty"`
	Tiers            map[assessor.Tier]int              `json:"tiers,omitempty"`
	Composite        *ScoreStats                        `json:"composite,omitempty"`
	Failures         map[string]map[completion.Kind]int `json:"failures,omitempty"`
	Usage            map[string]completion.Stats        `json:"usage,omitempty"`
	TotalCost        float64                            `json:"total_cost"`
	TopOpportunities []Opportunity                      `json:"top_opportunities,omitempty"`
}

// Summarize aggregates a pipeline result. Each call gets a fresh run id.
func Summarize(res enrich.Result) Summary {
	s := Summary{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Records:     len(res.Outcomes),
		Stages:      res.Metadata.StagesExecuted,
		Fields:      map[string]int{},
		Tiers:       map[assessor.Tier]int{},
		Failures:    map[string]map[completion.Kind]int{},
		Usage:       res.Metadata.Usage,
	}

	statuses := make([]patentstatus.Result, len(res.Outcomes))
	var scores []float64
	for i, o := range res.Outcomes {
		statuses[i] = o.PatentStatus
		if c := o.Classification; c != nil {
			s.Fields[c.TopField]++
		}
		if f := o.ClassificationError; f != nil {
			countFailure(s.Failures, enrich.StageClassification, f.Kind)
		}
		if f := o.AssessmentError; f != nil {
			countFailure(s.Failures, enrich.StageAssessment, f.Kind)
		}
		a := o.Assessment
		if a == nil {
			continue
		}
		s.Tiers[a.Tier]++
		if a.Tier == assessor.TierSkipped {
			continue
		}
		scores = append(scores, a.CompositeScore)
		opp := Opportunity{ID: o.Record.ID, Title: o.Record.Title, Tier: a.Tier, Score: a.CompositeScore}
		if o.Classification != nil {
			opp.Field = o.Classification.TopField
		}
		s.TopOpportunities = append(s.TopOpportunities, opp)
	}
	s.PatentStatus = patentstatus.Tally(statuses)
	s.Composite = scoreStats(scores)

	sort.SliceStable(s.TopOpportunities, func(i, j int) bool {
		return s.TopOpportunities[i].Score > s.TopOpportunities[j].Score
	})
	if len(s.TopOpportunities) > TopOpportunityCount {
		s.TopOpportunities = s.TopOpportunities[:TopOpportunityCount]
	}

	for _, u := range s.Usage {
		s.TotalCost += u.TotalCost
	}
	s.TotalCost = completion.Round(s.TotalCost, 6)
	return s
}

func countFailure(m map[string]map[completion.Kind]int, stage string, kind completion.Kind) {
	if m[stage] == nil {
		m[stage] = map[completion.Kind]int{}
	}
	m[stage][kind]++
}

func scoreStats(scores []float64) *ScoreStats {
	if len(scores) == 0 {
		return nil
	}
	data := stats.Float64Data(scores)
	mean, _ := data.Mean()
	median, _ := data.Median()
	p90, _ := stats.PercentileNearestRank(data, 90)
	lo, _ := data.Min()
	hi, _ := data.Max()
	return &ScoreStats{
		Count:  len(scores),
		Mean:   completion.Round(mean, 4),
		Median: completion.Round(median, 4),
		P90:    completion.Round(p90, 4),
		Min:    lo,
		Max:    hi,
	}
}
