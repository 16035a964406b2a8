package assessor

import (
	"github.com/montanaflynn/stats"
	"github.com/spf13/cast"

	"github.com/joelkehle/techtransfer-enrich/internal/completion"
	"github.com/joelkehle/techtransfer-enrich/internal/record"
)

const (
	CategoryTRLGap         = "trl_gap"
	CategoryFalseBarrier   = "false_barrier"
	CategoryAltApplication = "alt_application"
)

// maxSuggestions caps alternative applications kept from a response.
const maxSuggestions = 3

// categoryKeys lists the accepted spellings of each category object.
var categoryKeys = map[string][]string{
	CategoryTRLGap:         {"trl_gap", "trlGap"},
	CategoryFalseBarrier:   {"false_barrier", "falseBarrier"},
	CategoryAltApplication: {"alt_application", "altApplication"},
}

// Field spellings inside a category, canonical name first.
var (
	trlGapFields = [][]string{
		{"inventor_implied_tier", "inventorImpliedTier"},
		{"assessed_tier", "assessedTier"},
		{"evidence_fields", "evidenceFields"},
	}
	falseBarrierFields = [][]string{
		{"stated_barrier", "statedBarrier"},
		{"rebuttal"},
		{"market_context", "marketContext"},
		{"barrier_source_field", "barrierSourceField"},
	}
	altApplicationFields = [][]string{
		{"original_application", "originalApplication"},
		{"suggested_applications", "suggestedApplications"},
	}
	suggestionFields = [][]string{
		{"application"},
		{"reasoning"},
		{"market_signal", "marketSignal"},
	}
)

// CategoryAssessment is the normalized output for one category. Details
// holds the category-specific fields, with missing ones defaulted.
type CategoryAssessment struct {
	Score      float64        `json:"score"`
	Confidence float64        `json:"confidence"`
	Reasoning  string         `json:"reasoning"`
	Details    map[string]any `json:"details,omitempty"`
}

// newCategory reads the common fields. Keys not named in known are kept
// in Details as returned.
func newCategory(raw map[string]any, known [][]string) *CategoryAssessment {
	m := record.Metadata(raw)
	score, _, _ := m.Lookup("score")
	conf, _, _ := m.Lookup("confidence")
	reasoning, _, _ := m.String("reasoning")
	skip := map[string]bool{"score": true, "confidence": true, "reasoning": true}
	for _, names := range known {
		for _, k := range names {
			skip[k] = true
		}
	}
	details := make(map[string]any, len(raw))
	for k, v := range raw {
		if !skip[k] {
			details[k] = v
		}
	}
	return &CategoryAssessment{
		Score:      completion.UnitInterval(score),
		Confidence: completion.UnitInterval(conf),
		Reasoning:  reasoning,
		Details:    details,
	}
}

func lookup(raw map[string]any, names []string) any {
	v, _, _ := record.Metadata(raw).Lookup(names...)
	return v
}

func validateTRLGap(raw map[string]any) *CategoryAssessment {
	c := newCategory(raw, trlGapFields)
	c.Details["inventor_implied_tier"] = string(MatchTRL(lookup(raw, trlGapFields[0])))
	c.Details["assessed_tier"] = string(MatchTRL(lookup(raw, trlGapFields[1])))
	fields, err := cast.ToStringSliceE(lookup(raw, trlGapFields[2]))
	if err != nil || fields == nil {
		fields = []string{}
	}
	c.Details["evidence_fields"] = fields
	return c
}

func validateFalseBarrier(raw map[string]any) *CategoryAssessment {
	c := newCategory(raw, falseBarrierFields)
	for _, names := range falseBarrierFields[:3] {
		c.Details[names[0]] = cast.ToString(lookup(raw, names))
	}
	src := cast.ToString(lookup(raw, falseBarrierFields[3]))
	if src == "" {
		src = "description"
	}
	c.Details["barrier_source_field"] = src
	return c
}

// Suggestion is one alternative application proposed by the model.
type Suggestion struct {
	Application  string `json:"application"`
	Reasoning    string `json:"reasoning"`
	MarketSignal string `json:"market_signal"`
}

func validateAltApplication(raw map[string]any) *CategoryAssessment {
	c := newCategory(raw, altApplicationFields)
	c.Details["original_application"] = cast.ToString(lookup(raw, altApplicationFields[0]))
	entries, _ := cast.ToSliceE(lookup(raw, altApplicationFields[1]))
	if len(entries) > maxSuggestions {
		entries = entries[:maxSuggestions]
	}
	suggestions := []Suggestion{}
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		s := Suggestion{
			Application:  cast.ToString(lookup(m, suggestionFields[0])),
			Reasoning:    cast.ToString(lookup(m, suggestionFields[1])),
			MarketSignal: cast.ToString(lookup(m, suggestionFields[2])),
		}
		if s.Application == "" {
			continue
		}
		suggestions = append(suggestions, s)
	}
	c.Details["suggested_applications"] = suggestions
	return c
}

// category returns the first spelling of name holding an object.
func category(obj map[string]any, name string) (map[string]any, bool) {
	for _, k := range categoryKeys[name] {
		if raw, ok := obj[k].(map[string]any); ok {
			return raw, true
		}
	}
	return nil, false
}

// validate keeps only the categories the tier asked for. Categories the
// model omitted or returned in the wrong shape stay nil.
func validate(tier Tier, obj map[string]any) Result {
	res := Result{Tier: tier}
	if raw, ok := category(obj, CategoryTRLGap); ok {
		res.TRLGap = validateTRLGap(raw)
	}
	if tier == TierFull {
		if raw, ok := category(obj, CategoryFalseBarrier); ok {
			res.FalseBarrier = validateFalseBarrier(raw)
		}
		if raw, ok := category(obj, CategoryAltApplication); ok {
			res.AltApplication = validateAltApplication(raw)
		}
	}
	res.CompositeScore = compositeScore(res)
	return res
}

// compositeScore is the TRL gap score for limited assessments and the
// mean of present category scores for full ones; 0 when none are present.
func compositeScore(r Result) float64 {
	switch r.Tier {
	case TierLimited:
		if r.TRLGap == nil {
			return 0
		}
		return completion.Round(r.TRLGap.Score, 4)
	case TierFull:
		var scores []float64
		for _, c := range r.Categories() {
			scores = append(scores, c.Score)
		}
		mean, err := stats.Mean(scores)
		if err != nil {
			return 0
		}
		return completion.Round(mean, 4)
	}
	return 0
}
