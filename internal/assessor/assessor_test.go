package assessor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/joelkehle/techtransfer-enrich/internal/completion"
	"github.com/joelkehle/techtransfer-enrich/internal/record"
	"github.com/joelkehle/techtransfer-enrich/internal/retry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type fakeService struct {
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
	reply    func(prompt string) (completion.Response, error)
}

func (f *fakeService) Complete(ctx context.Context, req completion.Request) (completion.Response, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return completion.Response{}, ctx.Err()
		}
	}
	return f.reply(req.Prompt)
}

func replyWith(text string) func(string) (completion.Response, error) {
	return func(string) (completion.Response, error) {
		return completion.Response{Text: text, InputTokens: 2000, OutputTokens: 400}, nil
	}
}

func newTestAssessor(svc completion.Service) *Assessor {
	return New(svc, WithRunnerOptions(
		completion.WithSpacing(0),
		completion.WithPolicy(retry.Policy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, ExponentialBase: 2}),
	))
}

const fullResponse = `{
  "trl_gap": {"score": 0.8, "confidence": 0.9, "inventor_implied_tier": "market ready", "assessed_tier": "Prototype:Early", "evidence_fields": ["development_stage"], "reasoning": "claims outpace data"},
  "false_barrier": {"score": 0.4, "confidence": 0.6, "stated_barrier": "FDA approval", "rebuttal": "510(k) path exists"},
  "alt_application": {"score": 0.6, "confidence": 0.7, "original_application": "wound care",
    "suggested_applications": [
      {"application": "veterinary", "reasoning": "same tissue"},
      {"reasoning": "no application given"},
      {"application": "sports medicine"},
      {"application": "dropped by cap"}
    ]}
}`

func richMetadata() record.Metadata {
	return record.Metadata{
		"applications":      []any{"wound care"},
		"development_stage": "prototype",
	}
}

func TestSelectTier(t *testing.T) {
	cases := []struct {
		name        string
		description string
		metadata    record.Metadata
		want        Tier
	}{
		{"empty description", "", richMetadata(), TierSkipped},
		{"blank description", "   ", nil, TierSkipped},
		{"no metadata", "A bandage.", nil, TierLimited},
		{"one rich field", "A bandage.", record.Metadata{"advantages": "cheap"}, TierLimited},
		{"empty values ignored", "A bandage.", record.Metadata{"advantages": "", "key_points": []any{}}, TierLimited},
		{"two rich fields", "A bandage.", richMetadata(), TierFull},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Select(tc.description, tc.metadata))
		})
	}
}

func TestAssessSkippedMakesNoCall(t *testing.T) {
	svc := &fakeService{reply: replyWith(fullResponse)}
	a := newTestAssessor(svc)

	got, err := a.Assess(context.Background(), "Bandage", "", richMetadata())
	require.NoError(t, err)
	assert.Equal(t, TierSkipped, got.Tier)
	assert.Zero(t, got.CompositeScore)
	assert.Nil(t, got.TRLGap)
	assert.Equal(t, DefaultModel, got.Model)
	assert.Zero(t, svc.calls.Load())
	assert.Zero(t, a.Stats().Requests)
}

func TestAssessFull(t *testing.T) {
	svc := &fakeService{reply: replyWith(fullResponse)}
	a := newTestAssessor(svc)

	got, err := a.Assess(context.Background(), "Bandage", "A smart bandage.", richMetadata())
	require.NoError(t, err)

	assert.Equal(t, TierFull, got.Tier)
	assert.InDelta(t, 0.6, got.CompositeScore, 1e-9)
	require.NotNil(t, got.TRLGap)
	assert.Equal(t, "Market-ready", got.TRLGap.Details["inventor_implied_tier"])
	assert.Equal(t, "Prototype:Early", got.TRLGap.Details["assessed_tier"])
	assert.Equal(t, []string{"development_stage"}, got.TRLGap.Details["evidence_fields"])

	require.NotNil(t, got.FalseBarrier)
	assert.Equal(t, "description", got.FalseBarrier.Details["barrier_source_field"])
	assert.Equal(t, "", got.FalseBarrier.Reasoning)

	require.NotNil(t, got.AltApplication)
	assert.Equal(t, []Suggestion{
		{Application: "veterinary", Reasoning: "same tissue"},
		{Application: "sports medicine"},
	}, got.AltApplication.Details["suggested_applications"])
	assert.NotEmpty(t, got.RawResponse)
	assert.Greater(t, got.Cost, 0.0)
}

func TestAssessLimitedIgnoresExtraCategories(t *testing.T) {
	a := newTestAssessor(&fakeService{reply: replyWith(fullResponse)})

	got, err := a.Assess(context.Background(), "Bandage", "A smart bandage.", nil)
	require.NoError(t, err)
	assert.Equal(t, TierLimited, got.Tier)
	assert.Equal(t, 0.8, got.CompositeScore)
	assert.Nil(t, got.FalseBarrier)
	assert.Nil(t, got.AltApplication)
	assert.Len(t, got.Categories(), 1)
}

func TestCompositeScore(t *testing.T) {
	cases := []struct {
		name     string
		tier     Tier
		response string
		want     float64
	}{
		{"limited without trl gap", TierLimited, `{}`, 0},
		{"limited rounds", TierLimited, `{"trl_gap": {"score": 0.123456}}`, 0.1235},
		{"full with one category", TierFull, `{"alt_application": {"score": 0.3}}`, 0.3},
		{"full with none", TierFull, `{"trl_gap": "not an object"}`, 0},
		{"full mean of two", TierFull, `{"trl_gap": {"score": 1.7}, "false_barrier": {"score": 0.5}}`, 0.75},
		{"missing score defaults", TierFull, `{"trl_gap": {"score": "high"}}`, 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			obj, err := completion.DecodeObject(tc.response)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, validate(tc.tier, obj).CompositeScore, 1e-9)
		})
	}
}

func TestValidateAcceptsCamelCaseKeys(t *testing.T) {
	obj, err := completion.DecodeObject(`{
		"trlGap": {"score": 0.7, "inventorImpliedTier": "Market-ready", "assessedTier": "early prototype", "evidenceFields": ["stage"]},
		"falseBarrier": {"score": 0.5, "statedBarrier": "cost", "barrierSourceField": "abstract"},
		"altApplication": {"score": 0.3, "suggestedApplications": [{"application": "drones", "marketSignal": "growing"}, {"reasoning": "no name"}]}
	}`)
	require.NoError(t, err)

	limited := validate(TierLimited, obj)
	require.NotNil(t, limited.TRLGap)
	assert.InDelta(t, 0.7, limited.CompositeScore, 1e-9)

	full := validate(TierFull, obj)
	assert.InDelta(t, 0.5, full.CompositeScore, 1e-9)
	require.Len(t, full.Categories(), 3)

	gap := full.TRLGap.Details
	assert.Equal(t, "Market-ready", gap["inventor_implied_tier"])
	assert.Equal(t, "Prototype:Early", gap["assessed_tier"])
	assert.Equal(t, []string{"stage"}, gap["evidence_fields"])
	assert.NotContains(t, gap, "inventorImpliedTier")

	barrier := full.FalseBarrier.Details
	assert.Equal(t, "cost", barrier["stated_barrier"])
	assert.Equal(t, "abstract", barrier["barrier_source_field"])

	assert.Equal(t, []Suggestion{{Application: "drones", MarketSignal: "growing"}},
		full.AltApplication.Details["suggested_applications"])
}

func TestMatchTRL(t *testing.T) {
	cases := map[any]TRL{
		"Concept":                TRLConcept,
		"prototype:demonstrated": TRLPrototypeDemonstrated,
		"Market ready":           TRLMarketReady,
		"advanced prototype":     TRLPrototypeAdvanced,
		"early stage":            TRLPrototypeEarly,
		"a prototype":            TRLPrototypeEarly,
		"lab bench":              TRLConcept,
		"":                       TRLConcept,
		nil:                      TRLConcept,
		7:                        TRLConcept,
	}
	for in, want := range cases {
		assert.Equal(t, want, MatchTRL(in), "%v", in)
	}
	assert.Less(t, TRLConcept.Rank(), TRLMarketReady.Rank())
}

func TestAssessBatchIsolatesFailures(t *testing.T) {
	svc := &fakeService{
		delay: 5 * time.Millisecond,
		reply: func(prompt string) (completion.Response, error) {
			if strings.Contains(prompt, "Title: item-4\n") {
				return completion.Response{}, &completion.APIError{StatusCode: 503}
			}
			return completion.Response{Text: `{"trl_gap": {"score": 0.2}}`}, nil
		},
	}
	a := newTestAssessor(svc)

	items := make([]Item, 10)
	for i := range items {
		items[i] = Item{ID: fmt.Sprint(i), Title: fmt.Sprintf("item-%d", i), Description: "d"}
	}

	var mu sync.Mutex
	var progress []int
	out := a.AssessBatch(context.Background(), items, 3, func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 10, total)
		progress = append(progress, done)
	})

	require.Len(t, out, 10)
	ok := 0
	for i, o := range out {
		assert.Equal(t, fmt.Sprint(i), o.ID)
		if i == 4 {
			require.NotNil(t, o.Err)
			assert.Equal(t, completion.KindMaxRetries, o.Err.Kind)
			assert.True(t, o.Err.Retryable)
			continue
		}
		require.Nil(t, o.Err)
		assert.Equal(t, TierLimited, o.Result.Tier)
		ok++
	}
	assert.Equal(t, 9, ok)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, progress)
	assert.LessOrEqual(t, svc.peak.Load(), int32(3))
	assert.EqualValues(t, 9+3, svc.calls.Load())
}

func TestAssessAsync(t *testing.T) {
	a := newTestAssessor(&fakeService{reply: replyWith(`{"trl_gap": {"score": 0.9}}`)})

	o := <-a.AssessAsync(context.Background(), "t", "d", nil)
	require.Nil(t, o.Err)
	assert.Equal(t, 0.9, o.Result.CompositeScore)
}

func TestPromptIncludesMetadata(t *testing.T) {
	a := newTestAssessor(&fakeService{reply: replyWith("{}")})

	full := a.Prompt("Bandage", "A smart bandage.", richMetadata())
	assert.Contains(t, full, `"false_barrier"`)
	assert.Contains(t, full, "  applications: [\"wound care\"]\n  development_stage: prototype")
	assert.True(t, strings.HasSuffix(full, "JSON response:"))

	limited := a.Prompt("Bandage", "A smart bandage.", nil)
	assert.NotContains(t, limited, `"false_barrier"`)
	assert.Contains(t, limited, "No additional data available.")

	assert.Empty(t, a.Prompt("Bandage", "", nil))
}
