package classifier

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/joelkehle/techtransfer-enrich/internal/completion"
	"github.com/joelkehle/techtransfer-enrich/internal/retry"
	"github.com/joelkehle/techtransfer-enrich/internal/taxonomy"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type fakeService struct {
	calls   atomic.Int32
	mu      sync.Mutex
	prompts []string
	reply   func(prompt string) (completion.Response, error)
}

func (f *fakeService) Complete(_ context.Context, req completion.Request) (completion.Response, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.prompts = append(f.prompts, req.Prompt)
	f.mu.Unlock()
	return f.reply(req.Prompt)
}

func replyWith(text string) func(string) (completion.Response, error) {
	return func(string) (completion.Response, error) {
		return completion.Response{Text: text, InputTokens: 900, OutputTokens: 60}, nil
	}
}

func newTestClassifier(svc completion.Service) *Classifier {
	return New(svc, WithRunnerOptions(
		completion.WithSpacing(0),
		completion.WithPolicy(retry.Policy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, ExponentialBase: 2}),
	))
}

func TestClassifyNormalizesModelOutput(t *testing.T) {
	svc := &fakeService{reply: replyWith(`{"top_field": "robotics", "subfield": "industrial robotics", "confidence": 1.4, "reasoning": "arm control"}`)}
	c := newTestClassifier(svc)

	got, err := c.Classify(context.Background(), "Robotic arm", "A six-axis arm for assembly lines.")
	require.NoError(t, err)

	want := &Result{
		TopField:   "Robotics",
		Subfield:   "Industrial Robotics",
		Confidence: 1.0,
		Reasoning:  "arm control",
		Usage:      completion.Usage{Model: DefaultModel, InputTokens: 900, OutputTokens: 60},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(completion.Usage{}, "Cost")); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
	assert.InDelta(t, 900/1e6*1.0+60/1e6*5.0, got.Cost, 1e-12)
}

func TestClassifyGarbageStillValid(t *testing.T) {
	tax := taxonomy.Default()
	responses := []string{
		`{"top_field": "Alchemy", "subfield": "Gold", "confidence": "very"}`,
		`{"top_field": 42, "subfield": null, "confidence": -3}`,
		`{"topField": "COMPUTING", "subfield": "quantum computing", "confidence": 0.7}`,
		`{}`,
		"```json\n{\"top_field\": \"Energy\", \"subfield\": \"Fusion\"}\n```",
	}
	for _, text := range responses {
		c := newTestClassifier(&fakeService{reply: replyWith(text)})
		got, err := c.Classify(context.Background(), "t", "d")
		require.NoError(t, err, text)
		assert.True(t, tax.Contains(got.TopField, got.Subfield), "%s -> %s/%s", text, got.TopField, got.Subfield)
		assert.GreaterOrEqual(t, got.Confidence, 0.0)
		assert.LessOrEqual(t, got.Confidence, 1.0)
	}
}

func TestClassifyDefaults(t *testing.T) {
	c := newTestClassifier(&fakeService{reply: replyWith(`{"top_field": "Alchemy", "subfield": "Gold", "confidence": "very"}`)})
	got, err := c.Classify(context.Background(), "t", "d")
	require.NoError(t, err)

	assert.Equal(t, "Other", got.TopField)
	assert.Equal(t, "Consumer Products", got.Subfield)
	assert.Equal(t, 0.5, got.Confidence)
}

func TestClassifyUnknownSubfieldFallsBackToFirst(t *testing.T) {
	c := newTestClassifier(&fakeService{reply: replyWith(`{"top_field": "Energy", "subfield": "Fusion", "confidence": 0.6}`)})
	got, err := c.Classify(context.Background(), "t", "d")
	require.NoError(t, err)

	assert.Equal(t, "Energy", got.TopField)
	assert.Equal(t, "Solar Energy", got.Subfield)
}

func TestClassifyParseErrorNotRetried(t *testing.T) {
	svc := &fakeService{reply: replyWith("Sorry, I can't help with that.")}
	c := newTestClassifier(svc)

	_, err := c.Classify(context.Background(), "t", "d")
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, completion.KindParse, cerr.Kind)
	assert.False(t, cerr.Retryable)
	assert.EqualValues(t, 1, svc.calls.Load())
}

func TestClassifyRateLimitExhaustsRetries(t *testing.T) {
	svc := &fakeService{reply: func(string) (completion.Response, error) {
		return completion.Response{}, &completion.RateLimitError{}
	}}
	c := newTestClassifier(svc)

	_, err := c.Classify(context.Background(), "t", "d")
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, completion.KindMaxRetries, cerr.Kind)
	assert.True(t, cerr.Retryable)
	assert.EqualValues(t, 3, svc.calls.Load())
}

func TestPromptEmbedsTaxonomyAndRecord(t *testing.T) {
	c := newTestClassifier(&fakeService{reply: replyWith("{}")})

	p := c.Prompt("Solar skin", "")
	assert.Contains(t, p, "Available classification fields and subfields:")
	for _, name := range taxonomy.Default().Names() {
		assert.Contains(t, p, "\n"+name+": ")
	}
	assert.Contains(t, p, "Title: Solar skin\n")
	assert.Contains(t, p, "Description: No description provided.\n")
	assert.True(t, strings.HasSuffix(p, "JSON response:"))
}

func TestClassifyAsync(t *testing.T) {
	c := newTestClassifier(&fakeService{reply: replyWith(`{"top_field": "Energy", "subfield": "Hydrogen", "confidence": 0.9}`)})

	out := <-c.ClassifyAsync(context.Background(), "Electrolyzer", "Cheap hydrogen.")
	require.Nil(t, out.Err)
	assert.Equal(t, "Hydrogen", out.Result.Subfield)
}

func TestClassifyBatch(t *testing.T) {
	svc := &fakeService{reply: func(prompt string) (completion.Response, error) {
		if strings.Contains(prompt, "Title: broken") {
			return completion.Response{}, &completion.APIError{StatusCode: 503}
		}
		return completion.Response{Text: `{"top_field": "Materials", "subfield": "Polymers", "confidence": 0.8}`, InputTokens: 10, OutputTokens: 5}, nil
	}}
	c := newTestClassifier(svc)

	items := make([]Item, 8)
	for i := range items {
		items[i] = Item{ID: fmt.Sprintf("t-%d", i), Title: fmt.Sprintf("tech %d", i), Description: "d"}
	}
	items[5].Title = "broken"

	var progress []int
	out := c.ClassifyBatch(context.Background(), items, 3, func(done, total int) {
		assert.Equal(t, 8, total)
		progress = append(progress, done)
	})

	require.Len(t, out, 8)
	for i, o := range out {
		assert.Equal(t, items[i].ID, o.ID)
		if i == 5 {
			require.NotNil(t, o.Err)
			assert.Equal(t, completion.KindMaxRetries, o.Err.Kind)
			assert.Nil(t, o.Result)
			continue
		}
		require.Nil(t, o.Err)
		assert.Equal(t, "Polymers", o.Result.Subfield)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, progress)

	stats := c.Stats()
	assert.Equal(t, 7, stats.Requests)
	assert.Equal(t, 7, stats.Completed)
	assert.Equal(t, 7*15, stats.TotalTokens)
}
