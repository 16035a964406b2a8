// Package assessor scores commercialization opportunity signals for a
// technology: TRL gap, false barriers and alternative applications.
package assessor

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/joelkehle/techtransfer-enrich/internal/batch"
	"github.com/joelkehle/techtransfer-enrich/internal/completion"
	"github.com/joelkehle/techtransfer-enrich/internal/record"
)

const (
	DefaultModel     = "claude-haiku-4-5-20251001"
	DefaultMaxTokens = 4096
)

// Error is returned when an assessment could not be produced.
type Error = completion.Failure

// Result is a validated assessment. Categories absent from the model's
// response, or not requested by the tier, are nil.
type Result struct {
	Tier           Tier                `json:"tier"`
	CompositeScore float64             `json:"composite_score"`
	TRLGap         *CategoryAssessment `json:"trl_gap,omitempty"`
	FalseBarrier   *CategoryAssessment `json:"false_barrier,omitempty"`
	AltApplication *CategoryAssessment `json:"alt_application,omitempty"`
	RawResponse    map[string]any      `json:"raw_response,omitempty"`
	completion.Usage
}

// Categories returns the present assessments keyed by category name.
func (r *Result) Categories() map[string]*CategoryAssessment {
	out := make(map[string]*CategoryAssessment, 3)
	if r.TRLGap != nil {
		out[CategoryTRLGap] = r.TRLGap
	}
	if r.FalseBarrier != nil {
		out[CategoryFalseBarrier] = r.FalseBarrier
	}
	if r.AltApplication != nil {
		out[CategoryAltApplication] = r.AltApplication
	}
	return out
}

type Item struct {
	ID          string
	Title       string
	Description string
	Metadata    record.Metadata
}

func ItemsFromRecords(records []record.Record) []Item {
	items := make([]Item, len(records))
	for i, r := range records {
		items[i] = Item{ID: r.ID, Title: r.Title, Description: r.Description, Metadata: r.Metadata}
	}
	return items
}

// Outcome is one batch entry: exactly one of Result and Err is set.
type Outcome struct {
	ID     string  `json:"id"`
	Result *Result `json:"result,omitempty"`
	Err    *Error  `json:"error,omitempty"`
}

type Assessor struct {
	runner    *completion.Runner
	model     string
	maxTokens int
	logger    *zap.Logger
}

type config struct {
	model      string
	maxTokens  int
	logger     *zap.Logger
	runnerOpts []completion.RunnerOption
}

type Option func(*config)

func WithModel(model string) Option {
	return func(c *config) {
		if model != "" {
			c.model = model
		}
	}
}

func WithMaxTokens(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithRunnerOptions(opts ...completion.RunnerOption) Option {
	return func(c *config) { c.runnerOpts = append(c.runnerOpts, opts...) }
}

func New(service completion.Service, opts ...Option) *Assessor {
	cfg := config{
		model:     DefaultModel,
		maxTokens: DefaultMaxTokens,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger.Named("assessor")
	runnerOpts := append([]completion.RunnerOption{completion.WithLogger(logger)}, cfg.runnerOpts...)
	return &Assessor{
		runner:    completion.NewRunner("assess", service, runnerOpts...),
		model:     cfg.model,
		maxTokens: cfg.maxTokens,
		logger:    logger,
	}
}

func (a *Assessor) Model() string { return a.model }

// Prompt returns the prompt Assess would send, or "" for a skipped tier.
func (a *Assessor) Prompt(title, description string, m record.Metadata) string {
	tier := Select(description, m)
	if tier == TierSkipped {
		return ""
	}
	return buildPrompt(tier, title, description, m)
}

// Assess makes at most one unpaced assessment call. Records without a
// description are skipped without contacting the service. A non-nil
// error is always an *Error.
func (a *Assessor) Assess(ctx context.Context, title, description string, m record.Metadata) (*Result, error) {
	return a.assess(ctx, title, description, m, false)
}

// AssessAsync assesses in the background with request spacing applied.
// The channel yields one Outcome and is closed.
func (a *Assessor) AssessAsync(ctx context.Context, title, description string, m record.Metadata) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		res, err := a.assess(ctx, title, description, m, true)
		ch <- newOutcome("", res, err)
	}()
	return ch
}

// AssessBatch assesses items with at most concurrency calls in flight.
// Results follow submission order; failures are reported per item.
func (a *Assessor) AssessBatch(ctx context.Context, items []Item, concurrency int, progress batch.ProgressFunc) []Outcome {
	a.logger.Info("assessment batch started", zap.Int("items", len(items)), zap.Int("concurrency", concurrency))
	out := batch.Run(ctx, items, concurrency, func(ctx context.Context, it Item) Outcome {
		res, err := a.assess(ctx, it.Title, it.Description, it.Metadata, true)
		return newOutcome(it.ID, res, err)
	}, progress)
	tiers := map[Tier]int{}
	failed := 0
	for _, o := range out {
		if o.Err != nil {
			failed++
			continue
		}
		tiers[o.Result.Tier]++
	}
	a.logger.Info("assessment batch finished",
		zap.Int("items", len(items)),
		zap.Int("full", tiers[TierFull]),
		zap.Int("limited", tiers[TierLimited]),
		zap.Int("skipped", tiers[TierSkipped]),
		zap.Int("failed", failed),
	)
	return out
}

func (a *Assessor) Stats() completion.Stats {
	return a.runner.Stats()
}

func (a *Assessor) assess(ctx context.Context, title, description string, m record.Metadata, paced bool) (*Result, error) {
	tier := Select(description, m)
	if tier == TierSkipped {
		return &Result{Tier: TierSkipped, Usage: completion.Usage{Model: a.model}}, nil
	}
	var res Result
	usage, err := a.runner.Run(ctx, completion.Call{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Prompt:    buildPrompt(tier, title, description, m),
		Paced:     paced,
	}, func(text string) error {
		obj, err := completion.DecodeObject(text)
		if err != nil {
			return err
		}
		res = validate(tier, obj)
		res.RawResponse = obj
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Usage = usage
	return &res, nil
}

func newOutcome(id string, res *Result, err error) Outcome {
	if err != nil {
		var f *Error
		if !errors.As(err, &f) {
			f = completion.AsFailure(err)
		}
		return Outcome{ID: id, Err: f}
	}
	return Outcome{ID: id, Result: res}
}
