// Package classifier assigns a technology to one field/subfield pair of
// the taxonomy using a language model.
package classifier

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/joelkehle/techtransfer-enrich/internal/batch"
	"github.com/joelkehle/techtransfer-enrich/internal/completion"
	"github.com/joelkehle/techtransfer-enrich/internal/record"
	"github.com/joelkehle/techtransfer-enrich/internal/taxonomy"
)

const (
	DefaultModel     = "claude-3-5-haiku-20241022"
	DefaultMaxTokens = 256
)

// Error is returned when a technology could not be classified. Kind tells
// callers whether a later retry is worthwhile.
type Error = completion.Failure

// Result is a validated classification. TopField and Subfield always form
// a pair present in the taxonomy.
type Result struct {
	TopField   string  `json:"top_field"`
	Subfield   string  `json:"subfield"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
	completion.Usage
}

type Item struct {
	ID          string
	Title       string
	Description string
}

// ItemsFromRecords adapts scraped records to classification work items.
func ItemsFromRecords(records []record.Record) []Item {
	items := make([]Item, len(records))
	for i, r := range records {
		items[i] = Item{ID: r.ID, Title: r.Title, Description: r.Description}
	}
	return items
}

// Outcome is one batch entry: exactly one of Result and Err is set.
type Outcome struct {
	ID     string  `json:"id"`
	Result *Result `json:"result,omitempty"`
	Err    *Error  `json:"error,omitempty"`
}

type Classifier struct {
	runner    *completion.Runner
	tax       *taxonomy.Taxonomy
	model     string
	maxTokens int
	logger    *zap.Logger
}

type config struct {
	model      string
	maxTokens  int
	tax        *taxonomy.Taxonomy
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

func WithTaxonomy(t *taxonomy.Taxonomy) Option {
	return func(c *config) {
		if t != nil {
			c.tax = t
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

// WithRunnerOptions tunes retry, pacing and pricing of external calls.
func WithRunnerOptions(opts ...completion.RunnerOption) Option {
	return func(c *config) { c.runnerOpts = append(c.runnerOpts, opts...) }
}

func New(service completion.Service, opts ...Option) *Classifier {
	cfg := config{
		model:     DefaultModel,
		maxTokens: DefaultMaxTokens,
		tax:       taxonomy.Default(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger.Named("classifier")
	runnerOpts := append([]completion.RunnerOption{completion.WithLogger(logger)}, cfg.runnerOpts...)
	return &Classifier{
		runner:    completion.NewRunner("classify", service, runnerOpts...),
		tax:       cfg.tax,
		model:     cfg.model,
		maxTokens: cfg.maxTokens,
		logger:    logger,
	}
}

func (c *Classifier) Model() string { return c.model }

// Prompt returns the exact prompt Classify would send.
func (c *Classifier) Prompt(title, description string) string {
	return buildPrompt(c.tax, title, description)
}

// Classify makes one unpaced classification call. A non-nil error is
// always an *Error.
func (c *Classifier) Classify(ctx context.Context, title, description string) (*Result, error) {
	return c.classify(ctx, title, description, false)
}

// ClassifyAsync classifies in the background, waiting for the
// instance's request spacing before each external attempt. The channel
// yields one Outcome and is closed.
func (c *Classifier) ClassifyAsync(ctx context.Context, title, description string) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		res, err := c.classify(ctx, title, description, true)
		ch <- newOutcome("", res, err)
	}()
	return ch
}

// ClassifyBatch classifies items with at most concurrency calls in flight.
// Results follow submission order; failures are reported per item.
func (c *Classifier) ClassifyBatch(ctx context.Context, items []Item, concurrency int, progress batch.ProgressFunc) []Outcome {
	c.logger.Info("classification batch started", zap.Int("items", len(items)), zap.Int("concurrency", concurrency))
	out := batch.Run(ctx, items, concurrency, func(ctx context.Context, it Item) Outcome {
		res, err := c.classify(ctx, it.Title, it.Description, true)
		return newOutcome(it.ID, res, err)
	}, progress)
	failed := 0
	for _, o := range out {
		if o.Err != nil {
			failed++
		}
	}
	c.logger.Info("classification batch finished", zap.Int("items", len(items)), zap.Int("failed", failed))
	return out
}

// Stats reports the instance's running usage counters.
func (c *Classifier) Stats() completion.Stats {
	return c.runner.Stats()
}

func (c *Classifier) classify(ctx context.Context, title, description string, paced bool) (*Result, error) {
	var res Result
	usage, err := c.runner.Run(ctx, completion.Call{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Prompt:    buildPrompt(c.tax, title, description),
		Paced:     paced,
	}, func(text string) error {
		obj, err := completion.DecodeObject(text)
		if err != nil {
			return err
		}
		res = validate(c.tax, obj)
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
