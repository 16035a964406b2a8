package completion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/joelkehle/techtransfer-enrich/internal/retry"
)

// DefaultSpacing is the minimum gap between paced calls of one Runner.
const DefaultSpacing = 100 * time.Millisecond

const tracerName = "github.com/joelkehle/techtransfer-enrich/internal/completion"

// Call is one logical request. Paced calls wait on the Runner's limiter
// before every attempt.
type Call struct {
	Model     string
	MaxTokens int
	Prompt    string
	Paced     bool
}

// Usage is the telemetry attached to an enrichment result.
type Usage struct {
	Model        string  `json:"model"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"total_cost"`
}

// Runner executes calls against a Service with retry, pacing, cost
// accounting and tracing. One Runner belongs to one component instance.
type Runner struct {
	name    string
	service Service
	prices  *PriceTable
	policy  retry.Policy
	limiter *rate.Limiter
	logger  *zap.Logger
	tracer  trace.Tracer
	meter   Meter

	unpriced sync.Map
}

type RunnerOption func(*Runner)

func WithPolicy(p retry.Policy) RunnerOption {
	return func(r *Runner) { r.policy = p }
}

// WithSpacing sets the minimum gap between paced calls. Zero disables pacing.
func WithSpacing(d time.Duration) RunnerOption {
	return func(r *Runner) { r.limiter = newLimiter(d) }
}

func WithPrices(t *PriceTable) RunnerOption {
	return func(r *Runner) {
		if t != nil {
			r.prices = t
		}
	}
}

func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewRunner(name string, service Service, opts ...RunnerOption) *Runner {
	r := &Runner{
		name:    name,
		service: service,
		prices:  DefaultPrices(),
		policy:  retry.DefaultPolicy(),
		limiter: newLimiter(DefaultSpacing),
		logger:  zap.NewNop(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.policy.Retryable == nil {
		r.policy.Retryable = IsRetryable
	}
	return r
}

func newLimiter(spacing time.Duration) *rate.Limiter {
	if spacing <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(spacing), 1)
}

// Stats returns the Runner's running counters.
func (r *Runner) Stats() Stats {
	return r.meter.Snapshot()
}

// Run sends call, retrying transient failures, and hands the response text
// to decode. Any returned error is a *Failure.
func (r *Runner) Run(ctx context.Context, call Call, decode func(text string) error) (Usage, error) {
	ctx, span := r.tracer.Start(ctx, r.name+".complete", trace.WithAttributes(
		attribute.String("llm.model", call.Model),
		attribute.Bool("llm.paced", call.Paced),
	))
	defer span.End()

	usage := Usage{Model: call.Model}
	log := r.logger.With(zap.String("op", r.name), zap.String("model", call.Model))
	started := time.Now()
	attempt := 0

	resp, err := retry.Do(ctx, r.policy, func(ctx context.Context) (Response, error) {
		if call.Paced {
			if err := r.limiter.Wait(ctx); err != nil {
				return Response{}, err
			}
		}
		attempt++
		log.Debug("llm_attempt_start", zap.Int("attempt", attempt))
		return r.service.Complete(ctx, Request{Model: call.Model, MaxTokens: call.MaxTokens, Prompt: call.Prompt})
	}, func(attempt int, err error, wait time.Duration) {
		log.Warn("llm_attempt_failed",
			zap.Int("attempt", attempt),
			zap.String("kind", string(AsFailure(err).Kind)),
			zap.Duration("retry_in", wait),
			zap.Error(err))
	})
	if err != nil {
		return usage, r.fail(span, log, AsFailure(err), started)
	}

	usage.InputTokens = resp.InputTokens
	usage.OutputTokens = resp.OutputTokens
	usage.Cost = r.cost(call.Model, resp.InputTokens, resp.OutputTokens)
	r.meter.RecordCall(usage)
	span.SetAttributes(
		attribute.Int("llm.input_tokens", usage.InputTokens),
		attribute.Int("llm.output_tokens", usage.OutputTokens),
		attribute.Float64("llm.cost_usd", usage.Cost),
	)

	if strings.TrimSpace(resp.Text) == "" {
		return usage, r.fail(span, log, NewFailure(KindParse, errors.New("empty response")), started)
	}
	if err := decode(resp.Text); err != nil {
		f := AsFailure(err)
		if f.Kind == KindUnknown {
			f = NewFailure(KindParse, err)
		}
		return usage, r.fail(span, log, f, started)
	}

	r.meter.RecordSuccess()
	log.Debug("llm_attempt_done",
		zap.Int("attempts", attempt),
		zap.Int("input_tokens", usage.InputTokens),
		zap.Int("output_tokens", usage.OutputTokens),
		zap.Duration("elapsed", time.Since(started).Round(time.Millisecond)))
	return usage, nil
}

func (r *Runner) fail(span trace.Span, log *zap.Logger, f *Failure, started time.Time) *Failure {
	span.RecordError(f)
	span.SetStatus(codes.Error, string(f.Kind))
	log.Warn("llm_call_failed",
		zap.String("kind", string(f.Kind)),
		zap.Bool("retryable", f.Retryable),
		zap.Duration("elapsed", time.Since(started).Round(time.Millisecond)),
		zap.Error(f.Err))
	return f
}

func (r *Runner) cost(model string, in, out int) float64 {
	c, ok := r.prices.Cost(model, in, out)
	if !ok {
		if _, seen := r.unpriced.LoadOrStore(model, true); !seen {
			r.logger.Warn("model has no pricing, cost recorded as zero", zap.String("model", model))
		}
	}
	return c
}
