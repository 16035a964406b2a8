// Package enrich runs the enrichment stages over a set of records:
// patent status detection always, classification and assessment on
// request.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/joelkehle/techtransfer-enrich/internal/assessor"
	"github.com/joelkehle/techtransfer-enrich/internal/batch"
	"github.com/joelkehle/techtransfer-enrich/internal/classifier"
	"github.com/joelkehle/techtransfer-enrich/internal/completion"
	"github.com/joelkehle/techtransfer-enrich/internal/patentstatus"
	"github.com/joelkehle/techtransfer-enrich/internal/record"
)

const (
	StagePatentStatus   = "patent_status"
	StageClassification = "classification"
	StageAssessment     = "assessment"
)

const tracerName = "github.com/joelkehle/techtransfer-enrich/internal/enrich"

// ErrStageUnavailable is returned when a stage is requested but the
// Pipeline was built without its component.
var ErrStageUnavailable = errors.New("stage not configured")

type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ProgressFn is told after each record finishes a stage.
type ProgressFn func(stage string, completed, total int)

type Options struct {
	Classify    bool
	Assess      bool
	Concurrency int
}

// Outcome carries everything learned about one record. For each optional
// stage that ran, exactly one of the result and error fields is set.
type Outcome struct {
	Record              record.Record       `json:"record"`
	PatentStatus        patentstatus.Result `json:"patent_status"`
	Classification      *classifier.Result  `json:"classification,omitempty"`
	ClassificationError *classifier.Error   `json:"classification_error,omitempty"`
	Assessment          *assessor.Result    `json:"assessment,omitempty"`
	AssessmentError     *assessor.Error     `json:"assessment_error,omitempty"`
}

type Metadata struct {
	StartedAt      time.Time                   `json:"started_at"`
	CompletedAt    time.Time                   `json:"completed_at"`
	StagesExecuted []string                    `json:"stages_executed"`
	Usage          map[string]completion.Stats `json:"usage,omitempty"`
}

type Result struct {
	Outcomes []Outcome `json:"outcomes"`
	Metadata Metadata  `json:"metadata"`
}

type Pipeline struct {
	detector   *patentstatus.Detector
	classifier *classifier.Classifier
	assessor   *assessor.Assessor
	logger     *zap.Logger
	tracer     trace.Tracer
}

type PipelineOption func(*Pipeline)

func WithClassifier(c *classifier.Classifier) PipelineOption {
	return func(p *Pipeline) { p.classifier = c }
}

func WithAssessor(a *assessor.Assessor) PipelineOption {
	return func(p *Pipeline) { p.assessor = a }
}

func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		detector: patentstatus.NewDetector(),
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("enrich")
	return p
}

// Run enriches records and returns one Outcome per record in input order.
// Per-record failures are reported in the Outcomes; an error is returned
// only when a stage cannot run at all or ctx ends. The partial Result is
// returned alongside the error.
func (p *Pipeline) Run(ctx context.Context, records []record.Record, opts Options, progress ProgressFn) (Result, error) {
	res := Result{
		Outcomes: make([]Outcome, len(records)),
		Metadata: Metadata{StartedAt: time.Now(), Usage: map[string]completion.Stats{}},
	}
	if opts.Classify && p.classifier == nil {
		return res, &StageError{Stage: StageClassification, Err: ErrStageUnavailable}
	}
	if opts.Assess && p.assessor == nil {
		return res, &StageError{Stage: StageAssessment, Err: ErrStageUnavailable}
	}

	ctx, span := p.tracer.Start(ctx, "enrich.run", trace.WithAttributes(
		attribute.Int("records", len(records)),
		attribute.Bool("classify", opts.Classify),
		attribute.Bool("assess", opts.Assess),
	))
	defer span.End()

	for i, r := range records {
		res.Outcomes[i].Record = r
	}

	p.stage(ctx, &res, StagePatentStatus, func(ctx context.Context) {
		for i, r := range records {
			res.Outcomes[i].PatentStatus = p.detector.DetectRecord(r)
			emit(progress, StagePatentStatus, i+1, len(records))
		}
	})

	if opts.Classify {
		if err := ctx.Err(); err != nil {
			return p.abort(span, res, StageClassification, err)
		}
		p.stage(ctx, &res, StageClassification, func(ctx context.Context) {
			out := p.classifier.ClassifyBatch(ctx, classifier.ItemsFromRecords(records), opts.Concurrency, stageProgress(progress, StageClassification))
			for i, o := range out {
				res.Outcomes[i].Classification = o.Result
				res.Outcomes[i].ClassificationError = o.Err
			}
		})
		res.Metadata.Usage[StageClassification] = p.classifier.Stats()
	}

	if opts.Assess {
		if err := ctx.Err(); err != nil {
			return p.abort(span, res, StageAssessment, err)
		}
		p.stage(ctx, &res, StageAssessment, func(ctx context.Context) {
			out := p.assessor.AssessBatch(ctx, assessor.ItemsFromRecords(records), opts.Concurrency, stageProgress(progress, StageAssessment))
			for i, o := range out {
				res.Outcomes[i].Assessment = o.Result
				res.Outcomes[i].AssessmentError = o.Err
			}
		})
		res.Metadata.Usage[StageAssessment] = p.assessor.Stats()
	}

	if err := ctx.Err(); err != nil {
		return p.abort(span, res, "pipeline", err)
	}
	res.Metadata.CompletedAt = time.Now()
	return res, nil
}

func (p *Pipeline) stage(ctx context.Context, res *Result, name string, fn func(context.Context)) {
	ctx, span := p.tracer.Start(ctx, "enrich."+name)
	defer span.End()
	started := time.Now()
	fn(ctx)
	res.Metadata.StagesExecuted = append(res.Metadata.StagesExecuted, name)
	p.logger.Info("stage complete",
		zap.String("stage", name),
		zap.Int("records", len(res.Outcomes)),
		zap.Duration("elapsed", time.Since(started).Round(time.Millisecond)),
	)
}

func (p *Pipeline) abort(span trace.Span, res Result, stage string, err error) (Result, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	p.logger.Warn("pipeline aborted", zap.String("stage", stage), zap.Error(err))
	res.Metadata.CompletedAt = time.Now()
	return res, &StageError{Stage: stage, Err: err}
}

func emit(progress ProgressFn, stage string, completed, total int) {
	if progress != nil {
		progress(stage, completed, total)
	}
}

func stageProgress(progress ProgressFn, stage string) batch.ProgressFunc {
	if progress == nil {
		return nil
	}
	return func(completed, total int) { progress(stage, completed, total) }
}

// FailedStage names the stage an error from Run came from.
func FailedStage(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return "pipeline"
}
