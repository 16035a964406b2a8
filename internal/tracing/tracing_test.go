package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/joelkehle/techtransfer-enrich/internal/completion"
)

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), Options{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestRunnerSpansCarryUsage(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := NewProvider(Options{ServiceName: "techenrich-test", Version: "v0"}, sdktrace.WithSyncer(exp))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	svc := completion.ServiceFunc(func(context.Context, completion.Request) (completion.Response, error) {
		return completion.Response{Text: "{}", InputTokens: 12, OutputTokens: 3}, nil
	})
	r := completion.NewRunner("classify", svc, completion.WithSpacing(0))
	_, err := r.Run(context.Background(), completion.Call{Model: "claude-3-5-haiku-20241022", Prompt: "p"}, func(string) error { return nil })
	require.NoError(t, err)

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "classify.complete", span.Name)
	assert.Contains(t, span.Attributes, attribute.Int("llm.input_tokens", 12))

	svcName, ok := span.Resource.Set().Value("service.name")
	require.True(t, ok)
	assert.Equal(t, "techenrich-test", svcName.AsString())
}
