package completion

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// mockMessager implements AnthropicMessager for testing.
type mockMessager struct {
	response *anthropic.Message
	err      error
	params   anthropic.MessageNewParams
}

func (m *mockMessager) New(_ context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	m.params = params
	return m.response, m.err
}

func withMockClient(mock *mockMessager) func() {
	old := newAnthropicClient
	newAnthropicClient = func(_ string) AnthropicMessager { return mock }
	return func() { newAnthropicClient = old }
}

func apiStatusError(code int) error {
	return &anthropic.Error{
		StatusCode: code,
		Request:    httptest.NewRequest(http.MethodPost, "https://api.anthropic.com/v1/messages", nil),
		Response:   &http.Response{StatusCode: code},
	}
}

func TestAnthropicServiceRequiresKey(t *testing.T) {
	if _, err := NewAnthropicService("  "); err == nil {
		t.Fatal("expected error for blank key")
	}
}

func TestAnthropicServiceComplete(t *testing.T) {
	mock := &mockMessager{response: &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: `{"top_field":`},
			{Type: "thinking"},
			{Type: "text", Text: ` "Energy"}`},
		},
		Usage: anthropic.Usage{InputTokens: 812, OutputTokens: 64},
	}}
	defer withMockClient(mock)()

	svc, err := NewAnthropicService("test-key")
	if err != nil {
		t.Fatal(err)
	}
	resp, err := svc.Complete(context.Background(), Request{Model: "claude-3-5-haiku-20241022", MaxTokens: 256, Prompt: "classify this"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != `{"top_field": "Energy"}` {
		t.Fatalf("text=%q", resp.Text)
	}
	if resp.InputTokens != 812 || resp.OutputTokens != 64 {
		t.Fatalf("tokens=%d/%d", resp.InputTokens, resp.OutputTokens)
	}
	if string(mock.params.Model) != "claude-3-5-haiku-20241022" || mock.params.MaxTokens != 256 {
		t.Fatalf("params model=%s max_tokens=%d", mock.params.Model, mock.params.MaxTokens)
	}
}

func TestAnthropicServiceClassifiesStatus(t *testing.T) {
	for code, want := range map[int]Kind{429: KindRateLimit, 500: KindAPIError, 529: KindAPIError, 400: KindUnknown} {
		mock := &mockMessager{err: apiStatusError(code)}
		restore := withMockClient(mock)
		svc, _ := NewAnthropicService("test-key")
		_, err := svc.Complete(context.Background(), Request{Model: "m", Prompt: "p"})
		restore()

		if got := AsFailure(err).Kind; got != want {
			t.Fatalf("status %d classified as %s want %s", code, got, want)
		}
		var apiErr *anthropic.Error
		if !errors.As(err, &apiErr) {
			t.Fatalf("status %d: original SDK error lost", code)
		}
	}
}
