package completion

import (
	"context"
	"testing"

	"google.golang.org/genai"
)

type mockGeminiModels struct {
	resp   *genai.GenerateContentResponse
	err    error
	model  string
	config *genai.GenerateContentConfig
}

func (m *mockGeminiModels) GenerateContent(_ context.Context, model string, _ []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.model, m.config = model, config
	return m.resp, m.err
}

func TestGeminiServiceComplete(t *testing.T) {
	mock := &mockGeminiModels{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: `{"trl_gap": {}}`}}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 300, CandidatesTokenCount: 40},
	}}
	svc := &GeminiService{models: mock}

	resp, err := svc.Complete(context.Background(), Request{Model: "gemini-2.5-flash", MaxTokens: 4096, Prompt: "assess"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != `{"trl_gap": {}}` || resp.InputTokens != 300 || resp.OutputTokens != 40 {
		t.Fatalf("resp=%+v", resp)
	}
	if mock.model != "gemini-2.5-flash" || mock.config.MaxOutputTokens != 4096 {
		t.Fatalf("model=%s config=%+v", mock.model, mock.config)
	}
}

func TestGeminiServiceClassifiesAPIError(t *testing.T) {
	for code, want := range map[int]Kind{429: KindRateLimit, 503: KindAPIError, 403: KindUnknown} {
		svc := &GeminiService{models: &mockGeminiModels{err: genai.APIError{Code: code, Message: "x"}}}
		_, err := svc.Complete(context.Background(), Request{Model: "gemini-2.5-flash", Prompt: "p"})
		if got := AsFailure(err).Kind; got != want {
			t.Fatalf("code %d classified as %s want %s", code, got, want)
		}
	}
}

func TestNewGeminiServiceRequiresKey(t *testing.T) {
	if _, err := NewGeminiService(context.Background(), ""); err == nil {
		t.Fatal("expected error for blank key")
	}
}
