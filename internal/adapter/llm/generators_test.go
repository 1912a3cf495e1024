package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func newGeminiServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, ":generateContent"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGeminiGenerator_ReturnsCandidateText(t *testing.T) {
	srv := newGeminiServer(t, http.StatusOK,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"Here you go: {\"title\":\"Cells\"}"}]}}]}`)

	gen, err := NewGeminiGenerator(context.Background(), GeminiConfig{
		APIKey:   "test-key",
		Model:    "gemini-2.0-flash",
		Endpoint: srv.URL,
	})
	require.NoError(t, err)

	reply, err := gen.Generate(context.Background(), "make a quiz")
	require.NoError(t, err)
	assert.Equal(t, `Here you go: {"title":"Cells"}`, reply)
}

func TestGeminiGenerator_ErrorsCarryStatus(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantClient bool
	}{
		{"bad api key", 401, `{"error":{"code":401,"message":"API key not valid","status":"UNAUTHENTICATED"}}`, true},
		{"quota", 429, `{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`, true},
		{"server error", 500, `{"error":{"code":500,"message":"internal","status":"INTERNAL"}}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newGeminiServer(t, tt.status, tt.body)
			gen, err := NewGeminiGenerator(context.Background(), GeminiConfig{
				APIKey:   "test-key",
				Model:    "gemini-2.0-flash",
				Endpoint: srv.URL,
			})
			require.NoError(t, err)

			_, err = gen.Generate(context.Background(), "make a quiz")

			require.Error(t, err)
			assert.Equal(t, tt.status, statusCode(err))
			assert.Equal(t, tt.wantClient, isClientError(err))
		})
	}
}

func TestNewGeminiGenerator_RequiresKeyAndModel(t *testing.T) {
	_, err := NewGeminiGenerator(context.Background(), GeminiConfig{Model: "gemini-2.0-flash"})
	assert.Error(t, err)
	_, err = NewGeminiGenerator(context.Background(), GeminiConfig{APIKey: "k"})
	assert.Error(t, err)
}

type fakeModel struct {
	reply  string
	err    error
	prompt string
}

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				m.prompt += text.Text
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestLangchainGenerator_SendsPromptAndReturnsReply(t *testing.T) {
	model := &fakeModel{reply: "<think>hmm</think>{\"title\":\"Cells\"}"}

	reply, err := NewLangchainGenerator(model, 0.2).Generate(context.Background(), "make a quiz")

	require.NoError(t, err)
	assert.Equal(t, "<think>hmm</think>{\"title\":\"Cells\"}", reply)
	assert.Equal(t, "make a quiz", model.prompt)
}

func TestLangchainGenerator_WrapsModelErrors(t *testing.T) {
	model := &fakeModel{err: errors.New("connection reset by peer")}

	_, err := NewLangchainGenerator(model, 0).Generate(context.Background(), "make a quiz")

	require.Error(t, err)
	assert.Zero(t, statusCode(err))
	assert.Contains(t, err.Error(), "connection reset by peer")
}

func TestOllamaGenerator_RecordsUpstreamStatus(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantClient bool
	}{
		{"unauthorized", http.StatusUnauthorized, true},
		{"overloaded", http.StatusServiceUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"request failed"}`))
			}))
			defer srv.Close()

			gen, err := NewOllamaGenerator(LangchainConfig{Endpoint: srv.URL, Model: "qwen3:0.6b"})
			require.NoError(t, err)

			_, err = gen.Generate(context.Background(), "make a quiz")

			require.Error(t, err)
			var statusErr *StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tt.status, statusErr.Code)
			assert.Equal(t, tt.wantClient, isClientError(err))
		})
	}
}

func TestNewOllamaGenerator_RequiresEndpointAndModel(t *testing.T) {
	_, err := NewOllamaGenerator(LangchainConfig{Model: "qwen3:0.6b"})
	assert.Error(t, err)
	_, err = NewOllamaGenerator(LangchainConfig{Endpoint: "http://localhost:11434"})
	assert.Error(t, err)
}

func TestNewOpenAIGenerator_RequiresKey(t *testing.T) {
	_, err := NewOpenAIGenerator(LangchainConfig{Model: "gpt-4o-mini"})
	assert.Error(t, err)
}
