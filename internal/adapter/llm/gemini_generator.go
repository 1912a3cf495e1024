package llm

import (
	"context"
	"fmt"
	"net/http"

	"quiz-deck/internal/domain"
	"quiz-deck/internal/logger"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini backend. Endpoint overrides the public API base URL.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Endpoint    string
	Temperature float32
	HTTPClient  *http.Client
}

// GeminiGenerator calls the Gemini generateContent API.
type GeminiGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
}

var _ domain.TextGenerator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a new GeminiGenerator. The client is safe for concurrent use.
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key cannot be empty")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("gemini model name cannot be empty")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.Endpoint != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	logger.Get().Info("Initialized Gemini generator", zap.String("model", cfg.Model))
	return &GeminiGenerator{client: client, model: cfg.Model, temperature: cfg.Temperature}, nil
}

// Generate sends one prompt and returns the text of the first candidate.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("gemini generateContent failed: %w", err)
	}
	return result.Text(), nil
}
