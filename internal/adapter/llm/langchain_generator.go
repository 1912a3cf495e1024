package llm

import (
	"context"
	"fmt"
	"net/http"

	"quiz-deck/internal/domain"
	"quiz-deck/internal/logger"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// LangchainConfig configures the Ollama and OpenAI backends.
type LangchainConfig struct {
	Endpoint    string
	APIKey      string
	Model       string
	Temperature float64
	HTTPClient  *http.Client
}

// LangchainGenerator generates text through any langchaingo model.
type LangchainGenerator struct {
	model       llms.Model
	temperature float64
}

var _ domain.TextGenerator = (*LangchainGenerator)(nil)

// NewLangchainGenerator wraps an already constructed model.
func NewLangchainGenerator(model llms.Model, temperature float64) *LangchainGenerator {
	return &LangchainGenerator{model: model, temperature: temperature}
}

// NewOllamaGenerator connects to an Ollama server.
func NewOllamaGenerator(cfg LangchainConfig) (*LangchainGenerator, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("ollama server URL cannot be empty")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama model name cannot be empty")
	}

	model, err := ollama.New(
		ollama.WithServerURL(cfg.Endpoint),
		ollama.WithModel(cfg.Model),
		ollama.WithHTTPClient(newStatusRecordingClient(cfg.HTTPClient)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create LangchainGo Ollama client: %w", err)
	}

	logger.Get().Info("Initialized Ollama generator", zap.String("model", cfg.Model), zap.String("server", cfg.Endpoint))
	return NewLangchainGenerator(model, cfg.Temperature), nil
}

// NewOpenAIGenerator connects to the OpenAI API or a compatible endpoint.
func NewOpenAIGenerator(cfg LangchainConfig) (*LangchainGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key cannot be empty")
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(newStatusRecordingClient(cfg.HTTPClient)),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, openai.WithBaseURL(cfg.Endpoint))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create LangchainGo OpenAI client: %w", err)
	}

	logger.Get().Info("Initialized OpenAI generator", zap.String("model", cfg.Model))
	return NewLangchainGenerator(model, cfg.Temperature), nil
}

// Generate sends the prompt as a single human message.
// Error statuses seen on the wire are surfaced as *StatusError.
func (g *LangchainGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, status := withStatusRecorder(ctx)

	reply, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt, llms.WithTemperature(g.temperature))
	if err != nil {
		if code := int(status.Load()); code != 0 {
			return "", &StatusError{Code: code, Err: err}
		}
		return "", fmt.Errorf("langchain generation failed: %w", err)
	}
	return reply, nil
}
