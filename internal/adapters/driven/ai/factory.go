// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	geminiembed "github.com/custodia-labs/submittal-review/internal/adapters/driven/embedding/gemini"
	ollamaembed "github.com/custodia-labs/submittal-review/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/submittal-review/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/submittal-review/internal/adapters/driven/llm/anthropic"
	geminillm "github.com/custodia-labs/submittal-review/internal/adapters/driven/llm/gemini"
	ollamallm "github.com/custodia-labs/submittal-review/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/submittal-review/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/submittal-review/internal/core/domain"
	"github.com/custodia-labs/submittal-review/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// fixHint is appended to configuration errors.
const fixHint = "Run 'submittal config show' to check provider settings"

// InitResult holds the AI services used by the review workflow.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	LLMService       driven.LLMService
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.LLMService != nil {
		r.LLMService.Close()
	}
}

// Init creates both AI services from application settings without
// contacting them. Either capability missing is an error, a review
// cannot run without both.
func Init(ctx context.Context, settings domain.AppSettings) (*InitResult, error) {
	embedder, err := CreateEmbeddingService(ctx, &settings.Embedding)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: provider %q is not configured. %s",
			domain.ErrEmbeddingUnavailable, settings.Embedding.Provider, fixHint)
	}

	llm, err := CreateLLMService(ctx, &settings.LLM)
	if err == nil && llm == nil {
		err = fmt.Errorf("provider %q is not configured. %s", settings.LLM.Provider, fixHint)
	}
	if err != nil {
		embedder.Close()
		return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}

	return &InitResult{EmbeddingService: embedder, LLMService: llm}, nil
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. %s", domain.ErrEmbeddingUnavailable, err, fixHint)
	}
	if svc == nil {
		return nil, nil
	}

	if err := ping(ctx, svc.Ping); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). %s",
			domain.ErrEmbeddingUnavailable, err, fixHint)
	}

	return svc, nil
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateLLMService(ctx context.Context, settings *domain.LLMSettings) (driven.LLMService, error) {
	svc, err := CreateLLMService(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. %s", domain.ErrLLMUnavailable, err, fixHint)
	}
	if svc == nil {
		return nil, nil
	}

	if err := ping(ctx, svc.Ping); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). %s",
			domain.ErrLLMUnavailable, err, fixHint)
	}

	return svc, nil
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	ctx := context.Background()
	svc, err := CreateEmbeddingService(ctx, settings)
	if err != nil || svc == nil {
		return err
	}
	defer svc.Close()

	return ping(ctx, svc.Ping)
}

// ValidateLLMConfig validates an LLM configuration by creating a service and pinging it.
func ValidateLLMConfig(settings *domain.LLMSettings) error {
	ctx := context.Background()
	svc, err := CreateLLMService(ctx, settings)
	if err != nil || svc == nil {
		return err
	}
	defer svc.Close()

	return ping(ctx, svc.Ping)
}

func ping(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return fn(ctx)
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil {
		return nil, nil
	}
	if settings.Provider == domain.AIProviderAnthropic {
		return nil, errors.New("anthropic does not support embeddings, use ollama, openai or gemini")
	}
	if !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return createOllamaEmbedding(settings)
	case domain.AIProviderOpenAI:
		return createOpenAIEmbedding(settings)
	case domain.AIProviderGemini:
		return createGeminiEmbedding(ctx, settings)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// CreateLLMService creates the appropriate LLM service based on settings.
// Returns nil if the provider is not configured.
func CreateLLMService(ctx context.Context, settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return createOllamaLLM(settings)
	case domain.AIProviderOpenAI:
		return createOpenAILLM(settings)
	case domain.AIProviderAnthropic:
		return createAnthropicLLM(settings)
	case domain.AIProviderGemini:
		return createGeminiLLM(ctx, settings)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
}

// The constructors below return concrete pointers; converting a nil
// pointer to the interface would yield a non-nil service, so each
// helper returns an untyped nil on error.

func createOllamaEmbedding(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: domain.EmbeddingDimensions()[settings.Model],
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func createOpenAIEmbedding(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:     settings.APIKey,
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: domain.EmbeddingDimensions()[settings.Model],
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func createGeminiEmbedding(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := geminiembed.NewEmbeddingService(ctx, geminiembed.Config{
		APIKey:     settings.APIKey,
		Model:      settings.Model,
		Dimensions: domain.EmbeddingDimensions()[settings.Model],
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func createOllamaLLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	svc, err := ollamallm.NewLLMService(ollamallm.LLMConfig{
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func createOpenAILLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	svc, err := openaillm.NewLLMService(openaillm.LLMConfig{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func createAnthropicLLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	svc, err := anthropicllm.NewLLMService(anthropicllm.Config{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func createGeminiLLM(ctx context.Context, settings *domain.LLMSettings) (driven.LLMService, error) {
	svc, err := geminillm.NewLLMService(ctx, geminillm.Config{
		APIKey: settings.APIKey,
		Model:  settings.Model,
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}
