// Package gemini provides an embedding service adapter using the Gemini API.
package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/custodia-labs/submittal-review/internal/adapters/driven/apierror"
	"github.com/custodia-labs/submittal-review/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultModel      = "text-embedding-004"
	DefaultDimensions = 768

	// maxBatch is the API limit on requests per batchEmbedContents call.
	maxBatch = 100
)

// Config holds configuration for the Gemini embedding service.
type Config struct {
	// APIKey is the Gemini API key (required).
	APIKey string

	// Model is the embedding model to use (default: text-embedding-004).
	Model string

	// Dimensions is the embedding vector size.
	Dimensions int

	// ClientOptions are appended to the client options, after the API key.
	ClientOptions []option.ClientOption
}

// EmbeddingService generates embeddings using Gemini.
type EmbeddingService struct {
	client     *genai.Client
	em         *genai.EmbeddingModel // documents
	qm         *genai.EmbeddingModel // queries
	model      string
	dimensions int
}

// NewEmbeddingService creates a new Gemini embedding service.
func NewEmbeddingService(ctx context.Context, cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}

	opts := append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, cfg.ClientOptions...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	em := client.EmbeddingModel(cfg.Model)
	em.TaskType = genai.TaskTypeRetrievalDocument
	qm := client.EmbeddingModel(cfg.Model)
	qm.TaskType = genai.TaskTypeRetrievalQuery

	return &EmbeddingService{
		client:     client,
		em:         em,
		qm:         qm,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed generates a vector embedding for a retrieval query.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := s.qm.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, apierror.FromGemini(err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini: no embedding returned")
	}
	return resp.Embedding.Values, nil
}

// EmbedBatch embeds texts with batchEmbedContents, splitting at the API limit.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		end := min(start+maxBatch, len(texts))

		batch := s.em.NewBatch()
		for _, text := range texts[start:end] {
			batch.AddContent(genai.Text(text))
		}

		resp, err := s.em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, apierror.FromGemini(err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini: got %d embeddings for %d inputs", len(resp.Embeddings), end-start)
		}
		for _, e := range resp.Embeddings {
			out = append(out, e.Values)
		}
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping validates the API key by fetching the model metadata.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	if _, err := s.em.Info(ctx); err != nil {
		return apierror.FromGemini(err)
	}
	return nil
}

// Close releases the client connection.
func (s *EmbeddingService) Close() error {
	return s.client.Close()
}
