// Package openai embeds corpus chunks with the OpenAI embeddings API or any
// server that speaks the same protocol.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/submittal-review/internal/adapters/driven/apierror"
	"github.com/custodia-labs/submittal-review/internal/core/domain"
	"github.com/custodia-labs/submittal-review/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultBaseURL   = "https://api.openai.com/v1"
	DefaultModel     = "text-embedding-3-small"
	DefaultTimeout   = 60 * time.Second
	DefaultBatchSize = 256

	// maxBatchSize is the API's limit on inputs per request.
	maxBatchSize = 2048

	provider = "openai"
)

// Config holds configuration for the OpenAI embedding service.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL. Point it at Azure OpenAI or a
	// compatible server to use those instead.
	BaseURL string

	// Model is the embedding model to use.
	Model string

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// Dimensions shortens text-embedding-3-* vectors. Zero keeps the
	// model's native size.
	Dimensions int

	// BatchSize is the number of inputs sent per request.
	BatchSize int
}

// EmbeddingService generates embeddings using the OpenAI API.
type EmbeddingService struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	shortened  bool
	batchSize  int
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// NewEmbeddingService creates an OpenAI embedding service.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > maxBatchSize {
		cfg.BatchSize = DefaultBatchSize
	}

	s := &EmbeddingService{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: domain.EmbeddingDimensions()[cfg.Model],
		batchSize:  cfg.BatchSize,
	}
	if cfg.Dimensions > 0 {
		s.dimensions = cfg.Dimensions
		s.shortened = strings.HasPrefix(cfg.Model, "text-embedding-3-")
	}
	if s.dimensions == 0 {
		s.dimensions = 1536
	}
	return s, nil
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch embeds texts in requests of at most BatchSize inputs.
// The result has one vector per input, in input order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.batchSize {
		end := min(start+s.batchSize, len(texts))
		vecs, err := s.embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// embed sends one request and checks every vector against the configured
// dimension.
func (s *EmbeddingService) embed(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := embeddingRequest{Model: s.model, Input: texts}
	if s.shortened {
		reqBody.Dimensions = s.dimensions
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	body, err := s.do(ctx, http.MethodPost, "/embeddings", payload)
	if err != nil {
		return nil, err
	}

	var resp embeddingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w", err)
	}

	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("%w: openai returned index %d for %d inputs", domain.ErrEmbeddingService, d.Index, len(texts))
		}
		vecs[d.Index] = d.Embedding
	}
	for i, v := range vecs {
		switch {
		case len(v) == 0:
			return nil, fmt.Errorf("%w: openai returned no embedding for input %d", domain.ErrEmbeddingService, i)
		case len(v) != s.dimensions:
			return nil, fmt.Errorf("%w: openai returned %d dimensions, expected %d",
				domain.ErrEmbeddingService, len(v), s.dimensions)
		}
	}
	return vecs, nil
}

// do performs an authenticated request and returns the body of a 200 reply.
func (s *EmbeddingService) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader = http.NoBody
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apierror.FromTransport(provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierror.FromTransport(provider, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apierror.FromStatus(provider, resp.StatusCode, body)
	}
	return body, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping lists models, which checks the key without running inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	_, err := s.do(ctx, http.MethodGet, "/models", nil)
	return err
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
