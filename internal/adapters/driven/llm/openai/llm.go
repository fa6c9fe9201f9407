// Package openai provides completions from the OpenAI chat API or any server
// that speaks the same protocol.
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
	"github.com/custodia-labs/submittal-review/internal/core/ports/driven"
	"github.com/custodia-labs/submittal-review/internal/logger"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultLLMModel   = "gpt-4o-mini"
	DefaultLLMTimeout = 120 * time.Second

	provider = "openai"
)

// LLMConfig holds configuration for the OpenAI LLM service.
type LLMConfig struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL. Point it at Azure OpenAI or a
	// compatible server to use those instead.
	BaseURL string

	// Model is the chat model to use.
	Model string

	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

// LLMService provides completions using the OpenAI chat API.
type LLMService struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

type chatRequest struct {
	Model               string          `json:"model"`
	Messages            []chatMessage   `json:"messages"`
	MaxTokens           int             `json:"max_tokens,omitempty"`
	MaxCompletionTokens int             `json:"max_completion_tokens,omitempty"`
	Temperature         *float64        `json:"temperature,omitempty"`
	Stop                []string        `json:"stop,omitempty"`
	ResponseFormat      *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// NewLLMService creates an OpenAI LLM service.
func NewLLMService(cfg LLMConfig) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}

	return &LLMService{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// Generate produces a completion for a single user prompt.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	messages := []driven.ChatMessage{{Role: driven.RoleUser, Content: prompt}}
	chatOpts := driven.ChatOptions{MaxTokens: opts.MaxTokens, Temperature: opts.Temperature, JSON: opts.JSON}
	return s.complete(ctx, messages, chatOpts, opts.StopWords)
}

// Chat conducts a multi-turn conversation.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	return s.complete(ctx, messages, opts, nil)
}

func (s *LLMService) complete(
	ctx context.Context,
	messages []driven.ChatMessage,
	opts driven.ChatOptions,
	stop []string,
) (string, error) {
	payload, err := json.Marshal(s.request(messages, opts, stop))
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	body, err := s.do(ctx, http.MethodPost, "/chat/completions", payload)
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("openai: decode response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices returned")
	}

	choice := resp.Choices[0]
	switch {
	case choice.Message.Refusal != "":
		return "", fmt.Errorf("openai: model refused: %s", choice.Message.Refusal)
	case choice.FinishReason == "content_filter":
		return "", fmt.Errorf("openai: completion blocked by content filter")
	case choice.FinishReason == "length":
		logger.Warn("OpenAI completion hit the token limit; output may be truncated")
	}
	return choice.Message.Content, nil
}

// request builds the wire request. Reasoning models take
// max_completion_tokens and reject a temperature.
func (s *LLMService) request(messages []driven.ChatMessage, opts driven.ChatOptions, stop []string) chatRequest {
	req := chatRequest{
		Model:    s.model,
		Messages: make([]chatMessage, 0, len(messages)),
		Stop:     stop,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	if reasoningModel(s.model) {
		req.MaxCompletionTokens = opts.MaxTokens
	} else {
		temperature := opts.Temperature
		req.MaxTokens = opts.MaxTokens
		req.Temperature = &temperature
	}
	if opts.JSON {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return req
}

func reasoningModel(model string) bool {
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// do performs an authenticated request and returns the body of a 200 reply.
func (s *LLMService) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
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

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping lists models, which checks the key without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	_, err := s.do(ctx, http.MethodGet, "/models", nil)
	return err
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}
