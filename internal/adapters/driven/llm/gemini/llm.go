// Package gemini provides an LLM service adapter using the Gemini API.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/custodia-labs/submittal-review/internal/adapters/driven/apierror"
	"github.com/custodia-labs/submittal-review/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// DefaultModel is the default Gemini model.
const DefaultModel = "gemini-1.5-flash"

// Config holds configuration for the Gemini LLM service.
type Config struct {
	// APIKey is the Gemini API key (required).
	APIKey string

	// Model is the model to use (default: gemini-1.5-flash).
	Model string

	// ClientOptions are appended to the client options, after the API key.
	ClientOptions []option.ClientOption
}

// LLMService provides LLM operations using Gemini.
type LLMService struct {
	client *genai.Client
	model  string
}

// NewLLMService creates a new Gemini LLM service.
func NewLLMService(ctx context.Context, cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	opts := append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, cfg.ClientOptions...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &LLMService{client: client, model: cfg.Model}, nil
}

// generativeModel returns a configured model handle. A new handle per
// call keeps concurrent requests from sharing generation settings.
func (s *LLMService) generativeModel(maxTokens int, temperature float64, json bool) *genai.GenerativeModel {
	m := s.client.GenerativeModel(s.model)
	m.SetTemperature(float32(temperature))
	if maxTokens > 0 {
		m.SetMaxOutputTokens(int32(maxTokens))
	}
	if json {
		m.ResponseMIMEType = "application/json"
	}
	return m
}

// Generate produces text completion from a prompt.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	m := s.generativeModel(opts.MaxTokens, opts.Temperature, opts.JSON)
	m.StopSequences = opts.StopWords

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", apierror.FromGemini(err)
	}
	return responseText(resp)
}

// Chat conducts a multi-turn conversation. System messages become the
// system instruction and the final user message is sent against the rest
// as history.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	system, history, last, err := splitMessages(messages)
	if err != nil {
		return "", err
	}

	m := s.generativeModel(opts.MaxTokens, opts.Temperature, opts.JSON)
	if system != "" {
		m.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}

	cs := m.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", apierror.FromGemini(err)
	}
	return responseText(resp)
}

// splitMessages converts chat messages to Gemini contents.
func splitMessages(messages []driven.ChatMessage) (string, []*genai.Content, string, error) {
	var system []string
	var turns []driven.ChatMessage
	for _, msg := range messages {
		if msg.Role == driven.RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		turns = append(turns, msg)
	}

	if len(turns) == 0 || turns[len(turns)-1].Role != driven.RoleUser {
		return "", nil, "", fmt.Errorf("gemini: conversation must end with a user message")
	}

	history := make([]*genai.Content, 0, len(turns)-1)
	for _, msg := range turns[:len(turns)-1] {
		role := "user"
		if msg.Role == driven.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(msg.Content)}})
	}

	return strings.Join(system, "\n\n"), history, turns[len(turns)-1].Content, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini: no content in response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("gemini: no text in response")
	}
	return sb.String(), nil
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping validates the API key by fetching the model metadata.
func (s *LLMService) Ping(ctx context.Context) error {
	if _, err := s.client.GenerativeModel(s.model).Info(ctx); err != nil {
		return apierror.FromGemini(err)
	}
	return nil
}

// Close releases the client connection.
func (s *LLMService) Close() error {
	return s.client.Close()
}
