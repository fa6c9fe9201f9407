package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderGemini is Google Gemini cloud API.
	AIProviderGemini AIProvider = "gemini"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic, AIProviderGemini:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic || p == AIProviderGemini
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderGemini:
		return "Gemini (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama and OpenAI-compatible servers).
	BaseURL string

	// APIKey is the API key (for cloud providers).
	APIKey string

	// Concurrency bounds parallel embedding requests during a build.
	Concurrency int

	// RatePerSecond throttles embedding requests during a build; 0 disables throttling.
	RatePerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama and OpenAI-compatible servers).
	BaseURL string

	// APIKey is the API key (for cloud providers).
	APIKey string

	// MaxTokens bounds each completion.
	MaxTokens int

	// Temperature controls randomness; reviews default to 0.
	Temperature float64
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// ChunkerSettings controls how page text is split.
type ChunkerSettings struct {
	// Size is the maximum chunk length in characters.
	Size int

	// Overlap is the number of characters shared by neighbouring chunks.
	Overlap int

	// MinChars drops chunks whose trimmed text is shorter than this.
	MinChars int
}

// ReviewSettings controls the review workflow.
type ReviewSettings struct {
	// TopK is the number of chunks retrieved per review.
	TopK int

	// StageTimeout bounds each external capability wait.
	StageTimeout time.Duration

	// Audit enables the persistent review log.
	Audit bool
}

// ServerSettings controls the HTTP boundary.
type ServerSettings struct {
	// Addr is the listen address.
	Addr string
}

// AppSettings holds all application settings.
type AppSettings struct {
	// CorpusDir is the directory of standards documents.
	CorpusDir string

	// CacheDir is where fingerprint-keyed indexes are persisted.
	CacheDir string

	// PromptsDir holds user-editable prompt templates.
	PromptsDir string

	Chunker   ChunkerSettings
	Embedding EmbeddingSettings
	LLM       LLMSettings
	Review    ReviewSettings
	Server    ServerSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// Both AI capabilities default to a local Ollama instance.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		CorpusDir: "standards",
		Chunker: ChunkerSettings{
			Size:     1000,
			Overlap:  200,
			MinChars: 50,
		},
		Embedding: EmbeddingSettings{
			Provider:    AIProviderOllama,
			Model:       DefaultEmbeddingModels()[AIProviderOllama],
			Concurrency: 4,
		},
		LLM: LLMSettings{
			Provider:  AIProviderOllama,
			Model:     DefaultLLMModels()[AIProviderOllama],
			MaxTokens: 2048,
		},
		Review: ReviewSettings{
			TopK:         8,
			StageTimeout: 45 * time.Second,
			Audit:        true,
		},
		Server: ServerSettings{
			Addr: ":8000",
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderGemini,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
		AIProviderGemini,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
		AIProviderGemini: "text-embedding-004",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
		AIProviderGemini:    "gemini-1.5-flash",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		// Gemini models
		"text-embedding-004": 768,
	}
}
