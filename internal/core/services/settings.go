package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
	"github.com/custodia-labs/submittal-review/internal/core/ports/driven"
	"github.com/custodia-labs/submittal-review/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	KeyCorpusDir          = "corpus.dir"
	KeyCacheDir           = "cache.dir"
	KeyPromptsDir         = "prompts.dir"
	KeyChunkSize          = "chunker.size"
	KeyChunkOverlap       = "chunker.overlap"
	KeyChunkMinChars      = "chunker.min_chars"
	KeyEmbedProvider      = "embedding.provider"
	KeyEmbedModel         = "embedding.model"
	KeyEmbedBaseURL       = "embedding.base_url"
	KeyEmbedAPIKey        = "embedding.api_key"
	KeyEmbedConcurrency   = "embedding.concurrency"
	KeyEmbedRate          = "embedding.rate"
	KeyLLMProvider        = "llm.provider"
	KeyLLMModel           = "llm.model"
	KeyLLMBaseURL         = "llm.base_url"
	KeyLLMAPIKey          = "llm.api_key"
	KeyLLMMaxTokens       = "llm.max_tokens"
	KeyLLMTemperature     = "llm.temperature"
	KeyReviewTopK         = "review.top_k"
	KeyReviewStageTimeout = "review.stage_timeout"
	KeyReviewAudit        = "review.audit"
	KeyServerAddr         = "server.addr"
)

// SettingKeys lists every recognised config key.
func SettingKeys() []string {
	return []string{
		KeyCorpusDir, KeyCacheDir, KeyPromptsDir,
		KeyChunkSize, KeyChunkOverlap, KeyChunkMinChars,
		KeyEmbedProvider, KeyEmbedModel, KeyEmbedBaseURL, KeyEmbedAPIKey, KeyEmbedConcurrency, KeyEmbedRate,
		KeyLLMProvider, KeyLLMModel, KeyLLMBaseURL, KeyLLMAPIKey, KeyLLMMaxTokens, KeyLLMTemperature,
		KeyReviewTopK, KeyReviewStageTimeout, KeyReviewAudit,
		KeyServerAddr,
	}
}

// EnvPrefix prefixes environment overrides: corpus.dir is SUBMITTAL_CORPUS_DIR.
const EnvPrefix = "SUBMITTAL_"

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// providerKeyEnv maps cloud providers to their conventional API key variables.
var providerKeyEnv = map[domain.AIProvider]string{
	domain.AIProviderOpenAI:    "OPENAI_API_KEY",
	domain.AIProviderAnthropic: "ANTHROPIC_API_KEY",
	domain.AIProviderGemini:    "GEMINI_API_KEY",
}

const (
	ollamaHostEnv  = "OLLAMA_HOST"
	defaultOllama  = "http://localhost:11434"
	defaultDataDir = ".submittal"
)

// SettingsService manages application settings.
// Values resolve in order: environment, config store, defaults.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	lookupEnv   func(string) (string, bool)
	homeDir     func() (string, error)
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		lookupEnv:   os.LookupEnv,
		homeDir:     os.UserHomeDir,
	}
}

// Get retrieves current application settings, with environment overrides applied.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	settings, err := s.resolve(true)
	if err != nil {
		return nil, err
	}

	if settings.Embedding.APIKey == "" {
		settings.Embedding.APIKey = s.providerKey(settings.Embedding.Provider)
	}
	if settings.LLM.APIKey == "" {
		settings.LLM.APIKey = s.providerKey(settings.LLM.Provider)
	}
	if host, ok := s.env(ollamaHostEnv); ok {
		if settings.Embedding.Provider.IsLocal() && settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = normaliseHost(host)
		}
		if settings.LLM.Provider.IsLocal() && settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = normaliseHost(host)
		}
	}
	return settings, nil
}

// resolve reads settings from the store, optionally layering SUBMITTAL_* variables on top.
func (s *SettingsService) resolve(withEnv bool) (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()
	r := reader{store: s.configStore}
	if withEnv {
		r.env = s.env
	}

	timeout, err := r.duration(KeyReviewStageTimeout, defaults.Review.StageTimeout)
	if err != nil {
		return nil, err
	}

	cacheDir := r.str(KeyCacheDir, "")
	if cacheDir == "" {
		cacheDir = s.dataPath("index")
	}
	promptsDir := r.str(KeyPromptsDir, "")
	if promptsDir == "" {
		promptsDir = s.dataPath("prompts")
	}

	return &domain.AppSettings{
		CorpusDir:  r.str(KeyCorpusDir, defaults.CorpusDir),
		CacheDir:   cacheDir,
		PromptsDir: promptsDir,
		Chunker: domain.ChunkerSettings{
			Size:     r.integer(KeyChunkSize, defaults.Chunker.Size),
			Overlap:  r.integer(KeyChunkOverlap, defaults.Chunker.Overlap),
			MinChars: r.integer(KeyChunkMinChars, defaults.Chunker.MinChars),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:      r.provider(KeyEmbedProvider, defaults.Embedding.Provider),
			Model:         r.str(KeyEmbedModel, defaults.Embedding.Model),
			BaseURL:       r.str(KeyEmbedBaseURL, ""), // empty is valid for cloud providers
			APIKey:        r.str(KeyEmbedAPIKey, ""),
			Concurrency:   r.integer(KeyEmbedConcurrency, defaults.Embedding.Concurrency),
			RatePerSecond: r.float(KeyEmbedRate, defaults.Embedding.RatePerSecond),
		},
		LLM: domain.LLMSettings{
			Provider:    r.provider(KeyLLMProvider, defaults.LLM.Provider),
			Model:       r.str(KeyLLMModel, defaults.LLM.Model),
			BaseURL:     r.str(KeyLLMBaseURL, ""),
			APIKey:      r.str(KeyLLMAPIKey, ""),
			MaxTokens:   r.integer(KeyLLMMaxTokens, defaults.LLM.MaxTokens),
			Temperature: r.float(KeyLLMTemperature, defaults.LLM.Temperature),
		},
		Review: domain.ReviewSettings{
			TopK:         r.integer(KeyReviewTopK, defaults.Review.TopK),
			StageTimeout: timeout,
			Audit:        r.boolean(KeyReviewAudit, defaults.Review.Audit),
		},
		Server: domain.ServerSettings{
			Addr: r.str(KeyServerAddr, defaults.Server.Addr),
		},
	}, nil
}

// Save persists application settings. Empty API keys are not written.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{KeyCorpusDir, settings.CorpusDir},
		{KeyCacheDir, settings.CacheDir},
		{KeyPromptsDir, settings.PromptsDir},
		{KeyChunkSize, settings.Chunker.Size},
		{KeyChunkOverlap, settings.Chunker.Overlap},
		{KeyChunkMinChars, settings.Chunker.MinChars},
		{KeyEmbedProvider, settings.Embedding.Provider.String()},
		{KeyEmbedModel, settings.Embedding.Model},
		{KeyEmbedBaseURL, settings.Embedding.BaseURL},
		{KeyEmbedConcurrency, settings.Embedding.Concurrency},
		{KeyEmbedRate, settings.Embedding.RatePerSecond},
		{KeyLLMProvider, settings.LLM.Provider.String()},
		{KeyLLMModel, settings.LLM.Model},
		{KeyLLMBaseURL, settings.LLM.BaseURL},
		{KeyLLMMaxTokens, settings.LLM.MaxTokens},
		{KeyLLMTemperature, settings.LLM.Temperature},
		{KeyReviewTopK, settings.Review.TopK},
		{KeyReviewStageTimeout, settings.Review.StageTimeout.String()},
		{KeyReviewAudit, settings.Review.Audit},
		{KeyServerAddr, settings.Server.Addr},
	}
	if settings.Embedding.APIKey != "" {
		values = append(values, struct {
			key   string
			value any
		}{KeyEmbedAPIKey, settings.Embedding.APIKey})
	}
	if settings.LLM.APIKey != "" {
		values = append(values, struct {
			key   string
			value any
		}{KeyLLMAPIKey, settings.LLM.APIKey})
	}

	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return nil
}

// SetValue parses value according to key's type and persists it.
// Unknown keys and unparsable values are rejected with a *domain.ValidationError.
func (s *SettingsService) SetValue(key, value string) error {
	if !slices.Contains(SettingKeys(), key) {
		return &domain.ValidationError{Field: key, Reason: "unknown setting"}
	}
	value = strings.TrimSpace(value)

	var typed any = value
	var err error
	switch key {
	case KeyChunkSize, KeyChunkOverlap, KeyChunkMinChars, KeyEmbedConcurrency, KeyLLMMaxTokens, KeyReviewTopK:
		typed, err = strconv.Atoi(value)
	case KeyEmbedRate, KeyLLMTemperature:
		typed, err = strconv.ParseFloat(value, 64)
	case KeyReviewAudit:
		typed, err = strconv.ParseBool(value)
	case KeyReviewStageTimeout:
		_, err = time.ParseDuration(value)
	case KeyEmbedProvider, KeyLLMProvider:
		if !domain.AIProvider(value).IsValid() {
			err = fmt.Errorf("unknown provider %q", value)
		}
	}
	if err != nil {
		return &domain.ValidationError{Field: key, Reason: err.Error()}
	}

	if err := s.configStore.Set(key, typed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}
	if !slices.Contains(domain.AllEmbeddingProviders(), provider) {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" && s.providerKey(provider) == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.resolve(false)
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider
	settings.Embedding.Model = modelOrDefault(model, domain.DefaultEmbeddingModels()[provider])
	settings.Embedding.BaseURL = baseURLFor(provider, settings.Embedding.BaseURL)
	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" && s.providerKey(provider) == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.resolve(false)
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider
	settings.LLM.Model = modelOrDefault(model, domain.DefaultLLMModels()[provider])
	settings.LLM.BaseURL = baseURLFor(provider, settings.LLM.BaseURL)
	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// Validate checks that current settings can drive a review.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	var errs []error
	if strings.TrimSpace(settings.CorpusDir) == "" {
		errs = append(errs, errors.New("corpus directory is not set"))
	}
	c := settings.Chunker
	if c.Size <= 0 || c.Overlap < 0 || c.Overlap >= c.Size {
		errs = append(errs, fmt.Errorf("chunker overlap %d must be smaller than size %d", c.Overlap, c.Size))
	}
	if !settings.Embedding.IsConfigured() {
		errs = append(errs, fmt.Errorf("embedding provider %q is not configured", settings.Embedding.Provider))
	}
	if !settings.LLM.IsConfigured() {
		errs = append(errs, fmt.Errorf("LLM provider %q is not configured", settings.LLM.Provider))
	}
	if settings.Review.TopK <= 0 {
		errs = append(errs, fmt.Errorf("review.top_k must be positive, got %d", settings.Review.TopK))
	}
	return errors.Join(errs...)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Helper methods.

func (s *SettingsService) env(name string) (string, bool) {
	if s.lookupEnv == nil {
		return "", false
	}
	val, ok := s.lookupEnv(name)
	if !ok || strings.TrimSpace(val) == "" {
		return "", false
	}
	return strings.TrimSpace(val), true
}

func (s *SettingsService) providerKey(provider domain.AIProvider) string {
	name, ok := providerKeyEnv[provider]
	if !ok {
		return ""
	}
	val, _ := s.env(name)
	return val
}

func (s *SettingsService) dataPath(name string) string {
	home, err := s.homeDir()
	if err != nil {
		return filepath.Join(defaultDataDir, name)
	}
	return filepath.Join(home, defaultDataDir, name)
}

func modelOrDefault(model, fallback string) string {
	if model != "" {
		return model
	}
	return fallback
}

// baseURLFor keeps a local provider's endpoint and clears it for cloud providers.
func baseURLFor(provider domain.AIProvider, current string) string {
	if !provider.IsLocal() {
		return ""
	}
	if current == "" {
		return defaultOllama
	}
	return current
}

// normaliseHost accepts OLLAMA_HOST in its bare host:port form.
func normaliseHost(host string) string {
	if strings.Contains(host, "://") {
		return host
	}
	return "http://" + host
}

// reader resolves typed values from environment then store.
type reader struct {
	store driven.ConfigStore
	env   func(string) (string, bool)
}

func (r reader) fromEnv(key string) (string, bool) {
	if r.env == nil {
		return "", false
	}
	return r.env(EnvName(key))
}

func (r reader) str(key, defaultVal string) string {
	if val, ok := r.fromEnv(key); ok {
		return val
	}
	if val := r.store.GetString(key); val != "" {
		return val
	}
	return defaultVal
}

func (r reader) integer(key string, defaultVal int) int {
	if val, ok := r.fromEnv(key); ok {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	val, exists := r.store.Get(key)
	if !exists {
		return defaultVal
	}
	if str, ok := val.(string); ok {
		if n, err := strconv.Atoi(str); err == nil {
			return n
		}
		return defaultVal
	}
	return r.store.GetInt(key)
}

func (r reader) float(key string, defaultVal float64) float64 {
	if val, ok := r.fromEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	val, exists := r.store.Get(key)
	if !exists {
		return defaultVal
	}
	if str, ok := val.(string); ok {
		if f, err := strconv.ParseFloat(str, 64); err == nil {
			return f
		}
		return defaultVal
	}
	return r.store.GetFloat(key)
}

func (r reader) boolean(key string, defaultVal bool) bool {
	if val, ok := r.fromEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	val, exists := r.store.Get(key)
	if !exists {
		return defaultVal
	}
	if str, ok := val.(string); ok {
		if b, err := strconv.ParseBool(str); err == nil {
			return b
		}
		return defaultVal
	}
	return r.store.GetBool(key)
}

func (r reader) duration(key string, defaultVal time.Duration) (time.Duration, error) {
	val, ok := r.fromEnv(key)
	if !ok {
		val = r.store.GetString(key)
	}
	if val == "" {
		if secs := r.store.GetInt(key); secs > 0 {
			return time.Duration(secs) * time.Second, nil
		}
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func (r reader) provider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	provider := domain.AIProvider(r.str(key, ""))
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}
