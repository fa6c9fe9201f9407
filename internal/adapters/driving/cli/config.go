package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
	"github.com/custodia-labs/submittal-review/internal/core/ports/driving"
	"github.com/custodia-labs/submittal-review/internal/core/services"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View and change settings stored in ~/.submittal/config.toml.

Every setting can also be overridden with an environment variable, for
example SUBMITTAL_CORPUS_DIR for corpus.dir. OPENAI_API_KEY,
ANTHROPIC_API_KEY, GEMINI_API_KEY and OLLAMA_HOST are honoured when the
matching setting is empty.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective settings",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Sets one setting by its dot-notation key.

Keys:
  ` + strings.Join(services.SettingKeys(), "\n  "),
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check settings and contact the AI providers",
	Long: `Checks the effective settings and contacts the configured providers.

Use --set key=value to try changes before saving them, for example:
  submittal config validate --set llm.provider=anthropic --set llm.model=claude-sonnet-4-5`,
	RunE: runConfigValidate,
}

var validateSets []string

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configValidateCmd)
	configValidateCmd.Flags().StringArrayVar(&validateSets, "set", nil, "validate with key=value applied without saving (repeatable)")
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	for _, row := range settingRows(settings) {
		cmd.Printf("%-22s %s\n", row[0], row[1])
	}
	cmd.Println()

	status := "configured"
	if !settings.Embedding.IsConfigured() {
		status = "not configured"
	}
	cmd.Printf("Embedding: %s (%s)\n", settings.Embedding.Provider.Description(), status)
	status = "configured"
	if !settings.LLM.IsConfigured() {
		status = "not configured"
	}
	cmd.Printf("LLM:       %s (%s)\n", settings.LLM.Provider.Description(), status)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if _, err := loadSettings(); err != nil {
		return err
	}
	key, value := args[0], args[1]

	if err := settingsService.SetValue(key, value); err != nil {
		return err
	}

	shown := value
	if isSecretKey(key) {
		shown = maskAPIKey(value)
	}
	cmd.Printf("Set %s = %s\n", key, shown)
	return nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	if _, err := loadSettings(); err != nil {
		return err
	}

	svc := settingsService
	if len(validateSets) > 0 {
		preview, err := previewSettings(validateSets)
		if err != nil {
			return err
		}
		svc = preview
		cmd.Printf("Validating %d unsaved change(s)\n", len(validateSets))
	}

	if err := svc.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	cmd.Println("Settings: ok")

	var errs []error
	if err := svc.ValidateEmbeddingConfig(); err != nil {
		cmd.Printf("Embedding provider: %v\n", err)
		errs = append(errs, err)
	} else {
		cmd.Println("Embedding provider: ok")
	}
	if err := svc.ValidateLLMConfig(); err != nil {
		cmd.Printf("LLM provider: %v\n", err)
		errs = append(errs, err)
	} else {
		cmd.Println("LLM provider: ok")
	}
	if len(errs) > 0 {
		return reportedError{errors.Join(errs...)}
	}
	return nil
}

// previewSettings applies key=value pairs to a settings service that never
// saves them.
func previewSettings(pairs []string) (driving.SettingsService, error) {
	if wiring.Preview == nil {
		return nil, errors.New("settings preview not configured")
	}
	svc, err := wiring.Preview(configDir)
	if err != nil {
		return nil, fmt.Errorf("open settings: %w", err)
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("--set %q: expected key=value", pair)
		}
		if err := svc.SetValue(strings.TrimSpace(key), value); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// settingRows lists every setting in key order with secrets masked.
func settingRows(s *domain.AppSettings) [][2]string {
	values := map[string]string{
		services.KeyCorpusDir:          s.CorpusDir,
		services.KeyCacheDir:           s.CacheDir,
		services.KeyPromptsDir:         s.PromptsDir,
		services.KeyChunkSize:          strconv.Itoa(s.Chunker.Size),
		services.KeyChunkOverlap:       strconv.Itoa(s.Chunker.Overlap),
		services.KeyChunkMinChars:      strconv.Itoa(s.Chunker.MinChars),
		services.KeyEmbedProvider:      s.Embedding.Provider.String(),
		services.KeyEmbedModel:         s.Embedding.Model,
		services.KeyEmbedBaseURL:       s.Embedding.BaseURL,
		services.KeyEmbedAPIKey:        secret(s.Embedding.APIKey),
		services.KeyEmbedConcurrency:   strconv.Itoa(s.Embedding.Concurrency),
		services.KeyEmbedRate:          strconv.FormatFloat(s.Embedding.RatePerSecond, 'g', -1, 64),
		services.KeyLLMProvider:        s.LLM.Provider.String(),
		services.KeyLLMModel:           s.LLM.Model,
		services.KeyLLMBaseURL:         s.LLM.BaseURL,
		services.KeyLLMAPIKey:          secret(s.LLM.APIKey),
		services.KeyLLMMaxTokens:       strconv.Itoa(s.LLM.MaxTokens),
		services.KeyLLMTemperature:     strconv.FormatFloat(s.LLM.Temperature, 'g', -1, 64),
		services.KeyReviewTopK:         strconv.Itoa(s.Review.TopK),
		services.KeyReviewStageTimeout: s.Review.StageTimeout.String(),
		services.KeyReviewAudit:        strconv.FormatBool(s.Review.Audit),
		services.KeyServerAddr:         s.Server.Addr,
	}

	keys := services.SettingKeys()
	rows := make([][2]string, 0, len(keys))
	for _, key := range keys {
		val := values[key]
		if val == "" {
			val = "(not set)"
		}
		rows = append(rows, [2]string{key, val})
	}
	return rows
}

func isSecretKey(key string) bool {
	return strings.HasSuffix(key, ".api_key")
}

func secret(key string) string {
	if key == "" {
		return ""
	}
	return maskAPIKey(key)
}

// maskAPIKey masks an API key for display, showing only first and last 4 chars.
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
