package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/custodia-labs/submittal-review/internal/adapters/driven/ai"
	"github.com/custodia-labs/submittal-review/internal/adapters/driven/config/file"
	"github.com/custodia-labs/submittal-review/internal/adapters/driven/corpus/filesystem"
	"github.com/custodia-labs/submittal-review/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/submittal-review/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/submittal-review/internal/adapters/driving/cli"
	"github.com/custodia-labs/submittal-review/internal/chunker"
	"github.com/custodia-labs/submittal-review/internal/core/domain"
	"github.com/custodia-labs/submittal-review/internal/core/ports/driven"
	"github.com/custodia-labs/submittal-review/internal/core/ports/driving"
	"github.com/custodia-labs/submittal-review/internal/core/services"
	"github.com/custodia-labs/submittal-review/internal/logger"
)

// app wires adapters into services. The config directory chosen on the
// command line also holds the review audit log.
type app struct {
	dataDir string
}

func newApp() *app {
	return &app{}
}

func (a *app) wiring() cli.Wiring {
	return cli.Wiring{
		Settings: a.settings,
		Services: a.services,
		Preview:  a.preview,
		History:  a.history,
	}
}

func (a *app) settings(configDir string) (driving.SettingsService, error) {
	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	a.dataDir = configDir
	return services.NewSettingsService(store, ai.NewConfigValidator()), nil
}

// preview layers unsaved changes over the config file.
func (a *app) preview(configDir string) (driving.SettingsService, error) {
	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	return services.NewSettingsService(memory.NewOverlay(store), ai.NewConfigValidator()), nil
}

func (a *app) services(ctx context.Context, settings *domain.AppSettings) (*cli.Services, error) {
	ch, err := chunker.New(settings.Chunker.Size, settings.Chunker.Overlap,
		chunker.WithMinChars(settings.Chunker.MinChars))
	if err != nil {
		return nil, fmt.Errorf("chunker: %w", err)
	}

	providers, err := ai.Init(ctx, *settings)
	if err != nil {
		return nil, err
	}

	knowledge := services.NewKnowledgeService(
		filesystem.New(settings.CorpusDir),
		ch,
		providers.EmbeddingService,
		sqlite.NewIndexStore(settings.CacheDir),
		services.BuildOptions{
			Concurrency:   settings.Embedding.Concurrency,
			RatePerSecond: settings.Embedding.RatePerSecond,
			Progress:      embedProgress(),
		},
	)

	var prompts driven.PromptStore
	if store, err := file.NewPromptStore(settings.PromptsDir); err != nil {
		logger.Warn("Using built-in prompts: %v", err)
	} else {
		prompts = store
	}

	var audit driven.ReviewLog
	var log *sqlite.Store
	if settings.Review.Audit {
		log, err = sqlite.NewStore(a.dataDir)
		if err != nil {
			providers.Close()
			return nil, fmt.Errorf("open review log: %w", err)
		}
		audit = log
	}

	review := services.NewReviewService(knowledge, providers.LLMService, prompts, audit, services.ReviewConfig{
		TopK:         settings.Review.TopK,
		StageTimeout: settings.Review.StageTimeout,
		MaxTokens:    settings.LLM.MaxTokens,
		Temperature:  settings.LLM.Temperature,
	})

	return &cli.Services{
		Knowledge: knowledge,
		Review:    review,
		Close: func() error {
			var errs []error
			errs = append(errs, knowledge.Close())
			if log != nil {
				errs = append(errs, log.Close())
			}
			providers.Close()
			return errors.Join(errs...)
		},
	}, nil
}

func (a *app) history(_ *domain.AppSettings) (*cli.Services, error) {
	log, err := sqlite.NewStore(a.dataDir)
	if err != nil {
		return nil, fmt.Errorf("open review log: %w", err)
	}
	return &cli.Services{
		Review: services.NewReviewService(nil, nil, nil, log, services.ReviewConfig{}),
		Close:  log.Close,
	}, nil
}

// embedProgress logs an info line each time a build passes another quarter
// of its chunks. Batches report concurrently.
func embedProgress() func(done, total int) {
	var (
		mu     sync.Mutex
		logged int
	)
	return func(done, total int) {
		if total <= 0 {
			return
		}
		quarter := done * 4 / total
		mu.Lock()
		defer mu.Unlock()
		if quarter <= logged {
			return
		}
		logged = quarter
		logger.Info("Indexing: %d%% (%d/%d chunks embedded)", quarter*25, done, total)
	}
}
