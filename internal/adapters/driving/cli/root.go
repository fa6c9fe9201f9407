// Package cli implements the submittal command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/submittal-review/internal/adapters/driving/boundary"
	"github.com/custodia-labs/submittal-review/internal/adapters/driving/render"
	"github.com/custodia-labs/submittal-review/internal/core/domain"
	"github.com/custodia-labs/submittal-review/internal/core/ports/driving"
	"github.com/custodia-labs/submittal-review/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=v1.2.3".
var version = "dev"

// Persistent flags.
var (
	verbose   bool
	configDir string
	corpusDir string
)

// Services is the review runtime a command runs against.
type Services struct {
	Knowledge driving.KnowledgeService
	Review    driving.ReviewService

	// Close releases providers and stores. May be nil.
	Close func() error
}

func (s *Services) close() {
	if s == nil || s.Close == nil {
		return
	}
	if err := s.Close(); err != nil {
		logger.Warn("Failed to release services: %v", err)
	}
}

// Wiring constructs services on demand, so commands that only touch
// settings never contact an AI provider.
type Wiring struct {
	// Settings opens the settings service for a config directory.
	// An empty directory selects the default.
	Settings func(configDir string) (driving.SettingsService, error)

	// Preview opens a settings service whose changes are never saved.
	Preview func(configDir string) (driving.SettingsService, error)

	// Services builds the full review runtime.
	Services func(ctx context.Context, settings *domain.AppSettings) (*Services, error)

	// History builds a runtime whose ReviewService only answers History.
	History func(settings *domain.AppSettings) (*Services, error)
}

var (
	wiring          Wiring
	settingsService driving.SettingsService
)

var rootCmd = &cobra.Command{
	Use:   "submittal",
	Short: "Review construction submittals against engineering standards",
	Long: `submittal checks construction submittals for compliance with a corpus of
engineering standards. It indexes the standards into a local semantic
knowledge base, retrieves the passages relevant to a submittal, and asks a
language model for a structured, citation-backed decision:
APPROVED, REJECTED or NEEDS_REVIEW.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "config directory (default ~/.submittal)")
	rootCmd.PersistentFlags().StringVar(&corpusDir, "corpus", "", "standards directory (overrides corpus.dir)")
}

// Execute runs the command line and returns the process exit code.
func Execute(w Wiring) int {
	wiring = w

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		reportError(rootCmd.ErrOrStderr(), err)
	}
	return boundary.ExitCode(err)
}

// reportedError marks an error the command has already shown to the user.
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

func reportError(w io.Writer, err error) {
	var reported reportedError
	if errors.As(err, &reported) {
		return
	}
	var stageErr *domain.StageError
	if errors.As(err, &stageErr) || errors.Is(err, domain.ErrInvalidInput) {
		render.New(w).Failure(err)
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

// loadSettings resolves settings and applies flag overrides.
func loadSettings() (*domain.AppSettings, error) {
	if settingsService == nil {
		if wiring.Settings == nil {
			return nil, errors.New("settings service not configured")
		}
		svc, err := wiring.Settings(configDir)
		if err != nil {
			return nil, fmt.Errorf("open settings: %w", err)
		}
		settingsService = svc
	}

	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	if corpusDir != "" {
		settings.CorpusDir = corpusDir
	}
	return settings, nil
}

// openServices builds the review runtime from current settings.
func openServices(ctx context.Context) (*Services, *domain.AppSettings, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, nil, err
	}
	if wiring.Services == nil {
		return nil, nil, errors.New("review services not configured")
	}
	svc, err := wiring.Services(ctx, settings)
	if err != nil {
		return nil, nil, err
	}
	return svc, settings, nil
}
