package cli

import (
	"bytes"
	"context"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/submittal-review/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/submittal-review/internal/core/domain"
	"github.com/custodia-labs/submittal-review/internal/core/ports/driving"
	"github.com/custodia-labs/submittal-review/internal/core/services"
)

// mockKnowledge is a mock implementation of driving.KnowledgeService.
type mockKnowledge struct {
	mu       sync.Mutex
	status   domain.KnowledgeStatus
	err      error
	loadErr  error
	builds   int
	rebuilds int
}

func (m *mockKnowledge) GetOrBuild(context.Context) (domain.KnowledgeStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.builds++
	return m.status, m.err
}

func (m *mockKnowledge) Load(context.Context) (domain.KnowledgeStatus, error) {
	if m.loadErr != nil {
		return domain.KnowledgeStatus{}, m.loadErr
	}
	return m.status, nil
}

func (m *mockKnowledge) Rebuild(context.Context) (domain.KnowledgeStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rebuilds++
	return m.status, m.err
}

func (m *mockKnowledge) Refresh(context.Context) (domain.KnowledgeStatus, error) {
	return m.status, m.err
}

func (m *mockKnowledge) Retrieve(context.Context, string, int) ([]domain.ScoredChunk, error) {
	return nil, nil
}

func (m *mockKnowledge) Status() domain.KnowledgeStatus { return m.status }

func (m *mockKnowledge) Close() error { return nil }

// mockReview is a mock implementation of driving.ReviewService.
type mockReview struct {
	result  *domain.ReviewResult
	err     error
	records []domain.ReviewRecord
	lastReq domain.SubmittalRequest
	limit   int
}

func (m *mockReview) Review(_ context.Context, req domain.SubmittalRequest) (*domain.ReviewResult, error) {
	m.lastReq = req
	return m.result, m.err
}

func (m *mockReview) History(_ context.Context, limit int) ([]domain.ReviewRecord, error) {
	m.limit = limit
	return m.records, m.err
}

// testEnv holds the mocks installed by setupTestServices.
type testEnv struct {
	knowledge *mockKnowledge
	review    *mockReview
	config    *memory.ConfigStore
	closed    int
}

func approvedResult() *domain.ReviewResult {
	return &domain.ReviewResult{
		ReviewID: "rev-1",
		Decision: domain.Decision{
			Verdict:           domain.VerdictApproved,
			Confidence:        0.9,
			ComplianceSummary: "Mix meets the specified grade.",
			Explanation:       "C32/40 satisfies section 5.2.",
			Citations:         []domain.Citation{{Source: "concrete.txt", Text: "minimum grade C32/40", Page: 1}},
		},
	}
}

// setupTestServices installs mock services and returns a cleanup function.
func setupTestServices() (*testEnv, func()) {
	env := &testEnv{
		knowledge: &mockKnowledge{status: domain.KnowledgeStatus{Ready: true, ChunkCount: 12, DocumentCount: 2}},
		review:    &mockReview{result: approvedResult()},
		config:    memory.NewConfigStore(),
	}

	prevWiring, prevSettings := wiring, settingsService
	settingsService = nil
	wiring = Wiring{
		Settings: func(string) (driving.SettingsService, error) {
			return services.NewSettingsService(env.config, nil), nil
		},
		Preview: func(string) (driving.SettingsService, error) {
			return services.NewSettingsService(memory.NewOverlay(env.config), nil), nil
		},
		Services: func(context.Context, *domain.AppSettings) (*Services, error) {
			return &Services{
				Knowledge: env.knowledge,
				Review:    env.review,
				Close:     func() error { env.closed++; return nil },
			}, nil
		},
		History: func(*domain.AppSettings) (*Services, error) {
			return &Services{Review: env.review}, nil
		},
	}

	return env, func() {
		wiring, settingsService = prevWiring, prevSettings
		resetFlags(rootCmd)
	}
}

// resetFlags restores every flag to its default so tests do not leak state.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// execute runs the root command with args and returns combined output.
func execute(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}
