package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
	"github.com/custodia-labs/submittal-review/internal/core/ports/driven"
	"github.com/custodia-labs/submittal-review/internal/core/ports/driving"
	"github.com/custodia-labs/submittal-review/internal/logger"
)

// Ensure ReviewService implements the interface.
var _ driving.ReviewService = (*ReviewService)(nil)

// Review defaults.
const (
	DefaultTopK         = 8
	DefaultStageTimeout = 45 * time.Second
	DefaultRetryDelay   = 2 * time.Second

	auditTimeout = 5 * time.Second
)

// Retriever answers similarity queries against the knowledge base.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error)
}

// ReviewConfig tunes the review workflow.
type ReviewConfig struct {
	// TopK is the number of chunks retrieved per review.
	TopK int

	// StageTimeout bounds each external capability call.
	StageTimeout time.Duration

	// MaxTokens bounds each completion.
	MaxTokens int

	// Temperature controls completion randomness.
	Temperature float64

	// RetryDelay is the pause before retrying a rate limited or transient failure.
	// Zero selects DefaultRetryDelay; a negative value retries immediately.
	RetryDelay time.Duration
}

func (c ReviewConfig) withDefaults() ReviewConfig {
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.StageTimeout <= 0 {
		c.StageTimeout = DefaultStageTimeout
	}
	switch {
	case c.RetryDelay == 0:
		c.RetryDelay = DefaultRetryDelay
	case c.RetryDelay < 0:
		c.RetryDelay = 0
	}
	return c
}

// ReviewService runs submittals through the review state machine:
//
//	INIT -> RETRIEVED -> ANALYZED -> DECIDED -> FORMATTED -> DONE
//
// with FAILED reachable from every non-terminal state. Each call owns its
// own ReviewState, so concurrent reviews share nothing but the read-only
// knowledge base.
type ReviewService struct {
	retriever Retriever
	llm       driven.LLMService
	prompts   driven.PromptStore
	audit     driven.ReviewLog
	cfg       ReviewConfig
	newID     func() string
}

// NewReviewService creates a review service.
// The prompts and audit parameters are optional (can be nil).
func NewReviewService(
	retriever Retriever,
	llm driven.LLMService,
	prompts driven.PromptStore,
	audit driven.ReviewLog,
	cfg ReviewConfig,
) *ReviewService {
	return &ReviewService{
		retriever: retriever,
		llm:       llm,
		prompts:   prompts,
		audit:     audit,
		cfg:       cfg.withDefaults(),
		newID:     uuid.NewString,
	}
}

// Review validates the request and runs it to a terminal state.
// A failed review returns a *domain.StageError and no partial result.
func (s *ReviewService) Review(ctx context.Context, req domain.SubmittalRequest) (*domain.ReviewResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	state := domain.NewReviewState(s.newID(), req)
	logger.Section("Review " + state.ID)
	logger.Debug("Submittal type %q", req.Type)

	for !state.Stage.IsTerminal() {
		from := state.Stage
		if err := ctx.Err(); err != nil {
			state.Fail(&domain.StageError{Stage: from, Kind: stageKind(from), Err: err})
			break
		}
		if err := s.step(ctx, state); err != nil {
			state.Fail(err)
		}
		logger.Stage(state.ID, from, state.Stage)
	}
	state.Timing.TotalMs = time.Since(state.StartedAt).Milliseconds()

	s.record(ctx, state)

	if state.Stage == domain.StageFailed {
		logger.Warn("Review %s failed at %s: %v", state.ID, state.FailedAt, state.Err)
		return nil, state.Err
	}

	return &domain.ReviewResult{
		ReviewID: state.ID,
		Decision: *state.Decision,
		Analysis: state.Analysis,
		Timing:   state.Timing,
	}, nil
}

// step executes the transition out of the current state.
func (s *ReviewService) step(ctx context.Context, st *domain.ReviewState) error {
	switch st.Stage {
	case domain.StageInit:
		return s.retrieve(ctx, st)
	case domain.StageRetrieved:
		return s.analyze(ctx, st)
	case domain.StageAnalyzed:
		return s.decide(ctx, st)
	case domain.StageDecided:
		s.format(st)
		return nil
	case domain.StageFormatted:
		st.Stage = domain.StageDone
		return nil
	default:
		return fmt.Errorf("review %s: no transition from %s", st.ID, st.Stage)
	}
}

// stageKind maps a state to the error kind of the transition leaving it.
func stageKind(stage domain.Stage) error {
	switch stage {
	case domain.StageInit:
		return domain.ErrRetrieval
	case domain.StageRetrieved:
		return domain.ErrAnalysis
	default:
		return domain.ErrDecision
	}
}

// retrieve: INIT -> RETRIEVED. Not retried.
func (s *ReviewService) retrieve(ctx context.Context, st *domain.ReviewState) error {
	start := time.Now()
	defer func() { st.Timing.RetrieveMs = time.Since(start).Milliseconds() }()

	sctx, cancel := context.WithTimeout(ctx, s.cfg.StageTimeout)
	defer cancel()

	hits, err := s.retriever.Retrieve(sctx, st.Request.Query(), s.cfg.TopK)
	if err != nil {
		return &domain.StageError{Stage: st.Stage, Kind: domain.ErrRetrieval, Err: s.timeoutCause(sctx, err)}
	}

	st.Retrieved = hits
	st.Stage = domain.StageRetrieved
	logger.Debug("Retrieved %d chunks", len(hits))
	return nil
}

// analyze: RETRIEVED -> ANALYZED. Retried once on transient failure.
func (s *ReviewService) analyze(ctx context.Context, st *domain.ReviewState) error {
	start := time.Now()
	defer func() { st.Timing.AnalyzeMs = time.Since(start).Milliseconds() }()

	messages := []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: loadPrompt(s.prompts, driven.PromptAnalyzeSystem)},
		{Role: driven.RoleUser, Content: analyzePrompt(st.Request, st.Retrieved)},
	}

	analysis, err := s.chat(ctx, messages, false)
	if err != nil {
		return &domain.StageError{Stage: st.Stage, Kind: domain.ErrAnalysis, Err: err}
	}
	if strings.TrimSpace(analysis) == "" {
		return &domain.StageError{Stage: st.Stage, Kind: domain.ErrAnalysis, Err: errors.New("empty response")}
	}

	st.Analysis = strings.TrimSpace(analysis)
	st.Stage = domain.StageAnalyzed
	return nil
}

// decide: ANALYZED -> DECIDED. The capability call is retried once on
// transient failure, and an invalid response gets one repair attempt.
func (s *ReviewService) decide(ctx context.Context, st *domain.ReviewState) error {
	start := time.Now()
	defer func() { st.Timing.DecideMs = time.Since(start).Milliseconds() }()

	instructions := loadPrompt(s.prompts, driven.PromptDecideInstructions)
	messages := []driven.ChatMessage{
		{Role: driven.RoleUser, Content: decidePrompt(instructions, st.Request, st.Analysis, st.Retrieved)},
	}

	content, err := s.chat(ctx, messages, true)
	if err != nil {
		return &domain.StageError{Stage: st.Stage, Kind: domain.ErrDecision, Err: err}
	}

	decision, parseErr := ParseDecision(content)
	if parseErr != nil {
		logger.Debug("Decision invalid, attempting repair: %v", parseErr)
		messages = append(messages,
			driven.ChatMessage{Role: driven.RoleAssistant, Content: content},
			driven.ChatMessage{Role: driven.RoleUser, Content: repairPrompt(parseErr)},
		)

		content, err = s.chat(ctx, messages, true)
		if err != nil {
			return &domain.StageError{Stage: st.Stage, Kind: domain.ErrDecision, Err: err}
		}
		decision, parseErr = ParseDecision(content)
		if parseErr != nil {
			return &domain.StageError{
				Stage: st.Stage,
				Kind:  domain.ErrDecision,
				Err:   fmt.Errorf("invalid response after repair: %w", parseErr),
			}
		}
	}

	st.Decision = decision
	st.Stage = domain.StageDecided
	return nil
}

// format: DECIDED -> FORMATTED. Drops citations that cannot be matched.
func (s *ReviewService) format(st *domain.ReviewState) {
	start := time.Now()
	cited := len(st.Decision.Citations)
	st.Decision.Citations = FormatCitations(st.Decision.Citations, st.Retrieved)
	if dropped := cited - len(st.Decision.Citations); dropped > 0 {
		logger.Debug("Dropped %d of %d citations", dropped, cited)
	}
	st.Stage = domain.StageFormatted
	st.Timing.FormatMs = time.Since(start).Milliseconds()
}

// chat calls the LLM with a per-attempt timeout, retrying once on a
// rate limited or transient failure.
func (s *ReviewService) chat(ctx context.Context, messages []driven.ChatMessage, jsonMode bool) (string, error) {
	opts := driven.ChatOptions{
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
		JSON:        jsonMode,
	}

	content, err := s.chatOnce(ctx, messages, opts)
	if err == nil || !domain.IsRetryable(err) || ctx.Err() != nil {
		return content, err
	}

	logger.Warn("LLM call failed, retrying once: %v", err)
	if s.cfg.RetryDelay > 0 {
		timer := time.NewTimer(s.cfg.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return s.chatOnce(ctx, messages, opts)
}

func (s *ReviewService) chatOnce(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.StageTimeout)
	defer cancel()

	content, err := s.llm.Chat(cctx, messages, opts)
	if err != nil {
		return "", s.timeoutCause(cctx, err)
	}
	return content, nil
}

// timeoutCause reports a stage timeout as such. Timeouts are not retried:
// the stage already waited its full budget.
func (s *ReviewService) timeoutCause(stageCtx context.Context, err error) error {
	if errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("timed out after %s: %w", s.cfg.StageTimeout, context.DeadlineExceeded)
	}
	return err
}

// record appends the terminal state to the audit log. Audit failures are
// logged and never fail the review.
func (s *ReviewService) record(ctx context.Context, st *domain.ReviewState) {
	if s.audit == nil {
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	if err := s.audit.Append(actx, domain.NewReviewRecord(st)); err != nil {
		logger.Warn("Failed to record review %s: %v", st.ID, err)
	}
}

// History returns recent audit records, newest first.
func (s *ReviewService) History(ctx context.Context, limit int) ([]domain.ReviewRecord, error) {
	if s.audit == nil {
		return nil, fmt.Errorf("%w: review audit log is disabled", domain.ErrNotFound)
	}
	return s.audit.List(ctx, limit)
}
