package domain

import (
	"strings"
	"time"
)

// SubmittalRequest is the caller-supplied input to a single review.
type SubmittalRequest struct {
	// Type is the submittal category, e.g. "Concrete".
	Type string `json:"type"`

	// Description is the free-text description of the submittal.
	Description string `json:"description"`

	// Specifications is the free-text specification block.
	Specifications string `json:"specifications"`
}

// Validate checks that every field is present and non-blank.
// Runs before the workflow starts so a malformed request never reaches retrieval.
func (r SubmittalRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Type) == "":
		return &ValidationError{Field: "type", Reason: "must not be empty"}
	case strings.TrimSpace(r.Description) == "":
		return &ValidationError{Field: "description", Reason: "must not be empty"}
	case strings.TrimSpace(r.Specifications) == "":
		return &ValidationError{Field: "specifications", Reason: "must not be empty"}
	}
	return nil
}

// Query builds the retrieval query from the submittal fields.
func (r SubmittalRequest) Query() string {
	return strings.Join([]string{
		strings.TrimSpace(r.Type),
		strings.TrimSpace(r.Description),
		strings.TrimSpace(r.Specifications),
	}, " ")
}

// Stage is a review workflow state.
type Stage string

// Workflow states in execution order, plus the FAILED terminal state.
const (
	StageInit      Stage = "init"
	StageRetrieved Stage = "retrieved"
	StageAnalyzed  Stage = "analyzed"
	StageDecided   Stage = "decided"
	StageFormatted Stage = "formatted"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
)

// IsTerminal returns true for DONE and FAILED.
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageFailed
}

// String returns the string representation.
func (s Stage) String() string {
	return string(s)
}

// Timing holds per-stage durations in milliseconds.
type Timing struct {
	RetrieveMs int64 `json:"retrieve_ms"`
	AnalyzeMs  int64 `json:"analyze_ms"`
	DecideMs   int64 `json:"decide_ms"`
	FormatMs   int64 `json:"format_ms"`
	TotalMs    int64 `json:"total_ms"`
}

// ReviewState is the mutable record threaded through the workflow stages.
// It is owned by exactly one workflow execution and never shared.
type ReviewState struct {
	// ID identifies the review for logging and audit.
	ID string

	// Request is the immutable input.
	Request SubmittalRequest

	// Stage is the current workflow state.
	Stage Stage

	// Retrieved holds the retrieved chunks, most relevant first.
	Retrieved []ScoredChunk

	// Analysis is the free-text output of the Analyze stage.
	Analysis string

	// Decision is set by Decide and finalised by Format.
	Decision *Decision

	// FailedAt is the state the review was in when it failed.
	FailedAt Stage

	// Err is the failure cause once Stage is StageFailed.
	Err error

	// StartedAt is when the review entered INIT.
	StartedAt time.Time

	// Timing accumulates stage durations.
	Timing Timing
}

// NewReviewState creates a review in the INIT state.
func NewReviewState(id string, req SubmittalRequest) *ReviewState {
	return &ReviewState{
		ID:        id,
		Request:   req,
		Stage:     StageInit,
		StartedAt: time.Now(),
	}
}

// Fail moves the review to FAILED, remembering where it failed.
func (s *ReviewState) Fail(err error) {
	s.FailedAt = s.Stage
	s.Stage = StageFailed
	s.Err = err
}

// ReviewResult is the outbound response for a completed review:
// the Decision plus the raw analysis text for audit display.
type ReviewResult struct {
	ReviewID string `json:"review_id"`
	Decision
	Analysis string `json:"analysis"`
	Timing   Timing `json:"timing"`
}

// ReviewRecord is an audit log entry for a review that reached a terminal state.
type ReviewRecord struct {
	ID          string
	Request     SubmittalRequest
	Stage       Stage
	FailedAt    Stage
	Verdict     Verdict
	Confidence  float64
	Citations   int
	Error       string
	StartedAt   time.Time
	CompletedAt time.Time
}

// NewReviewRecord summarises a terminal review state for the audit log.
func NewReviewRecord(s *ReviewState) ReviewRecord {
	rec := ReviewRecord{
		ID:          s.ID,
		Request:     s.Request,
		Stage:       s.Stage,
		FailedAt:    s.FailedAt,
		StartedAt:   s.StartedAt,
		CompletedAt: time.Now(),
	}
	if s.Decision != nil && s.Stage == StageDone {
		rec.Verdict = s.Decision.Verdict
		rec.Confidence = s.Decision.Confidence
		rec.Citations = len(s.Decision.Citations)
	}
	if s.Err != nil {
		rec.Error = s.Err.Error()
	}
	return rec
}
