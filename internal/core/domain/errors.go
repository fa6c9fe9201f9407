package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown provider or file type.
	ErrUnsupportedType = errors.New("unsupported type")

	// Knowledge base errors.

	// ErrCorpusNotFound indicates the corpus directory is absent or holds no documents.
	// Fatal at startup: no knowledge base is possible.
	ErrCorpusNotFound = errors.New("corpus not found")

	// ErrEmbeddingService indicates the embedding capability failed.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrIndexCorrupt indicates a persisted index failed validation on load.
	ErrIndexCorrupt = errors.New("index corrupt")

	// ErrKnowledgeBaseNotReady indicates no index has been loaded or built yet.
	ErrKnowledgeBaseNotReady = errors.New("knowledge base not ready")

	// Review stage errors.

	// ErrRetrieval indicates the Retrieve stage failed.
	// Surfaced to callers as service unavailable.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrAnalysis indicates the Analyze stage failed.
	ErrAnalysis = errors.New("analysis failed")

	// ErrDecision indicates the Decide stage could not produce a valid decision.
	ErrDecision = errors.New("decision failed")

	// Capability errors.

	// ErrRateLimited indicates the provider rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrTransient indicates a temporary network or server failure.
	ErrTransient = errors.New("transient failure")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
)

// IsRetryable reports whether err is a transient capability failure.
// Only these are eligible for the single stage-level retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient)
}

// ValidationError describes a field that failed validation.
// It matches ErrInvalidInput with errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrInvalidInput.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// CorruptIndexError describes why a persisted index was rejected.
// It matches ErrIndexCorrupt with errors.Is.
type CorruptIndexError struct {
	Reason string
	Detail string
}

func (e *CorruptIndexError) Error() string {
	if e.Detail == "" {
		return "index corrupt: " + e.Reason
	}
	return "index corrupt: " + e.Reason + " (" + e.Detail + ")"
}

// Is reports whether target is ErrIndexCorrupt.
func (e *CorruptIndexError) Is(target error) bool {
	return target == ErrIndexCorrupt
}

func formatDimMismatch(i, got, want int) string {
	return fmt.Sprintf("record %d has %d dimensions, index has %d", i, got, want)
}

// StageError records the workflow stage at which a review failed.
// Kind is the stage sentinel (ErrRetrieval, ErrAnalysis, ErrDecision);
// both Kind and the wrapped cause are visible to errors.Is.
type StageError struct {
	Stage Stage
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *StageError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the stage sentinel.
func (e *StageError) Is(target error) bool {
	return target == e.Kind
}
