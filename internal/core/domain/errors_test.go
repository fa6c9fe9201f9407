package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrUnsupportedType", ErrUnsupportedType},
		{"ErrCorpusNotFound", ErrCorpusNotFound},
		{"ErrEmbeddingService", ErrEmbeddingService},
		{"ErrIndexCorrupt", ErrIndexCorrupt},
		{"ErrKnowledgeBaseNotReady", ErrKnowledgeBaseNotReady},
		{"ErrRetrieval", ErrRetrieval},
		{"ErrAnalysis", ErrAnalysis},
		{"ErrDecision", ErrDecision},
		{"ErrRateLimited", ErrRateLimited},
		{"ErrTransient", ErrTransient},
		{"ErrLLMUnavailable", ErrLLMUnavailable},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"rate limited", ErrRateLimited, true},
		{"wrapped transient", fmt.Errorf("openai: %w", ErrTransient), true},
		{"permanent", errors.New("bad request"), false},
		{"nil", nil, false},
		{"invalid input", ErrInvalidInput, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Field: "description", Reason: "must not be empty"}

	assert.Equal(t, "invalid description: must not be empty", err.Error())
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.True(t, errors.Is(fmt.Errorf("wrap: %w", err), ErrInvalidInput))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestCorruptIndexError(t *testing.T) {
	err := &CorruptIndexError{Reason: "vector dimension mismatch", Detail: "record 3"}

	assert.Contains(t, err.Error(), "vector dimension mismatch")
	assert.Contains(t, err.Error(), "record 3")
	assert.True(t, errors.Is(err, ErrIndexCorrupt))

	bare := &CorruptIndexError{Reason: "truncated"}
	assert.Equal(t, "index corrupt: truncated", bare.Error())
}

func TestStageError(t *testing.T) {
	cause := fmt.Errorf("openai: %w", ErrRateLimited)
	err := &StageError{Stage: StageRetrieved, Kind: ErrAnalysis, Err: cause}

	assert.True(t, errors.Is(err, ErrAnalysis))
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.False(t, errors.Is(err, ErrDecision))
	assert.Equal(t, "analysis failed: openai: rate limited", err.Error())

	var stageErr *StageError
	assert.True(t, errors.As(fmt.Errorf("review: %w", err), &stageErr))
	assert.Equal(t, StageRetrieved, stageErr.Stage)
}

func TestStageError_NoCause(t *testing.T) {
	err := &StageError{Stage: StageInit, Kind: ErrRetrieval}
	assert.Equal(t, "retrieval failed", err.Error())
	assert.Nil(t, errors.Unwrap(err))
}
