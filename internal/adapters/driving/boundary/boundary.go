// Package boundary translates review failures into the outcome each
// driving adapter reports: an HTTP status, a stable error code and the
// stage the review reached.
package boundary

import (
	"context"
	"errors"
	"net/http"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
)

// Error codes reported to callers.
const (
	CodeInvalidInput = "invalid_input"
	CodeNotReady     = "knowledge_base_not_ready"
	CodeRetrieval    = "retrieval_failed"
	CodeAnalysis     = "analysis_failed"
	CodeDecision     = "decision_failed"
	CodeCancelled    = "cancelled"
	CodeInternal     = "internal_error"
)

// statusClientClosed is reported when the caller went away mid-review.
const statusClientClosed = 499

// Failure is the caller-facing view of a review error.
type Failure struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message"`
}

// Classify maps err onto a Failure. The stage sentinel is checked before
// input validation so a schema failure inside Decide reports as a decision
// failure rather than a bad request.
func Classify(err error) Failure {
	f := Failure{Message: err.Error()}

	var stageErr *domain.StageError
	if errors.As(err, &stageErr) {
		f.Stage = stageErr.Stage.String()
	}

	switch {
	case errors.Is(err, context.Canceled):
		f.Status, f.Code = statusClientClosed, CodeCancelled
	case errors.Is(err, domain.ErrKnowledgeBaseNotReady):
		f.Status, f.Code = http.StatusServiceUnavailable, CodeNotReady
	case errors.Is(err, domain.ErrRetrieval):
		f.Status, f.Code = http.StatusServiceUnavailable, CodeRetrieval
	case errors.Is(err, domain.ErrAnalysis):
		f.Status, f.Code = http.StatusBadGateway, CodeAnalysis
	case errors.Is(err, domain.ErrDecision):
		f.Status, f.Code = http.StatusBadGateway, CodeDecision
	case errors.Is(err, domain.ErrInvalidInput):
		f.Status, f.Code = http.StatusBadRequest, CodeInvalidInput
	default:
		f.Status, f.Code = http.StatusInternalServerError, CodeInternal
	}
	return f
}

// ExitCode maps err onto a process exit status for the CLI.
// 2 is a bad request, 3 an unavailable knowledge base, 4 an upstream
// model failure and 1 anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch Classify(err).Status {
	case http.StatusBadRequest:
		return 2
	case http.StatusServiceUnavailable:
		return 3
	case http.StatusBadGateway:
		return 4
	default:
		return 1
	}
}
