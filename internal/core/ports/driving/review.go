package driving

import (
	"context"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
)

// ReviewService evaluates submittals against the knowledge base.
type ReviewService interface {
	// Review runs one submittal through the workflow to a terminal state.
	// On failure the error is a *domain.StageError or a *domain.ValidationError
	// and no partial result is returned.
	Review(ctx context.Context, req domain.SubmittalRequest) (*domain.ReviewResult, error)

	// History returns recent audit records, newest first.
	History(ctx context.Context, limit int) ([]domain.ReviewRecord, error)
}
