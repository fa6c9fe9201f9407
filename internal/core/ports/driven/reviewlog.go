package driven

import (
	"context"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
)

// ReviewLog is an append-only audit trail of reviews that reached a terminal state.
type ReviewLog interface {
	// Append records a finished review.
	Append(ctx context.Context, record domain.ReviewRecord) error

	// List returns the most recent records, newest first.
	// A limit of zero or less returns every record.
	List(ctx context.Context, limit int) ([]domain.ReviewRecord, error)

	// Close releases resources.
	Close() error
}
