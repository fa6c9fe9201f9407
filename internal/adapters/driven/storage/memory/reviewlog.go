package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
	"github.com/custodia-labs/submittal-review/internal/core/ports/driven"
)

// Ensure ReviewLog implements the interface.
var _ driven.ReviewLog = (*ReviewLog)(nil)

// ReviewLog is an in-memory implementation of driven.ReviewLog.
type ReviewLog struct {
	mu      sync.RWMutex
	records []domain.ReviewRecord
}

// NewReviewLog creates a new in-memory review log.
func NewReviewLog() *ReviewLog {
	return &ReviewLog{}
}

// Append records a finished review.
func (l *ReviewLog) Append(_ context.Context, record domain.ReviewRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, record)
	return nil
}

// List returns the most recent records, newest first.
func (l *ReviewLog) List(_ context.Context, limit int) ([]domain.ReviewRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := len(l.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.ReviewRecord, 0, n)
	for i := len(l.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, l.records[i])
	}
	return out, nil
}

// Close is a no-op.
func (l *ReviewLog) Close() error {
	return nil
}
