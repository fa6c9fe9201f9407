package driving

import (
	"context"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
)

// KnowledgeService owns the knowledge base lifecycle and answers retrieval queries.
//
// It is the single choke point guaranteeing at most one index per corpus state
// and that callers never observe a half-built index.
type KnowledgeService interface {
	// GetOrBuild loads the cached index for the current corpus fingerprint,
	// building and persisting it first if absent.
	GetOrBuild(ctx context.Context) (domain.KnowledgeStatus, error)

	// Load serves the cached index for the current corpus fingerprint
	// without building. Returns domain.ErrNotFound if none is cached.
	Load(ctx context.Context) (domain.KnowledgeStatus, error)

	// Rebuild builds a fresh index ignoring any cached copy.
	Rebuild(ctx context.Context) (domain.KnowledgeStatus, error)

	// Refresh re-fingerprints the corpus and swaps in a new index if it changed.
	// The previous index keeps serving until the new one is ready.
	Refresh(ctx context.Context) (domain.KnowledgeStatus, error)

	// Retrieve returns up to k chunks most similar to query, most similar first.
	// Returns domain.ErrKnowledgeBaseNotReady before an index is available.
	Retrieve(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error)

	// Status reports readiness and index statistics.
	Status() domain.KnowledgeStatus

	// Close releases the served index.
	Close() error
}
