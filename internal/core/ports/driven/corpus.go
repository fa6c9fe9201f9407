package driven

import (
	"context"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
)

// CorpusLoader reads the standards corpus.
// Both methods fail with domain.ErrCorpusNotFound when the corpus
// directory is absent or holds no supported documents.
type CorpusLoader interface {
	// Root returns the corpus location for logging.
	Root() string

	// Files lists the corpus files sorted by path, without reading content.
	// Used to compute the corpus fingerprint.
	Files(ctx context.Context) ([]domain.CorpusFile, error)

	// Load reads every corpus document with per-page text.
	Load(ctx context.Context) ([]domain.Document, error)
}
