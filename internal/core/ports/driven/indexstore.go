package driven

import (
	"context"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
)

// IndexStore persists built indexes keyed by corpus fingerprint.
//
// Save must be fail-clean: a snapshot is either fully persisted under its
// fingerprint or nothing is written. When a snapshot already exists under
// the fingerprint, Save leaves it untouched and returns nil.
type IndexStore interface {
	// Exists reports whether a complete index is stored under fingerprint.
	Exists(ctx context.Context, fingerprint string) (bool, error)

	// Save persists the snapshot under snapshot.Fingerprint.
	Save(ctx context.Context, snapshot *domain.IndexSnapshot) error

	// Delete removes the snapshot stored under fingerprint, if any.
	Delete(ctx context.Context, fingerprint string) error

	// Load reads the snapshot stored under fingerprint.
	// Returns domain.ErrNotFound if absent and domain.ErrIndexCorrupt
	// if the stored data fails validation.
	Load(ctx context.Context, fingerprint string) (*domain.IndexSnapshot, error)
}
