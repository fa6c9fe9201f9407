package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
	"github.com/custodia-labs/submittal-review/internal/core/ports/driven"
)

// Ensure IndexStore implements the interface.
var _ driven.IndexStore = (*IndexStore)(nil)

// IndexStore is an in-memory implementation of driven.IndexStore.
// Snapshots live only as long as the process.
type IndexStore struct {
	mu        sync.RWMutex
	snapshots map[string]domain.IndexSnapshot
	saves     int
}

// NewIndexStore creates a new in-memory index store.
func NewIndexStore() *IndexStore {
	return &IndexStore{
		snapshots: make(map[string]domain.IndexSnapshot),
	}
}

// Exists reports whether a snapshot is stored under fingerprint.
func (s *IndexStore) Exists(_ context.Context, fingerprint string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.snapshots[fingerprint]
	return ok, nil
}

// Save stores a copy of the snapshot. An existing snapshot under the same
// fingerprint is kept.
func (s *IndexStore) Save(_ context.Context, snapshot *domain.IndexSnapshot) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snapshots[snapshot.Fingerprint]; ok {
		return nil
	}
	s.snapshots[snapshot.Fingerprint] = copySnapshot(snapshot)
	s.saves++
	return nil
}

// Delete removes the snapshot stored under fingerprint.
func (s *IndexStore) Delete(_ context.Context, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, fingerprint)
	return nil
}

// Load returns a copy of the snapshot stored under fingerprint.
func (s *IndexStore) Load(_ context.Context, fingerprint string) (*domain.IndexSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[fingerprint]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := copySnapshot(&snap)
	return &out, nil
}

// Put stores a snapshot without validation, replacing any existing one.
// Tests use it to plant corrupt data.
func (s *IndexStore) Put(snapshot domain.IndexSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.Fingerprint] = snapshot
}

// Saves returns how many snapshots have been written.
func (s *IndexStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func copySnapshot(in *domain.IndexSnapshot) domain.IndexSnapshot {
	out := *in
	out.Records = make([]domain.EmbeddingRecord, len(in.Records))
	for i, rec := range in.Records {
		out.Records[i] = domain.EmbeddingRecord{
			Chunk:  rec.Chunk,
			Vector: append([]float32(nil), rec.Vector...),
		}
	}
	return out
}
