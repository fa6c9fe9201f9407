package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/submittal-review/internal/chunker"
	"github.com/custodia-labs/submittal-review/internal/core/domain"
	"github.com/custodia-labs/submittal-review/internal/core/ports/driven"
	"github.com/custodia-labs/submittal-review/internal/core/ports/driving"
	"github.com/custodia-labs/submittal-review/internal/logger"
	"github.com/custodia-labs/submittal-review/internal/vectorindex"
)

// Ensure KnowledgeService implements the interface.
var _ driving.KnowledgeService = (*KnowledgeService)(nil)

// KnowledgeService owns the process-wide knowledge base handle.
//
// Builds are deduplicated per fingerprint with singleflight, so concurrent
// callers racing on a missing index share one build. The served index is
// swapped under a write lock only once a replacement is fully built and
// persisted; readers never observe a partially built index.
type KnowledgeService struct {
	loader   driven.CorpusLoader
	chunker  *chunker.Chunker
	embedder driven.EmbeddingService
	store    driven.IndexStore
	opts     BuildOptions

	group    singleflight.Group
	building atomic.Int32
	builds   atomic.Int64

	mu      sync.RWMutex
	index   *vectorindex.Index
	current domain.KnowledgeStatus
	lastErr string
}

// NewKnowledgeService creates a knowledge service. No I/O happens until
// GetOrBuild is called.
func NewKnowledgeService(
	loader driven.CorpusLoader,
	ch *chunker.Chunker,
	embedder driven.EmbeddingService,
	store driven.IndexStore,
	opts BuildOptions,
) *KnowledgeService {
	return &KnowledgeService{
		loader:   loader,
		chunker:  ch,
		embedder: embedder,
		store:    store,
		opts:     opts,
	}
}

// loaded is the outcome of one singleflight load-or-build.
type loaded struct {
	index  *vectorindex.Index
	status domain.KnowledgeStatus
}

// GetOrBuild loads the index for the current corpus fingerprint, building
// and persisting it first if no cached copy exists.
func (s *KnowledgeService) GetOrBuild(ctx context.Context) (domain.KnowledgeStatus, error) {
	return s.ensure(ctx, false)
}

// Load serves the cached index for the current corpus fingerprint without
// building. Returns domain.ErrNotFound if no cached copy exists.
func (s *KnowledgeService) Load(ctx context.Context) (domain.KnowledgeStatus, error) {
	files, err := s.loader.Files(ctx)
	if err != nil {
		s.recordError(err)
		return s.Status(), err
	}
	fp := Fingerprint(files, s.chunker.Signature(), s.embedder.ModelName())

	l, err := s.loadCached(ctx, fp)
	if err != nil {
		return s.Status(), err
	}
	s.swap(l)
	return s.Status(), nil
}

// Refresh re-fingerprints the corpus and serves a new index if the corpus
// changed. On failure the previous index keeps serving.
func (s *KnowledgeService) Refresh(ctx context.Context) (domain.KnowledgeStatus, error) {
	logger.Info("Refreshing knowledge base from %s", s.loader.Root())
	return s.ensure(ctx, false)
}

// Rebuild builds a fresh index ignoring any cached copy, then replaces the
// cached copy and the served index.
func (s *KnowledgeService) Rebuild(ctx context.Context) (domain.KnowledgeStatus, error) {
	return s.ensure(ctx, true)
}

func (s *KnowledgeService) ensure(ctx context.Context, force bool) (domain.KnowledgeStatus, error) {
	files, err := s.loader.Files(ctx)
	if err != nil {
		s.recordError(err)
		return s.Status(), err
	}
	fp := Fingerprint(files, s.chunker.Signature(), s.embedder.ModelName())

	if !force {
		s.mu.RLock()
		serving := s.index != nil && s.current.Fingerprint == fp
		s.mu.RUnlock()
		if serving {
			logger.Debug("Knowledge base %s already loaded", fp)
			return s.Status(), nil
		}
	}

	key := fp
	if force {
		key = "rebuild:" + fp
	}

	ch := s.group.DoChan(key, func() (any, error) {
		s.building.Add(1)
		defer s.building.Add(-1)
		return s.loadOrBuild(ctx, fp, force)
	})

	select {
	case <-ctx.Done():
		return s.Status(), ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			s.recordError(res.Err)
			return s.Status(), res.Err
		}
		s.swap(res.Val.(*loaded))
		return s.Status(), nil
	}
}

func (s *KnowledgeService) loadOrBuild(ctx context.Context, fp string, force bool) (*loaded, error) {
	replace := force
	if !force {
		l, err := s.loadCached(ctx, fp)
		switch {
		case err == nil:
			return l, nil
		case errors.Is(err, domain.ErrIndexCorrupt):
			logger.Warn("Cached index %s is corrupt, rebuilding: %v", fp, err)
			replace = true
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	}

	logger.Section("Index Build")
	logger.Info("Building index %s from %s", fp, s.loader.Root())
	start := time.Now()

	docs, err := s.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	chunks := s.chunker.ChunkDocuments(docs)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no extractable text in %s", domain.ErrCorpusNotFound, s.loader.Root())
	}
	logger.Info("Chunked %d documents into %d chunks", len(docs), len(chunks))

	idx, err := BuildIndex(ctx, s.embedder, chunks, s.opts)
	if err != nil {
		return nil, err
	}
	s.builds.Add(1)

	snapshot := &domain.IndexSnapshot{
		Fingerprint:   fp,
		Model:         s.embedder.ModelName(),
		Dimension:     idx.Dimension(),
		DocumentCount: len(docs),
		BuiltAt:       time.Now().UTC(),
		Records:       idx.Records(),
	}

	if replace {
		if err := s.store.Delete(ctx, fp); err != nil {
			return nil, fmt.Errorf("replace cached index: %w", err)
		}
	}
	if err := s.store.Save(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("save index: %w", err)
	}
	logger.Info("Built index %s in %s", fp, time.Since(start).Round(time.Millisecond))

	// Serve what is on disk. If another process saved first, its copy won.
	return s.loadCached(ctx, fp)
}

func (s *KnowledgeService) loadCached(ctx context.Context, fp string) (*loaded, error) {
	snapshot, err := s.store.Load(ctx, fp)
	if err != nil {
		return nil, err
	}
	if snapshot.Model != s.embedder.ModelName() {
		return nil, &domain.CorruptIndexError{
			Reason: "embedding model mismatch",
			Detail: snapshot.Model + " != " + s.embedder.ModelName(),
		}
	}
	idx, err := vectorindex.FromSnapshot(snapshot)
	if err != nil {
		return nil, err
	}
	logger.Debug("Loaded index %s: %d chunks, %d dimensions", fp, idx.Len(), idx.Dimension())

	return &loaded{
		index: idx,
		status: domain.KnowledgeStatus{
			Ready:         true,
			ChunkCount:    idx.Len(),
			DocumentCount: snapshot.DocumentCount,
			Fingerprint:   snapshot.Fingerprint,
			Model:         snapshot.Model,
			Dimension:     snapshot.Dimension,
			BuiltAt:       snapshot.BuiltAt,
		},
	}, nil
}

func (s *KnowledgeService) swap(l *loaded) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = l.index
	s.current = l.status
	s.lastErr = ""
}

func (s *KnowledgeService) recordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err.Error()
}

// Retrieve embeds the query and returns the k most similar chunks.
func (s *KnowledgeService) Retrieve(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	s.mu.RLock()
	idx := s.index
	s.mu.RUnlock()

	if idx == nil {
		return nil, domain.ErrKnowledgeBaseNotReady
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", domain.ErrEmbeddingService, err)
	}
	return idx.Search(vec, k)
}

// Status reports readiness and statistics of the served index.
func (s *KnowledgeService) Status() domain.KnowledgeStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status := s.current
	status.Ready = s.index != nil
	status.Building = s.building.Load() > 0
	status.LastError = s.lastErr
	return status
}

// BuildCount returns how many indexes this service has built.
func (s *KnowledgeService) BuildCount() int64 {
	return s.builds.Load()
}

// Close stops serving the current index.
func (s *KnowledgeService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = nil
	s.current = domain.KnowledgeStatus{}
	return nil
}
