package services

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
	"github.com/custodia-labs/submittal-review/internal/core/ports/driven"
	"github.com/custodia-labs/submittal-review/internal/logger"
	"github.com/custodia-labs/submittal-review/internal/vectorindex"
)

// Default build tuning.
const (
	DefaultEmbedConcurrency = 4
	DefaultEmbedBatchSize   = 16
)

// BuildOptions tunes index construction.
type BuildOptions struct {
	// Concurrency bounds in-flight embedding requests.
	Concurrency int

	// BatchSize is the number of chunks sent per EmbedBatch call.
	BatchSize int

	// RatePerSecond throttles embedding requests; 0 disables throttling.
	RatePerSecond float64

	// Progress, if set, is called after each batch with chunks embedded so far.
	// It may be called from several goroutines at once.
	Progress func(done, total int)
}

func (o BuildOptions) withDefaults() BuildOptions {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultEmbedConcurrency
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultEmbedBatchSize
	}
	return o
}

// BuildIndex embeds every chunk and inserts it into a new index in chunk order.
//
// Embedding runs in bounded parallel batches, but the index is populated
// only after every batch has succeeded, so a failure never yields a partial
// index. Any embedding failure aborts the build with an error wrapping
// domain.ErrEmbeddingService and the underlying cause.
func BuildIndex(
	ctx context.Context,
	embedder driven.EmbeddingService,
	chunks []domain.Chunk,
	opts BuildOptions,
) (*vectorindex.Index, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks to index", domain.ErrInvalidInput)
	}
	opts = opts.withDefaults()

	var limiter *rate.Limiter
	if opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}

	vectors := make([][]float32, len(chunks))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for start := 0; start < len(chunks); start += opts.BatchSize {
		end := min(start+opts.BatchSize, len(chunks))

		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					return fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
				}
			}

			texts := make([]string, 0, end-start)
			for i := start; i < end; i++ {
				texts = append(texts, chunks[i].Text)
			}

			batch, err := embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("%w: chunks %d-%d: %w", domain.ErrEmbeddingService, start, end-1, err)
			}
			if len(batch) != len(texts) {
				return fmt.Errorf("%w: requested %d embeddings, got %d",
					domain.ErrEmbeddingService, len(texts), len(batch))
			}
			copy(vectors[start:end], batch)

			n := done.Add(int64(len(texts)))
			if opts.Progress != nil {
				opts.Progress(int(n), len(chunks))
			}
			logger.Debug("Embedded %d/%d chunks", n, len(chunks))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: empty embedding vector", domain.ErrEmbeddingService)
	}

	idx := vectorindex.New(dim)
	for i, chunk := range chunks {
		if err := idx.Add(chunk, vectors[i]); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
		}
	}
	return idx, nil
}
