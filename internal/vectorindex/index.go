// Package vectorindex provides an exact in-memory similarity index over chunk embeddings.
//
// Similarity is cosine similarity. Results are ordered by descending score,
// with ties broken by insertion order, so an index rebuilt from a persisted
// snapshot answers every query identically to the original.
//
// An Index is not safe for concurrent mutation. Callers populate it once and
// then share it read-only; Search is safe for concurrent use after that.
package vectorindex

import (
	"fmt"
	"math"
	"sort"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
)

// Index is a flat cosine similarity index.
type Index struct {
	dim     int
	records []domain.EmbeddingRecord
	norms   []float64
}

// New creates an empty index for vectors of the given dimension.
func New(dim int) *Index {
	return &Index{dim: dim}
}

// FromSnapshot rebuilds an index from a persisted snapshot, keeping record order.
func FromSnapshot(s *domain.IndexSnapshot) (*Index, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	idx := New(s.Dimension)
	for _, rec := range s.Records {
		if err := idx.Add(rec.Chunk, rec.Vector); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// Add appends a chunk and its vector. The vector must match the index dimension.
func (i *Index) Add(chunk domain.Chunk, vector []float32) error {
	if len(vector) != i.dim {
		return &domain.CorruptIndexError{
			Reason: "vector dimension mismatch",
			Detail: fmt.Sprintf("chunk %s has %d dimensions, index has %d", chunk.ID, len(vector), i.dim),
		}
	}
	i.records = append(i.records, domain.EmbeddingRecord{Chunk: chunk, Vector: vector})
	i.norms = append(i.norms, norm(vector))
	return nil
}

// Len returns the number of indexed chunks.
func (i *Index) Len() int {
	return len(i.records)
}

// Dimension returns the vector dimension.
func (i *Index) Dimension() int {
	return i.dim
}

// Records returns the indexed records in insertion order.
// The returned slice must not be modified.
func (i *Index) Records() []domain.EmbeddingRecord {
	return i.records
}

// Search returns up to k chunks most similar to query, most similar first.
func (i *Index) Search(query []float32, k int) ([]domain.ScoredChunk, error) {
	if len(query) != i.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrInvalidInput, len(query), i.dim)
	}
	if k <= 0 || len(i.records) == 0 {
		return nil, nil
	}

	qn := norm(query)
	hits := make([]domain.ScoredChunk, len(i.records))
	for n := range i.records {
		hits[n] = domain.ScoredChunk{
			Chunk: i.records[n].Chunk,
			Score: cosine(query, qn, i.records[n].Vector, i.norms[n]),
		}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score > hits[b].Score
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosine returns 0 when either vector has zero length.
func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for n := range a {
		dot += float64(a[n]) * float64(b[n])
	}
	return dot / (an * bn)
}
