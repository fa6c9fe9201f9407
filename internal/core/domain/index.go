package domain

import "time"

// EmbeddingRecord pairs a chunk with its embedding vector.
type EmbeddingRecord struct {
	Chunk  Chunk
	Vector []float32
}

// IndexSnapshot is the persisted form of a built index.
// Records are kept in insertion order; the position of a record is its
// internal vector id and the tie-break order for equal similarity scores.
type IndexSnapshot struct {
	// Fingerprint identifies the corpus state the index was built from.
	Fingerprint string

	// Model is the embedding model that produced the vectors.
	Model string

	// Dimension is the vector size shared by every record.
	Dimension int

	// DocumentCount is the number of source documents indexed.
	DocumentCount int

	// BuiltAt is when the build completed.
	BuiltAt time.Time

	// Records holds chunk metadata and vectors in insertion order.
	Records []EmbeddingRecord
}

// Validate checks the constant-dimension invariant.
// A mismatch is reported as corruption rather than truncated away.
func (s *IndexSnapshot) Validate() error {
	if s.Dimension <= 0 && len(s.Records) > 0 {
		return &CorruptIndexError{Reason: "missing vector dimension"}
	}
	for i := range s.Records {
		if got := len(s.Records[i].Vector); got != s.Dimension {
			return &CorruptIndexError{
				Reason: "vector dimension mismatch",
				Detail: formatDimMismatch(i, got, s.Dimension),
			}
		}
	}
	return nil
}

// KnowledgeStatus reports knowledge base readiness for health checks.
type KnowledgeStatus struct {
	// Ready is true once an index is loaded or built and can serve queries.
	Ready bool `json:"knowledge_base_ready"`

	// Building is true while a build is in progress.
	Building bool `json:"building"`

	// ChunkCount is the number of indexed chunks.
	ChunkCount int `json:"chunks_count"`

	// DocumentCount is the number of indexed documents.
	DocumentCount int `json:"documents_count"`

	// Fingerprint identifies the corpus state currently served.
	Fingerprint string `json:"fingerprint,omitempty"`

	// Model is the embedding model of the served index.
	Model string `json:"embedding_model,omitempty"`

	// Dimension is the embedding vector size.
	Dimension int `json:"dimension,omitempty"`

	// BuiltAt is when the served index was built.
	BuiltAt time.Time `json:"built_at,omitempty"`

	// LastError is the most recent build failure, if any.
	LastError string `json:"last_error,omitempty"`
}
