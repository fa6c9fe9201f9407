package domain

import (
	"fmt"
	"time"
)

// CorpusFile describes one source file in the corpus directory.
// It carries exactly what the corpus fingerprint is computed from.
type CorpusFile struct {
	// Path is the file path relative to the corpus root, using forward slashes.
	Path string

	// Size is the file size in bytes.
	Size int64

	// ModTime is the last modification time.
	ModTime time.Time
}

// Document is a loaded standards document. Immutable once loaded.
type Document struct {
	// ID is the source name, the path relative to the corpus root.
	ID string

	// Pages holds the document pages in order.
	Pages []Page
}

// Page is one page of a Document. Immutable.
type Page struct {
	// DocumentID links to the parent Document.
	DocumentID string

	// Number is the 1-based page number.
	Number int

	// Text is the raw extracted page text.
	Text string
}

// Chunk is a bounded span of page text.
// Chunks are the unit of embedding and retrieval; their provenance
// (DocumentID, Page) always traces back to a loaded Document/Page pair.
type Chunk struct {
	// ID is a deterministic identifier derived from provenance and sequence.
	ID string

	// DocumentID is the source document the chunk was cut from.
	DocumentID string

	// Page is the 1-based page number within the source document.
	Page int

	// Sequence is the chunk's position within its page.
	Sequence int

	// Text is the chunk content.
	Text string
}

// Ref returns the provenance marker used in prompts, e.g. "05/06.pdf p.12 #0".
func (c Chunk) Ref() string {
	return fmt.Sprintf("%s p.%d #%d", c.DocumentID, c.Page, c.Sequence)
}

// ScoredChunk is a retrieval hit.
type ScoredChunk struct {
	Chunk Chunk

	// Score is the cosine similarity between query and chunk (higher is closer).
	Score float64
}
