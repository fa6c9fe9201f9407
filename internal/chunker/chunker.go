// Package chunker splits page text into overlapping fixed-size chunks.
//
// Chunking is deterministic: the same page text with the same parameters
// always yields byte-identical chunk boundaries and identical chunk IDs,
// which keeps the corpus fingerprint meaningful across restarts.
package chunker

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// DefaultMinChars is the default minimum trimmed chunk length.
const DefaultMinChars = 50

// chunkNamespace seeds deterministic chunk IDs.
var chunkNamespace = uuid.MustParse("6f1d1c52-3b0e-4c8e-9a57-52b1f0c6a1d4")

// ErrInvalidParams is returned by New for unusable size/overlap values.
var ErrInvalidParams = errors.New("invalid chunker parameters")

// Chunker splits page text into fixed-size chunks measured in characters (runes).
type Chunker struct {
	size     int
	overlap  int
	minChars int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithMinChars drops chunks whose trimmed text is shorter than n characters.
// A page that yields a single chunk keeps it regardless.
func WithMinChars(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.minChars = n
		}
	}
}

// New creates a chunker. Overlap must be smaller than size, otherwise the
// window would never advance.
func New(size, overlap int, opts ...Option) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size %d must be positive", ErrInvalidParams, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap %d must not be negative", ErrInvalidParams, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than size %d", ErrInvalidParams, overlap, size)
	}

	c := &Chunker{
		size:     size,
		overlap:  overlap,
		minChars: DefaultMinChars,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Size returns the chunk size in characters.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the overlap in characters.
func (c *Chunker) Overlap() int { return c.overlap }

// MinChars returns the minimum trimmed chunk length.
func (c *Chunker) MinChars() int { return c.minChars }

// Signature identifies the chunking parameters for fingerprinting.
func (c *Chunker) Signature() string {
	return "chars:" + strconv.Itoa(c.size) + "/" + strconv.Itoa(c.overlap) + "/" + strconv.Itoa(c.minChars)
}

// Chunk splits one page into ordered chunks.
// A blank page yields no chunks. A page no longer than the chunk size
// yields exactly one chunk holding the whole page text. A non-blank page
// always yields at least one chunk.
func (c *Chunker) Chunk(page domain.Page) []domain.Chunk {
	if strings.TrimSpace(page.Text) == "" {
		return nil
	}

	runes := []rune(page.Text)
	step := c.size - c.overlap

	var spans []string
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		spans = append(spans, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}

	chunks := make([]domain.Chunk, 0, len(spans))
	for _, text := range c.keep(spans) {
		seq := len(chunks)
		chunks = append(chunks, domain.Chunk{
			ID:         chunkID(page.DocumentID, page.Number, seq),
			DocumentID: page.DocumentID,
			Page:       page.Number,
			Sequence:   seq,
			Text:       text,
		})
	}
	return chunks
}

// keep drops spans shorter than minChars once trimmed. When that would drop
// every span of a non-blank page, the non-blank spans are kept instead.
func (c *Chunker) keep(spans []string) []string {
	if len(spans) == 1 {
		return spans
	}
	var kept, nonBlank []string
	for _, text := range spans {
		n := len([]rune(strings.TrimSpace(text)))
		if n >= c.minChars {
			kept = append(kept, text)
		}
		if n > 0 {
			nonBlank = append(nonBlank, text)
		}
	}
	if len(kept) == 0 {
		return nonBlank
	}
	return kept
}

// ChunkDocuments chunks every page of every document in order.
func (c *Chunker) ChunkDocuments(docs []domain.Document) []domain.Chunk {
	var out []domain.Chunk
	for _, doc := range docs {
		for _, page := range doc.Pages {
			out = append(out, c.Chunk(page)...)
		}
	}
	return out
}

func chunkID(documentID string, page, seq int) string {
	name := documentID + "\x00" + strconv.Itoa(page) + "\x00" + strconv.Itoa(seq)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}
