// Package domain defines the core business entities for submittal review.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document, Page: A loaded standards document and its pages
//   - Chunk: A bounded span of page text, the unit of embedding and retrieval
//   - EmbeddingRecord, IndexSnapshot: The persisted form of the knowledge base
//   - SubmittalRequest, ReviewState: The input and the per-review working record
//   - Decision, Citation: The structured verdict returned to callers
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
