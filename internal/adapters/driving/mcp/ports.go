package mcp

import (
	"github.com/custodia-labs/submittal-review/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Review runs submittal reviews and lists history.
	Review driving.ReviewService

	// Knowledge reports knowledge base readiness.
	Knowledge driving.KnowledgeService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Review == nil {
		return ErrMissingReviewService
	}
	if p.Knowledge == nil {
		return ErrMissingKnowledgeService
	}
	return nil
}
