// Package mcp provides an MCP (Model Context Protocol) server adapter for
// submittal review. It lets AI assistants run reviews and check knowledge
// base readiness.
package mcp

import "errors"

// ErrMissingReviewService is returned when the review service is not provided.
var ErrMissingReviewService = errors.New("mcp: review service is required")

// ErrMissingKnowledgeService is returned when the knowledge service is not provided.
var ErrMissingKnowledgeService = errors.New("mcp: knowledge service is required")
