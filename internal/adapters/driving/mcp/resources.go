package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for review resources.
	uriScheme = "submittal://"

	// defaultHistoryLimit bounds the reviews resource.
	defaultHistoryLimit = 20
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "reviews",
		Name:        "reviews",
		Description: "Most recent submittal reviews, newest first",
		MIMEType:    "application/json",
	}, s.handleReviewsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "reviews/{limit}",
		Name:        "reviews-limited",
		Description: "The given number of most recent submittal reviews",
		MIMEType:    "application/json",
	}, s.handleReviewsResource)
}

// reviewInfo is the resource view of an audit record.
type reviewInfo struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Stage       string    `json:"stage"`
	FailedAt    string    `json:"failed_at,omitempty"`
	Decision    string    `json:"decision,omitempty"`
	Confidence  float64   `json:"confidence,omitempty"`
	Citations   int       `json:"citations"`
	Error       string    `json:"error,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// handleReviewsResource returns recent audit records.
func (s *Server) handleReviewsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	limit, ok := extractLimit(req.Params.URI)
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	records, err := s.ports.Review.History(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing reviews: %w", err)
	}

	infos := make([]reviewInfo, len(records))
	for i, rec := range records {
		infos[i] = reviewInfo{
			ID:          rec.ID,
			Type:        rec.Request.Type,
			Description: rec.Request.Description,
			Stage:       rec.Stage.String(),
			FailedAt:    rec.FailedAt.String(),
			Decision:    rec.Verdict.String(),
			Confidence:  rec.Confidence,
			Citations:   rec.Citations,
			Error:       rec.Error,
			CompletedAt: rec.CompletedAt,
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling reviews: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractLimit reads the limit from submittal://reviews or submittal://reviews/{limit}.
func extractLimit(uri string) (int, bool) {
	const base = uriScheme + "reviews"

	if uri == base {
		return defaultHistoryLimit, true
	}
	if !strings.HasPrefix(uri, base+"/") {
		return 0, false
	}

	n, err := strconv.Atoi(strings.TrimPrefix(uri, base+"/"))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
