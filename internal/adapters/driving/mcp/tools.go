package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/submittal-review/internal/adapters/driving/boundary"
	"github.com/custodia-labs/submittal-review/internal/core/domain"
)

// ReviewInput is the input schema for the review_submittal tool.
type ReviewInput struct {
	Type           string `json:"type" jsonschema:"submittal category, for example Concrete or Structural Steel"`
	Description    string `json:"description" jsonschema:"what is being submitted"`
	Specifications string `json:"specifications" jsonschema:"the technical specifications claimed by the submittal"`
}

// ReviewOutput is the output schema for the review_submittal tool.
type ReviewOutput struct {
	ReviewID          string            `json:"review_id"`
	Decision          string            `json:"decision"`
	Confidence        float64           `json:"confidence"`
	ComplianceSummary string            `json:"compliance_summary"`
	KeyFindings       []string          `json:"key_findings"`
	IssuesFound       []string          `json:"issues_found"`
	Explanation       string            `json:"explanation"`
	Citations         []domain.Citation `json:"citations"`
	Recommendations   []string          `json:"recommendations"`
	Analysis          string            `json:"analysis"`
}

// StatusInput is the (empty) input schema for the knowledge_status tool.
type StatusInput struct{}

// StatusOutput is the output schema for the knowledge_status tool.
type StatusOutput struct {
	Ready         bool   `json:"ready"`
	Building      bool   `json:"building"`
	ChunkCount    int    `json:"chunks_count"`
	DocumentCount int    `json:"documents_count"`
	Model         string `json:"embedding_model,omitempty"`
	Fingerprint   string `json:"fingerprint,omitempty"`
	LastError     string `json:"last_error,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "review_submittal",
		Description: "Review a construction submittal against the indexed standards and return a cited decision",
	}, s.handleReview)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "knowledge_status",
		Description: "Report whether the standards knowledge base is ready and how many chunks it holds",
	}, s.handleStatus)
}

// handleReview handles the review_submittal tool invocation.
// Failures are reported as tool errors carrying the boundary code and stage.
func (s *Server) handleReview(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ReviewInput,
) (*mcp.CallToolResult, ReviewOutput, error) {
	result, err := s.ports.Review.Review(ctx, domain.SubmittalRequest{
		Type:           input.Type,
		Description:    input.Description,
		Specifications: input.Specifications,
	})
	if err != nil {
		return nil, ReviewOutput{}, toolError(err)
	}

	d := result.Decision
	return nil, ReviewOutput{
		ReviewID:          result.ReviewID,
		Decision:          d.Verdict.String(),
		Confidence:        d.Confidence,
		ComplianceSummary: d.ComplianceSummary,
		KeyFindings:       d.KeyFindings,
		IssuesFound:       d.IssuesFound,
		Explanation:       d.Explanation,
		Citations:         d.Citations,
		Recommendations:   d.Recommendations,
		Analysis:          result.Analysis,
	}, nil
}

// handleStatus handles the knowledge_status tool invocation.
func (s *Server) handleStatus(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	st := s.ports.Knowledge.Status()
	return nil, StatusOutput{
		Ready:         st.Ready,
		Building:      st.Building,
		ChunkCount:    st.ChunkCount,
		DocumentCount: st.DocumentCount,
		Model:         st.Model,
		Fingerprint:   st.Fingerprint,
		LastError:     st.LastError,
	}, nil
}

// toolError renders a review failure for the assistant.
func toolError(err error) error {
	f := boundary.Classify(err)
	msg := f.Code + ": " + f.Message
	if f.Stage != "" {
		msg += " (stage " + f.Stage + ")"
	}
	return errors.New(msg)
}
