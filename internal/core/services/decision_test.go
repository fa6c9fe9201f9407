package services

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
)

const validDecisionJSON = `{
  "decision": "APPROVED",
  "confidence": 0.86,
  "compliance_summary": "The concrete grade meets the structural minimum.",
  "key_findings": ["C40/50 exceeds the C32/40 minimum"],
  "issues_found": [],
  "explanation": "Specified grade and strength satisfy the standard.",
  "citations": [{"source": "concrete.txt", "text": "Minimum grade C32/40"}],
  "recommendations": ["Submit cube test results"]
}`

func TestParseDecision_Valid(t *testing.T) {
	d, err := ParseDecision(validDecisionJSON)
	require.NoError(t, err)

	assert.Equal(t, domain.VerdictApproved, d.Verdict)
	assert.Equal(t, 0.86, d.Confidence)
	assert.Equal(t, []string{"C40/50 exceeds the C32/40 minimum"}, d.KeyFindings)
	assert.Empty(t, d.IssuesFound)
	assert.NotNil(t, d.IssuesFound)
	require.Len(t, d.Citations, 1)
	assert.Equal(t, "concrete.txt", d.Citations[0].Source)
}

func TestParseDecision_CodeFenceAndProse(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"json fence", "```json\n" + validDecisionJSON + "\n```"},
		{"bare fence", "```\n" + validDecisionJSON + "\n```"},
		{"leading prose", "Here is my decision:\n" + validDecisionJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDecision(tt.content)
			require.NoError(t, err)
			assert.Equal(t, domain.VerdictApproved, d.Verdict)
		})
	}
}

func TestParseDecision_CoercesUnknownVerdict(t *testing.T) {
	tests := []struct {
		name       string
		verdict    string
		confidence float64
		want       float64
	}{
		{"unknown value high confidence", "CONDITIONALLY_APPROVED", 0.9, 0.5},
		{"lowercase", "approved", 0.7, 0.5},
		{"empty", "", 0.2, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := `{"decision": "` + tt.verdict + `", "confidence": ` +
				formatFloat(tt.confidence) +
				`, "compliance_summary": "s", "explanation": "e"}`
			d, err := ParseDecision(content)
			require.NoError(t, err)
			assert.Equal(t, domain.VerdictNeedsReview, d.Verdict)
			assert.Equal(t, tt.want, d.Confidence)
			assert.LessOrEqual(t, d.Confidence, domain.MaxCoercedConfidence)
		})
	}
}

func TestParseDecision_KeepsValidVerdicts(t *testing.T) {
	for _, v := range []domain.Verdict{domain.VerdictApproved, domain.VerdictRejected, domain.VerdictNeedsReview} {
		content := `{"decision": " ` + string(v) + ` ", "confidence": 0.9, "compliance_summary": "s", "explanation": "e"}`
		d, err := ParseDecision(content)
		require.NoError(t, err)
		assert.Equal(t, v, d.Verdict)
		assert.Equal(t, 0.9, d.Confidence)
	}
}

func TestParseDecision_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"not json", "I think it is approved.", "response"},
		{"object inside array", `[{"decision": "APPROVED"}]`, "confidence"},
		{"missing decision", `{"confidence": 0.5, "compliance_summary": "s", "explanation": "e"}`, "decision"},
		{"missing confidence", `{"decision": "APPROVED", "compliance_summary": "s", "explanation": "e"}`, "confidence"},
		{"confidence above one", `{"decision": "APPROVED", "confidence": 1.2, "compliance_summary": "s", "explanation": "e"}`, "confidence"},
		{"negative confidence", `{"decision": "APPROVED", "confidence": -0.1, "compliance_summary": "s", "explanation": "e"}`, "confidence"},
		{"confidence as string", `{"decision": "APPROVED", "confidence": "high", "compliance_summary": "s", "explanation": "e"}`, "response"},
		{"blank summary", `{"decision": "APPROVED", "confidence": 0.5, "compliance_summary": "  ", "explanation": "e"}`, "compliance_summary"},
		{"missing explanation", `{"decision": "APPROVED", "confidence": 0.5, "compliance_summary": "s"}`, "explanation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDecision(tt.content)
			require.Error(t, err)
			assert.Nil(t, d)

			var vErr *domain.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("  {\"a\":1}  "))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```{\"a\":1}```"))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
