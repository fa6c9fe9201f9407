package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
)

// rawDecision mirrors the model's JSON with pointer fields so absent
// required fields can be told apart from zero values.
type rawDecision struct {
	Decision          *string       `json:"decision"`
	Confidence        *float64      `json:"confidence"`
	ComplianceSummary *string       `json:"compliance_summary"`
	KeyFindings       []string      `json:"key_findings"`
	IssuesFound       []string      `json:"issues_found"`
	Explanation       *string       `json:"explanation"`
	Citations         []rawCitation `json:"citations"`
	Recommendations   []string      `json:"recommendations"`
}

type rawCitation struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// ParseDecision parses and validates a model response against the decision schema.
//
// Validation is strict: a missing or blank summary or explanation, a missing
// confidence or one outside [0, 1], and a missing decision are all errors.
// Absent lists are treated as empty. The single leniency is the decision
// value: anything other than APPROVED, REJECTED or NEEDS_REVIEW is coerced
// to NEEDS_REVIEW with confidence capped at domain.MaxCoercedConfidence.
//
// Errors are *domain.ValidationError describing the first violated field.
func ParseDecision(content string) (*domain.Decision, error) {
	content = stripCodeFence(content)
	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start >= 0 && end > start {
		content = content[start : end+1]
	}

	var raw rawDecision
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, &domain.ValidationError{Field: "response", Reason: fmt.Sprintf("not a JSON object: %v", err)}
	}

	if raw.Decision == nil {
		return nil, &domain.ValidationError{Field: "decision", Reason: "missing"}
	}
	if raw.Confidence == nil {
		return nil, &domain.ValidationError{Field: "confidence", Reason: "missing"}
	}
	if *raw.Confidence < 0 || *raw.Confidence > 1 {
		return nil, &domain.ValidationError{
			Field:  "confidence",
			Reason: fmt.Sprintf("%g is outside [0.0, 1.0]", *raw.Confidence),
		}
	}
	if raw.ComplianceSummary == nil || strings.TrimSpace(*raw.ComplianceSummary) == "" {
		return nil, &domain.ValidationError{Field: "compliance_summary", Reason: "must not be empty"}
	}
	if raw.Explanation == nil || strings.TrimSpace(*raw.Explanation) == "" {
		return nil, &domain.ValidationError{Field: "explanation", Reason: "must not be empty"}
	}

	d := &domain.Decision{
		Verdict:           domain.Verdict(strings.TrimSpace(*raw.Decision)),
		Confidence:        *raw.Confidence,
		ComplianceSummary: strings.TrimSpace(*raw.ComplianceSummary),
		KeyFindings:       nonNil(raw.KeyFindings),
		IssuesFound:       nonNil(raw.IssuesFound),
		Explanation:       strings.TrimSpace(*raw.Explanation),
		Citations:         make([]domain.Citation, 0, len(raw.Citations)),
		Recommendations:   nonNil(raw.Recommendations),
	}
	for _, c := range raw.Citations {
		d.Citations = append(d.Citations, domain.Citation{Source: c.Source, Text: c.Text})
	}

	if !d.Verdict.IsValid() {
		d.Verdict = domain.VerdictNeedsReview
		d.Confidence = min(d.Confidence, domain.MaxCoercedConfidence)
	}
	return d, nil
}

// stripCodeFence removes a surrounding markdown code fence, if present.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	lines := strings.Split(content, "\n")
	if len(lines) < 2 {
		return strings.Trim(content, "`")
	}
	end := len(lines)
	if strings.TrimSpace(lines[end-1]) == "```" {
		end--
	}
	return strings.Join(lines[1:end], "\n")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
