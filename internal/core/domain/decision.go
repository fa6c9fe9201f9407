package domain

// Verdict is the decision outcome.
type Verdict string

// The three decision values downstream consumers branch on.
const (
	VerdictApproved    Verdict = "APPROVED"
	VerdictRejected    Verdict = "REJECTED"
	VerdictNeedsReview Verdict = "NEEDS_REVIEW"
)

// MaxCoercedConfidence caps the confidence of a decision whose verdict
// was coerced to NEEDS_REVIEW.
const MaxCoercedConfidence = 0.5

// IsValid returns true if the verdict is one of the three allowed values.
func (v Verdict) IsValid() bool {
	switch v {
	case VerdictApproved, VerdictRejected, VerdictNeedsReview:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (v Verdict) String() string {
	return string(v)
}

// Citation is a verbatim excerpt from a retrieved chunk.
// Text is always a substring of a stored chunk belonging to Source.
type Citation struct {
	Source    string  `json:"source"`
	Text      string  `json:"text"`
	Page      int     `json:"page,omitempty"`
	Relevance float64 `json:"relevance,omitempty"`
}

// Decision is the structured verdict for one submittal.
type Decision struct {
	Verdict           Verdict    `json:"decision"`
	Confidence        float64    `json:"confidence"`
	ComplianceSummary string     `json:"compliance_summary"`
	KeyFindings       []string   `json:"key_findings"`
	IssuesFound       []string   `json:"issues_found"`
	Explanation       string     `json:"explanation"`
	Citations         []Citation `json:"citations"`
	Recommendations   []string   `json:"recommendations"`
}
