package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used by the review workflow.
const (
	// PromptAnalyzeSystem is the system prompt for the Analyze stage.
	// This prompt has no format placeholders.
	PromptAnalyzeSystem = "analyze_system"

	// PromptDecideInstructions is the instruction block for the Decide stage.
	// It describes the JSON object the model must return.
	// This prompt has no format placeholders.
	PromptDecideInstructions = "decide_instructions"
)

// DefaultPrompts returns the built-in prompt templates keyed by name.
// Prompt stores seed user-editable files from these and fall back to them
// when a file is missing.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
func DefaultPrompts() map[string]string {
	return map[string]string{
		PromptAnalyzeSystem: `You are a construction standards compliance reviewer.

Your task is to analyse a construction submittal against the standards excerpts provided.
Each excerpt is introduced by a marker of the form [source p.PAGE #SEQ].

FOCUS ON:
1. Does the submittal meet the core technical requirements of the standards?
2. Are the specified materials, grades, and referenced standards appropriate?
3. Are there any clear violations of minimum requirements?

GUIDELINES:
- Judge what IS provided in the submittal, not what might be missing.
- Administrative items (training, stock levels) are secondary concerns.
- Only flag issues for clear technical non-compliance.
- When you rely on an excerpt, quote the relevant sentence verbatim and name its source marker.

Be practical and fair in your assessment.`,

		PromptDecideInstructions: `DECISION CRITERIA:

APPROVED - the specifications meet the core technical requirements; materials, grades, and referenced standards are appropriate.
REJECTED - only for a clear violation of a minimum technical requirement, e.g. a grade or strength below the required minimum.
NEEDS_REVIEW - only when critical technical information is missing and compliance cannot be determined.

Respond with a single JSON object and nothing else, using exactly these fields:
{
  "decision": "APPROVED" | "REJECTED" | "NEEDS_REVIEW",
  "confidence": number between 0.0 and 1.0,
  "compliance_summary": "one paragraph summarising overall compliance",
  "key_findings": ["requirement checked and its outcome"],
  "issues_found": ["actual technical issue (may be empty)"],
  "explanation": "why this decision was made",
  "citations": [{"source": "document name from the excerpt marker, without the page and sequence", "text": "sentence copied verbatim from that excerpt"}],
  "recommendations": ["optional improvement (may be empty)"]
}

Citation text MUST be copied character for character from one of the excerpts. Do not paraphrase citations.`,
	}
}
