package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
	"github.com/custodia-labs/submittal-review/internal/core/ports/driven"
	"github.com/custodia-labs/submittal-review/internal/logger"
)

const noContext = "No relevant standards were found in the knowledge base."

// loadPrompt returns the named prompt from store, falling back to the built-in default.
func loadPrompt(store driven.PromptStore, name string) string {
	if store != nil {
		prompt, err := store.Load(name)
		if err == nil && strings.TrimSpace(prompt) != "" {
			return prompt
		}
		if err != nil {
			logger.Warn("Failed to load prompt %q, using default: %v", name, err)
		}
	}
	return driven.DefaultPrompts()[name]
}

// writeSubmittal renders the submittal fields.
func writeSubmittal(b *strings.Builder, req domain.SubmittalRequest) {
	b.WriteString("## Submittal\n")
	fmt.Fprintf(b, "- Type: %s\n", strings.TrimSpace(req.Type))
	fmt.Fprintf(b, "- Description: %s\n", strings.TrimSpace(req.Description))
	fmt.Fprintf(b, "- Specifications: %s\n", strings.TrimSpace(req.Specifications))
}

// writeExcerpts renders retrieved chunks, each introduced by its provenance marker.
func writeExcerpts(b *strings.Builder, retrieved []domain.ScoredChunk) {
	b.WriteString("\n## Standards Excerpts\n")
	if len(retrieved) == 0 {
		b.WriteString(noContext + "\n")
		return
	}
	for _, hit := range retrieved {
		fmt.Fprintf(b, "\n[%s]\n%s\n", hit.Chunk.Ref(), strings.TrimSpace(hit.Chunk.Text))
	}
}

// analyzePrompt builds the Analyze stage user message.
func analyzePrompt(req domain.SubmittalRequest, retrieved []domain.ScoredChunk) string {
	var b strings.Builder
	writeSubmittal(&b, req)
	writeExcerpts(&b, retrieved)
	b.WriteString(`
Analyse this submittal for compliance with the technical requirements above:
1. Do the specifications meet the minimum requirements?
2. Are there any clear technical violations?
3. Which standards sections apply? Quote them verbatim with their source.`)
	return b.String()
}

// decidePrompt builds the Decide stage user message.
func decidePrompt(instructions string, req domain.SubmittalRequest, analysis string, retrieved []domain.ScoredChunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Make a decision for this %s submittal based on the compliance analysis.\n\n",
		strings.TrimSpace(req.Type))
	writeSubmittal(&b, req)
	b.WriteString("\n## Analysis\n")
	b.WriteString(strings.TrimSpace(analysis))
	b.WriteString("\n")
	writeExcerpts(&b, retrieved)
	b.WriteString("\n")
	b.WriteString(instructions)
	return b.String()
}

// repairPrompt asks the model to correct an invalid decision.
func repairPrompt(err error) string {
	return fmt.Sprintf("Your previous response was rejected: %v.\n"+
		"Respond again with only the corrected JSON object, following the required fields exactly.", err)
}
