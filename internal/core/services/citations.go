package services

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
	"github.com/custodia-labs/submittal-review/internal/logger"
)

// FormatCitations maps model citations back to verbatim text of retrieved chunks.
//
// A citation is kept only if its text occurs in a retrieved chunk of the
// named source. Exact substrings match first; otherwise a match tolerant of
// whitespace differences recovers the verbatim span from the chunk. Anything
// else is dropped, never invented. Results keep model order, deduplicated by
// source and text, and carry the page and retrieval score of the matched chunk.
func FormatCitations(cited []domain.Citation, retrieved []domain.ScoredChunk) []domain.Citation {
	out := make([]domain.Citation, 0, len(cited))
	seen := make(map[string]bool, len(cited))

	for _, c := range cited {
		source := citedSource(c.Source)
		text := strings.TrimSpace(c.Text)
		if source == "" || text == "" {
			continue
		}

		match, ok := matchCitation(source, text, retrieved)
		if !ok {
			logger.Debug("Dropping unmatched citation from %q: %.60q", source, text)
			continue
		}

		key := match.Source + "\x00" + match.Text
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, match)
	}
	return out
}

func matchCitation(source, text string, retrieved []domain.ScoredChunk) (domain.Citation, bool) {
	var flexible *regexp.Regexp

	for _, hit := range retrieved {
		if !sameSource(source, hit.Chunk) {
			continue
		}
		if strings.Contains(hit.Chunk.Text, text) {
			return citationFrom(hit, text), true
		}

		if flexible == nil {
			flexible = whitespaceFlexible(text)
		}
		if span := flexible.FindString(hit.Chunk.Text); span != "" {
			return citationFrom(hit, span), true
		}
	}
	return domain.Citation{}, false
}

// citedSource strips the brackets of an excerpt marker copied verbatim.
func citedSource(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	return strings.TrimSpace(s)
}

// sameSource accepts the bare document ID, the chunk's full marker, or the
// document ID followed by any page suffix.
func sameSource(source string, c domain.Chunk) bool {
	return source == c.DocumentID ||
		source == c.Ref() ||
		strings.HasPrefix(source, c.DocumentID+" p.")
}

func citationFrom(hit domain.ScoredChunk, text string) domain.Citation {
	return domain.Citation{
		Source:    hit.Chunk.DocumentID,
		Text:      text,
		Page:      hit.Chunk.Page,
		Relevance: hit.Score,
	}
}

// whitespaceFlexible matches text with any run of whitespace between words.
func whitespaceFlexible(text string) *regexp.Regexp {
	fields := strings.Fields(text)
	for i, f := range fields {
		fields[i] = regexp.QuoteMeta(f)
	}
	return regexp.MustCompile(strings.Join(fields, `\s+`))
}
