// Package render prints review results, knowledge base status and review
// history for terminals. Colour is used only when writing to a terminal
// and NO_COLOR is unset.
package render

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/custodia-labs/submittal-review/internal/adapters/driving/boundary"
	"github.com/custodia-labs/submittal-review/internal/core/domain"
)

// quoteWidth wraps citation excerpts.
const quoteWidth = 88

// Renderer writes formatted output to w.
type Renderer struct {
	w      io.Writer
	styles *styles
}

// New creates a renderer for w, enabling colour when w is a terminal.
func New(w io.Writer) *Renderer {
	return NewWithColour(w, IsTerminal(w) && os.Getenv("NO_COLOR") == "")
}

// NewWithColour creates a renderer with colour explicitly on or off.
func NewWithColour(w io.Writer, colour bool) *Renderer {
	return &Renderer{
		w:      w,
		styles: newStyles(lipgloss.NewRenderer(w), DefaultTheme(), colour),
	}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (r *Renderer) printf(format string, args ...any) {
	fmt.Fprintf(r.w, format, args...)
}

// Review prints a completed review.
func (r *Renderer) Review(result *domain.ReviewResult) {
	s := r.styles
	d := result.Decision

	r.printf("%s  %s\n",
		s.verdict(d.Verdict).Render(d.Verdict.String()),
		s.Muted.Render(fmt.Sprintf("confidence %.0f%%", d.Confidence*100)))
	r.printf("%s\n\n", s.Muted.Render("review "+result.ReviewID))

	if d.ComplianceSummary != "" {
		r.printf("%s\n%s\n\n", s.Title.Render("Summary"), d.ComplianceSummary)
	}
	if d.Explanation != "" {
		r.printf("%s\n%s\n\n", s.Title.Render("Explanation"), d.Explanation)
	}
	r.list("Key findings", d.KeyFindings)
	r.list("Issues", d.IssuesFound)
	r.list("Recommendations", d.Recommendations)

	if len(d.Citations) > 0 {
		r.printf("%s\n", s.Title.Render("Citations"))
		for i, c := range d.Citations {
			ref := c.Source
			if c.Page > 0 {
				ref = fmt.Sprintf("%s p.%d", c.Source, c.Page)
			}
			if c.Relevance > 0 {
				ref += s.Muted.Render(fmt.Sprintf("  relevance %.2f", c.Relevance))
			}
			r.printf("[%d] %s\n%s\n", i+1, s.Label.Render(ref), s.Quote.Render(wrap(c.Text, quoteWidth)))
		}
		r.printf("\n")
	}

	t := result.Timing
	r.printf("%s\n", s.Muted.Render(fmt.Sprintf(
		"retrieve %dms · analyze %dms · decide %dms · total %dms",
		t.RetrieveMs, t.AnalyzeMs, t.DecideMs, t.TotalMs)))
}

func (r *Renderer) list(title string, items []string) {
	if len(items) == 0 {
		return
	}
	r.printf("%s\n", r.styles.Title.Render(title))
	for _, item := range items {
		r.printf("  - %s\n", item)
	}
	r.printf("\n")
}

// Failure prints a review failure with its code and stage.
func (r *Renderer) Failure(err error) {
	f := boundary.Classify(err)
	line := r.styles.Error.Render("FAILED") + "  " + f.Code
	if f.Stage != "" {
		line += r.styles.Muted.Render(" at " + f.Stage)
	}
	r.printf("%s\n%s\n", line, f.Message)
}

// Status prints knowledge base status.
func (r *Renderer) Status(st domain.KnowledgeStatus) {
	s := r.styles

	state := s.Warning.Render("not ready")
	switch {
	case st.Ready:
		state = s.Success.Render("ready")
	case st.Building:
		state = s.Warning.Render("building")
	}

	r.printf("%s %s\n", s.Label.Render("Knowledge base:"), state)
	r.printf("  Documents:   %d\n", st.DocumentCount)
	r.printf("  Chunks:      %d\n", st.ChunkCount)
	if st.Model != "" {
		r.printf("  Model:       %s (%d dims)\n", st.Model, st.Dimension)
	}
	if st.Fingerprint != "" {
		r.printf("  Fingerprint: %s\n", st.Fingerprint)
	}
	if !st.BuiltAt.IsZero() {
		r.printf("  Built:       %s\n", st.BuiltAt.Local().Format(time.RFC3339))
	}
	if st.LastError != "" {
		r.printf("  %s %s\n", s.Error.Render("Last error:"), st.LastError)
	}
}

// History prints audit records, newest first.
func (r *Renderer) History(records []domain.ReviewRecord) {
	if len(records) == 0 {
		r.printf("No reviews recorded.\n")
		return
	}

	s := r.styles
	for _, rec := range records {
		outcome := s.Error.Render("FAILED")
		detail := "at " + rec.FailedAt.String()
		if rec.Stage == domain.StageDone {
			outcome = s.verdict(rec.Verdict).Render(rec.Verdict.String())
			detail = fmt.Sprintf("%.0f%%, %d citations", rec.Confidence*100, rec.Citations)
		}
		r.printf("%s  %s  %s  %s\n",
			s.Muted.Render(rec.CompletedAt.Local().Format("2006-01-02 15:04")),
			outcome,
			rec.Request.Type,
			s.Muted.Render(detail))
		if rec.Error != "" {
			r.printf("    %s\n", rec.Error)
		}
	}
}

// wrap breaks text at word boundaries to at most width columns.
func wrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	var b strings.Builder
	lineLen := 0
	for i, w := range words {
		if i > 0 {
			if lineLen+1+len(w) > width {
				b.WriteByte('\n')
				lineLen = 0
			} else {
				b.WriteByte(' ')
				lineLen++
			}
		}
		b.WriteString(w)
		lineLen += len(w)
	}
	return b.String()
}
