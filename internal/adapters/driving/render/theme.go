package render

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
)

// Theme defines the colour palette for terminal output.
type Theme struct {
	Primary lipgloss.Color
	Muted   lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Border  lipgloss.Color
}

// DefaultTheme returns the default colour theme.
func DefaultTheme() *Theme {
	return &Theme{
		Primary: lipgloss.Color("#7C3AED"), // Purple
		Muted:   lipgloss.Color("#6C7086"), // Medium gray
		Success: lipgloss.Color("#A6E3A1"), // Green
		Warning: lipgloss.Color("#F9E2AF"), // Yellow
		Error:   lipgloss.Color("#F38BA8"), // Red
		Border:  lipgloss.Color("#45475A"), // Border gray
	}
}

// styles contains pre-configured lipgloss styles.
type styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Quote   lipgloss.Style
}

// newStyles builds styles bound to r. With colour disabled every style
// is empty and renders text unchanged.
func newStyles(r *lipgloss.Renderer, theme *Theme, colour bool) *styles {
	if !colour {
		plain := r.NewStyle()
		return &styles{
			Title: plain, Label: plain, Muted: plain,
			Success: plain, Warning: plain, Error: plain, Quote: plain,
		}
	}

	return &styles{
		Title:   r.NewStyle().Bold(true).Foreground(theme.Primary),
		Label:   r.NewStyle().Bold(true),
		Muted:   r.NewStyle().Foreground(theme.Muted),
		Success: r.NewStyle().Bold(true).Foreground(theme.Success),
		Warning: r.NewStyle().Bold(true).Foreground(theme.Warning),
		Error:   r.NewStyle().Bold(true).Foreground(theme.Error),
		Quote: r.NewStyle().
			Foreground(theme.Muted).
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(theme.Border).
			PaddingLeft(1),
	}
}

// verdict picks the style for a decision.
func (s *styles) verdict(v domain.Verdict) lipgloss.Style {
	switch v {
	case domain.VerdictApproved:
		return s.Success
	case domain.VerdictRejected:
		return s.Error
	default:
		return s.Warning
	}
}
