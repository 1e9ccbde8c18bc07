package suite

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Verdict glyphs convey meaning without relying on color alone.
const (
	GlyphPass    = "✓"
	GlyphFail    = "✗"
	GlyphBlessed = "✎"
	GlyphSkipped = "○"
)

var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")
)

// styles holds the report palette. The zero value renders plain text.
type styles struct {
	header  lipgloss.Style
	pass    lipgloss.Style
	fail    lipgloss.Style
	blessed lipgloss.Style
	dim     lipgloss.Style
	label   lipgloss.Style
}

func newStyles(w io.Writer, color bool) styles {
	r := lipgloss.NewRenderer(w)
	if !color {
		plain := r.NewStyle()
		return styles{header: plain, pass: plain, fail: plain, blessed: plain, dim: plain, label: plain}
	}
	return styles{
		header:  r.NewStyle().Bold(true).Foreground(colorCyan),
		pass:    r.NewStyle().Foreground(colorGreen),
		fail:    r.NewStyle().Bold(true).Foreground(colorRed),
		blessed: r.NewStyle().Foreground(colorYellow),
		dim:     r.NewStyle().Foreground(colorDim),
		label:   r.NewStyle().Bold(true),
	}
}
