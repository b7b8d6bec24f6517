package ui

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// DefaultPalette uses the Spotify green for success.
var DefaultPalette = NewPalette("#7D56F4", "#1DB954", "#FF0000", "#FFA500", "#626262")

// Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

func (p *Palette) Title(s string) string { return p.title.Render(s) }
func (p *Palette) OK(s string) string    { return p.ok.Render(s) }
func (p *Palette) Err(s string) string   { return p.err.Render(s) }
func (p *Palette) Warn(s string) string  { return p.warn.Render(s) }
func (p *Palette) Help(s string) string  { return p.help.Render(s) }

// Header renders title between two rules as wide as the title.
func (p *Palette) Header(title string) string {
	rule := strings.Repeat("═", max(lipgloss.Width(title), 39))
	return rule + "\n" + p.Title(title) + "\n" + rule + "\n"
}

// CoverStatus renders the marker printed next to a playlist: its cover URL or a warning.
func (p *Palette) CoverStatus(url string) string {
	if url == "" {
		return p.Warn("no cover")
	}
	return p.OK("✓") + " " + url
}

// ConfigureColor turns styling off when noColor is set or the environment asks for plain output
// (NO_COLOR, CLICOLOR=0). It reports whether colors stay enabled for w.
func ConfigureColor(w io.Writer, noColor bool) bool {
	if noColor || termenv.NewOutput(w).EnvNoColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
		return false
	}
	return true
}
