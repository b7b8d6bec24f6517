// Package ui styles terminal output for the coverx CLI with lipgloss.
//
// A [Palette] holds the title, success, error, warning and help styles. Commands render headers
// with [Palette.Header] and per-playlist cover markers with [Palette.CoverStatus]; everything else
// is plain text so that piped output stays readable.
package ui
