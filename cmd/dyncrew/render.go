package main

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

const maxWrapWidth = 120

// renderMarkdown styles agent output for the terminal. Output that fails to
// render is returned unchanged.
func renderMarkdown(text string, width int) string {
	if width <= 0 || width > maxWrapWidth {
		width = maxWrapWidth
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}
