// Package renders turns pipeline output into terminal-friendly text:
// markdown rendering with ANSI styling and progressive display of streamed
// model responses.
package renders

import (
	"os"

	markdown "github.com/MichaelMure/go-term-markdown"
	"golang.org/x/term"
)

const defaultWidth = 100

// RenderMarkdown renders markdown for terminal display, sized to the
// terminal width when stdout is a TTY.
func RenderMarkdown(content string) string {
	if content == "" {
		return ""
	}

	width := defaultWidth
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
		width = w
	}

	return string(markdown.Render(content, width, 0))
}
