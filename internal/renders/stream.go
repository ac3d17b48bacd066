package renders

import (
	"fmt"
	"os"
	"strings"

	"github.com/revuekit/revue/internal/provider"
	"golang.org/x/term"
)

// RenderStream consumes a provider stream and writes it to stdout. On a
// terminal, tokens are echoed as they arrive; otherwise the full answer is
// buffered and rendered as markdown so piped output stays readable.
func RenderStream(result provider.StreamResult) error {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		for chunk := range result.Chunks {
			fmt.Print(chunk.Content)
		}
		fmt.Println()
		return <-result.Err
	}

	var buf strings.Builder
	for chunk := range result.Chunks {
		buf.WriteString(chunk.Content)
	}
	if err := <-result.Err; err != nil {
		return err
	}
	if buf.Len() > 0 {
		fmt.Print(RenderMarkdown(buf.String()))
	}
	return nil
}
