// Package tokens provides pluggable token-size estimation for chunk sizing.
// The chunker is parameterized over an Estimator and never depends on a
// specific tokenizer.
package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Estimator returns the estimated token count of a prompt fragment.
type Estimator func(text string) int

// Heuristic estimates tokens as len/4, the usual rule of thumb for code.
// It is the default because it needs no model-specific vocabulary files.
func Heuristic(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		n = 1
	}
	return n
}

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

// Tiktoken returns an Estimator backed by the cl100k_base encoding. The
// encoding is loaded lazily and shared; loading failure falls back to the
// heuristic so chunking never breaks on a missing vocabulary.
func Tiktoken() Estimator {
	return func(text string) int {
		encOnce.Do(func() {
			enc, encErr = tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		})
		if encErr != nil || enc == nil {
			return Heuristic(text)
		}
		return len(enc.Encode(text, nil, nil))
	}
}

// ForName resolves an estimator by config name ("heuristic" or "tiktoken").
func ForName(name string) (Estimator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "heuristic", "chars":
		return Heuristic, nil
	case "tiktoken", "cl100k", "cl100k_base":
		return Tiktoken(), nil
	default:
		return nil, fmt.Errorf("tokens: unknown estimator %q", name)
	}
}
