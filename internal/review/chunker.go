package review

import (
	"strings"

	"github.com/revuekit/revue/internal/diffparse"
	"github.com/revuekit/revue/internal/tokens"
)

// Chunk is one reviewable unit sent to the model: a set of whole files, or a
// slice of one large file's hunks. Chunks also answer line-anchor queries for
// the response parser, so a finding can be checked against what the model was
// actually shown.
type Chunk struct {
	// Index is the chunk's position in the run, dense from 0.
	Index int

	// Files are the file changes in this chunk, in original diff order. A
	// file split across chunks appears in several of them with disjoint
	// hunk subsets.
	Files []diffparse.FileChange

	// Tokens is the estimated prompt cost of the chunk's diff text.
	Tokens int
}

// HasLine reports whether path/line is visible in this chunk, i.e. the line
// number appears on an added or context row of one of its hunks.
func (c Chunk) HasLine(path string, line int) bool {
	for _, fc := range c.Files {
		if fc.Path != path {
			continue
		}
		if fc.HasNewLine(line) {
			return true
		}
	}
	return false
}

// Paths returns the distinct file paths in the chunk, in order.
func (c Chunk) Paths() []string {
	var out []string
	seen := map[string]bool{}
	for _, fc := range c.Files {
		if !seen[fc.Path] {
			seen[fc.Path] = true
			out = append(out, fc.Path)
		}
	}
	return out
}

// Render produces the diff text of the chunk as shown to the model, with
// at most contextLines unchanged lines kept around each change
// (contextLines <= 0 keeps everything the patch carries).
func (c Chunk) Render(contextLines int) string {
	var sb strings.Builder
	for i, fc := range c.Files {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fc.FormatContext(contextLines))
	}
	return sb.String()
}

// ChunkDiff splits a diff into chunks that fit within the token budget.
//
// The packing is deterministic and preserves the original file order: files
// are placed greedily into the current chunk until the budget would be
// exceeded, then a new chunk starts. A file too large for any chunk on its
// own is split at hunk boundaries; hunks are never split, so a single hunk
// above the budget still travels whole in its own chunk. Every hunk of the
// input appears in exactly one chunk.
func ChunkDiff(d *diffparse.Diff, budget int, est tokens.Estimator) []Chunk {
	if d == nil || d.Empty() {
		return nil
	}
	if est == nil {
		est = tokens.Heuristic
	}
	if budget <= 0 {
		budget = DefaultRunConfig().ChunkTokens
	}

	var chunks []Chunk
	var cur Chunk

	flush := func() {
		if len(cur.Files) > 0 {
			cur.Index = len(chunks)
			chunks = append(chunks, cur)
			cur = Chunk{}
		}
	}

	for _, fc := range d.Files() {
		cost := est(fc.Format())

		if cost > budget {
			// Oversize file: close the open chunk, then emit the file as a
			// run of hunk-boundary slices.
			flush()
			for _, part := range splitFileByHunks(fc, budget, est) {
				cur = Chunk{Files: []diffparse.FileChange{part}, Tokens: est(part.Format())}
				flush()
			}
			continue
		}

		if cur.Tokens+cost > budget {
			flush()
		}
		cur.Files = append(cur.Files, fc)
		cur.Tokens += cost
	}
	flush()

	return chunks
}

// splitFileByHunks slices one file change into pieces whose hunk subsets fit
// the budget. Each piece keeps the file's metadata so anchor checks and
// prompt headers still work.
func splitFileByHunks(fc diffparse.FileChange, budget int, est tokens.Estimator) []diffparse.FileChange {
	headerCost := est(fileHeaderOnly(fc))

	var parts []diffparse.FileChange
	var hunks []diffparse.Hunk
	cost := headerCost

	flush := func() {
		if len(hunks) > 0 {
			part := fc
			part.Hunks = hunks
			parts = append(parts, part)
			hunks = nil
			cost = headerCost
		}
	}

	for _, h := range fc.Hunks {
		hc := est(h.Format())
		// An oversize hunk still goes whole; it just rides alone.
		if len(hunks) > 0 && cost+hc > budget {
			flush()
		}
		hunks = append(hunks, h)
		cost += hc
	}
	flush()

	return parts
}

func fileHeaderOnly(fc diffparse.FileChange) string {
	stripped := fc
	stripped.Hunks = nil
	return stripped.Format()
}
