package review

import (
	"strings"
	"testing"

	"github.com/revuekit/revue/internal/diffparse"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildChunkPrompt(t *testing.T) {
	chunk := Chunk{Index: 0, Files: []diffparse.FileChange{fileWithHunks("a.go", 3)}}
	meta := PromptMeta{
		Title:       "Add retry logic",
		Description: "Adds exponential backoff to the client.",
		SourceRef:   "feature/retry",
		TargetRef:   "main",
		ChunkCount:  1,
		MaxFindings: 5,
	}

	prompt := BuildChunkPrompt(chunk, meta)

	assert.Contains(t, prompt, "## Pull Request: Add retry logic")
	assert.Contains(t, prompt, "feature/retry → main")
	assert.Contains(t, prompt, "Adds exponential backoff")
	assert.Contains(t, prompt, "## Diff")
	assert.Contains(t, prompt, "### File: a.go")
	assert.Contains(t, prompt, "## Output Format")
	assert.Contains(t, prompt, "at most 5 findings")
	assert.NotContains(t, prompt, "part 1 of 1")
}

func TestBuildChunkPrompt_MultiChunkHeader(t *testing.T) {
	chunk := Chunk{Index: 2, Files: []diffparse.FileChange{fileWithHunks("a.go", 3)}}
	meta := PromptMeta{Title: "Big change", ChunkCount: 4}

	prompt := BuildChunkPrompt(chunk, meta)
	assert.Contains(t, prompt, "part 3 of 4")
}

func TestBuildChunkPrompt_GuidelinesAppended(t *testing.T) {
	chunk := Chunk{Files: []diffparse.FileChange{fileWithHunks("a.go", 3)}}
	meta := PromptMeta{Guidelines: "Flag any SQL built by string concatenation."}

	prompt := BuildChunkPrompt(chunk, meta)
	assert.Contains(t, prompt, "## Reviewer Guidelines")
	assert.Contains(t, prompt, "SQL built by string concatenation")
}

func TestBuildChunkPrompt_LongDescriptionTruncated(t *testing.T) {
	chunk := Chunk{Files: []diffparse.FileChange{fileWithHunks("a.go", 3)}}
	meta := PromptMeta{
		Title:       "Huge PR",
		Description: strings.Repeat("very long description ", 300),
	}

	prompt := BuildChunkPrompt(chunk, meta)
	assert.Contains(t, prompt, "(truncated)")
}

func TestBuildChunkPrompt_ContextLinesBoundRenderedDiff(t *testing.T) {
	fc := diffparse.FileChange{
		Path: "a.go",
		Hunks: []diffparse.Hunk{{
			NewStart: 1, NewLines: 7, OldStart: 1, OldLines: 6,
			Lines: []diffparse.DiffLine{
				{Type: diffparse.LineContext, Content: "far above", OldLineNo: 1, NewLineNo: 1},
				{Type: diffparse.LineContext, Content: "above", OldLineNo: 2, NewLineNo: 2},
				{Type: diffparse.LineContext, Content: "near above", OldLineNo: 3, NewLineNo: 3},
				{Type: diffparse.LineAdded, Content: "changed", NewLineNo: 4},
				{Type: diffparse.LineContext, Content: "near below", OldLineNo: 4, NewLineNo: 5},
				{Type: diffparse.LineContext, Content: "below", OldLineNo: 5, NewLineNo: 6},
				{Type: diffparse.LineContext, Content: "far below", OldLineNo: 6, NewLineNo: 7},
			},
		}},
	}
	chunk := Chunk{Files: []diffparse.FileChange{fc}}

	prompt := BuildChunkPrompt(chunk, PromptMeta{ContextLines: 1})
	assert.Contains(t, prompt, "4 +changed")
	assert.Contains(t, prompt, "near above")
	assert.Contains(t, prompt, "near below")
	assert.NotContains(t, prompt, "far above")
	assert.NotContains(t, prompt, "far below")

	// Zero means no bound: everything the patch carries is shown.
	prompt = BuildChunkPrompt(chunk, PromptMeta{})
	assert.Contains(t, prompt, "far above")
	assert.Contains(t, prompt, "far below")
}

func TestSystemPromptMentionsDiffScope(t *testing.T) {
	require.Contains(t, SystemPrompt, "diff")
}
