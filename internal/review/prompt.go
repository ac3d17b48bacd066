package review

import (
	"fmt"
	"strings"

	"github.com/revuekit/revue/internal/core"
)

// SystemPrompt is the fixed system message sent with every chunk.
const SystemPrompt = "You are an expert code reviewer. You review pull request diffs " +
	"and report concrete, actionable findings. You only comment on lines shown in the diff."

// PromptMeta carries the pull-request context shared by every chunk prompt.
type PromptMeta struct {
	Title       string
	Description string
	SourceRef   string
	TargetRef   string
	Guidelines  string

	// ChunkCount lets the model know it sees a part of a larger change.
	ChunkCount int

	// MaxFindings caps the findings requested per chunk (0 = unlimited).
	MaxFindings int

	// ContextLines caps the unchanged lines rendered around each change
	// (0 = show whatever the patch carries).
	ContextLines int
}

// BuildChunkPrompt renders the user message for one chunk. The output
// contract section comes from core.OutputInstructions so the instructions
// and the parser stay in lockstep.
func BuildChunkPrompt(chunk Chunk, meta PromptMeta) string {
	var sb strings.Builder

	sb.WriteString("Review the following pull request diff.\n\n")

	if meta.Title != "" {
		sb.WriteString(fmt.Sprintf("## Pull Request: %s\n", meta.Title))
		if meta.SourceRef != "" && meta.TargetRef != "" {
			sb.WriteString(fmt.Sprintf("Branch: %s → %s\n", meta.SourceRef, meta.TargetRef))
		}
		sb.WriteString("\n")
	}

	if desc := strings.TrimSpace(meta.Description); desc != "" {
		sb.WriteString("## Description\n")
		sb.WriteString(truncate(desc, 2000))
		sb.WriteString("\n\n")
	}

	if meta.ChunkCount > 1 {
		sb.WriteString(fmt.Sprintf(
			"This is part %d of %d of the full diff. Review only what is shown here.\n\n",
			chunk.Index+1, meta.ChunkCount))
	}

	sb.WriteString("## Diff\n")
	sb.WriteString("Line numbers printed at the start of each line are new-file line numbers; ")
	sb.WriteString("deleted lines have no number.\n\n")
	sb.WriteString(chunk.Render(meta.ContextLines))
	sb.WriteString("\n")

	if g := strings.TrimSpace(meta.Guidelines); g != "" {
		sb.WriteString("\n## Reviewer Guidelines\n")
		sb.WriteString(g)
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(core.OutputInstructions(meta.MaxFindings))

	return sb.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n... (truncated)"
}
