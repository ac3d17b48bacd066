package review

import (
	"fmt"
	"strings"

	"github.com/revuekit/revue/internal/core"
)

// RenderSummaryComment formats the run report as the top-level comment
// posted on the pull request: a findings table plus completeness counters.
func RenderSummaryComment(r *RunReport) string {
	var sb strings.Builder

	sb.WriteString("## Automated Review Summary\n\n")

	if r.SkipReason != "" {
		sb.WriteString(r.SkipReason)
		sb.WriteString("\n")
		return sb.String()
	}

	if len(r.Comments) == 0 {
		sb.WriteString("No issues found.\n\n")
	} else {
		sb.WriteString("| File | Line | Severity | Finding |\n")
		sb.WriteString("|------|------|----------|---------|\n")
		for _, c := range r.Comments {
			sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s |\n",
				c.Path, c.Line, c.Severity, firstLine(c.Body)))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("**Chunks**: %d/%d succeeded", r.ChunksSucceeded(), len(r.Chunks)))
	sb.WriteString(fmt.Sprintf(" · **Findings**: %d (%d dropped)", r.Findings, r.Dropped))
	sb.WriteString(fmt.Sprintf(" · **Comments**: %d\n", len(r.Comments)))

	if r.ChunksFailed() > 0 {
		sb.WriteString(fmt.Sprintf("\n⚠ %d chunk(s) could not be reviewed; this review may be incomplete.\n",
			r.ChunksFailed()))
	}

	return sb.String()
}

// RenderRunReport formats the run report for terminal display.
func RenderRunReport(r *RunReport) string {
	var sb strings.Builder

	title := r.Title
	if title == "" {
		title = fmt.Sprintf("%s#%d", r.Repo, r.Number)
	}
	sb.WriteString(fmt.Sprintf("# Review: %s\n\n", title))
	if r.WebURL != "" {
		sb.WriteString(fmt.Sprintf("%s\n\n", r.WebURL))
	}

	if r.SkipReason != "" {
		sb.WriteString(fmt.Sprintf("**%s**\n", r.SkipReason))
		return sb.String()
	}

	// Findings, grouped in publish order (already sorted by path, line).
	if len(r.Comments) == 0 {
		sb.WriteString("No issues found.\n\n")
	} else {
		var lastPath string
		for _, c := range r.Comments {
			if c.Path != lastPath {
				sb.WriteString(fmt.Sprintf("### %s\n\n", c.Path))
				lastPath = c.Path
			}
			sb.WriteString(fmt.Sprintf("**line %d** [%s]\n\n%s\n\n", c.Line, c.Severity, c.Body))
		}
	}

	sb.WriteString("## Run Summary\n\n")
	sb.WriteString(fmt.Sprintf("- State: %s\n", r.State))
	sb.WriteString(fmt.Sprintf("- Chunks: %d/%d succeeded\n", r.ChunksSucceeded(), len(r.Chunks)))
	sb.WriteString(fmt.Sprintf("- Findings: %d produced, %d dropped\n", r.Findings, r.Dropped))
	if len(r.Published) > 0 {
		sb.WriteString(fmt.Sprintf("- Comments: %d published, %d failed\n", r.PublishedOK(), r.PublishFailed()))
	} else {
		sb.WriteString(fmt.Sprintf("- Comments: %d\n", len(r.Comments)))
	}
	for _, url := range r.IssueURLs {
		sb.WriteString(fmt.Sprintf("- Issue created: %s\n", url))
	}

	if len(r.Warnings) > 0 {
		sb.WriteString("\n## Warnings\n\n")
		for _, w := range r.Warnings {
			sb.WriteString(fmt.Sprintf("- %s\n", w))
		}
	}
	for _, c := range r.Chunks {
		if c.Err != nil {
			sb.WriteString(fmt.Sprintf("- chunk %d failed: %v\n", c.Index, c.Err))
		}
	}
	for _, p := range r.Published {
		if p.Err != nil {
			sb.WriteString(fmt.Sprintf("- publish %s:%d failed: %v\n", p.Comment.Path, p.Comment.Line, p.Err))
		}
	}

	return sb.String()
}

// SeverityBreakdown counts comments per severity label.
func SeverityBreakdown(comments []core.ReviewComment) string {
	counts := map[core.Severity]int{}
	for _, c := range comments {
		counts[c.Severity]++
	}
	var parts []string
	for _, sev := range []core.Severity{core.SeverityBlocking, core.SeverityWarning, core.SeveritySuggestion, core.SeverityInfo} {
		if n := counts[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, sev))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, "|", "\\|")
	if len(s) > 120 {
		s = s[:120] + "…"
	}
	return s
}
