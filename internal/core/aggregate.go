package core

import (
	"fmt"
	"sort"
	"strings"
)

// AggregateOptions tunes cross-chunk consolidation. The zero value keeps
// every severity and uses the default similarity threshold.
type AggregateOptions struct {
	// MinSeverity drops findings below this rank before merging.
	MinSeverity Severity

	// SimilarityThreshold is the token-set similarity above which two
	// findings on the same (file, line) are considered the same issue.
	// Zero means DefaultSimilarityThreshold.
	SimilarityThreshold float64

	// MaxComments caps the emitted comment count (0 = unlimited). The cap
	// keeps the most severe comments, applied after sorting.
	MaxComments int
}

// DefaultSimilarityThreshold is deliberately a tunable, not a constant of
// the algorithm: 0.6 keeps rewordings of one issue together while leaving
// genuinely distinct findings on a busy line apart.
const DefaultSimilarityThreshold = 0.6

// Aggregate merges findings from all chunks into the final, deduplicated,
// ordered comment set. Exact duplicates collapse by fingerprint (highest
// severity wins); near-duplicates on the same location merge into one
// comment whose body concatenates the distinct points. Output is sorted by
// (path, line) and is stable for a given input set, which also makes the
// function idempotent on duplicated input.
func Aggregate(findings []Finding, opts AggregateOptions) []ReviewComment {
	threshold := opts.SimilarityThreshold
	if threshold == 0 {
		threshold = DefaultSimilarityThreshold
	}

	// Exact dedupe by fingerprint.
	byPrint := make(map[string]Finding)
	var order []string
	for _, f := range findings {
		if f.Severity < opts.MinSeverity {
			continue
		}
		prev, seen := byPrint[f.Fingerprint]
		if !seen {
			byPrint[f.Fingerprint] = f
			order = append(order, f.Fingerprint)
			continue
		}
		if f.Severity > prev.Severity {
			prev.Severity = f.Severity
			byPrint[f.Fingerprint] = prev
		}
	}

	// Near-duplicate merge within each (path, line) group.
	type group struct {
		members []Finding
	}
	groups := make(map[string][]*group)
	var groupKeys []string

	for _, fp := range order {
		f := byPrint[fp]
		key := fmt.Sprintf("%s:%d", f.Path, f.Line)
		if _, ok := groups[key]; !ok {
			groupKeys = append(groupKeys, key)
		}

		merged := false
		for _, g := range groups[key] {
			if similarity(f.Body, g.members[0].Body) >= threshold {
				g.members = append(g.members, f)
				merged = true
				break
			}
		}
		if !merged {
			groups[key] = append(groups[key], &group{members: []Finding{f}})
		}
	}

	var comments []ReviewComment
	for _, key := range groupKeys {
		for _, g := range groups[key] {
			comments = append(comments, renderComment(g.members))
		}
	}

	sort.SliceStable(comments, func(i, j int) bool {
		if comments[i].Path != comments[j].Path {
			return comments[i].Path < comments[j].Path
		}
		return comments[i].Line < comments[j].Line
	})

	if opts.MaxComments > 0 && len(comments) > opts.MaxComments {
		comments = capBySeverity(comments, opts.MaxComments)
	}

	return comments
}

// renderComment flattens one merged group into a publishable comment body.
// The representative is the most severe member; additional members
// contribute their distinct points below it.
func renderComment(members []Finding) ReviewComment {
	rep := members[0]
	for _, m := range members[1:] {
		if m.Severity > rep.Severity {
			rep = m
		}
	}

	var sb strings.Builder
	if rep.Title != "" {
		sb.WriteString(fmt.Sprintf("**%s** ", rep.Title))
	}
	sb.WriteString(fmt.Sprintf("[%s]", rep.Severity))
	if rep.Category != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", rep.Category))
	}
	sb.WriteString("\n\n")
	sb.WriteString(rep.Body)

	for _, m := range members {
		if m.Fingerprint == rep.Fingerprint {
			continue
		}
		sb.WriteString("\n\nAlso: ")
		sb.WriteString(m.Body)
	}

	if rep.Suggestion != "" {
		sb.WriteString("\n\n```suggestion\n")
		sb.WriteString(rep.Suggestion)
		sb.WriteString("\n```")
	}

	return ReviewComment{
		Path:     rep.Path,
		Line:     rep.Line,
		Severity: rep.Severity,
		Body:     sb.String(),
	}
}

// similarity is the Jaccard index over normalized word sets.
func similarity(a, b string) float64 {
	wa := wordSet(a)
	wb := wordSet(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	inter := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	return float64(inter) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(NormalizeBody(s)) {
		out[w] = struct{}{}
	}
	return out
}

// capBySeverity keeps the n most severe comments, then restores the
// (path, line) ordering.
func capBySeverity(comments []ReviewComment, n int) []ReviewComment {
	ranked := make([]ReviewComment, len(comments))
	copy(ranked, comments)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Severity > ranked[j].Severity
	})
	kept := ranked[:n]
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Path != kept[j].Path {
			return kept[i].Path < kept[j].Path
		}
		return kept[i].Line < kept[j].Line
	})
	return kept
}
