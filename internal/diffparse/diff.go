package diffparse

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedDiff indicates a diff that violates structural invariants and
// cannot be reviewed. It is fatal: the pipeline aborts before chunking.
var ErrMalformedDiff = errors.New("malformed diff")

// Diff is the immutable in-memory representation of a pull request's changed
// lines. It owns its FileChanges; file paths are unique within a Diff and
// line numbers are strictly increasing within each hunk. Both invariants are
// checked at construction time.
type Diff struct {
	files []FileChange
}

// NewDiff validates the given file changes and wraps them into a Diff.
func NewDiff(changes []FileChange) (*Diff, error) {
	seen := make(map[string]struct{}, len(changes))
	for _, fc := range changes {
		if strings.TrimSpace(fc.Path) == "" {
			return nil, fmt.Errorf("%w: file change without a path", ErrMalformedDiff)
		}
		if _, dup := seen[fc.Path]; dup {
			return nil, fmt.Errorf("%w: duplicate path %q", ErrMalformedDiff, fc.Path)
		}
		seen[fc.Path] = struct{}{}

		if err := validateHunks(fc); err != nil {
			return nil, err
		}
	}
	return &Diff{files: changes}, nil
}

func validateHunks(fc FileChange) error {
	prevNewEnd := 0
	for i, h := range fc.Hunks {
		if h.NewStart > 0 && h.NewStart <= prevNewEnd {
			return fmt.Errorf("%w: %s: hunk %d overlaps previous hunk", ErrMalformedDiff, fc.Path, i)
		}

		lastNew := 0
		for _, l := range h.Lines {
			if l.NewLineNo == 0 {
				continue
			}
			if l.NewLineNo <= lastNew {
				return fmt.Errorf("%w: %s: line numbers not increasing in hunk %d", ErrMalformedDiff, fc.Path, i)
			}
			lastNew = l.NewLineNo
		}
		if lastNew > 0 {
			prevNewEnd = lastNew
		}
	}
	return nil
}

// Files returns the ordered file changes. Callers must not mutate the slice.
func (d *Diff) Files() []FileChange {
	return d.files
}

// Len returns the number of file changes.
func (d *Diff) Len() int {
	return len(d.files)
}

// Empty reports whether the diff carries no reviewable text changes.
func (d *Diff) Empty() bool {
	for _, fc := range d.files {
		if !fc.IsBinary && len(fc.Hunks) > 0 {
			return false
		}
	}
	return true
}

// File returns the change for the given new-file path.
func (d *Diff) File(path string) (FileChange, bool) {
	for _, fc := range d.files {
		if fc.Path == path {
			return fc, true
		}
	}
	return FileChange{}, false
}

// Stats sums additions and deletions across all files.
func (d *Diff) Stats() DiffStats {
	var s DiffStats
	for _, fc := range d.files {
		s.Additions += fc.Stats.Additions
		s.Deletions += fc.Stats.Deletions
	}
	return s
}

// Filter returns a new Diff holding only the changes accepted by keep.
// The original Diff is left untouched.
func (d *Diff) Filter(keep func(FileChange) bool) *Diff {
	out := make([]FileChange, 0, len(d.files))
	for _, fc := range d.files {
		if keep(fc) {
			out = append(out, fc)
		}
	}
	return &Diff{files: out}
}

// HunkForNewLine maps a new-file line number back to the hunk containing it.
func (fc FileChange) HunkForNewLine(line int) (Hunk, bool) {
	for _, h := range fc.Hunks {
		for _, l := range h.Lines {
			if l.NewLineNo == line {
				return h, true
			}
		}
	}
	return Hunk{}, false
}

// HasNewLine reports whether the given new-file line number is addressable
// within this file change. Comments may only anchor to such lines.
func (fc FileChange) HasNewLine(line int) bool {
	_, ok := fc.HunkForNewLine(line)
	return ok
}

// Format renders a file change into the hunk notation fed to the model.
func (fc FileChange) Format() string {
	return fc.FormatContext(0)
}

// FormatContext is Format with at most contextLines unchanged lines kept
// on either side of each run of changes; contextLines <= 0 keeps every
// line the hunk carries.
func (fc FileChange) FormatContext(contextLines int) string {
	var sb strings.Builder

	label := fc.Kind.String()
	if fc.Kind == ChangeRenamed {
		label = fmt.Sprintf("renamed from %s", fc.OldPath)
	}
	sb.WriteString(fmt.Sprintf("### File: %s (%s) [+%d/-%d]\n",
		fc.Path, label, fc.Stats.Additions, fc.Stats.Deletions))

	for _, h := range fc.Hunks {
		sb.WriteString(h.FormatContext(contextLines))
	}
	return sb.String()
}

// Format renders a hunk in unified notation with new-file line numbers on
// added and context lines so the model can cite exact anchors.
func (h Hunk) Format() string {
	return h.FormatContext(0)
}

// FormatContext renders the hunk keeping at most contextLines unchanged
// lines around each change; elided stretches collapse into a "..." row.
// contextLines <= 0 disables the bound.
func (h Hunk) FormatContext(contextLines int) string {
	keep := h.contextMask(contextLines)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("@@ -%d,%d +%d,%d @@\n",
		h.OldStart, h.OldLines, h.NewStart, h.NewLines))
	elided := false
	for i, l := range h.Lines {
		if !keep[i] {
			if !elided {
				sb.WriteString("   ...\n")
				elided = true
			}
			continue
		}
		elided = false
		switch l.Type {
		case LineAdded:
			sb.WriteString(fmt.Sprintf("%d +%s\n", l.NewLineNo, l.Content))
		case LineDeleted:
			sb.WriteString(fmt.Sprintf("  -%s\n", l.Content))
		default:
			sb.WriteString(fmt.Sprintf("%d  %s\n", l.NewLineNo, l.Content))
		}
	}
	return sb.String()
}

// contextMask marks the lines FormatContext keeps: every changed line,
// plus unchanged lines within n rows of one.
func (h Hunk) contextMask(n int) []bool {
	keep := make([]bool, len(h.Lines))
	if n <= 0 {
		for i := range keep {
			keep[i] = true
		}
		return keep
	}
	for i, l := range h.Lines {
		if l.Type == LineContext {
			continue
		}
		lo := i - n
		if lo < 0 {
			lo = 0
		}
		hi := i + n
		if hi > len(h.Lines)-1 {
			hi = len(h.Lines) - 1
		}
		for j := lo; j <= hi; j++ {
			keep[j] = true
		}
	}
	return keep
}
