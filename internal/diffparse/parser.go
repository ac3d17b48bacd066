package diffparse

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// ChangeKind classifies how a file was changed in a pull request.
type ChangeKind int

const (
	ChangeModified ChangeKind = iota
	ChangeAdded
	ChangeDeleted
	ChangeRenamed
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeDeleted:
		return "deleted"
	case ChangeRenamed:
		return "renamed"
	default:
		return "modified"
	}
}

// FileChange represents a parsed file diff.
type FileChange struct {
	OldPath  string
	Path     string
	Kind     ChangeKind
	IsBinary bool
	Hunks    []Hunk
	Stats    DiffStats
}

// Hunk represents one contiguous diff hunk.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []DiffLine
}

// DiffLine represents a single line in a diff.
type DiffLine struct {
	Type      LineType
	Content   string
	OldLineNo int
	NewLineNo int
}

// LineType classifies a diff line.
type LineType int

const (
	LineContext LineType = iota
	LineAdded
	LineDeleted
)

// DiffStats holds addition/deletion counts.
type DiffStats struct {
	Additions int
	Deletions int
}

// ParseGitDiff parses raw unified diff output into a validated Diff.
func ParseGitDiff(raw string) (*Diff, error) {
	fileDiffs, err := diff.ParseMultiFileDiff([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDiff, err)
	}

	var changes []FileChange
	for _, fd := range fileDiffs {
		fc := FileChange{
			OldPath: cleanPath(fd.OrigName),
			Path:    cleanPath(fd.NewName),
		}

		switch {
		case fd.OrigName == "/dev/null":
			fc.Kind = ChangeAdded
			fc.OldPath = ""
		case fd.NewName == "/dev/null":
			fc.Kind = ChangeDeleted
			fc.Path = fc.OldPath
		case fc.OldPath != fc.Path:
			fc.Kind = ChangeRenamed
		}

		for _, ext := range fd.Extended {
			if strings.Contains(ext, "Binary files") || strings.Contains(ext, "GIT binary patch") {
				fc.IsBinary = true
				break
			}
		}
		if !fc.IsBinary {
			fc.IsBinary = isBinaryReviewPath(fc.Path)
		}

		for _, h := range fd.Hunks {
			fc.appendHunk(h)
		}

		changes = append(changes, fc)
	}

	return NewDiff(changes)
}

// FilePatch is one file's patch as returned by a host API (per-file diffs
// without the surrounding git header).
type FilePatch struct {
	OldPath string
	Path    string
	Patch   string
	Added   bool
	Deleted bool
	Renamed bool
}

// ParseFilePatches converts host per-file patch responses into a validated Diff.
func ParseFilePatches(patches []FilePatch) (*Diff, error) {
	var changes []FileChange
	for _, p := range patches {
		fc := FileChange{
			OldPath: p.OldPath,
			Path:    p.Path,
		}
		switch {
		case p.Added:
			fc.Kind = ChangeAdded
		case p.Deleted:
			fc.Kind = ChangeDeleted
		case p.Renamed:
			fc.Kind = ChangeRenamed
		}
		if strings.Contains(p.Patch, "Binary files") || strings.Contains(p.Patch, "GIT binary patch") {
			fc.IsBinary = true
		}
		if !fc.IsBinary {
			fc.IsBinary = isBinaryReviewPath(fc.Path)
		}

		if p.Patch != "" && !fc.IsBinary {
			// Hosts strip the ---/+++ header from per-file patches; rebuild
			// it so the unified-diff parser accepts the fragment.
			header := fmt.Sprintf("--- a/%s\n+++ b/%s\n", p.OldPath, p.Path)
			parsed, err := diff.ParseFileDiff([]byte(header + p.Patch))
			if err != nil {
				return nil, fmt.Errorf("%w: file %s: %v", ErrMalformedDiff, p.Path, err)
			}
			for _, h := range parsed.Hunks {
				fc.appendHunk(h)
			}
		}

		changes = append(changes, fc)
	}

	return NewDiff(changes)
}

func (fc *FileChange) appendHunk(h *diff.Hunk) {
	hunk := Hunk{
		OldStart: int(h.OrigStartLine),
		OldLines: int(h.OrigLines),
		NewStart: int(h.NewStartLine),
		NewLines: int(h.NewLines),
	}

	oldLine := int(h.OrigStartLine)
	newLine := int(h.NewStartLine)

	for _, line := range strings.Split(string(h.Body), "\n") {
		if len(line) == 0 {
			continue
		}

		dl := DiffLine{}
		switch line[0] {
		case '+':
			dl.Type = LineAdded
			dl.Content = line[1:]
			dl.NewLineNo = newLine
			newLine++
			fc.Stats.Additions++
		case '-':
			dl.Type = LineDeleted
			dl.Content = line[1:]
			dl.OldLineNo = oldLine
			oldLine++
			fc.Stats.Deletions++
		default:
			dl.Type = LineContext
			if line[0] == ' ' {
				dl.Content = line[1:]
			} else {
				dl.Content = line
			}
			dl.OldLineNo = oldLine
			dl.NewLineNo = newLine
			oldLine++
			newLine++
		}
		hunk.Lines = append(hunk.Lines, dl)
	}

	fc.Hunks = append(fc.Hunks, hunk)
}

func isBinaryReviewPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(path)))
	switch ext {
	case ".pdf", ".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".ico", ".tiff", ".heic",
		".zip", ".tar", ".gz", ".bz2", ".xz", ".7z", ".rar",
		".jar", ".war", ".so", ".dll", ".dylib", ".a", ".o", ".obj", ".exe", ".bin", ".class",
		".woff", ".woff2", ".ttf", ".otf", ".eot",
		".mp3", ".mp4", ".mov", ".wav", ".avi", ".mkv", ".flac":
		return true
	default:
		return false
	}
}

func cleanPath(p string) string {
	p = strings.TrimPrefix(p, "a/")
	p = strings.TrimPrefix(p, "b/")
	return p
}
