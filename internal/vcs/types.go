// Package vcs abstracts the hosting platforms (GitHub, GitLab) behind a
// single interface covering what the review pipeline needs: fetching a pull
// request and its diff, and publishing the resulting comments. Platform
// implementations self-register with the package registry at init() time.
package vcs

import (
	"context"
	"errors"
)

// Sentinel errors normalized across platforms, for use with errors.Is().
var (
	// ErrNotFound means the repository or pull request does not exist (or
	// the token cannot see it).
	ErrNotFound = errors.New("vcs: not found")

	// ErrUnauthorized means the token is missing, invalid, or lacks scope.
	ErrUnauthorized = errors.New("vcs: unauthorized")

	// ErrTransient marks failures worth retrying: rate limits, 5xx, network.
	ErrTransient = errors.New("vcs: transient error")
)

// Host abstracts a code hosting platform.
type Host interface {
	Info() HostInfo

	// FetchPullRequest returns pull request metadata. repo is the
	// platform-native identifier ("owner/name" on GitHub, project path or
	// numeric ID on GitLab).
	FetchPullRequest(ctx context.Context, repo string, number int) (*PullRequest, error)

	// FetchPatches returns the per-file unified diff fragments of the pull
	// request, paginated to completion.
	FetchPatches(ctx context.Context, repo string, number int) ([]FilePatch, error)

	// PostSummary adds a top-level comment to the pull request.
	PostSummary(ctx context.Context, repo string, number int, body string) error

	// PostInlineComment anchors one comment to a file/line of the diff.
	PostInlineComment(ctx context.Context, repo string, number int, refs DiffRefs, c InlineComment) error

	// CreateIssue opens a standalone issue on the repository. Used when the
	// run is configured to track blocking findings as issues.
	CreateIssue(ctx context.Context, repo string, title, body string) (string, error)

	// FormatSuggestionBlock renders a code suggestion in the platform's
	// native applyable syntax.
	FormatSuggestionBlock(suggestion string) string

	// Validate checks the configuration (token present etc.).
	Validate() error
}

// HostInfo describes a platform implementation.
type HostInfo struct {
	Name    string
	BaseURL string
}

// PullRequest holds platform-agnostic pull/merge request metadata.
type PullRequest struct {
	Number       int
	Title        string
	Description  string
	Author       string
	SourceBranch string
	TargetBranch string
	State        string
	WebURL       string
	Labels       []string
	Refs         DiffRefs
}

// HasLabel reports whether the pull request carries the given label.
func (pr *PullRequest) HasLabel(label string) bool {
	for _, l := range pr.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// DiffRefs holds the SHA references needed for inline comments.
type DiffRefs struct {
	BaseSHA  string
	HeadSHA  string
	StartSHA string
}

// FilePatch is one file's unified diff fragment as served by the platform
// API, without the "--- a/x / +++ b/x" header.
type FilePatch struct {
	OldPath string
	NewPath string
	Patch   string
	New     bool
	Deleted bool
	Renamed bool
}

// InlineComment holds data for posting an inline comment on a diff.
type InlineComment struct {
	FilePath string
	Line     int
	Body     string
}
