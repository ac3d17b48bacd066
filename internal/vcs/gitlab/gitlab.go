package gitlab

import (
	"context"
	"fmt"
	"net/http"

	"github.com/revuekit/revue/internal/vcs"
	gl "gitlab.com/gitlab-org/api/client-go"
)

// Host implements vcs.Host for GitLab (gitlab.com and self-managed).
type Host struct {
	api     *gl.Client
	baseURL string
	token   string
}

func init() {
	vcs.Register("gitlab", NewHost)
}

// NewHost creates a GitLab host client.
func NewHost(token, baseURL string) (vcs.Host, error) {
	if token == "" {
		return nil, fmt.Errorf("gitlab: token is required")
	}
	if baseURL == "" {
		baseURL = "https://gitlab.com"
	}

	client, err := gl.NewClient(token, gl.WithBaseURL(baseURL+"/api/v4"))
	if err != nil {
		return nil, fmt.Errorf("gitlab: failed to create client: %w", err)
	}

	return &Host{api: client, baseURL: baseURL, token: token}, nil
}

func (h *Host) Info() vcs.HostInfo {
	return vcs.HostInfo{Name: "gitlab", BaseURL: h.baseURL}
}

func (h *Host) Validate() error {
	if h.token == "" {
		return fmt.Errorf("gitlab: token is required")
	}
	return nil
}

func (h *Host) FetchPullRequest(ctx context.Context, repo string, number int) (*vcs.PullRequest, error) {
	mr, resp, err := h.api.MergeRequests.GetMergeRequest(repo, number, nil, gl.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("gitlab: failed to fetch MR !%d: %w", number, mapErr(err, resp))
	}

	return &vcs.PullRequest{
		Number:       mr.IID,
		Title:        mr.Title,
		Description:  mr.Description,
		Author:       mr.Author.Username,
		SourceBranch: mr.SourceBranch,
		TargetBranch: mr.TargetBranch,
		State:        mr.State,
		WebURL:       mr.WebURL,
		Labels:       mr.Labels,
		Refs: vcs.DiffRefs{
			BaseSHA:  mr.DiffRefs.BaseSha,
			HeadSHA:  mr.DiffRefs.HeadSha,
			StartSHA: mr.DiffRefs.StartSha,
		},
	}, nil
}

func (h *Host) FetchPatches(ctx context.Context, repo string, number int) ([]vcs.FilePatch, error) {
	opts := &gl.ListMergeRequestDiffsOptions{
		ListOptions: gl.ListOptions{PerPage: 100},
	}

	var all []vcs.FilePatch
	for {
		diffs, resp, err := h.api.MergeRequests.ListMergeRequestDiffs(repo, number, opts, gl.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("gitlab: failed to fetch MR diffs: %w", mapErr(err, resp))
		}

		for _, d := range diffs {
			all = append(all, vcs.FilePatch{
				OldPath: d.OldPath,
				NewPath: d.NewPath,
				Patch:   d.Diff,
				New:     d.NewFile,
				Renamed: d.RenamedFile,
				Deleted: d.DeletedFile,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

func (h *Host) PostSummary(ctx context.Context, repo string, number int, body string) error {
	_, resp, err := h.api.Notes.CreateMergeRequestNote(repo, number, &gl.CreateMergeRequestNoteOptions{
		Body: &body,
	}, gl.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("gitlab: failed to post MR note: %w", mapErr(err, resp))
	}
	return nil
}

func (h *Host) PostInlineComment(ctx context.Context, repo string, number int, refs vcs.DiffRefs, c vcs.InlineComment) error {
	if c.Line <= 0 {
		return fmt.Errorf("gitlab: invalid line number for inline comment")
	}
	posType := "text"
	_, resp, err := h.api.Discussions.CreateMergeRequestDiscussion(repo, number, &gl.CreateMergeRequestDiscussionOptions{
		Body: &c.Body,
		Position: &gl.PositionOptions{
			BaseSHA:      &refs.BaseSHA,
			HeadSHA:      &refs.HeadSHA,
			StartSHA:     &refs.StartSHA,
			PositionType: &posType,
			NewPath:      &c.FilePath,
			NewLine:      &c.Line,
		},
	}, gl.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("gitlab: failed to post inline discussion: %w", mapErr(err, resp))
	}
	return nil
}

func (h *Host) CreateIssue(ctx context.Context, repo string, title, body string) (string, error) {
	issue, resp, err := h.api.Issues.CreateIssue(repo, &gl.CreateIssueOptions{
		Title:       &title,
		Description: &body,
	}, gl.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("gitlab: failed to create issue: %w", mapErr(err, resp))
	}
	return issue.WebURL, nil
}

// FormatSuggestionBlock returns a GitLab-native suggestion code block.
func (h *Host) FormatSuggestionBlock(suggestion string) string {
	return "```suggestion:-0+0\n" + suggestion + "\n```"
}

// mapErr attaches the package sentinels to client errors so callers can use
// errors.Is across platforms.
func mapErr(err error, resp *gl.Response) error {
	if resp == nil || resp.Response == nil {
		return fmt.Errorf("%w: %v", vcs.ErrTransient, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %v", vcs.ErrNotFound, err)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %v", vcs.ErrUnauthorized, err)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: %v", vcs.ErrTransient, err)
	default:
		return err
	}
}
