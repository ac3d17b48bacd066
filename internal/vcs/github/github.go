package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/revuekit/revue/internal/vcs"
)

// Host implements vcs.Host for GitHub (github.com and GitHub Enterprise).
type Host struct {
	client  *resty.Client
	baseURL string
	token   string
}

func init() {
	vcs.Register("github", NewHost)
}

// NewHost creates a GitHub host client.
func NewHost(token, baseURL string) (vcs.Host, error) {
	if token == "" {
		return nil, fmt.Errorf("github: token is required")
	}
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}

	client := resty.New().
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/vnd.github+json").
		SetHeader("User-Agent", "revue-cli").
		SetAuthToken(token)

	return &Host{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}, nil
}

func (h *Host) Info() vcs.HostInfo {
	return vcs.HostInfo{Name: "github", BaseURL: h.baseURL}
}

func (h *Host) Validate() error {
	if h.token == "" {
		return fmt.Errorf("github: token is required")
	}
	return nil
}

func (h *Host) FetchPullRequest(ctx context.Context, repo string, number int) (*vcs.PullRequest, error) {
	var pr struct {
		Number int    `json:"number"`
		Title  string `json:"title"`
		Body   string `json:"body"`
		User   struct {
			Login string `json:"login"`
		} `json:"user"`
		Head struct {
			Ref string `json:"ref"`
			SHA string `json:"sha"`
		} `json:"head"`
		Base struct {
			Ref string `json:"ref"`
			SHA string `json:"sha"`
		} `json:"base"`
		State   string `json:"state"`
		HTMLURL string `json:"html_url"`
		Labels  []struct {
			Name string `json:"name"`
		} `json:"labels"`
	}

	if _, err := h.getJSON(ctx, fmt.Sprintf("/repos/%s/pulls/%d", repo, number), &pr); err != nil {
		return nil, fmt.Errorf("github: failed to fetch PR #%d: %w", number, err)
	}

	labels := make([]string, 0, len(pr.Labels))
	for _, l := range pr.Labels {
		labels = append(labels, l.Name)
	}

	return &vcs.PullRequest{
		Number:       pr.Number,
		Title:        pr.Title,
		Description:  pr.Body,
		Author:       pr.User.Login,
		SourceBranch: pr.Head.Ref,
		TargetBranch: pr.Base.Ref,
		State:        pr.State,
		WebURL:       pr.HTMLURL,
		Labels:       labels,
		Refs: vcs.DiffRefs{
			BaseSHA:  pr.Base.SHA,
			HeadSHA:  pr.Head.SHA,
			StartSHA: pr.Base.SHA,
		},
	}, nil
}

func (h *Host) FetchPatches(ctx context.Context, repo string, number int) ([]vcs.FilePatch, error) {
	type prFile struct {
		Filename         string `json:"filename"`
		PreviousFilename string `json:"previous_filename"`
		Status           string `json:"status"`
		Patch            string `json:"patch"`
	}

	var all []vcs.FilePatch
	page := 1
	for {
		endpoint := fmt.Sprintf("/repos/%s/pulls/%d/files?per_page=100&page=%d", repo, number, page)
		var files []prFile
		resp, err := h.getJSON(ctx, endpoint, &files)
		if err != nil {
			return nil, fmt.Errorf("github: failed to fetch PR files: %w", err)
		}

		for _, f := range files {
			oldPath := f.PreviousFilename
			if oldPath == "" {
				oldPath = f.Filename
			}
			status := strings.ToLower(f.Status)

			all = append(all, vcs.FilePatch{
				OldPath: oldPath,
				NewPath: f.Filename,
				Patch:   f.Patch,
				New:     status == "added",
				Deleted: status == "removed",
				Renamed: status == "renamed",
			})
		}

		if !hasNextPage(resp.Header().Get("Link")) {
			break
		}
		page++
	}

	return all, nil
}

func (h *Host) PostSummary(ctx context.Context, repo string, number int, body string) error {
	payload := map[string]string{"body": body}
	if err := h.postJSON(ctx,
		fmt.Sprintf("/repos/%s/issues/%d/comments", repo, number),
		payload, nil,
	); err != nil {
		return fmt.Errorf("github: failed to post PR summary: %w", err)
	}
	return nil
}

func (h *Host) PostInlineComment(ctx context.Context, repo string, number int, refs vcs.DiffRefs, c vcs.InlineComment) error {
	if refs.HeadSHA == "" {
		return fmt.Errorf("github: missing head SHA for inline comment")
	}
	if c.Line <= 0 {
		return fmt.Errorf("github: invalid line number for inline comment")
	}

	payload := map[string]interface{}{
		"body":      c.Body,
		"commit_id": refs.HeadSHA,
		"path":      c.FilePath,
		"line":      c.Line,
		"side":      "RIGHT",
	}

	if err := h.postJSON(ctx,
		fmt.Sprintf("/repos/%s/pulls/%d/comments", repo, number),
		payload, nil,
	); err != nil {
		return fmt.Errorf("github: failed to post inline comment: %w", err)
	}
	return nil
}

func (h *Host) CreateIssue(ctx context.Context, repo string, title, body string) (string, error) {
	payload := map[string]string{"title": title, "body": body}
	var created struct {
		HTMLURL string `json:"html_url"`
	}
	if err := h.postJSON(ctx, fmt.Sprintf("/repos/%s/issues", repo), payload, &created); err != nil {
		return "", fmt.Errorf("github: failed to create issue: %w", err)
	}
	return created.HTMLURL, nil
}

// FormatSuggestionBlock returns a GitHub-native suggestion code block.
func (h *Host) FormatSuggestionBlock(suggestion string) string {
	return "```suggestion\n" + suggestion + "\n```"
}

func (h *Host) getJSON(ctx context.Context, endpoint string, out interface{}) (*resty.Response, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		Get(h.baseURL + endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vcs.ErrTransient, err)
	}
	if resp.IsError() {
		return resp, statusError(resp.StatusCode(), resp.Body())
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return resp, err
		}
	}
	return resp, nil
}

func (h *Host) postJSON(ctx context.Context, endpoint string, payload, out interface{}) error {
	resp, err := h.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(h.baseURL + endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", vcs.ErrTransient, err)
	}
	if resp.IsError() {
		return statusError(resp.StatusCode(), resp.Body())
	}
	if out != nil {
		return json.Unmarshal(resp.Body(), out)
	}
	return nil
}

// statusError maps an HTTP failure onto the package sentinels so callers can
// distinguish missing PRs, bad tokens, and retryable failures.
func statusError(code int, body []byte) error {
	detail := strings.TrimSpace(string(body))
	if len(detail) > 200 {
		detail = detail[:200]
	}
	switch {
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: HTTP 404: %s", vcs.ErrNotFound, detail)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d: %s", vcs.ErrUnauthorized, code, detail)
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", vcs.ErrTransient, code, detail)
	default:
		return fmt.Errorf("github: HTTP %d: %s", code, detail)
	}
}

func hasNextPage(linkHeader string) bool {
	if linkHeader == "" {
		return false
	}
	for _, part := range strings.Split(linkHeader, ",") {
		if strings.Contains(part, `rel="next"`) {
			return true
		}
	}
	return false
}
