package review

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/revuekit/revue/internal/provider"
	"github.com/revuekit/revue/internal/vcs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHost records publish calls and serves canned pull request data.
type fakeHost struct {
	pr      *vcs.PullRequest
	patches []vcs.FilePatch

	fetchErr   error
	patchesErr error
	inlineErr  error
	summaryErr error

	posted    []vcs.InlineComment
	summaries []string
	issues    []string
}

func (h *fakeHost) Info() vcs.HostInfo { return vcs.HostInfo{Name: "fake"} }

func (h *fakeHost) FetchPullRequest(ctx context.Context, repo string, number int) (*vcs.PullRequest, error) {
	if h.fetchErr != nil {
		return nil, h.fetchErr
	}
	return h.pr, nil
}

func (h *fakeHost) FetchPatches(ctx context.Context, repo string, number int) ([]vcs.FilePatch, error) {
	if h.patchesErr != nil {
		return nil, h.patchesErr
	}
	return h.patches, nil
}

func (h *fakeHost) PostSummary(ctx context.Context, repo string, number int, body string) error {
	if h.summaryErr != nil {
		return h.summaryErr
	}
	h.summaries = append(h.summaries, body)
	return nil
}

func (h *fakeHost) PostInlineComment(ctx context.Context, repo string, number int, refs vcs.DiffRefs, c vcs.InlineComment) error {
	if h.inlineErr != nil {
		return h.inlineErr
	}
	h.posted = append(h.posted, c)
	return nil
}

func (h *fakeHost) CreateIssue(ctx context.Context, repo string, title, body string) (string, error) {
	url := fmt.Sprintf("https://example.com/issues/%d", len(h.issues)+1)
	h.issues = append(h.issues, url)
	return url, nil
}

func (h *fakeHost) FormatSuggestionBlock(s string) string { return "```suggestion\n" + s + "\n```" }
func (h *fakeHost) Validate() error                       { return nil }

// fakeInvoker answers each prompt from a scripted response list, optionally
// cancelling the run midway.
type fakeInvoker struct {
	responses []string
	errs      map[int]error
	onInvoke  func()
	prompts   []provider.Prompt
}

func (f *fakeInvoker) InvokeAll(ctx context.Context, prompts []provider.Prompt) []provider.Result {
	f.prompts = prompts
	if f.onInvoke != nil {
		f.onInvoke()
	}
	results := make([]provider.Result, len(prompts))
	for i := range prompts {
		results[i] = provider.Result{Index: i}
		if err, ok := f.errs[i]; ok {
			results[i].Err = err
			continue
		}
		if i < len(f.responses) {
			results[i].Content = f.responses[i]
		}
	}
	return results
}

func testPR() *vcs.PullRequest {
	return &vcs.PullRequest{
		Number:       7,
		Title:        "Add things",
		Author:       "dev",
		SourceBranch: "feature/things",
		TargetBranch: "main",
		WebURL:       "https://example.com/pr/7",
		Refs:         vcs.DiffRefs{HeadSHA: "abc123"},
	}
}

func smallPatch() vcs.FilePatch {
	return vcs.FilePatch{
		OldPath: "a.go",
		NewPath: "a.go",
		Patch:   "@@ -1,2 +1,3 @@\n keep\n+added line\n keep too\n",
	}
}

func findingsJSON(path string, line int, sev, body string) string {
	return fmt.Sprintf(`{"findings": [{"file": %q, "line": %d, "severity": %q, "description": %q}]}`,
		path, line, sev, body)
}

func testConfig() RunConfig {
	cfg := DefaultRunConfig()
	cfg.Concurrency = 1
	return cfg
}

func TestPipeline_HappyPath(t *testing.T) {
	host := &fakeHost{pr: testPR(), patches: []vcs.FilePatch{smallPatch()}}
	inv := &fakeInvoker{responses: []string{findingsJSON("a.go", 2, "warning", "watch out here")}}

	p := &Pipeline{Host: host, Invoker: inv, Config: testConfig()}
	report, err := p.Run(context.Background(), "org/repo", 7)
	require.NoError(t, err)

	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, 0, report.ExitCode())
	assert.Equal(t, 1, report.Findings)
	require.Len(t, report.Comments, 1)
	assert.Equal(t, "a.go", report.Comments[0].Path)
	assert.Equal(t, 2, report.Comments[0].Line)

	require.Len(t, host.posted, 1)
	assert.Equal(t, 2, host.posted[0].Line)
	assert.Len(t, host.summaries, 1)
}

func TestPipeline_EmptyDiffIsNothingToReview(t *testing.T) {
	host := &fakeHost{pr: testPR(), patches: nil}
	p := &Pipeline{Host: host, Invoker: &fakeInvoker{}, Config: testConfig()}

	report, err := p.Run(context.Background(), "org/repo", 7)
	require.NoError(t, err)
	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, "nothing to review", report.SkipReason)
	assert.Empty(t, report.Chunks)
	assert.Empty(t, host.posted)
	assert.Empty(t, host.summaries)
}

func TestPipeline_SkipsBotAuthors(t *testing.T) {
	pr := testPR()
	pr.Author = "dependabot[bot]"
	host := &fakeHost{pr: pr, patches: []vcs.FilePatch{smallPatch()}}

	cfg := testConfig()
	cfg.SkipAuthors = []string{"dependabot[bot]"}
	p := &Pipeline{Host: host, Invoker: &fakeInvoker{}, Config: cfg}

	report, err := p.Run(context.Background(), "org/repo", 7)
	require.NoError(t, err)
	assert.Equal(t, StateDone, report.State)
	assert.Contains(t, report.SkipReason, "author")
}

func TestPipeline_SkipsFixBranchesAndLabels(t *testing.T) {
	pr := testPR()
	pr.SourceBranch = "revue-fix-123"
	host := &fakeHost{pr: pr, patches: []vcs.FilePatch{smallPatch()}}
	p := &Pipeline{Host: host, Invoker: &fakeInvoker{}, Config: testConfig()}

	report, err := p.Run(context.Background(), "org/repo", 7)
	require.NoError(t, err)
	assert.Contains(t, report.SkipReason, "prefix")

	pr = testPR()
	pr.Labels = []string{"revue-skip"}
	host = &fakeHost{pr: pr, patches: []vcs.FilePatch{smallPatch()}}
	p = &Pipeline{Host: host, Invoker: &fakeInvoker{}, Config: testConfig()}

	report, err = p.Run(context.Background(), "org/repo", 7)
	require.NoError(t, err)
	assert.Contains(t, report.SkipReason, "label")
}

func TestPipeline_FetchFailureIsFatal(t *testing.T) {
	host := &fakeHost{fetchErr: vcs.ErrNotFound}
	p := &Pipeline{Host: host, Invoker: &fakeInvoker{}, Config: testConfig()}

	report, err := p.Run(context.Background(), "org/repo", 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, vcs.ErrNotFound)
	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, 1, report.ExitCode())
}

func TestPipeline_ChunkFailureDoesNotFailRun(t *testing.T) {
	patches := []vcs.FilePatch{
		smallPatch(),
		{
			OldPath: "b.go",
			NewPath: "b.go",
			Patch:   "@@ -1,2 +1,3 @@\n keep\n+other line\n keep too\n",
		},
	}
	host := &fakeHost{pr: testPR(), patches: patches}

	cfg := testConfig()
	cfg.ChunkTokens = 20 // force one chunk per file
	inv := &fakeInvoker{
		responses: []string{findingsJSON("a.go", 2, "info", "fine"), ""},
		errs:      map[int]error{1: &provider.ProviderError{Code: provider.ErrCodeTimeout}},
	}
	p := &Pipeline{Host: host, Invoker: inv, Config: cfg}

	report, err := p.Run(context.Background(), "org/repo", 7)
	require.NoError(t, err)
	require.Len(t, inv.prompts, 2, "each file should be its own chunk")

	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, 1, report.ChunksFailed())
	assert.Equal(t, 1, report.ChunksSucceeded())
	assert.Len(t, report.Comments, 1)
	assert.Len(t, host.posted, 1)
}

func TestPipeline_UnparseableChunkIsFailedOutcome(t *testing.T) {
	host := &fakeHost{pr: testPR(), patches: []vcs.FilePatch{smallPatch()}}
	inv := &fakeInvoker{responses: []string{"the model rambles with no structure"}}
	p := &Pipeline{Host: host, Invoker: inv, Config: testConfig()}

	report, err := p.Run(context.Background(), "org/repo", 7)
	require.NoError(t, err)
	assert.Equal(t, StateDone, report.State)
	require.Len(t, report.Chunks, 1)
	assert.Equal(t, ChunkFailed, report.Chunks[0].Status)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, 0, report.Dropped, "a chunk with no findings has nothing to drop")
}

func TestPipeline_HallucinatedAnchorDropped(t *testing.T) {
	host := &fakeHost{pr: testPR(), patches: []vcs.FilePatch{smallPatch()}}
	inv := &fakeInvoker{responses: []string{findingsJSON("a.go", 999, "blocking", "imaginary line")}}
	p := &Pipeline{Host: host, Invoker: inv, Config: testConfig()}

	report, err := p.Run(context.Background(), "org/repo", 7)
	require.NoError(t, err)
	assert.Empty(t, report.Comments)
	assert.Equal(t, 1, report.Dropped)
	require.Len(t, report.Chunks, 1)
	assert.Equal(t, ChunkFailed, report.Chunks[0].Status)
}

func TestPipeline_CancelDuringReview(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	host := &fakeHost{pr: testPR(), patches: []vcs.FilePatch{smallPatch()}}
	inv := &fakeInvoker{
		responses: []string{findingsJSON("a.go", 2, "info", "fine")},
		onInvoke:  cancel,
	}
	p := &Pipeline{Host: host, Invoker: inv, Config: testConfig()}

	report, err := p.Run(ctx, "org/repo", 7)
	require.Error(t, err)
	assert.Equal(t, StateCancelled, report.State)
	assert.Equal(t, 2, report.ExitCode())
	assert.Empty(t, host.posted)
}

func TestPipeline_DryRunPublishesNothing(t *testing.T) {
	host := &fakeHost{pr: testPR(), patches: []vcs.FilePatch{smallPatch()}}
	inv := &fakeInvoker{responses: []string{findingsJSON("a.go", 2, "warning", "watch out")}}

	cfg := testConfig()
	cfg.DryRun = true
	p := &Pipeline{Host: host, Invoker: inv, Config: cfg}

	report, err := p.Run(context.Background(), "org/repo", 7)
	require.NoError(t, err)
	assert.Equal(t, StateDone, report.State)
	assert.Len(t, report.Comments, 1)
	assert.Empty(t, host.posted)
	assert.Empty(t, host.summaries)
}

func TestPipeline_TotalPublishFailureIsFatal(t *testing.T) {
	host := &fakeHost{
		pr:         testPR(),
		patches:    []vcs.FilePatch{smallPatch()},
		inlineErr:  errors.New("api down"),
		summaryErr: errors.New("api down"),
	}
	inv := &fakeInvoker{responses: []string{findingsJSON("a.go", 2, "warning", "watch out")}}
	p := &Pipeline{Host: host, Invoker: inv, Config: testConfig()}

	report, err := p.Run(context.Background(), "org/repo", 7)
	require.Error(t, err)
	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, 1, report.ExitCode())
	assert.Equal(t, 0, report.PublishedOK())
}

func TestPipeline_PartialPublishFailureStaysDone(t *testing.T) {
	host := &fakeHost{
		pr:        testPR(),
		patches:   []vcs.FilePatch{smallPatch()},
		inlineErr: errors.New("stale anchor"),
	}
	inv := &fakeInvoker{responses: []string{findingsJSON("a.go", 2, "warning", "watch out")}}
	p := &Pipeline{Host: host, Invoker: inv, Config: testConfig()}

	report, err := p.Run(context.Background(), "org/repo", 7)
	require.NoError(t, err)
	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, 1, report.PublishFailed())
	assert.Len(t, host.summaries, 1, "summary still lands")
}

func TestPipeline_ExcludedPathsSkipped(t *testing.T) {
	patches := []vcs.FilePatch{
		smallPatch(),
		{
			OldPath: "vendor/dep/x.go",
			NewPath: "vendor/dep/x.go",
			Patch:   "@@ -1,1 +1,2 @@\n keep\n+generated\n",
		},
	}
	host := &fakeHost{pr: testPR(), patches: patches}
	inv := &fakeInvoker{responses: []string{findingsJSON("a.go", 2, "info", "fine")}}

	cfg := testConfig()
	cfg.Exclude = []string{"vendor/**"}
	p := &Pipeline{Host: host, Invoker: inv, Config: cfg}

	report, err := p.Run(context.Background(), "org/repo", 7)
	require.NoError(t, err)
	require.Len(t, inv.prompts, 1)
	assert.NotContains(t, inv.prompts[0].User, "vendor/dep/x.go")
	assert.Equal(t, StateDone, report.State)
}

func TestPipeline_CreateIssuesForBlockingFindings(t *testing.T) {
	host := &fakeHost{pr: testPR(), patches: []vcs.FilePatch{smallPatch()}}
	inv := &fakeInvoker{responses: []string{findingsJSON("a.go", 2, "blocking", "remote code execution")}}

	cfg := testConfig()
	cfg.CreateIssues = true
	p := &Pipeline{Host: host, Invoker: inv, Config: cfg}

	report, err := p.Run(context.Background(), "org/repo", 7)
	require.NoError(t, err)
	require.Len(t, report.IssueURLs, 1)
	assert.Len(t, host.issues, 1)
}
