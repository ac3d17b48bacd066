package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/danwakefield/fnmatch"
	"github.com/revuekit/revue/internal/core"
	"github.com/revuekit/revue/internal/diffparse"
	"github.com/revuekit/revue/internal/provider"
	"github.com/revuekit/revue/internal/tokens"
	"github.com/revuekit/revue/internal/vcs"
)

// ProgressCallback reports pipeline progress to the CLI.
type ProgressCallback func(stage string, current, total int)

// ChunkInvoker is the slice of the model invoker the pipeline needs. It
// returns one result per prompt, in prompt order.
type ChunkInvoker interface {
	InvokeAll(ctx context.Context, prompts []provider.Prompt) []provider.Result
}

// Pipeline wires the review stages together for one pull request: fetch the
// diff, chunk it, fan chunk reviews out to the model, parse and aggregate
// the findings, publish the comments. One Pipeline handles one run.
type Pipeline struct {
	Host       vcs.Host
	Invoker    ChunkInvoker
	Config     RunConfig
	OnProgress ProgressCallback
}

// Run executes the full pipeline for repo + PR number and always returns a
// report; the report's State and Err say how far it got. An error is
// returned only alongside a Failed or Cancelled report.
func (p *Pipeline) Run(ctx context.Context, repo string, number int) (*RunReport, error) {
	progress := p.OnProgress
	if progress == nil {
		progress = func(string, int, int) {}
	}
	cfg := p.Config

	report := &RunReport{State: StateFetching, Repo: repo, Number: number}

	// --- Fetching ---------------------------------------------------------
	progress("Fetching pull request", 0, 0)
	pr, err := p.Host.FetchPullRequest(ctx, repo, number)
	if err != nil {
		return p.fail(ctx, report, fmt.Errorf("fetch pull request: %w", err))
	}
	report.Title = pr.Title
	report.WebURL = pr.WebURL

	if reason := p.skipReason(pr); reason != "" {
		report.State = StateDone
		report.SkipReason = reason
		return report, nil
	}

	progress("Fetching diff", 0, 0)
	patches, err := p.Host.FetchPatches(ctx, repo, number)
	if err != nil {
		return p.fail(ctx, report, fmt.Errorf("fetch diff: %w", err))
	}

	diff, err := p.buildDiff(patches)
	if err != nil {
		return p.fail(ctx, report, err)
	}

	// --- Chunking ---------------------------------------------------------
	report.State = StateChunking
	if diff.Empty() {
		report.State = StateDone
		report.SkipReason = "nothing to review"
		return report, nil
	}

	est, err := tokens.ForName(cfg.Tokenizer)
	if err != nil {
		est = tokens.Heuristic
	}
	chunks := ChunkDiff(diff, cfg.ChunkTokens, est)
	if len(chunks) == 0 {
		report.State = StateDone
		report.SkipReason = "nothing to review"
		return report, nil
	}
	progress("Chunking diff", len(chunks), len(chunks))

	// --- Reviewing --------------------------------------------------------
	report.State = StateReviewing
	meta := PromptMeta{
		Title:        pr.Title,
		Description:  pr.Description,
		SourceRef:    pr.SourceBranch,
		TargetRef:    pr.TargetBranch,
		Guidelines:   cfg.Guidelines,
		ChunkCount:   len(chunks),
		MaxFindings:  cfg.MaxFindingsPerChunk,
		ContextLines: cfg.ContextLines,
	}

	prompts := make([]provider.Prompt, len(chunks))
	for i, c := range chunks {
		prompts[i] = provider.Prompt{
			Index:  i,
			System: SystemPrompt,
			User:   BuildChunkPrompt(c, meta),
		}
	}

	progress("Reviewing chunks", 0, len(chunks))
	results := p.Invoker.InvokeAll(ctx, prompts)
	if ctx.Err() != nil {
		return p.cancel(report, ctx.Err())
	}

	var findings []core.Finding
	for i, res := range results {
		outcome := ChunkOutcome{Index: i}
		if res.Err != nil {
			outcome.Status = ChunkFailed
			outcome.Err = res.Err
		} else {
			fs, warns := core.ParseFindings(res.Content, i, chunks[i])
			outcome.Findings = len(fs)
			outcome.Warnings = warns
			switch {
			case len(warns) > 0 && len(fs) == 0:
				outcome.Status = ChunkFailed
			case len(warns) > 0:
				outcome.Status = ChunkPartial
			default:
				outcome.Status = ChunkSucceeded
			}
			findings = append(findings, fs...)
			report.Warnings = append(report.Warnings, warns...)
			for _, w := range warns {
				if w.Dropped {
					report.Dropped++
				}
			}
		}
		report.Chunks = append(report.Chunks, outcome)
		progress("Reviewing chunks", i+1, len(chunks))
	}
	report.Findings = len(findings)

	// --- Aggregating ------------------------------------------------------
	report.State = StateAggregating
	progress("Aggregating findings", 0, 0)
	report.Comments = core.Aggregate(findings, core.AggregateOptions{
		MinSeverity:         cfg.MinSeverity,
		SimilarityThreshold: cfg.SimilarityThreshold,
		MaxComments:         cfg.MaxComments,
	})

	// --- Publishing -------------------------------------------------------
	report.State = StatePublishing
	if cfg.DryRun {
		report.State = StateDone
		return report, nil
	}

	progress("Publishing comments", 0, len(report.Comments))
	for i, c := range report.Comments {
		if ctx.Err() != nil {
			return p.cancel(report, ctx.Err())
		}
		err := p.Host.PostInlineComment(ctx, repo, number, pr.Refs, vcs.InlineComment{
			FilePath: c.Path,
			Line:     c.Line,
			Body:     c.Body,
		})
		report.Published = append(report.Published, CommentResult{Comment: c, Err: err})
		progress("Publishing comments", i+1, len(report.Comments))
	}

	summaryErr := p.Host.PostSummary(ctx, repo, number, RenderSummaryComment(report))
	if ctx.Err() != nil {
		return p.cancel(report, ctx.Err())
	}

	// Total publishing failure: nothing was delivered although something
	// should have been. Partial failure stays a Done run.
	if len(report.Comments) > 0 && report.PublishedOK() == 0 && summaryErr != nil {
		return p.fail(ctx, report, fmt.Errorf("publish: no comment could be posted: %w", summaryErr))
	}

	if cfg.CreateIssues {
		p.createIssues(ctx, report, repo)
	}

	report.State = StateDone
	return report, nil
}

// skipReason checks the run guards; a non-empty reason ends the run early.
func (p *Pipeline) skipReason(pr *vcs.PullRequest) string {
	for _, a := range p.Config.SkipAuthors {
		if strings.EqualFold(a, pr.Author) {
			return fmt.Sprintf("skipped: author %q is excluded", pr.Author)
		}
	}
	if prefix := p.Config.SkipBranchPrefix; prefix != "" && strings.HasPrefix(pr.SourceBranch, prefix) {
		return fmt.Sprintf("skipped: source branch has prefix %q", prefix)
	}
	if label := p.Config.SkipLabel; label != "" && pr.HasLabel(label) {
		return fmt.Sprintf("skipped: pull request carries label %q", label)
	}
	return ""
}

// buildDiff converts host patches into the validated diff model, dropping
// what cannot be reviewed: binary files, deletions, excluded paths.
func (p *Pipeline) buildDiff(patches []vcs.FilePatch) (*diffparse.Diff, error) {
	var in []diffparse.FilePatch
	for _, fp := range patches {
		if fp.Deleted || strings.TrimSpace(fp.Patch) == "" {
			continue
		}
		if p.excluded(fp.NewPath) {
			continue
		}
		in = append(in, diffparse.FilePatch{
			OldPath: fp.OldPath,
			Path:    fp.NewPath,
			Patch:   fp.Patch,
			Added:   fp.New,
			Renamed: fp.Renamed,
		})
	}

	diff, err := diffparse.ParseFilePatches(in)
	if err != nil {
		return nil, err
	}
	return diff.Filter(func(fc diffparse.FileChange) bool {
		return !fc.IsBinary && len(fc.Hunks) > 0
	}), nil
}

func (p *Pipeline) excluded(path string) bool {
	for _, pattern := range p.Config.Exclude {
		if fnmatch.Match(pattern, path, 0) {
			return true
		}
	}
	return false
}

// createIssues opens one tracking issue per blocking comment. Failures are
// reported in the run output but never fail the run.
func (p *Pipeline) createIssues(ctx context.Context, report *RunReport, repo string) {
	for _, c := range report.Comments {
		if c.Severity < core.SeverityBlocking {
			continue
		}
		title := fmt.Sprintf("Review: blocking issue in %s:%d", c.Path, c.Line)
		url, err := p.Host.CreateIssue(ctx, repo, title, c.Body)
		if err != nil {
			continue
		}
		report.IssueURLs = append(report.IssueURLs, url)
	}
}

func (p *Pipeline) fail(ctx context.Context, report *RunReport, err error) (*RunReport, error) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return p.cancel(report, err)
	}
	report.State = StateFailed
	report.Err = err
	return report, err
}

func (p *Pipeline) cancel(report *RunReport, err error) (*RunReport, error) {
	report.State = StateCancelled
	report.Err = err
	return report, err
}
