package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/revuekit/revue/internal/config"
	"github.com/revuekit/revue/internal/core"
	"github.com/revuekit/revue/internal/diffparse"
	"github.com/revuekit/revue/internal/gitlocal"
	"github.com/revuekit/revue/internal/provider"
	"github.com/revuekit/revue/internal/renders"
	"github.com/revuekit/revue/internal/review"
	"github.com/revuekit/revue/internal/tokens"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newLocalCmd())
}

// newLocalCmd reviews a local branch against a base ref, without touching any
// hosting platform. Useful before opening the pull request.
func newLocalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "local [branch]",
		Short:   "Review a local branch before opening a pull request",
		Example: "revue local\nrevue local feature/login --base develop",
		Args:    cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			conf := config.NewDefaultConfig()
			applyFlags(cmd, &conf)

			rc := conf.RunConfig()
			applyRunFlags(cmd, &rc)
			rc.DryRun = true

			repoPath, _ := cmd.Flags().GetString("repo")
			base, _ := cmd.Flags().GetString("base")

			branch := ""
			if len(args) > 0 {
				branch = args[0]
			} else {
				var err error
				branch, err = gitlocal.CurrentBranch(repoPath)
				if err != nil {
					fail(err)
				}
			}

			aiProvider, err := resolveAIProvider(conf)
			if err != nil {
				fail(err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			spin := newSpinner(fmt.Sprintf("Reviewing %s..%s", base, branch))
			report, runErr := runLocalReview(ctx, localReviewInput{
				RepoPath: repoPath,
				Base:     base,
				Branch:   branch,
				Config:   rc,
				Invoker:  buildInvoker(conf, aiProvider, rc.Concurrency),
			})
			spin.Stop()

			fmt.Print(renders.RenderMarkdown(review.RenderRunReport(report)))
			if runErr != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
			}
			os.Exit(report.ExitCode())
		},
	}

	cmd.Flags().String("base", "main", "Base ref to diff against")
	cmd.Flags().String("repo", ".", "Path to the local repository")
	addRunFlags(cmd)

	return cmd
}

type localReviewInput struct {
	RepoPath string
	Base     string
	Branch   string
	Config   review.RunConfig
	Invoker  review.ChunkInvoker
}

// runLocalReview mirrors the hosted pipeline's review stages on a local diff:
// chunk, invoke, parse, aggregate. Nothing is ever published.
func runLocalReview(ctx context.Context, in localReviewInput) (*review.RunReport, error) {
	cfg := in.Config
	report := &review.RunReport{
		State: review.StateFetching,
		Title: fmt.Sprintf("%s..%s", in.Base, in.Branch),
	}

	raw, err := gitlocal.BranchDiff(in.RepoPath, in.Base, in.Branch)
	if err != nil {
		report.State = review.StateFailed
		report.Err = err
		return report, err
	}

	diff, err := diffparse.ParseGitDiff(raw)
	if err != nil {
		report.State = review.StateFailed
		report.Err = err
		return report, err
	}
	diff = diff.Filter(func(fc diffparse.FileChange) bool {
		return !fc.IsBinary && len(fc.Hunks) > 0
	})

	report.State = review.StateChunking
	if diff.Empty() {
		report.State = review.StateDone
		report.SkipReason = "nothing to review"
		return report, nil
	}

	est, err := tokens.ForName(cfg.Tokenizer)
	if err != nil {
		est = tokens.Heuristic
	}
	chunks := review.ChunkDiff(diff, cfg.ChunkTokens, est)
	if len(chunks) == 0 {
		report.State = review.StateDone
		report.SkipReason = "nothing to review"
		return report, nil
	}

	report.State = review.StateReviewing
	meta := review.PromptMeta{
		Title:        report.Title,
		SourceRef:    in.Branch,
		TargetRef:    in.Base,
		Guidelines:   cfg.Guidelines,
		ChunkCount:   len(chunks),
		MaxFindings:  cfg.MaxFindingsPerChunk,
		ContextLines: cfg.ContextLines,
	}
	prompts := make([]provider.Prompt, len(chunks))
	for i, c := range chunks {
		prompts[i] = provider.Prompt{
			Index:  i,
			System: review.SystemPrompt,
			User:   review.BuildChunkPrompt(c, meta),
		}
	}

	results := in.Invoker.InvokeAll(ctx, prompts)
	if ctx.Err() != nil {
		report.State = review.StateCancelled
		report.Err = ctx.Err()
		return report, ctx.Err()
	}

	var findings []core.Finding
	for i, res := range results {
		outcome := review.ChunkOutcome{Index: i}
		if res.Err != nil {
			outcome.Status = review.ChunkFailed
			outcome.Err = res.Err
		} else {
			fs, warns := core.ParseFindings(res.Content, i, chunks[i])
			outcome.Findings = len(fs)
			outcome.Warnings = warns
			switch {
			case len(warns) > 0 && len(fs) == 0:
				outcome.Status = review.ChunkFailed
			case len(warns) > 0:
				outcome.Status = review.ChunkPartial
			default:
				outcome.Status = review.ChunkSucceeded
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
	}
	report.Findings = len(findings)

	report.State = review.StateAggregating
	report.Comments = core.Aggregate(findings, core.AggregateOptions{
		MinSeverity:         cfg.MinSeverity,
		SimilarityThreshold: cfg.SimilarityThreshold,
		MaxComments:         cfg.MaxComments,
	})

	report.State = review.StateDone
	return report, nil
}
