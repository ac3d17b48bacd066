package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/revuekit/revue/internal/common"
	"github.com/revuekit/revue/internal/config"
	"github.com/revuekit/revue/internal/core"
	"github.com/revuekit/revue/internal/printers"
	"github.com/revuekit/revue/internal/renders"
	"github.com/revuekit/revue/internal/review"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newReviewCmd())
}

func newReviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "review <repo> <number>",
		Short:   "Review a pull request using AI",
		Example: "revue review my-org/my-repo 42\nrevue review my-org/my-repo 42 --dry-run --provider anthropic",
		Args:    cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			conf := config.NewDefaultConfig()
			applyFlags(cmd, &conf)

			repo := args[0]
			number, err := strconv.Atoi(args[1])
			if err != nil {
				fail(fmt.Errorf("invalid PR number %q: %v", args[1], err))
			}

			rc := conf.RunConfig()
			applyRunFlags(cmd, &rc)

			host, err := resolveHost(cmd, conf)
			if err != nil {
				fail(err)
			}
			aiProvider, err := resolveAIProvider(conf)
			if err != nil {
				fail(err)
			}

			if !rc.DryRun {
				yes, _ := cmd.Flags().GetBool("yes")
				if !yes && !printers.Confirm(fmt.Sprintf("Publish review comments on %s#%d?", repo, number)) {
					rc.DryRun = true
					fmt.Fprintln(os.Stderr, "Running in dry-run mode; nothing will be published.")
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			spin := newSpinner("Reviewing...")
			pipeline := &review.Pipeline{
				Host:    host,
				Invoker: buildInvoker(conf, aiProvider, rc.Concurrency),
				Config:  rc,
				OnProgress: func(stage string, current, total int) {
					if total > 0 {
						spin.Suffix = fmt.Sprintf(" %s (%d/%d)", stage, current, total)
					} else {
						spin.Suffix = " " + stage
					}
				},
			}

			report, runErr := pipeline.Run(ctx, repo, number)
			spin.Stop()

			output := review.RenderRunReport(report)
			fmt.Print(renders.RenderMarkdown(output))

			if copyOut, _ := cmd.Flags().GetBool("copy"); copyOut {
				if err := common.SetClipboardValue(output); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: could not copy to clipboard: %v\n", err)
				}
			}

			if runErr != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
			}
			os.Exit(report.ExitCode())
		},
	}

	addPlatformFlags(cmd)
	addRunFlags(cmd)
	cmd.Flags().Bool("yes", false, "Publish without confirmation prompt")
	cmd.Flags().Bool("copy", false, "Copy the review report to the clipboard")

	return cmd
}

func addPlatformFlags(cmd *cobra.Command) {
	cmd.Flags().String("platform", "", "Hosting platform: github or gitlab (auto-detected from env)")
	cmd.Flags().String("token", "", "Platform API token")
	cmd.Flags().String("base-url", "", "Platform API base URL (for self-hosted instances)")
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("dry-run", false, "Review without publishing anything")
	cmd.Flags().Int("chunk-tokens", 0, "Token budget per review chunk")
	cmd.Flags().Int("concurrency", 0, "Concurrent model calls")
	cmd.Flags().String("tokenizer", "", "Token estimator: heuristic or tiktoken")
	cmd.Flags().Int("context-lines", -1, "Unchanged lines shown around each change (0 = unlimited)")
	cmd.Flags().String("min-severity", "", "Minimum severity to publish: info, suggestion, warning, blocking")
	cmd.Flags().Int("max-comments", -1, "Maximum comments to publish (0 = unlimited)")
	cmd.Flags().Bool("create-issues", false, "Open a tracking issue per blocking finding")
	cmd.Flags().StringSlice("exclude", nil, "Glob patterns of paths to skip")
}

func applyRunFlags(cmd *cobra.Command, rc *review.RunConfig) {
	if v, _ := cmd.Flags().GetBool("dry-run"); v {
		rc.DryRun = true
	}
	if v, _ := cmd.Flags().GetInt("chunk-tokens"); v > 0 {
		rc.ChunkTokens = v
	}
	if v, _ := cmd.Flags().GetInt("concurrency"); v > 0 {
		rc.Concurrency = v
	}
	if v, _ := cmd.Flags().GetString("tokenizer"); v != "" {
		rc.Tokenizer = v
	}
	if v, _ := cmd.Flags().GetInt("context-lines"); v >= 0 {
		rc.ContextLines = v
	}
	if v, _ := cmd.Flags().GetString("min-severity"); v != "" {
		if sev, ok := core.ParseSeverity(v); ok {
			rc.MinSeverity = sev
		}
	}
	if v, _ := cmd.Flags().GetInt("max-comments"); v >= 0 {
		rc.MaxComments = v
	}
	if v, _ := cmd.Flags().GetBool("create-issues"); v {
		rc.CreateIssues = true
	}
	if v, _ := cmd.Flags().GetStringSlice("exclude"); len(v) > 0 {
		rc.Exclude = append(rc.Exclude, v...)
	}
}
