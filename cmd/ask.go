package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/revuekit/revue/internal/config"
	"github.com/revuekit/revue/internal/provider"
	"github.com/revuekit/revue/internal/renders"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newAskCmd())
}

// newAskCmd sends a one-off question to the configured provider and streams
// the answer. Handy for quick follow-ups on a finding without leaving the
// terminal.
func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ask <question>",
		Short:   "Ask the configured AI provider a one-off question",
		Example: `revue ask "why is reusing a sync.WaitGroup after Wait racy?"`,
		Args:    cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			conf := config.NewDefaultConfig()
			applyFlags(cmd, &conf)

			p, err := resolveAIProvider(conf)
			if err != nil {
				fail(err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			req := provider.CompletionRequest{
				Model: conf.Model,
				Messages: []provider.Message{
					{Role: provider.RoleUser, Content: strings.Join(args, " ")},
				},
				Stream: true,
			}

			if err := renders.RenderStream(p.CompleteStream(ctx, req)); err != nil {
				fail(err)
			}
		},
	}
}
