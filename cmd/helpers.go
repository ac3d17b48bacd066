package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/revuekit/revue/internal/config"
	"github.com/revuekit/revue/internal/provider"
	"github.com/revuekit/revue/internal/vcs"
	"github.com/spf13/cobra"
)

// applyFlags folds the persistent CLI flags into the config.
func applyFlags(cmd *cobra.Command, conf *config.Config) {
	if p, _ := cmd.Flags().GetString("provider"); p != "" {
		conf.Provider = p
	}
	if m, _ := cmd.Flags().GetString("model"); m != "" {
		conf.Model = m
	}
	if d, _ := cmd.Flags().GetBool("debug"); d {
		conf.Debug = true
	}
}

// resolveAIProvider creates an AIProvider from the current config.
func resolveAIProvider(conf config.Config) (provider.AIProvider, error) {
	pcfg := provider.ResolveProvider(conf.Viper)

	// Override provider name from CLI
	if conf.Provider != "" {
		pcfg.Name = conf.Provider
	}

	// Override model from CLI
	if conf.Model != "" {
		pcfg.Viper.Set("model", conf.Model)
	}

	return provider.Get(pcfg.Name, pcfg.Viper)
}

// buildInvoker wires the provider into a gated invoker using the configured
// concurrency and retry policy.
func buildInvoker(conf config.Config, p provider.AIProvider, concurrency int) *provider.Invoker {
	inv := provider.NewInvoker(p, concurrency, provider.RetryFromConfig(conf.Viper))
	inv.Model = conf.Model
	return inv
}

// resolveHost creates a hosting-platform client from flags, config and env.
func resolveHost(cmd *cobra.Command, conf config.Config) (vcs.Host, error) {
	name, _ := cmd.Flags().GetString("platform")
	if name == "" {
		// Auto-detect from env vars
		if os.Getenv("GITHUB_TOKEN") != "" {
			name = "github"
		} else if os.Getenv("GITLAB_TOKEN") != "" {
			name = "gitlab"
		} else {
			name = "github"
		}
	}

	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = conf.PlatformToken(name)
	}
	if token == "" {
		return nil, fmt.Errorf("no token for platform %q: set platforms.%s.token or the conventional env var", name, name)
	}

	baseURL, _ := cmd.Flags().GetString("base-url")
	if baseURL == "" {
		baseURL = conf.PlatformBaseURL(name)
	}

	return vcs.Get(name, token, baseURL)
}

// newSpinner returns a started terminal spinner with the given message.
func newSpinner(message string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Writer = os.Stderr
	s.Start()
	return s
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
