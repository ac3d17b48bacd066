package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/revuekit/revue/internal/config"
	"github.com/revuekit/revue/internal/provider"
	"github.com/revuekit/revue/internal/vcs"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	aiCmd := &cobra.Command{
		Use:   "ai",
		Short: "Manage AI providers",
	}
	aiCmd.AddCommand(newAIListCmd(), newAIShowCmd())
	rootCmd.AddCommand(aiCmd)
}

// providerStatus checks whether a provider is usable with whatever
// credentials the environment carries.
func providerStatus(name string) (provider.ProviderInfo, string, bool) {
	v := viper.New()
	provider.BindProviderEnvDefaults(name, v)
	p, err := provider.Get(name, v)
	if err != nil {
		return provider.ProviderInfo{}, "", false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	status := "configured"
	if err := p.Validate(ctx); err != nil {
		status = "missing credentials"
	}
	return p.Info(), status, true
}

func newAIListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available AI providers and hosting platforms",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Available providers:")
			for _, name := range provider.Names() {
				info, status, ok := providerStatus(name)
				if !ok {
					fmt.Printf("  - %-15s (not configured)\n", name)
					continue
				}
				fmt.Printf("  - %-15s %s [%s] (default model: %s)\n",
					info.Name, info.DisplayName, status, info.DefaultModel)
			}

			fmt.Println("\nAvailable platforms:")
			for _, name := range vcs.Names() {
				fmt.Printf("  - %s\n", name)
			}
		},
	}
}

func newAIShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current AI provider and model",
		Run: func(cmd *cobra.Command, args []string) {
			conf := config.NewDefaultConfig()
			applyFlags(cmd, &conf)

			pcfg := provider.ResolveProvider(conf.Viper)
			if conf.Provider != "" {
				pcfg.Name = conf.Provider
			}

			p, err := provider.Get(pcfg.Name, pcfg.Viper)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}

			info := p.Info()
			model := conf.Model
			if model == "" {
				model = pcfg.Viper.GetString("model")
			}
			if model == "" {
				model = info.DefaultModel
			}
			fmt.Printf("Provider:  %s (%s)\n", info.Name, info.DisplayName)
			fmt.Printf("Model:     %s\n", model)
			fmt.Printf("Streaming: %v\n", info.SupportsStreaming)
		},
	}
}
