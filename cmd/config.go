package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/revuekit/revue/internal/config"
	"github.com/revuekit/revue/internal/core"
	"github.com/revuekit/revue/internal/provider"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func init() {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage revue configuration",
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigPathCmd())
	configCmd.AddCommand(newConfigValidateCmd())
	rootCmd.AddCommand(configCmd)
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create default config file at ~/.config/revue/config.yml",
		Run: func(cmd *cobra.Command, args []string) {
			path, err := config.WriteSample(provider.SampleConfigYAML())
			if err != nil {
				fail(err)
			}
			fmt.Printf("Config file created at %s\n", path)
		},
	}
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print current config",
		Run: func(cmd *cobra.Command, args []string) {
			conf := config.NewDefaultConfig()

			data, err := os.ReadFile(conf.ConfigFilePath)
			if err != nil {
				fmt.Printf("No config file found at %s\n", conf.ConfigFilePath)
				fmt.Println("\nDefault configuration:")
				fmt.Println(provider.SampleConfigYAML())
				return
			}

			fmt.Printf("# Config file: %s\n", conf.ConfigFilePath)
			fmt.Println(string(data))
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Run: func(cmd *cobra.Command, args []string) {
			conf := config.NewDefaultConfig()
			fmt.Println(conf.ConfigFilePath)
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate config values and required provider fields",
		Run: func(cmd *cobra.Command, args []string) {
			conf := config.NewDefaultConfig()
			applyFlags(cmd, &conf)

			errs := validateEffectiveConfig(conf)
			if len(errs) > 0 {
				fmt.Println("Configuration is invalid:")
				for _, e := range errs {
					fmt.Printf("- %s\n", e)
				}
				os.Exit(1)
			}

			effective := map[string]interface{}{
				"provider": provider.ResolveProvider(conf.Viper).Name,
				"review":   conf.RunConfig(),
			}
			out, err := yaml.Marshal(effective)
			if err == nil {
				fmt.Println("Configuration is valid. Effective settings:")
				fmt.Print(string(out))
				return
			}
			fmt.Println("Configuration is valid.")
		},
	}
}

func validateEffectiveConfig(conf config.Config) []string {
	var errs []string

	pcfg := provider.ResolveProvider(conf.Viper)
	if conf.Provider != "" {
		pcfg.Name = conf.Provider
	}
	pv := pcfg.Viper

	apiKey := strings.TrimSpace(pv.GetString("api_key"))
	baseURL := strings.TrimSpace(pv.GetString("base_url"))

	switch pcfg.Name {
	case "openai":
		if apiKey == "" {
			errs = append(errs, "providers.openai.api_key (or OPENAI_API_KEY) is required")
		}
	case "anthropic", "claude":
		if apiKey == "" {
			errs = append(errs, "providers.anthropic.api_key (or ANTHROPIC_API_KEY) is required")
		}
	default:
		if baseURL == "" {
			errs = append(errs, fmt.Sprintf("providers.%s.base_url (or REVUE_%s_BASE_URL) is required",
				pcfg.Name, strings.ToUpper(pcfg.Name)))
		}
	}

	v := conf.Viper
	if n := v.GetInt("review.chunk_tokens"); v.IsSet("review.chunk_tokens") && n <= 0 {
		errs = append(errs, "review.chunk_tokens must be > 0")
	}
	if n := v.GetInt("review.concurrency"); v.IsSet("review.concurrency") && n <= 0 {
		errs = append(errs, "review.concurrency must be > 0")
	}
	if t := strings.ToLower(strings.TrimSpace(v.GetString("review.tokenizer"))); t != "" &&
		t != "heuristic" && t != "tiktoken" {
		errs = append(errs, "review.tokenizer must be one of: heuristic, tiktoken")
	}
	if s := v.GetString("review.min_severity"); s != "" {
		if _, ok := core.ParseSeverity(s); !ok {
			errs = append(errs, "review.min_severity must be one of: info, suggestion, warning, blocking")
		}
	}
	if th := v.GetFloat64("review.similarity_threshold"); v.IsSet("review.similarity_threshold") && (th < 0 || th > 1) {
		errs = append(errs, "review.similarity_threshold must be between 0 and 1")
	}
	if m := v.GetInt("review.max_comments"); m < 0 {
		errs = append(errs, "review.max_comments must be >= 0")
	}
	if n := v.GetInt("review.context_lines"); n < 0 {
		errs = append(errs, "review.context_lines must be >= 0")
	}

	return errs
}
