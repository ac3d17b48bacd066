package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	_ "github.com/revuekit/revue/internal/provider/init"
	_ "github.com/revuekit/revue/internal/vcs/init"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "revue",
	Short: "An automated pull request reviewer in your terminal.",
	Long: `revue fetches a pull request diff, splits it into model-sized chunks,
reviews each chunk with an AI provider, deduplicates the findings and
publishes the result as inline review comments.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("provider", "", "AI provider to use (openai, anthropic)")
	rootCmd.PersistentFlags().String("model", "", "Model identifier override")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug output")

	// Accept snake_case spellings of multi-word flags.
	rootCmd.PersistentFlags().SetNormalizeFunc(normalizeFlag)
}

func normalizeFlag(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}
