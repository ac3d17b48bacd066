package provider

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// ---------------------------------------------------------------------------
// Configuration helpers
// ---------------------------------------------------------------------------

// ProviderConfig holds the resolved configuration for instantiating a
// provider. It is used by ResolveProvider so that the CLI layer does not
// need to know about config paths.
type ProviderConfig struct {
	// Name is the provider name as it appears in the registry (e.g. "openai").
	Name string

	// Viper is a sub-tree scoped to the provider's config block.
	Viper *viper.Viper
}

// ConfigKeyProvider is the config key that holds the active provider name.
const ConfigKeyProvider = "provider"

// ResolveProvider reads the active provider name and its config block from
// the viper instance. The lookup order is:
//
//  1. --provider CLI flag (already set on the instance)
//  2. REVUE_PROVIDER environment variable
//  3. "provider" key in the config file (~/.config/revue/config.yml)
//  4. Fallback to "openai"
//
// The returned ProviderConfig.Viper is scoped to the provider's subtree:
//
//	providers:
//	  openai:
//	    api_key: ...
//	    model: gpt-4o
func ResolveProvider(v *viper.Viper) ProviderConfig {
	name := v.GetString(ConfigKeyProvider)
	if name == "" {
		name = os.Getenv("REVUE_PROVIDER")
	}
	if name == "" {
		name = "openai"
	}
	name = strings.ToLower(strings.TrimSpace(name))

	sub := v.Sub(fmt.Sprintf("providers.%s", name))
	if sub == nil {
		// No config file entry; create an empty instance so that env-var
		// and flag bindings still work.
		sub = viper.New()
	}

	// Bind common env vars so they override file-based config. Providers
	// that need additional bindings do so in their factory function.
	bindProviderEnvVars(name, sub)

	return ProviderConfig{Name: name, Viper: sub}
}

// BindProviderEnvDefaults applies a provider's defaults and env-var
// overrides to a bare viper instance. Used when inspecting providers
// outside a resolved config.
func BindProviderEnvDefaults(name string, v *viper.Viper) {
	bindProviderEnvVars(name, v)
}

// bindProviderEnvVars sets up well-known environment variables for each
// provider so that users can configure revue entirely through the shell.
func bindProviderEnvVars(name string, v *viper.Viper) {
	switch name {
	case "openai":
		v.SetDefault("model", "gpt-4o")
		v.SetDefault("base_url", "https://api.openai.com/v1")
		overrideFromEnv(v, "api_key", "OPENAI_API_KEY")
		overrideFromEnv(v, "model", "OPENAI_API_MODEL")
		overrideFromEnv(v, "base_url", "OPENAI_API_BASE")
	case "anthropic", "claude":
		v.SetDefault("model", "claude-sonnet-4-20250514")
		v.SetDefault("base_url", "https://api.anthropic.com")
		overrideFromEnv(v, "api_key", "ANTHROPIC_API_KEY")
		overrideFromEnv(v, "model", "ANTHROPIC_MODEL")
		overrideFromEnv(v, "base_url", "ANTHROPIC_API_BASE")
	default:
		// Generic / OpenAI-compatible: try REVUE_<PROVIDER>_* env vars.
		prefix := strings.ToUpper(name)
		overrideFromEnv(v, "api_key", fmt.Sprintf("REVUE_%s_API_KEY", prefix))
		overrideFromEnv(v, "model", fmt.Sprintf("REVUE_%s_MODEL", prefix))
		overrideFromEnv(v, "base_url", fmt.Sprintf("REVUE_%s_BASE_URL", prefix))
	}
}

func overrideFromEnv(v *viper.Viper, key, envName string) {
	if value := strings.TrimSpace(os.Getenv(envName)); value != "" {
		v.Set(key, value)
	}
}

// RetryFromConfig reads the retry block (shared by all providers) from the
// root viper instance, falling back to defaults for unset fields.
func RetryFromConfig(v *viper.Viper) RetryConfig {
	cfg := DefaultRetryConfig()
	if v == nil {
		return cfg
	}
	if v.IsSet("retry.max_retries") {
		cfg.MaxRetries = v.GetInt("retry.max_retries")
	}
	if d := v.GetDuration("retry.initial_interval"); d > 0 {
		cfg.InitialInterval = d
	}
	if d := v.GetDuration("retry.max_interval"); d > 0 {
		cfg.MaxInterval = d
	}
	if m := v.GetFloat64("retry.multiplier"); m > 0 {
		cfg.Multiplier = m
	}
	return cfg
}

// SampleConfigYAML returns an example config.yml snippet that documents all
// provider settings. It is used by the "revue config init" command.
func SampleConfigYAML() string {
	return `# revue configuration
# Active provider (openai | anthropic | ollama | custom).
provider: openai

# Provider-specific settings. Each block corresponds to a registered provider.
providers:
  openai:
    # api_key can also be set via OPENAI_API_KEY env var.
    api_key: ""
    model: "gpt-4o"
    # base_url: "https://api.openai.com/v1"  # override for proxies
    max_tokens: 2048
    timeout: 60s

  anthropic:
    # api_key can also be set via ANTHROPIC_API_KEY env var.
    api_key: ""
    model: "claude-sonnet-4-20250514"
    max_tokens: 2048
    timeout: 60s

  # Example: self-hosted Ollama or any OpenAI-compatible endpoint.
  ollama:
    base_url: "http://localhost:11434/v1"
    model: "llama3"
    max_tokens: 2048
    timeout: 120s

# Retry configuration (applies to all providers).
retry:
  max_retries: 3
  initial_interval: 1s
  max_interval: 30s
  multiplier: 2.0

# Review pipeline settings.
review:
  # Token budget per chunk sent to the model.
  chunk_tokens: 6000
  # Concurrent model calls.
  concurrency: 4
  # Token estimator: heuristic | tiktoken
  tokenizer: "heuristic"
  # Unchanged lines shown around each change in a hunk (0 = unlimited).
  context_lines: 3
  # Minimum severity to publish: info | suggestion | warning | blocking
  min_severity: "info"
  # Similarity above which findings on the same line merge (0..1).
  similarity_threshold: 0.6
  # Maximum published comments (0 = unlimited).
  max_comments: 0
  # Maximum findings requested per chunk (0 = unlimited).
  max_findings_per_chunk: 10
  # Paths excluded from review (glob patterns).
  exclude:
    - "vendor/**"
    - "**/*.lock"
    - "**/*_generated.go"
  # Skip pull requests from these authors (bots).
  skip_authors:
    - "dependabot[bot]"
    - "renovate[bot]"
  # Skip pull requests whose source branch has this prefix.
  skip_branch_prefix: "revue-fix-"
  # Skip pull requests carrying this label.
  skip_label: "revue-skip"

# Hosting platform settings.
platforms:
  github:
    # token can also be set via GITHUB_TOKEN env var.
    token: ""
    # base_url: "https://github.example.com/api/v3"  # GitHub Enterprise
  gitlab:
    # token can also be set via GITLAB_TOKEN env var.
    token: ""
    # base_url: "https://gitlab.example.com"

# Display options.
debug: false
`
}
