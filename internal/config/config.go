// Package config loads the CLI configuration from ~/.config/revue/config.yml
// (plus environment and flag overrides applied by the cmd layer) and turns it
// into the typed settings the pipeline consumes.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/revuekit/revue/internal/core"
	"github.com/revuekit/revue/internal/review"
	"github.com/spf13/viper"
)

const (
	// ConfigDirName is the directory under the user's home.
	ConfigDirName = ".config/revue"
	// ConfigFileName is the YAML config file name inside ConfigDirName.
	ConfigFileName = "config.yml"
)

// Config contains the CLI dependencies resolved at startup.
type Config struct {
	Viper *viper.Viper

	ConfigDirPath  string
	ConfigFilePath string

	Debug    bool
	Provider string
	Model    string

	// io writers, useful for testing
	InReader  io.Reader
	OutWriter io.Writer
	ErrWriter io.Writer
}

// NewDefaultConfig creates a config with the file (if present) loaded.
func NewDefaultConfig() Config {
	conf := Config{
		InReader:  os.Stdin,
		OutWriter: os.Stdout,
		ErrWriter: os.Stderr,
	}

	if dir, err := DirPath(); err == nil {
		conf.ConfigDirPath = dir
		conf.ConfigFilePath = filepath.Join(dir, ConfigFileName)
	}

	conf.Viper = loadViper(conf.ConfigFilePath)
	conf.Debug = conf.Viper.GetBool("debug")
	conf.Provider = conf.Viper.GetString("provider")
	return conf
}

// DirPath returns the absolute config directory path.
func DirPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ConfigDirName), nil
}

func loadViper(cfgFile string) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		// Config file not found is OK, we use defaults.
		_ = v.ReadInConfig()
	}
	return v
}

// RunConfig builds the pipeline settings from the "review" block of the
// config file, with defaults for anything unset.
func (c Config) RunConfig() review.RunConfig {
	rc := review.DefaultRunConfig()
	v := c.Viper

	if n := v.GetInt("review.chunk_tokens"); n > 0 {
		rc.ChunkTokens = n
	}
	if n := v.GetInt("review.concurrency"); n > 0 {
		rc.Concurrency = n
	}
	if s := v.GetString("review.tokenizer"); s != "" {
		rc.Tokenizer = s
	}
	if v.IsSet("review.context_lines") {
		rc.ContextLines = v.GetInt("review.context_lines")
	}
	if s := v.GetString("review.min_severity"); s != "" {
		if sev, ok := core.ParseSeverity(s); ok {
			rc.MinSeverity = sev
		}
	}
	if f := v.GetFloat64("review.similarity_threshold"); f > 0 {
		rc.SimilarityThreshold = f
	}
	if v.IsSet("review.max_comments") {
		rc.MaxComments = v.GetInt("review.max_comments")
	}
	if v.IsSet("review.max_findings_per_chunk") {
		rc.MaxFindingsPerChunk = v.GetInt("review.max_findings_per_chunk")
	}
	if ex := v.GetStringSlice("review.exclude"); len(ex) > 0 {
		rc.Exclude = ex
	}
	if a := v.GetStringSlice("review.skip_authors"); len(a) > 0 {
		rc.SkipAuthors = a
	}
	if s := v.GetString("review.skip_branch_prefix"); s != "" {
		rc.SkipBranchPrefix = s
	}
	if s := v.GetString("review.skip_label"); s != "" {
		rc.SkipLabel = s
	}
	rc.Guidelines = v.GetString("review.guidelines")
	rc.Debug = c.Debug

	return rc
}

// PlatformToken returns the configured token for a hosting platform,
// falling back to the conventional environment variable.
func (c Config) PlatformToken(platform string) string {
	if t := c.Viper.GetString(fmt.Sprintf("platforms.%s.token", platform)); t != "" {
		return t
	}
	switch platform {
	case "github":
		return os.Getenv("GITHUB_TOKEN")
	case "gitlab":
		return os.Getenv("GITLAB_TOKEN")
	}
	return ""
}

// PlatformBaseURL returns the configured base URL for a hosting platform.
func (c Config) PlatformBaseURL(platform string) string {
	return c.Viper.GetString(fmt.Sprintf("platforms.%s.base_url", platform))
}

// WriteSample writes the sample config file, creating the directory if
// needed. It refuses to overwrite an existing file.
func WriteSample(content string) (string, error) {
	dir, err := DirPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config dir: %w", err)
	}
	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		return path, fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}
