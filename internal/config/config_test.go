package config

import (
	"testing"

	"github.com/revuekit/revue/internal/core"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunConfig_Defaults(t *testing.T) {
	c := Config{Viper: viper.New()}
	rc := c.RunConfig()

	assert.Equal(t, 6000, rc.ChunkTokens)
	assert.Equal(t, 4, rc.Concurrency)
	assert.Equal(t, "heuristic", rc.Tokenizer)
	assert.Equal(t, 3, rc.ContextLines)
	assert.Equal(t, core.SeverityInfo, rc.MinSeverity)
	assert.Equal(t, core.DefaultSimilarityThreshold, rc.SimilarityThreshold)
	assert.Equal(t, "revue-fix-", rc.SkipBranchPrefix)
	assert.Equal(t, "revue-skip", rc.SkipLabel)
}

func TestRunConfig_FileOverrides(t *testing.T) {
	v := viper.New()
	v.Set("review.chunk_tokens", 2000)
	v.Set("review.concurrency", 8)
	v.Set("review.tokenizer", "tiktoken")
	v.Set("review.context_lines", 0)
	v.Set("review.min_severity", "warning")
	v.Set("review.similarity_threshold", 0.8)
	v.Set("review.max_comments", 15)
	v.Set("review.exclude", []string{"vendor/**"})
	v.Set("review.skip_authors", []string{"renovate[bot]"})
	v.Set("review.guidelines", "prefer table tests")

	c := Config{Viper: v}
	rc := c.RunConfig()

	assert.Equal(t, 2000, rc.ChunkTokens)
	assert.Equal(t, 8, rc.Concurrency)
	assert.Equal(t, "tiktoken", rc.Tokenizer)
	assert.Equal(t, 0, rc.ContextLines, "an explicit zero lifts the bound")
	assert.Equal(t, core.SeverityWarning, rc.MinSeverity)
	assert.Equal(t, 0.8, rc.SimilarityThreshold)
	assert.Equal(t, 15, rc.MaxComments)
	assert.Equal(t, []string{"vendor/**"}, rc.Exclude)
	assert.Equal(t, []string{"renovate[bot]"}, rc.SkipAuthors)
	assert.Equal(t, "prefer table tests", rc.Guidelines)
}

func TestRunConfig_InvalidSeverityIgnored(t *testing.T) {
	v := viper.New()
	v.Set("review.min_severity", "catastrophic")

	c := Config{Viper: v}
	assert.Equal(t, core.SeverityInfo, c.RunConfig().MinSeverity)
}

func TestPlatformToken(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "ghp_env")
	t.Setenv("GITLAB_TOKEN", "")

	v := viper.New()
	c := Config{Viper: v}
	assert.Equal(t, "ghp_env", c.PlatformToken("github"))
	assert.Empty(t, c.PlatformToken("gitlab"))

	// File value wins over the environment.
	v.Set("platforms.github.token", "ghp_file")
	assert.Equal(t, "ghp_file", c.PlatformToken("github"))
}

func TestPlatformBaseURL(t *testing.T) {
	v := viper.New()
	v.Set("platforms.gitlab.base_url", "https://gitlab.example.com")

	c := Config{Viper: v}
	assert.Equal(t, "https://gitlab.example.com", c.PlatformBaseURL("gitlab"))
	assert.Empty(t, c.PlatformBaseURL("github"))
}

func TestDirPath(t *testing.T) {
	dir, err := DirPath()
	require.NoError(t, err)
	assert.Contains(t, dir, ".config/revue")
}
