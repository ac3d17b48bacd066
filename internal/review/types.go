package review

import "github.com/revuekit/revue/internal/core"

// RunConfig holds configuration for the pull request review pipeline.
type RunConfig struct {
	// ChunkTokens is the token budget per chunk sent to the model.
	ChunkTokens int

	// Concurrency bounds the number of in-flight model calls.
	Concurrency int

	// Tokenizer names the token estimator ("heuristic" or "tiktoken").
	Tokenizer string

	// ContextLines caps the unchanged lines shown around each change in a
	// hunk (0 = no bound).
	ContextLines int

	// MinSeverity drops findings below this rank at aggregation.
	MinSeverity core.Severity

	// SimilarityThreshold tunes near-duplicate merging (0 = default).
	SimilarityThreshold float64

	// MaxComments caps published comments (0 = unlimited).
	MaxComments int

	// MaxFindingsPerChunk caps findings requested per chunk (0 = unlimited).
	MaxFindingsPerChunk int

	// Exclude holds glob patterns for paths that skip review.
	Exclude []string

	// SkipAuthors lists PR authors whose pull requests are not reviewed
	// (typically bots).
	SkipAuthors []string

	// SkipBranchPrefix skips pull requests whose source branch carries this
	// prefix, so automated fix branches never review themselves.
	SkipBranchPrefix string

	// SkipLabel skips pull requests carrying this label.
	SkipLabel string

	// Guidelines is free-form reviewer instruction text appended to every
	// chunk prompt.
	Guidelines string

	// CreateIssues opens a tracking issue per blocking finding.
	CreateIssues bool

	// DryRun parses, reviews and aggregates but publishes nothing.
	DryRun bool

	// Debug enables verbose progress output.
	Debug bool
}

// DefaultRunConfig returns a RunConfig with sensible defaults.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		ChunkTokens:         6000,
		Concurrency:         4,
		Tokenizer:           "heuristic",
		ContextLines:        3,
		MinSeverity:         core.SeverityInfo,
		SimilarityThreshold: core.DefaultSimilarityThreshold,
		MaxFindingsPerChunk: 10,
		SkipBranchPrefix:    "revue-fix-",
		SkipLabel:           "revue-skip",
	}
}
