package review

import (
	"github.com/revuekit/revue/internal/core"
)

// State tracks the pipeline's progress through a run. Transitions move
// strictly forward; Failed is reachable only from Fetching (diff unavailable)
// or Publishing (nothing could be posted), and Cancelled from anywhere the
// context dies.
type State int

const (
	StateFetching State = iota
	StateChunking
	StateReviewing
	StateAggregating
	StatePublishing
	StateDone
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateChunking:
		return "chunking"
	case StateReviewing:
		return "reviewing"
	case StateAggregating:
		return "aggregating"
	case StatePublishing:
		return "publishing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ChunkStatus is the per-chunk outcome within a run.
type ChunkStatus int

const (
	// ChunkSucceeded means the model call and parse both went clean.
	ChunkSucceeded ChunkStatus = iota
	// ChunkPartial means findings were extracted but some were dropped or
	// the response needed the fallback grammar.
	ChunkPartial
	// ChunkFailed means the model call failed after retries, or the
	// response was entirely unparseable.
	ChunkFailed
)

func (s ChunkStatus) String() string {
	switch s {
	case ChunkSucceeded:
		return "succeeded"
	case ChunkPartial:
		return "partial"
	case ChunkFailed:
		return "failed"
	}
	return "unknown"
}

// ChunkOutcome records what happened to one chunk.
type ChunkOutcome struct {
	Index    int
	Status   ChunkStatus
	Findings int
	Warnings []core.ParseWarning
	Err      error
}

// CommentResult records the publish attempt for one comment.
type CommentResult struct {
	Comment core.ReviewComment
	Err     error
}

// RunReport is the run-level result collected by the orchestrator: one
// record per unit of work plus the aggregate numbers, reported even on
// partial failure so the caller can judge review completeness.
type RunReport struct {
	State State

	// Repo / PR identify what was reviewed.
	Repo   string
	Number int
	Title  string
	WebURL string

	// SkipReason is set when the run ended early on purpose (bot author,
	// skip label, nothing to review). State is Done in that case.
	SkipReason string

	Chunks   []ChunkOutcome
	Findings int
	Dropped  int
	Warnings []core.ParseWarning

	Comments  []core.ReviewComment
	Published []CommentResult
	IssueURLs []string

	// Err carries the run-fatal error when State is Failed or Cancelled.
	Err error
}

// ChunksSucceeded counts clean chunk outcomes.
func (r *RunReport) ChunksSucceeded() int {
	n := 0
	for _, c := range r.Chunks {
		if c.Status != ChunkFailed {
			n++
		}
	}
	return n
}

// ChunksFailed counts failed chunk outcomes.
func (r *RunReport) ChunksFailed() int {
	return len(r.Chunks) - r.ChunksSucceeded()
}

// PublishedOK counts comments that actually posted.
func (r *RunReport) PublishedOK() int {
	n := 0
	for _, p := range r.Published {
		if p.Err == nil {
			n++
		}
	}
	return n
}

// PublishFailed counts comments that could not be posted.
func (r *RunReport) PublishFailed() int {
	return len(r.Published) - r.PublishedOK()
}

// ExitCode maps the run outcome to the process exit code.
func (r *RunReport) ExitCode() int {
	switch r.State {
	case StateDone:
		return 0
	case StateCancelled:
		return 2
	default:
		return 1
	}
}
