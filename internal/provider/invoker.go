package provider

import (
	"context"
	"errors"
	"sync"
)

// Prompt is one unit of work for the invoker: a system/user message pair
// labeled with the caller's index so results can be matched back.
type Prompt struct {
	Index  int
	System string
	User   string
}

// Result is the outcome of invoking the model for one prompt. Exactly one of
// Content or Err is meaningful; Err carries the final error after retries
// were exhausted or a permanent failure was hit.
type Result struct {
	Index   int
	Content string
	Usage   Usage
	Err     error
}

// Failed reports whether this prompt ultimately failed.
func (r Result) Failed() bool { return r.Err != nil }

// Invoker fans prompts out to an AIProvider with bounded concurrency,
// per-call retry, and a shared rate-limit cooldown. A single Invoker is safe
// for concurrent use; all calls share its Gate.
type Invoker struct {
	provider AIProvider
	gate     *Gate
	retry    RetryConfig

	// Model overrides the provider's default model when non-empty.
	Model string

	// MaxTokens caps response length per call (0 = provider default).
	MaxTokens int
}

// NewInvoker builds an Invoker over p with at most concurrency in-flight
// calls and the given retry policy.
func NewInvoker(p AIProvider, concurrency int, retry RetryConfig) *Invoker {
	return &Invoker{
		provider: p,
		gate:     NewGate(concurrency),
		retry:    retry,
	}
}

// Invoke runs a single prompt through the gate and retry policy.
func (inv *Invoker) Invoke(ctx context.Context, p Prompt) Result {
	res := Result{Index: p.Index}

	if err := inv.gate.Acquire(ctx); err != nil {
		res.Err = err
		return res
	}
	defer inv.gate.Release()

	resp, err := WithRetry(ctx, inv.retry, inv.gate, func() (*CompletionResponse, error) {
		return inv.provider.Complete(ctx, inv.buildRequest(p))
	})
	if err != nil {
		res.Err = err
		return res
	}
	res.Content = resp.Content
	res.Usage = resp.Usage
	return res
}

// InvokeAll runs every prompt concurrently (bounded by the gate) and returns
// results in the same order as the input. A failed prompt occupies its slot
// with Err set; other prompts are unaffected. Context cancellation stops
// scheduling and is reported per-result as ctx.Err().
func (inv *Invoker) InvokeAll(ctx context.Context, prompts []Prompt) []Result {
	results := make([]Result, len(prompts))

	var wg sync.WaitGroup
	for i, p := range prompts {
		wg.Add(1)
		go func(slot int, p Prompt) {
			defer wg.Done()
			results[slot] = inv.Invoke(ctx, p)
		}(i, p)
	}
	wg.Wait()

	return results
}

func (inv *Invoker) buildRequest(p Prompt) CompletionRequest {
	var msgs []Message
	if p.System != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: p.System})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: p.User})
	return CompletionRequest{
		Model:     inv.Model,
		Messages:  msgs,
		MaxTokens: inv.MaxTokens,
	}
}

// Permanent reports whether an invocation error is non-transient: retrying
// or re-running the pipeline with the same input would fail again. Context
// cancellation is deliberately not permanent.
func Permanent(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !Retryable(err)
}
