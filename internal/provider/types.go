// Package provider abstracts the AI services that score diffs (OpenAI,
// Anthropic Claude, any OpenAI-compatible endpoint) behind one interface,
// and layers the review machinery on top of it: bounded concurrency,
// retry with backoff, and a rate-limit cooldown shared by all in-flight
// calls.
package provider

import (
	"context"
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

// Role identifies who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ---------------------------------------------------------------------------
// Requests and responses
// ---------------------------------------------------------------------------

// CompletionRequest is the provider-neutral request. Each implementation
// translates it into its service's native payload.
type CompletionRequest struct {
	// Model names the provider-specific model. Empty means the provider's
	// default model.
	Model string `json:"model"`

	// Messages is the ordered conversation, system message first if any.
	Messages []Message `json:"messages"`

	// MaxTokens caps the response length; 0 leaves it to the provider.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature and TopP are sampling knobs; nil keeps the provider
	// default.
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`

	// Stream requests server-sent events. Callers wanting a stream use
	// CompleteStream rather than setting this directly.
	Stream bool `json:"stream,omitempty"`

	// StopSequences ends generation when the model emits any of them.
	StopSequences []string `json:"stop,omitempty"`
}

// CompletionResponse is the provider-neutral result of a blocking call.
type CompletionResponse struct {
	ID    string `json:"id"`
	Model string `json:"model"`

	// Content is the first choice's text; all choices are in Choices.
	Content string   `json:"content"`
	Choices []Choice `json:"choices,omitempty"`

	Usage Usage `json:"usage"`

	// FinishReason is the provider's stop reason ("stop", "max_tokens",
	// "end_turn", ...).
	FinishReason string `json:"finish_reason"`
}

// Choice is one completion alternative.
type Choice struct {
	Index        int    `json:"index"`
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason"`
}

// Usage is the provider's token accounting for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ---------------------------------------------------------------------------
// Streaming
// ---------------------------------------------------------------------------

// StreamChunk is one delta of a streamed response. The final chunk has
// Done set, and carries FinishReason and Usage when the service reports
// them.
type StreamChunk struct {
	Content      string
	Done         bool
	FinishReason string
	Usage        *Usage
}

// StreamResult pairs the chunk stream with its terminal error. Drain
// Chunks, then receive once from Err; Err yields at most one value after
// Chunks closes.
type StreamResult struct {
	Chunks <-chan StreamChunk
	Err    <-chan error
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// ErrorCode is the normalized failure class. The invoker keys its
// retry decision off this, never off provider payloads.
type ErrorCode string

const (
	ErrCodeAuthentication      ErrorCode = "authentication"
	ErrCodeRateLimit           ErrorCode = "rate_limit"
	ErrCodeInvalidRequest      ErrorCode = "invalid_request"
	ErrCodeContextLength       ErrorCode = "context_length"
	ErrCodeContentFilter       ErrorCode = "content_filter"
	ErrCodeProviderUnavailable ErrorCode = "provider_unavailable"
	ErrCodeTimeout             ErrorCode = "timeout"
	ErrCodeUnknown             ErrorCode = "unknown"
)

// ProviderError carries a normalized code next to the raw provider
// detail. It unwraps to its cause and matches sentinels by code through
// errors.Is.
type ProviderError struct {
	Code       ErrorCode
	Message    string
	Provider   string
	StatusCode int

	// RetryAfter is the backoff the service asked for (Retry-After on a
	// 429). Zero means no hint; the gate falls back to its own backoff.
	RetryAfter time.Duration

	Cause error
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (status %d): %v",
			e.Provider, e.Code, e.Message, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s (status %d)",
		e.Provider, e.Code, e.Message, e.StatusCode)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// Is matches any ProviderError with the same code, so
// errors.Is(err, ErrRateLimit) works regardless of provider detail.
func (e *ProviderError) Is(target error) bool {
	t, ok := target.(*ProviderError)
	return ok && e.Code == t.Code
}

// Sentinels for errors.Is.
var (
	ErrAuthentication      = &ProviderError{Code: ErrCodeAuthentication}
	ErrRateLimit           = &ProviderError{Code: ErrCodeRateLimit}
	ErrInvalidRequest      = &ProviderError{Code: ErrCodeInvalidRequest}
	ErrContextLength       = &ProviderError{Code: ErrCodeContextLength}
	ErrContentFilter       = &ProviderError{Code: ErrCodeContentFilter}
	ErrProviderUnavailable = &ProviderError{Code: ErrCodeProviderUnavailable}
	ErrTimeout             = &ProviderError{Code: ErrCodeTimeout}
)

// ---------------------------------------------------------------------------
// Retry configuration
// ---------------------------------------------------------------------------

// RetryConfig tunes the exponential backoff in WithRetry. The zero value
// disables retries entirely.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultRetryConfig is 3 retries starting at 1s, doubling, capped at 30s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
	}
}

// ---------------------------------------------------------------------------
// Provider interface
// ---------------------------------------------------------------------------

// ProviderInfo is static metadata for listings and help text.
type ProviderInfo struct {
	// Name is the short configuration name ("openai", "anthropic", ...).
	Name string

	DisplayName string
	Description string

	// DefaultModel serves requests that leave Model empty.
	DefaultModel string

	SupportsStreaming bool
}

// AIProvider is implemented once per AI service. Implementations do not
// retry; they classify failures into ProviderError codes and leave the
// retry decision to the invoker.
type AIProvider interface {
	// Info returns static metadata about this provider.
	Info() ProviderInfo

	// Complete sends one completion request and blocks for the full
	// response. The context bounds the call.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CompleteStream starts a streamed completion. The caller must drain
	// Chunks. Providers without streaming emit the whole response as a
	// single chunk.
	CompleteStream(ctx context.Context, req CompletionRequest) StreamResult

	// Validate reports whether the provider is usable as configured (key
	// present, endpoint reachable). Run at startup and by `revue ai list`.
	Validate(ctx context.Context) error
}
