// Package anthropic talks to the Anthropic Messages API (Claude). The
// dialect differs from OpenAI's in ways this package flattens out: the
// system prompt is a top-level field rather than a message, responses
// carry content as typed blocks, streaming uses named SSE events, auth
// is an x-api-key header, and max_tokens is mandatory.
package anthropic

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/revuekit/revue/internal/provider"
	"github.com/spf13/viper"
)

func init() {
	provider.Register("anthropic", NewProvider)
}

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiRequest struct {
	Model     string       `json:"model"`
	Messages  []apiMessage `json:"messages"`
	System    string       `json:"system,omitempty"`
	MaxTokens int          `json:"max_tokens"`
	Stream    bool         `json:"stream,omitempty"`

	Temperature   *float64 `json:"temperature,omitempty"`
	TopP          *float64 `json:"top_p,omitempty"`
	StopSequences []string `json:"stop_sequences,omitempty"`
}

type apiContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type apiResponse struct {
	ID           string            `json:"id"`
	Type         string            `json:"type"`
	Role         string            `json:"role"`
	Content      []apiContentBlock `json:"content"`
	Model        string            `json:"model"`
	StopReason   string            `json:"stop_reason"`
	StopSequence *string           `json:"stop_sequence"`
	Usage        apiUsage          `json:"usage"`
}

type apiError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type streamEvent struct {
	Type         string          `json:"type"`
	Index        int             `json:"index"`
	ContentBlock apiContentBlock `json:"content_block"`
	Delta        struct {
		Type         string `json:"type"`
		Text         string `json:"text"`
		StopReason   string `json:"stop_reason"`
		StopSequence string `json:"stop_sequence"`
	} `json:"delta"`
	Message *apiResponse `json:"message"`
	Usage   *apiUsage    `json:"usage"`
}

// ---------------------------------------------------------------------------
// Provider
// ---------------------------------------------------------------------------

const anthropicVersion = "2023-06-01"

// Provider implements provider.AIProvider for the Messages API.
type Provider struct {
	client  *resty.Client
	apiKey  string
	baseURL string
	model   string
	maxTok  int
}

// NewProvider is the registered factory.
func NewProvider(v *viper.Viper) (provider.AIProvider, error) {
	baseURL := v.GetString("base_url")
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	model := v.GetString("model")
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	maxTok := v.GetInt("max_tokens")
	if maxTok == 0 {
		maxTok = 2048
	}
	timeout := v.GetDuration("timeout")
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Provider{
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("anthropic-version", anthropicVersion),
		apiKey:  v.GetString("api_key"),
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		maxTok:  maxTok,
	}, nil
}

func (p *Provider) Info() provider.ProviderInfo {
	return provider.ProviderInfo{
		Name:              "anthropic",
		DisplayName:       "Anthropic (Claude)",
		Description:       "Anthropic Messages API (Claude Opus, Sonnet, Haiku)",
		DefaultModel:      "claude-sonnet-4-20250514",
		SupportsStreaming: true,
	}
}

func (p *Provider) Validate(ctx context.Context) error {
	if p.apiKey == "" {
		return p.errorf(provider.ErrCodeAuthentication, nil, "ANTHROPIC_API_KEY is not set")
	}
	return nil
}

// Complete runs one blocking completion.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (*provider.CompletionResponse, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("x-api-key", p.apiKey).
		SetBody(p.buildRequest(req, false)).
		Post(p.baseURL + "/v1/messages")
	if err != nil {
		return nil, p.errorf(provider.ErrCodeProviderUnavailable, err, "HTTP request failed")
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, classifyHTTPError(resp.StatusCode(), resp.Body(), resp.Header().Get("Retry-After"))
	}

	var out apiResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, p.errorf(provider.ErrCodeUnknown, err, "failed to decode response")
	}
	return normalize(&out), nil
}

// CompleteStream runs a streamed completion over Anthropic's named SSE
// events (content_block_delta, message_delta, message_stop).
func (p *Provider) CompleteStream(ctx context.Context, req provider.CompletionRequest) provider.StreamResult {
	chunks := make(chan provider.StreamChunk, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errCh)

		payload, _ := json.Marshal(p.buildRequest(req, true))

		httpReq, err := http.NewRequestWithContext(
			ctx, http.MethodPost,
			p.baseURL+"/v1/messages",
			strings.NewReader(string(payload)),
		)
		if err != nil {
			errCh <- p.errorf(provider.ErrCodeUnknown, err, "failed to build request")
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", p.apiKey)
		httpReq.Header.Set("anthropic-version", anthropicVersion)
		httpReq.Header.Set("Accept", "text/event-stream")

		httpResp, err := http.DefaultClient.Do(httpReq)
		if err != nil {
			errCh <- p.errorf(provider.ErrCodeProviderUnavailable, err, "stream request failed")
			return
		}
		defer httpResp.Body.Close()

		if httpResp.StatusCode != http.StatusOK {
			var buf [4096]byte
			n, _ := httpResp.Body.Read(buf[:])
			errCh <- classifyHTTPError(httpResp.StatusCode, buf[:n], httpResp.Header.Get("Retry-After"))
			return
		}

		scanner := bufio.NewScanner(httpResp.Body)
		var currentEvent string

		for scanner.Scan() {
			line := scanner.Text()

			if strings.HasPrefix(line, "event: ") {
				currentEvent = strings.TrimPrefix(line, "event: ")
				continue
			}
			if !strings.HasPrefix(line, "data: ") {
				continue
			}

			var evt streamEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &evt); err != nil {
				continue
			}

			switch currentEvent {
			case "content_block_delta":
				if evt.Delta.Type != "text_delta" {
					continue
				}
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case chunks <- provider.StreamChunk{Content: evt.Delta.Text}:
				}

			case "message_delta":
				sc := provider.StreamChunk{
					Done:         true,
					FinishReason: evt.Delta.StopReason,
				}
				if evt.Usage != nil {
					sc.Usage = &provider.Usage{
						PromptTokens:     evt.Usage.InputTokens,
						CompletionTokens: evt.Usage.OutputTokens,
						TotalTokens:      evt.Usage.InputTokens + evt.Usage.OutputTokens,
					}
				}
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case chunks <- sc:
				}

			case "message_stop":
				return

			case "error":
				errCh <- p.errorf(provider.ErrCodeUnknown, nil, "stream error event received")
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errCh <- p.errorf(provider.ErrCodeUnknown, err, "stream read error")
		}
	}()

	return provider.StreamResult{Chunks: chunks, Err: errCh}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (p *Provider) errorf(code provider.ErrorCode, cause error, msg string) *provider.ProviderError {
	return &provider.ProviderError{Code: code, Message: msg, Provider: "anthropic", Cause: cause}
}

// buildRequest converts the neutral request into Anthropic's shape.
// System messages are pulled out of the conversation into the top-level
// System field; multiple ones are concatenated since the API takes one.
func (p *Provider) buildRequest(req provider.CompletionRequest, stream bool) apiRequest {
	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTok := req.MaxTokens
	if maxTok == 0 {
		maxTok = p.maxTok
	}

	var system string
	var messages []apiMessage
	for _, m := range req.Messages {
		if m.Role == provider.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		messages = append(messages, apiMessage{Role: string(m.Role), Content: m.Content})
	}

	// The first turn must come from the user. A leading assistant message
	// gets folded into the system prompt instead.
	if len(messages) > 0 && messages[0].Role == "assistant" {
		if system != "" {
			system += "\n\n"
		}
		system += messages[0].Content
		messages = messages[1:]
	}

	return apiRequest{
		Model:         model,
		System:        system,
		Messages:      messages,
		MaxTokens:     maxTok,
		Stream:        stream,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		StopSequences: req.StopSequences,
	}
}

func normalize(r *apiResponse) *provider.CompletionResponse {
	var content string
	for _, block := range r.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &provider.CompletionResponse{
		ID:           r.ID,
		Model:        r.Model,
		Content:      content,
		FinishReason: r.StopReason,
		Usage: provider.Usage{
			PromptTokens:     r.Usage.InputTokens,
			CompletionTokens: r.Usage.OutputTokens,
			TotalTokens:      r.Usage.InputTokens + r.Usage.OutputTokens,
		},
		Choices: []provider.Choice{
			{Index: 0, Content: content, FinishReason: r.StopReason},
		},
	}
}

// classifyHTTPError maps an HTTP failure onto a normalized code. 529 is
// Anthropic's overloaded status and counts as unavailable.
func classifyHTTPError(statusCode int, body []byte, retryAfter string) *provider.ProviderError {
	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)
	msg := apiErr.Error.Message
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", statusCode)
	}

	pe := &provider.ProviderError{
		Provider:   "anthropic",
		Message:    msg,
		StatusCode: statusCode,
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		pe.Code = provider.ErrCodeAuthentication
	case statusCode == http.StatusTooManyRequests:
		pe.Code = provider.ErrCodeRateLimit
		if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && secs > 0 {
			pe.RetryAfter = time.Duration(secs) * time.Second
		}
	case statusCode == http.StatusBadRequest:
		if apiErr.Error.Type == "invalid_request_error" &&
			(strings.Contains(msg, "max_tokens") || strings.Contains(msg, "too long")) {
			pe.Code = provider.ErrCodeContextLength
		} else {
			pe.Code = provider.ErrCodeInvalidRequest
		}
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout:
		pe.Code = provider.ErrCodeTimeout
	case statusCode == 529 || statusCode >= 500:
		pe.Code = provider.ErrCodeProviderUnavailable
	default:
		pe.Code = provider.ErrCodeUnknown
	}
	return pe
}
