// Package openai talks to the OpenAI Chat Completions API, and by
// extension to anything speaking the same dialect (Ollama, LM Studio,
// vLLM). Calls are single-shot: rate limits and outages surface as
// classified errors for the invoker to retry, so one 429 can pause the
// whole review fan-out instead of being retried privately here.
package openai

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
	provider.Register("openai", NewProvider)
}

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiRequest struct {
	Model       string       `json:"model"`
	Messages    []apiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`
	TopP        *float64     `json:"top_p,omitempty"`
	Stream      bool         `json:"stream,omitempty"`
	Stop        []string     `json:"stop,omitempty"`
}

type apiChoice struct {
	Index        int        `json:"index"`
	Message      apiMessage `json:"message"`
	Delta        apiMessage `json:"delta"` // streaming only
	FinishReason string     `json:"finish_reason"`
}

type apiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type apiResponse struct {
	ID      string      `json:"id"`
	Object  string      `json:"object"`
	Created int64       `json:"created"`
	Model   string      `json:"model"`
	Choices []apiChoice `json:"choices"`
	Usage   apiUsage    `json:"usage"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// ---------------------------------------------------------------------------
// Provider
// ---------------------------------------------------------------------------

// Provider implements provider.AIProvider against a Chat Completions
// endpoint.
type Provider struct {
	client  *resty.Client
	apiKey  string
	baseURL string
	model   string
	maxTok  int
}

// NewProvider is the registered factory. Unset keys fall back to the
// hosted OpenAI endpoint and gpt-4o.
func NewProvider(v *viper.Viper) (provider.AIProvider, error) {
	cfg := struct {
		key, base, model string
		maxTok           int
		timeout          time.Duration
	}{
		key:     v.GetString("api_key"),
		base:    v.GetString("base_url"),
		model:   v.GetString("model"),
		maxTok:  v.GetInt("max_tokens"),
		timeout: v.GetDuration("timeout"),
	}
	if cfg.base == "" {
		cfg.base = "https://api.openai.com/v1"
	}
	if cfg.model == "" {
		cfg.model = "gpt-4o"
	}
	if cfg.maxTok == 0 {
		cfg.maxTok = 2048
	}
	if cfg.timeout == 0 {
		cfg.timeout = 60 * time.Second
	}

	return &Provider{
		client: resty.New().
			SetTimeout(cfg.timeout).
			SetHeader("Content-Type", "application/json"),
		apiKey:  cfg.key,
		baseURL: strings.TrimRight(cfg.base, "/"),
		model:   cfg.model,
		maxTok:  cfg.maxTok,
	}, nil
}

func (p *Provider) Info() provider.ProviderInfo {
	return provider.ProviderInfo{
		Name:              "openai",
		DisplayName:       "OpenAI",
		Description:       "OpenAI Chat Completions API (GPT-4o, GPT-4, GPT-3.5-turbo, etc.)",
		DefaultModel:      "gpt-4o",
		SupportsStreaming: true,
	}
}

// Validate checks the key is present and the endpoint answers a model
// listing.
func (p *Provider) Validate(ctx context.Context) error {
	if p.apiKey == "" {
		return p.errorf(provider.ErrCodeAuthentication, nil, "OPENAI_API_KEY is not set")
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(p.apiKey).
		Get(p.baseURL + "/models")
	if err != nil {
		return p.errorf(provider.ErrCodeProviderUnavailable, err, "failed to reach OpenAI API")
	}
	if resp.StatusCode() != http.StatusOK {
		pe := p.errorf(provider.ErrCodeAuthentication, nil, "OpenAI API returned non-200 on validation")
		pe.StatusCode = resp.StatusCode()
		return pe
	}
	return nil
}

// buildBody fills in the instance defaults for model and token cap.
func (p *Provider) buildBody(req provider.CompletionRequest, stream bool) apiRequest {
	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTok := req.MaxTokens
	if maxTok == 0 {
		maxTok = p.maxTok
	}
	msgs := make([]apiMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = apiMessage{Role: string(m.Role), Content: m.Content}
	}
	return apiRequest{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   maxTok,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      stream,
		Stop:        req.StopSequences,
	}
}

// Complete runs one blocking completion.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (*provider.CompletionResponse, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(p.apiKey).
		SetBody(p.buildBody(req, false)).
		Post(p.baseURL + "/chat/completions")
	if err != nil {
		return nil, p.errorf(provider.ErrCodeProviderUnavailable, err, "HTTP request failed")
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, classifyHTTPError("openai", resp.StatusCode(), resp.Body(), resp.Header().Get("Retry-After"))
	}

	var out apiResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, p.errorf(provider.ErrCodeUnknown, err, "failed to decode response")
	}
	return normalize(&out), nil
}

// CompleteStream runs a streamed completion over server-sent events.
func (p *Provider) CompleteStream(ctx context.Context, req provider.CompletionRequest) provider.StreamResult {
	chunks := make(chan provider.StreamChunk, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errCh)

		payload, _ := json.Marshal(p.buildBody(req, true))

		// Raw http.Request: the SSE body has to be read line by line,
		// which resty's buffered responses do not allow.
		httpReq, err := http.NewRequestWithContext(
			ctx, http.MethodPost,
			p.baseURL+"/chat/completions",
			strings.NewReader(string(payload)),
		)
		if err != nil {
			errCh <- p.errorf(provider.ErrCodeUnknown, err, "failed to build request")
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
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
			errCh <- classifyHTTPError("openai", httpResp.StatusCode, buf[:n], httpResp.Header.Get("Retry-After"))
			return
		}

		scanner := bufio.NewScanner(httpResp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				chunks <- provider.StreamChunk{Done: true}
				return
			}

			var ev apiResponse
			if err := json.Unmarshal([]byte(data), &ev); err != nil || len(ev.Choices) == 0 {
				continue
			}

			sc := provider.StreamChunk{
				Content:      ev.Choices[0].Delta.Content,
				FinishReason: ev.Choices[0].FinishReason,
			}
			if sc.FinishReason != "" {
				sc.Done = true
				if ev.Usage.TotalTokens > 0 {
					sc.Usage = &provider.Usage{
						PromptTokens:     ev.Usage.PromptTokens,
						CompletionTokens: ev.Usage.CompletionTokens,
						TotalTokens:      ev.Usage.TotalTokens,
					}
				}
			}

			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case chunks <- sc:
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
	return &provider.ProviderError{Code: code, Message: msg, Provider: "openai", Cause: cause}
}

func normalize(r *apiResponse) *provider.CompletionResponse {
	resp := &provider.CompletionResponse{
		ID:    r.ID,
		Model: r.Model,
		Usage: provider.Usage{
			PromptTokens:     r.Usage.PromptTokens,
			CompletionTokens: r.Usage.CompletionTokens,
			TotalTokens:      r.Usage.TotalTokens,
		},
	}
	for _, c := range r.Choices {
		resp.Choices = append(resp.Choices, provider.Choice{
			Index:        c.Index,
			Content:      c.Message.Content,
			FinishReason: c.FinishReason,
		})
	}
	if len(resp.Choices) > 0 {
		resp.Content = resp.Choices[0].Content
		resp.FinishReason = resp.Choices[0].FinishReason
	}
	return resp
}

// classifyHTTPError maps an HTTP failure onto a normalized code. A 429's
// Retry-After header rides along so the gate can honor it.
func classifyHTTPError(providerName string, statusCode int, body []byte, retryAfter string) *provider.ProviderError {
	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)
	msg := apiErr.Error.Message
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", statusCode)
	}

	pe := &provider.ProviderError{
		Provider:   providerName,
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
		// An oversize prompt is permanent; resending it cannot help.
		if strings.Contains(msg, "maximum context length") ||
			strings.Contains(msg, "max_tokens") {
			pe.Code = provider.ErrCodeContextLength
		} else {
			pe.Code = provider.ErrCodeInvalidRequest
		}
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout:
		pe.Code = provider.ErrCodeTimeout
	case statusCode >= 500:
		pe.Code = provider.ErrCodeProviderUnavailable
	default:
		pe.Code = provider.ErrCodeUnknown
	}
	return pe
}
