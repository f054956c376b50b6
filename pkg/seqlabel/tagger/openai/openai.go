// Package openai implements tagger.Tagger against an OpenAI-compatible
// chat-completion endpoint. Azure OpenAI and other compatible services work
// through BaseURL, EndpointPath and ExtraHeaders.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/annolab/seqlabel/pkg/seqlabel/tagger"
)

// Options configures the client. Zero values get safe defaults.
type Options struct {
	BaseURL string // e.g. https://api.openai.com/v1
	Model   string
	APIKey  string
	// EndpointPath overrides /chat/completions; a full http(s) URL is used
	// verbatim (Azure deployments need this).
	EndpointPath string
	// ExtraHeaders are added to every request (e.g. "api-key" for Azure).
	ExtraHeaders map[string]string
	// Temperature is the decoding temperature. Label consistency matters
	// more than diversity, so keep it near zero.
	Temperature float64
	// MaxTokens bounds the completion size.
	MaxTokens int
	// Timeout is the per-call HTTP timeout.
	Timeout time.Duration

	HTTPClient *http.Client
}

// Client calls the chat-completion endpoint. Stateless beyond configuration;
// safe for sequential reuse across records.
type Client struct {
	url     string
	model   string
	apiKey  string
	temp    float64
	maxTok  int
	headers map[string]string
	hc      *http.Client
}

// New validates options and returns a client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" && !strings.HasPrefix(opts.EndpointPath, "http") {
		return nil, fmt.Errorf("openai: base URL required")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("openai: model required")
	}
	if opts.APIKey == "" && len(opts.ExtraHeaders) == 0 {
		return nil, fmt.Errorf("openai: credentials required")
	}

	path := opts.EndpointPath
	if path == "" {
		path = "/chat/completions"
	}
	url := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		url = strings.TrimRight(opts.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
	}

	maxTok := opts.MaxTokens
	if maxTok <= 0 {
		maxTok = 4096
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		url:     url,
		model:   opts.Model,
		apiKey:  opts.APIKey,
		temp:    opts.Temperature,
		maxTok:  maxTok,
		headers: opts.ExtraHeaders,
		hc:      hc,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Tag implements tagger.Tagger.
func (c *Client) Tag(ctx context.Context, text string) ([]tagger.Mention, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: tagger.SystemPrompt},
			{Role: "user", Content: tagger.UserPrompt(text)},
		},
		Temperature: c.temp,
		MaxTokens:   c.maxTok,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", tagger.ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", tagger.ErrTransient, err)
	}

	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	var payload chatResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", tagger.ErrMalformed, err)
	}
	if payload.Error != nil {
		return nil, classifyAPIError(payload.Error.Code, payload.Error.Message)
	}
	if len(payload.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", tagger.ErrMalformed)
	}
	if payload.Choices[0].FinishReason == "content_filter" {
		return nil, fmt.Errorf("%w: completion truncated by filter", tagger.ErrContentFiltered)
	}

	return tagger.ParseResponse(payload.Choices[0].Message.Content)
}

// classifyStatus maps HTTP status codes onto the tagger error taxonomy.
func classifyStatus(status int, body []byte) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: HTTP 429", tagger.ErrRateLimited)
	case status == http.StatusBadRequest && bytes.Contains(body, []byte("content_filter")):
		return fmt.Errorf("%w: HTTP 400", tagger.ErrContentFiltered)
	case status >= 500:
		return fmt.Errorf("%w: HTTP %d", tagger.ErrTransient, status)
	default:
		return fmt.Errorf("%w: HTTP %d: %s", tagger.ErrMalformed, status, truncate(body, 200))
	}
}

func classifyAPIError(code, message string) error {
	switch {
	case strings.Contains(code, "rate_limit") || strings.Contains(message, "rate limit"):
		return fmt.Errorf("%w: %s", tagger.ErrRateLimited, message)
	case strings.Contains(code, "content_filter") || strings.Contains(message, "content filter"):
		return fmt.Errorf("%w: %s", tagger.ErrContentFiltered, message)
	default:
		return fmt.Errorf("%w: %s", tagger.ErrMalformed, message)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
