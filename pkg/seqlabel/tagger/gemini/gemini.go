// Package gemini implements tagger.Tagger on the Google GenAI API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/annolab/seqlabel/pkg/seqlabel/tagger"
)

// Options configures the provider.
type Options struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int32
}

// Client is a Gemini-backed tagger.
type Client struct {
	client *genai.Client
	model  string
	temp   float32
	maxTok int32
}

// New creates a Gemini tagger client.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key required")
	}
	model := opts.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	maxTok := opts.MaxTokens
	if maxTok <= 0 {
		maxTok = 4096
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: opts.APIKey})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &Client{client: client, model: model, temp: opts.Temperature, maxTok: maxTok}, nil
}

// Tag implements tagger.Tagger.
func (c *Client) Tag(ctx context.Context, text string) ([]tagger.Mention, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(c.temp),
		MaxOutputTokens:  c.maxTok,
		ResponseMIMEType: "application/json",
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: tagger.SystemPrompt}},
		},
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(tagger.UserPrompt(text)), cfg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classify(err)
	}

	if len(result.Candidates) == 0 {
		// No candidates with a block reason means the safety layer refused.
		if result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("%w: prompt blocked: %s", tagger.ErrContentFiltered, result.PromptFeedback.BlockReason)
		}
		return nil, fmt.Errorf("%w: no candidates", tagger.ErrMalformed)
	}
	if result.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: candidate blocked by safety filter", tagger.ErrContentFiltered)
	}

	return tagger.ParseResponse(result.Text())
}

// classify maps GenAI API errors onto the tagger taxonomy.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", tagger.ErrRateLimited, err)
		case apiErr.Code >= 500:
			return fmt.Errorf("%w: %v", tagger.ErrTransient, err)
		default:
			return fmt.Errorf("%w: %v", tagger.ErrMalformed, err)
		}
	}
	// Anything below the API layer is a network problem.
	return fmt.Errorf("%w: %v", tagger.ErrTransient, err)
}
