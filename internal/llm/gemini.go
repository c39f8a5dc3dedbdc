// Package llm generates newsletter commentary with Gemini.
package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"budgetdigest/internal/core"
)

// Result is the generated commentary plus the token usage billed for it.
type Result struct {
	Commentary string
	Tokens     int
	Model      string
}

type GeminiClient struct {
	client        *genai.Client
	model         string
	fallbackModel string
	maxTokens     int
}

// NewGeminiClient creates a Gemini client. The API key is read from the
// environment by the SDK (GEMINI_API_KEY or GOOGLE_API_KEY).
func NewGeminiClient(ctx context.Context, model, fallbackModel string, maxTokens int) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClient{
		client:        client,
		model:         model,
		fallbackModel: fallbackModel,
		maxTokens:     maxTokens,
	}, nil
}

// Generate asks the primary model for commentary and retries once on the
// fallback model before giving up.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (Result, error) {
	result, err := c.generateWith(ctx, c.model, prompt)
	if err == nil {
		return result, nil
	}
	if c.fallbackModel == "" || c.fallbackModel == c.model {
		return Result{}, fmt.Errorf("%w: %v", core.ErrLLMUnavailable, err)
	}

	result, fallbackErr := c.generateWith(ctx, c.fallbackModel, prompt)
	if fallbackErr != nil {
		return Result{}, fmt.Errorf("%w: primary: %v; fallback: %v", core.ErrLLMUnavailable, err, fallbackErr)
	}
	return result, nil
}

func (c *GeminiClient) generateWith(ctx context.Context, model, prompt string) (Result, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	cfg := &genai.GenerateContentConfig{}
	if c.maxTokens > 0 {
		cfg.MaxOutputTokens = int32(c.maxTokens)
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return Result{}, fmt.Errorf("generate content with %s: %w", model, err)
	}

	text := CleanCommentary(resp.Text())
	if text == "" {
		return Result{}, fmt.Errorf("empty response from %s", model)
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return Result{Commentary: text, Tokens: tokens, Model: model}, nil
}

// CleanCommentary strips Markdown code fences the model sometimes wraps
// its answer in despite instructions.
func CleanCommentary(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return ""
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}
