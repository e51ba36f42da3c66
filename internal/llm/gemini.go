package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"google.golang.org/genai"

	"github.com/epochish/klarita/internal/config"
	"github.com/epochish/klarita/internal/metrics"
)

// GeminiClient implements Client against the Gemini API. Each attempt runs
// under its own timeout; transient failures are retried with exponential
// backoff, bounded by the caller's context.
type GeminiClient struct {
	client     *genai.Client
	model      string
	timeout    time.Duration
	maxRetries int
	retryBase  time.Duration
}

// NewGeminiClient creates a generation client for the configured model.
func NewGeminiClient(client *genai.Client, cfg config.LLMConfig) *GeminiClient {
	return &GeminiClient{
		client:     client,
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		retryBase:  cfg.RetryBase,
	}
}

// Generate runs one generation call, retrying transient provider errors.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSONOutput {
		cfg.ResponseMIMEType = "application/json"
	}

	op := func() (string, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.client.Models.GenerateContent(attemptCtx, c.model, genai.Text(req.Prompt), cfg)
		if err != nil {
			if !IsTransient(err) {
				return "", backoff.Permanent(err)
			}
			return "", err
		}

		text := resp.Text()
		if strings.TrimSpace(text) == "" {
			return "", backoff.Permanent(fmt.Errorf("model returned empty response"))
		}
		return text, nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.retryBase
	expo.Multiplier = 2

	text, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(c.maxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			metrics.GenerationRetriesTotal.Inc()
			slog.Warn("llm: transient provider error, retrying", "error", err, "next_attempt_in", next)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}
	return text, nil
}
