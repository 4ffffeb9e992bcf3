// Package llm wraps the external generative-language endpoint behind a
// single-call client with truncation, proportional timeouts, and bounded
// retries. Exhausted retries surface as a degraded sentinel completion, not
// an error, so callers can treat model failures as partial output.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/lexiscope/lexiscope/pkg/logger"
)

const (
	// TruncationMarker is appended whenever a prompt is cut to fit the
	// request budget.
	TruncationMarker = "..."

	// truncationHeadroom keeps the marker and request framing under the
	// prompt budget after a cut.
	truncationHeadroom = 100

	// timeoutDivisor scales the per-call timeout with prompt length: one
	// second per 2000 prompt characters, clamped below.
	timeoutDivisor = 2000
)

// Config holds gateway client settings.
type Config struct {
	BaseURL         string        `json:"base_url"`
	Model           string        `json:"model"`
	Temperature     float64       `json:"temperature"`
	TopP            float64       `json:"top_p"`
	TopK            int           `json:"top_k"`
	MaxOutputTokens int           `json:"max_output_tokens"`
	MaxRetries      int           `json:"max_retries"`
	RetryBackoff    time.Duration `json:"retry_backoff"`
	MaxPromptChars  int           `json:"max_prompt_chars"`
	MinTimeout      time.Duration `json:"min_timeout"`
	MaxTimeout      time.Duration `json:"max_timeout"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
		Model:           "gemini-2.0-flash",
		Temperature:     0.4,
		TopP:            0.8,
		TopK:            40,
		MaxOutputTokens: 512,
		MaxRetries:      2,
		RetryBackoff:    500 * time.Millisecond,
		MaxPromptChars:  32000,
		MinTimeout:      10 * time.Second,
		MaxTimeout:      25 * time.Second,
	}
}

// Completion is the outcome of a single Generate call. Degraded completions
// carry the sentinel text produced after all retries were exhausted.
type Completion struct {
	Text     string
	Degraded bool
	Err      error
	Attempts int
}

// Client is the gateway to the external LLM endpoint.
type Client struct {
	cfg  Config
	rest *resty.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg = DefaultConfig()
	}
	rest := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json")
	return &Client{cfg: cfg, rest: rest}
}

// Generate sends a single prompt and returns the first candidate's text.
// Transport errors, non-200 statuses, and malformed envelopes are all
// retried up to MaxRetries with a fixed backoff; exhaustion yields a
// degraded sentinel completion.
func (c *Client) Generate(ctx context.Context, prompt, apiKey string) Completion {
	log := logger.FromContext(ctx)
	if apiKey == "" {
		err := errors.New("api key is required")
		return Completion{Text: "API error: api key is required", Degraded: true, Err: err}
	}
	prompt = c.Truncate(prompt)
	timeout := c.timeoutFor(len(prompt))
	body := newGenerateRequest(prompt, c.cfg)
	endpoint := fmt.Sprintf("/models/%s:generateContent", c.cfg.Model)

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		attempts++
		text, err := c.callOnce(ctx, endpoint, apiKey, body, timeout)
		if err == nil {
			return Completion{Text: text, Attempts: attempts}
		}
		lastErr = err
		log.Debug("LLM call failed", "attempt", attempts, "error", err)
		if attempt < c.cfg.MaxRetries {
			select {
			case <-time.After(c.cfg.RetryBackoff):
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = c.cfg.MaxRetries
			}
		}
	}
	log.Warn("LLM call exhausted retries", "attempts", attempts, "error", lastErr)
	return Completion{
		Text:     sentinelText(lastErr),
		Degraded: true,
		Err:      lastErr,
		Attempts: attempts,
	}
}

func (c *Client) callOnce(
	ctx context.Context,
	endpoint, apiKey string,
	body *generateRequest,
	timeout time.Duration,
) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	resp, err := c.rest.R().
		SetContext(callCtx).
		SetQueryParam("key", apiKey).
		SetBody(body).
		Post(endpoint)
	if err != nil {
		return "", fmt.Errorf("llm: request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", &statusError{Code: resp.StatusCode()}
	}
	parsed, err := ParseEnvelope(resp.Body())
	if err != nil {
		return "", err
	}
	return parsed.Text, nil
}

// Truncate cuts the prompt to the configured character budget, appending
// the truncation marker when a cut happens.
func (c *Client) Truncate(prompt string) string {
	limit := c.cfg.MaxPromptChars
	if limit <= 0 || len(prompt) <= limit {
		return prompt
	}
	cut := limit - truncationHeadroom
	if cut < 0 {
		cut = limit
	}
	// Back off to a rune boundary so the cut never splits a character.
	for cut > 0 && !isRuneStart(prompt[cut]) {
		cut--
	}
	return prompt[:cut] + TruncationMarker
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

func (c *Client) timeoutFor(promptLen int) time.Duration {
	timeout := time.Duration(promptLen/timeoutDivisor) * time.Second
	if timeout < c.cfg.MinTimeout {
		return c.cfg.MinTimeout
	}
	if timeout > c.cfg.MaxTimeout {
		return c.cfg.MaxTimeout
	}
	return timeout
}

type statusError struct {
	Code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("llm: unexpected status %d", e.Code)
}

func sentinelText(err error) string {
	var status *statusError
	if errors.As(err, &status) {
		return fmt.Sprintf("API error: %d", status.Code)
	}
	if err != nil {
		return fmt.Sprintf("API request failed: %s", err.Error())
	}
	return "API request failed after all retries"
}
