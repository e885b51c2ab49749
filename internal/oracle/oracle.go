// Package oracle asks an LLM for a JSON answer and decodes it.
package oracle

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/resilience"
	"github.com/sells-group/leadflow/pkg/anthropic"
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = eris.New("oracle: empty response")

// Oracle turns a prompt into a JSON value decoded into out.
type Oracle interface {
	Complete(ctx context.Context, prompt string, out any) error
}

// Options configures a Claude oracle.
type Options struct {
	Model     string
	MaxTokens int64
	Timeout   time.Duration
	// System is sent as a cacheable system block on every call.
	System string
	// Purpose labels cost logs, e.g. "signal" or "reply".
	Purpose string
}

// Claude is an Oracle backed by the Anthropic Messages API.
type Claude struct {
	client  anthropic.Client
	opts    Options
	breaker *resilience.CircuitBreaker
}

// New creates a Claude oracle. breaker may be shared between oracles that
// call the same API; nil disables circuit breaking.
func New(client anthropic.Client, breaker *resilience.CircuitBreaker, opts Options) *Claude {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 180 * time.Second
	}
	return &Claude{client: client, opts: opts, breaker: breaker}
}

// Complete sends prompt and decodes the JSON object in the reply into out.
// It fails on timeout, an open circuit, or malformed JSON.
func (c *Claude) Complete(ctx context.Context, prompt string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req := anthropic.MessageRequest{
		Model:     c.opts.Model,
		MaxTokens: c.opts.MaxTokens,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	}
	if c.opts.System != "" {
		req.System = anthropic.CachedSystem(c.opts.System)
	}

	call := func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return c.client.CreateMessage(ctx, req)
	}
	var (
		resp *anthropic.MessageResponse
		err  error
	)
	if c.breaker != nil {
		resp, err = resilience.ExecuteVal(ctx, c.breaker, call)
	} else {
		resp, err = call(ctx)
	}
	if err != nil {
		return eris.Wrap(err, "oracle: complete")
	}
	resp.Usage.LogCost(c.opts.Model, c.opts.Purpose)

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return ErrEmptyResponse
	}
	if err := json.Unmarshal([]byte(CleanJSON(text)), out); err != nil {
		zap.L().Warn("oracle: unparseable response",
			zap.String("purpose", c.opts.Purpose),
			zap.Int("chars", len(text)),
		)
		return eris.Wrap(err, "oracle: decode json")
	}
	return nil
}

// CleanJSON extracts a JSON object from text that may carry markdown code
// fences or surrounding prose.
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}
