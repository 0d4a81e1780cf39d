// Package enrich implements the optional AI enrichment hook spec.md §1
// allows at create: a synchronous suggestion pass over a new item's
// title and content, run before the item is written, bounded by an
// explicit timeout and never allowed to fail the create call itself. Grounded on
// BeadsLog/internal/compact/haiku.go's client construction and
// exponential-backoff retry shape, adapted from post-hoc issue
// compaction to a lighter single-shot "suggest a description" call.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/shirokuma-go/kb/internal/logging"
)

const (
	defaultModel   = "claude-3-5-haiku-20241022"
	maxRetries     = 2
	initialBackoff = 500 * time.Millisecond
	callTimeout    = 8 * time.Second
)

// ErrAPIKeyRequired is returned by NewClient when no key is configured.
var ErrAPIKeyRequired = errors.New("enrich: ANTHROPIC_API_KEY required")

// Client produces short description suggestions for newly created items.
type Client struct {
	client anthropic.Client
	model  anthropic.Model
	log    *logging.Logger
}

// NewClient builds a Client. The environment variable always wins over
// an explicit key, matching the teacher's precedence.
func NewClient(apiKey string, log *logging.Logger) (*Client, error) {
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  defaultModel,
		log:    log,
	}, nil
}

// SuggestDescription asks the model for a one-sentence description of
// title/content, bounded by callTimeout regardless of the caller's own
// context deadline. Enrich never returns an error to block create: a
// failure is logged and an empty string is returned.
func (c *Client) SuggestDescription(ctx context.Context, title, content string) string {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	prompt := fmt.Sprintf(
		"Write one short, plain sentence describing this item for a personal knowledge base. "+
			"No preamble, no quotes.\n\nTitle: %s\n\nContent:\n%s", title, content,
	)

	text, err := c.callWithRetry(ctx, prompt)
	if err != nil {
		c.log.Warnf("enrich: suggestion failed: %v", err)
		return ""
	}
	return text
}

func (c *Client) callWithRetry(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 128,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := initialBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		message, err := c.client.Messages.New(ctx, params)
		if err == nil {
			if len(message.Content) == 0 {
				return "", fmt.Errorf("empty response")
			}
			block := message.Content[0]
			if block.Type != "text" {
				return "", fmt.Errorf("unexpected response block type %q", block.Type)
			}
			return block.Text, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isRetryable(err) {
			return "", fmt.Errorf("non-retryable: %w", err)
		}
	}
	return "", fmt.Errorf("failed after %d attempts: %w", maxRetries+1, lastErr)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}
