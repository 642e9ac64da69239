package ai

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const defaultMaxAttempts = 3

// Client invokes the chat model with bounded exponential-backoff retry on
// transient upstream failures. Every call gets its own retry budget.
type Client struct {
	chatModel   model.BaseChatModel
	maxAttempts int

	// wait is swapped out in tests to observe backoff without sleeping.
	wait func(ctx context.Context, d time.Duration) error
}

// NewClient wraps an eino chat model with the retry policy.
func NewClient(chatModel model.BaseChatModel) *Client {
	return &Client{
		chatModel:   chatModel,
		maxAttempts: defaultMaxAttempts,
		wait:        waitContext,
	}
}

// Generate runs a single prompt through the model and returns its text.
// Transient failures are retried with a delay of 2^attempt seconds; the
// wrapped ErrRetriesExhausted is returned once the budget is spent.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		msg, err := c.chatModel.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
		if err == nil {
			return msg.Content, nil
		}

		if !IsTransient(err) {
			return "", fmt.Errorf("model generation failed: %w", err)
		}

		lastErr = err
		if attempt == c.maxAttempts {
			break
		}

		delay := time.Duration(1<<attempt) * time.Second
		log.Printf("[ai] transient model failure (attempt %d/%d), retrying in %s: %v",
			attempt, c.maxAttempts, delay, err)
		if werr := c.wait(ctx, delay); werr != nil {
			return "", werr
		}
	}

	return "", fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, c.maxAttempts, lastErr)
}

func waitContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
