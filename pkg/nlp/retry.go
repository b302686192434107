package nlp

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/tempograph/tempograph/pkg/types"
)

// RetryConfig tunes the exponential backoff applied to retryable provider
// failures.
type RetryConfig struct {
	MaxRetries        int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig returns 3 retries starting at one second, doubling up
// to a minute.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialDelay:      time.Second,
		MaxDelay:          60 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryClient wraps a Client with bounded exponential backoff. Only errors
// the taxonomy marks retryable are retried; rejections pass through at once.
type RetryClient struct {
	client Client
	config *RetryConfig
}

// NewRetryClient wraps client. A nil config uses defaults.
func NewRetryClient(client Client, config *RetryConfig) *RetryClient {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 60 * time.Second
	}
	if config.BackoffMultiplier <= 1 {
		config.BackoffMultiplier = 2.0
	}
	return &RetryClient{client: client, config: config}
}

func (r *RetryClient) Chat(ctx context.Context, messages []types.Message, opts *types.GenerateOptions) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(r.delay(attempt)):
			case <-ctx.Done():
				return "", fmt.Errorf("retry backoff interrupted: %w", ctx.Err())
			}
		}

		out, err := r.client.Chat(ctx, messages, opts)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !types.IsRetryable(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %w", types.ErrIngestionDegraded, lastErr)
}

func (r *RetryClient) Close() error { return r.client.Close() }

func (r *RetryClient) delay(attempt int) time.Duration {
	d := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffMultiplier, float64(attempt-1))
	if d > float64(r.config.MaxDelay) {
		return r.config.MaxDelay
	}
	return time.Duration(d)
}
