package nlp

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/tempograph/tempograph/pkg/types"
)

// BreakerConfig tunes the circuit breaker around a provider client.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	ReadyToTripRatio float64
}

// CircuitBreakerClient wraps a Client with a circuit breaker so a failing
// provider sheds load quickly instead of stacking up retries.
type CircuitBreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker
}

// NewCircuitBreakerClient wraps client with breaker settings. The breaker
// trips once at least 3 requests have been seen and the failure ratio
// reaches the configured threshold (default 0.6).
func NewCircuitBreakerClient(client Client, cfg BreakerConfig, logger *slog.Logger) *CircuitBreakerClient {
	if cfg.Name == "" {
		cfg.Name = "nlp"
	}
	if cfg.ReadyToTripRatio <= 0 {
		cfg.ReadyToTripRatio = 0.6
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && ratio >= cfg.ReadyToTripRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// Rejections are terminal but do not indicate provider health.
			if err == nil {
				return true
			}
			return !types.IsRetryable(err)
		},
	}

	return &CircuitBreakerClient{client: client, cb: gobreaker.NewCircuitBreaker(st)}
}

func (c *CircuitBreakerClient) Chat(ctx context.Context, messages []types.Message, opts *types.GenerateOptions) (string, error) {
	out, err := c.cb.Execute(func() (any, error) {
		return c.client.Chat(ctx, messages, opts)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return "", types.NewProviderError("chat completion", err)
		}
		return "", err
	}
	return out.(string), nil
}

func (c *CircuitBreakerClient) Close() error { return c.client.Close() }
