package nlp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempograph/tempograph/pkg/types"
)

func fastRetryConfig(retries int) *RetryConfig {
	return &RetryConfig{
		MaxRetries:        retries,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestRetryClientRecoversFromTransientFailure(t *testing.T) {
	mock := NewMockClient("ok").
		FailWith(0, types.NewProviderError("chat completion", errors.New("rate limited")))
	client := NewRetryClient(mock, fastRetryConfig(3))

	out, err := client.Chat(context.Background(), []types.Message{types.NewUserMessage("hi")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 2, mock.Calls())
}

func TestRetryClientDoesNotRetryRejection(t *testing.T) {
	rejection := &types.ProviderRejected{Op: "chat completion", Reason: "content policy"}
	mock := NewMockClient("never").FailWith(0, rejection)
	client := NewRetryClient(mock, fastRetryConfig(3))

	_, err := client.Chat(context.Background(), nil, nil)
	var pr *types.ProviderRejected
	require.ErrorAs(t, err, &pr)
	assert.Equal(t, 1, mock.Calls())
}

func TestRetryClientExhaustionSignalsDegraded(t *testing.T) {
	boom := types.NewProviderError("chat completion", errors.New("unavailable"))
	mock := NewMockClient("never")
	for i := 0; i < 4; i++ {
		mock.FailWith(i, boom)
	}
	client := NewRetryClient(mock, fastRetryConfig(3))

	_, err := client.Chat(context.Background(), nil, nil)
	require.ErrorIs(t, err, types.ErrIngestionDegraded)
	assert.Equal(t, 4, mock.Calls())
}

func TestRetryClientHonorsContextDuringBackoff(t *testing.T) {
	boom := types.NewProviderError("chat completion", errors.New("unavailable"))
	mock := NewMockClient("never").FailWith(0, boom)
	client := NewRetryClient(mock, &RetryConfig{
		MaxRetries:        3,
		InitialDelay:      time.Minute,
		MaxDelay:          time.Minute,
		BackoffMultiplier: 2.0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := client.Chat(ctx, nil, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIsRetryableClassification(t *testing.T) {
	assert.True(t, types.IsRetryable(types.NewProviderError("x", errors.New("boom"))))
	assert.False(t, types.IsRetryable(&types.ProviderRejected{Op: "x", Reason: "no"}))
	assert.False(t, types.IsRetryable(types.ErrExtractionIncomplete))
	assert.False(t, types.IsRetryable(nil))
}
