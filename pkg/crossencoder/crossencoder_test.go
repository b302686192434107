package crossencoder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempograph/tempograph/pkg/embedder"
	"github.com/tempograph/tempograph/pkg/nlp"
)

func TestLLMRerankerOrdersByRelevance(t *testing.T) {
	// One scripted verdict per passage; concurrency is 1 so the order of
	// calls matches the order of passages.
	mock := nlp.NewMockClient("False", "True", "False")
	client := NewLLMRerankerClient(mock, 1)

	ranked, err := client.Rank(context.Background(), "where does alice live",
		[]string{"Bob likes jazz", "Alice lives in Boston", "The sky is blue"})
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, "Alice lives in Boston", ranked[0].Passage)
	assert.Greater(t, ranked[0].Score, ranked[1].Score)
}

func TestLLMRerankerEmptyPassages(t *testing.T) {
	client := NewLLMRerankerClient(nlp.NewMockClient(), 1)
	ranked, err := client.Rank(context.Background(), "query", nil)
	require.NoError(t, err)
	assert.Empty(t, ranked)
}

func TestEmbeddingRerankerFavorsIdenticalText(t *testing.T) {
	client := NewEmbeddingRerankerClient(embedder.NewMockClient(16))

	ranked, err := client.Rank(context.Background(), "alice lives in boston",
		[]string{"completely unrelated text", "alice lives in boston"})
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "alice lives in boston", ranked[0].Passage)
	assert.InDelta(t, 1.0, ranked[0].Score, 1e-6)
}
