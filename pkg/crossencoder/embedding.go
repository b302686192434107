package crossencoder

import (
	"context"
	"fmt"
	"sort"

	"github.com/tempograph/tempograph/pkg/embedder"
	"github.com/tempograph/tempograph/pkg/utils"
)

// EmbeddingRerankerClient ranks passages by cosine similarity between the
// query embedding and each passage embedding. Cheaper and coarser than the
// LLM reranker, useful as a local fallback.
type EmbeddingRerankerClient struct {
	embedder embedder.Client
}

// NewEmbeddingRerankerClient wraps an embedder as a reranker.
func NewEmbeddingRerankerClient(client embedder.Client) *EmbeddingRerankerClient {
	return &EmbeddingRerankerClient{embedder: client}
}

func (c *EmbeddingRerankerClient) Rank(ctx context.Context, query string, passages []string) ([]RankedPassage, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	queryVec, err := c.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	passageVecs, err := c.embedder.Embed(ctx, passages)
	if err != nil {
		return nil, fmt.Errorf("embed passages: %w", err)
	}

	ranked := make([]RankedPassage, len(passages))
	for i, passage := range passages {
		ranked[i] = RankedPassage{
			Passage: passage,
			Score:   utils.CosineSimilarity(queryVec, passageVecs[i]),
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked, nil
}

func (c *EmbeddingRerankerClient) Close() error { return c.embedder.Close() }
