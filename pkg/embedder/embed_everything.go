package embedder

import (
	"context"
	"fmt"

	ee "github.com/soundprediction/go-embedeverything/pkg/embedder"

	"github.com/tempograph/tempograph/pkg/types"
)

// EmbedEverythingClient runs embeddings locally via go-embedeverything, so
// ingestion works without a hosted embedding provider.
type EmbedEverythingClient struct {
	client *ee.Embedder
	config Config
}

// NewEmbedEverythingClient loads the named local model.
func NewEmbedEverythingClient(config Config) (*EmbedEverythingClient, error) {
	client, err := ee.NewEmbedder(config.Model)
	if err != nil {
		return nil, fmt.Errorf("create local embedder: %w", err)
	}
	return &EmbedEverythingClient{client: client, config: config}, nil
}

func (e *EmbedEverythingClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	// The local embedder does not take a context.
	vectors, err := e.client.Embed(texts)
	if err != nil {
		return nil, types.NewProviderError("embedding", err)
	}
	return vectors, nil
}

func (e *EmbedEverythingClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, types.NewProviderError("embedding", fmt.Errorf("no embedding returned"))
	}
	return vectors[0], nil
}

func (e *EmbedEverythingClient) Dimensions() int { return e.config.Dimensions }

func (e *EmbedEverythingClient) Close() error {
	e.client.Close()
	return nil
}
