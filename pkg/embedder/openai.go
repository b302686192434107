package embedder

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tempograph/tempograph/pkg/types"
	"github.com/tempograph/tempograph/pkg/utils"
)

const defaultOpenAIBatchSize = 100

// OpenAIClient implements Client on the OpenAI embeddings API.
type OpenAIClient struct {
	client *openai.Client
	config Config
}

// NewOpenAIClient builds an embedding client. The model defaults to
// text-embedding-3-small with 1536 dimensions.
func NewOpenAIClient(config Config) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai embedder: api key is required")
	}
	if config.Model == "" {
		config.Model = string(openai.SmallEmbedding3)
	}
	if config.Dimensions == 0 {
		config.Dimensions = 1536
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaultOpenAIBatchSize
	}
	cfg := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cfg.BaseURL = config.BaseURL
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg), config: config}, nil
}

func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for _, batch := range utils.Batch(texts, c.config.BatchSize) {
		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(c.config.Model),
			Input: batch,
		})
		if err != nil {
			return nil, classifyEmbedError(err)
		}
		if len(resp.Data) != len(batch) {
			return nil, types.NewProviderError("embedding",
				fmt.Errorf("got %d embeddings for %d inputs", len(resp.Data), len(batch)))
		}
		for _, item := range resp.Data {
			out = append(out, item.Embedding)
		}
	}
	return out, nil
}

func (c *OpenAIClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, types.NewProviderError("embedding", errors.New("no embedding returned"))
	}
	return vectors[0], nil
}

func (c *OpenAIClient) Dimensions() int { return c.config.Dimensions }

func (c *OpenAIClient) Close() error { return nil }

func classifyEmbedError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode >= http.StatusBadRequest &&
		apiErr.HTTPStatusCode < http.StatusInternalServerError &&
		apiErr.HTTPStatusCode != http.StatusTooManyRequests {
		return &types.ProviderRejected{Op: "embedding", Reason: apiErr.Message}
	}
	return types.NewProviderError("embedding", err)
}
