// Package embedder converts text into dense vectors for similarity search.
package embedder

import (
	"context"
)

// Client is the embedding contract. Implementations return one vector per
// input text, in input order.
type Client interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}

// Config holds provider-independent embedding settings.
type Config struct {
	Model      string `json:"model" mapstructure:"model"`
	APIKey     string `json:"-" mapstructure:"api_key"`
	BaseURL    string `json:"base_url,omitempty" mapstructure:"base_url"`
	Dimensions int    `json:"dimensions,omitempty" mapstructure:"dimensions"`
	BatchSize  int    `json:"batch_size,omitempty" mapstructure:"batch_size"`
}
