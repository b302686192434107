// Package nlp wraps language-model providers behind a small Client
// interface with retry, circuit-breaking and error classification.
package nlp

import (
	"context"

	"github.com/tempograph/tempograph/pkg/types"
)

// Client is the contract extraction and summarization depend on.
type Client interface {
	// Chat sends a conversation and returns the assistant text.
	Chat(ctx context.Context, messages []types.Message, opts *types.GenerateOptions) (string, error)
	Close() error
}

// Config selects and tunes a provider-backed client.
type Config struct {
	Model       string   `json:"model" mapstructure:"model"`
	APIKey      string   `json:"-" mapstructure:"api_key"`
	BaseURL     string   `json:"base_url,omitempty" mapstructure:"base_url"`
	Temperature *float32 `json:"temperature,omitempty" mapstructure:"temperature"`
	MaxTokens   int      `json:"max_tokens,omitempty" mapstructure:"max_tokens"`
}

func (c *Config) applyTo(opts *types.GenerateOptions) *types.GenerateOptions {
	if opts == nil {
		opts = &types.GenerateOptions{}
	}
	if opts.Temperature == nil {
		opts.Temperature = c.Temperature
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = c.MaxTokens
	}
	return opts
}
