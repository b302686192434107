package nlp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tempograph/tempograph/pkg/types"
)

// OpenAIClient implements Client on the OpenAI chat completion API, or any
// compatible endpoint via Config.BaseURL.
type OpenAIClient struct {
	client *openai.Client
	config Config
}

// NewOpenAIClient builds a client from config. The model defaults to
// gpt-4.1-mini when unset.
func NewOpenAIClient(config Config) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai client: api key is required")
	}
	if config.Model == "" {
		config.Model = "gpt-4.1-mini"
	}
	cfg := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cfg.BaseURL = config.BaseURL
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg), config: config}, nil
}

func (c *OpenAIClient) Chat(ctx context.Context, messages []types.Message, opts *types.GenerateOptions) (string, error) {
	opts = c.config.applyTo(opts)

	req := openai.ChatCompletionRequest{
		Model:    c.config.Model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyOpenAIError("chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", types.NewProviderError("chat completion", errors.New("empty response"))
	}
	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return "", &types.ProviderRejected{Op: "chat completion", Reason: "content filtered"}
	}
	return choice.Message.Content, nil
}

func (c *OpenAIClient) Close() error { return nil }

// classifyOpenAIError maps API failures onto the module error taxonomy:
// rate limits and server errors are retryable, 4xx rejections are not.
func classifyOpenAIError(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests,
			apiErr.HTTPStatusCode >= http.StatusInternalServerError:
			return types.NewProviderError(op, err)
		case apiErr.HTTPStatusCode >= http.StatusBadRequest:
			return &types.ProviderRejected{Op: op, Reason: apiErr.Message}
		}
	}
	// Network-level failures are retryable.
	return types.NewProviderError(op, err)
}
