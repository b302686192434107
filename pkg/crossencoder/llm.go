package crossencoder

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tempograph/tempograph/pkg/nlp"
	"github.com/tempograph/tempograph/pkg/types"
	"github.com/tempograph/tempograph/pkg/utils"
)

// LLMRerankerClient scores each passage against the query with a boolean
// relevance classification. Passages are scored concurrently under the
// shared semaphore limit.
type LLMRerankerClient struct {
	client         nlp.Client
	maxConcurrency int
}

// NewLLMRerankerClient wraps an nlp client as a reranker.
func NewLLMRerankerClient(client nlp.Client, maxConcurrency int) *LLMRerankerClient {
	if maxConcurrency <= 0 {
		maxConcurrency = utils.SemaphoreLimit()
	}
	return &LLMRerankerClient{client: client, maxConcurrency: maxConcurrency}
}

func (c *LLMRerankerClient) Rank(ctx context.Context, query string, passages []string) ([]RankedPassage, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	fns := make([]func() (float64, error), len(passages))
	for i, passage := range passages {
		fns[i] = func() (float64, error) {
			return c.scorePassage(ctx, query, passage)
		}
	}
	scores, errs := utils.SemaphoreGatherWithResults(ctx, c.maxConcurrency, fns...)
	if err := utils.FirstError(errs); err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}

	ranked := make([]RankedPassage, len(passages))
	for i, passage := range passages {
		ranked[i] = RankedPassage{Passage: passage, Score: scores[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked, nil
}

func (c *LLMRerankerClient) scorePassage(ctx context.Context, query, passage string) (float64, error) {
	messages := []types.Message{
		types.NewSystemMessage("You are an expert tasked with determining whether the passage is relevant to the query."),
		types.NewUserMessage(fmt.Sprintf(`Respond with "True" if PASSAGE is relevant to QUERY and "False" otherwise.
<PASSAGE>
%s
</PASSAGE>
<QUERY>
%s
</QUERY>`, passage, query)),
	}

	response, err := c.client.Chat(ctx, messages, nil)
	if err != nil {
		return 0, err
	}

	first, _, _ := strings.Cut(strings.TrimSpace(response), " ")
	switch strings.ToLower(strings.TrimRight(first, ".,!")) {
	case "true", "yes":
		return 0.8, nil
	case "false", "no":
		return 0.2, nil
	default:
		return 0.5, nil
	}
}

func (c *LLMRerankerClient) Close() error { return c.client.Close() }
