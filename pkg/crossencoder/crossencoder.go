// Package crossencoder reranks retrieved passages against the query text.
package crossencoder

import (
	"context"
)

// RankedPassage is a passage with its relevance score, higher is better.
type RankedPassage struct {
	Passage string  `json:"passage"`
	Score   float64 `json:"score"`
}

// Client reranks passages by relevance to a query. Implementations return
// passages sorted by descending score.
type Client interface {
	Rank(ctx context.Context, query string, passages []string) ([]RankedPassage, error)
	Close() error
}
