// Package resolver reconciles extracted candidates against the existing
// graph: entity identity, edge deduplication and temporal invalidation.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tempograph/tempograph/pkg/embedder"
	"github.com/tempograph/tempograph/pkg/nlp"
	"github.com/tempograph/tempograph/pkg/types"
	"github.com/tempograph/tempograph/pkg/utils"
)

// EntityRef is the minimal view the comparator needs of an entity.
type EntityRef struct {
	Name       string
	EntityType string
	Summary    string
}

// Comparator decides whether two entity references denote the same
// real-world entity.
type Comparator interface {
	SameEntity(ctx context.Context, a, b EntityRef) (bool, error)
}

// Prefilter thresholds. Pairs below the overlap floor and embedding floor
// are rejected without a model call.
const (
	prefilterOverlapFloor = 0.2
	prefilterCosineFloor  = 0.5
)

// LLMComparator asks a language model for borderline pairs, after cheap
// prefilters settle the obvious ones. Verdicts are cached per comparator
// instance, so one instance should live for at most one ingestion batch.
type LLMComparator struct {
	client   nlp.Client
	embedder embedder.Client

	mu    sync.Mutex
	cache map[string]bool
}

// NewLLMComparator builds a comparator. The embedder may be nil, which
// disables the embedding prefilter.
func NewLLMComparator(client nlp.Client, emb embedder.Client) *LLMComparator {
	return &LLMComparator{client: client, embedder: emb, cache: make(map[string]bool)}
}

func pairKey(a, b EntityRef) string {
	ka := strings.ToLower(a.Name) + "|" + a.EntityType
	kb := strings.ToLower(b.Name) + "|" + b.EntityType
	if ka > kb {
		ka, kb = kb, ka
	}
	return ka + "||" + kb
}

func typesCompatible(a, b EntityRef) bool {
	return a.EntityType == "" || b.EntityType == "" || a.EntityType == b.EntityType
}

func (c *LLMComparator) SameEntity(ctx context.Context, a, b EntityRef) (bool, error) {
	// Exact name with compatible type ties toward same.
	if strings.EqualFold(strings.TrimSpace(a.Name), strings.TrimSpace(b.Name)) && typesCompatible(a, b) {
		return true, nil
	}
	if !typesCompatible(a, b) {
		return false, nil
	}

	key := pairKey(a, b)
	c.mu.Lock()
	if verdict, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return verdict, nil
	}
	c.mu.Unlock()

	if utils.WordOverlap(a.Name, b.Name) < prefilterOverlapFloor {
		if skip, ok := c.embeddingPrefilter(ctx, a, b); ok && skip {
			c.store(key, false)
			return false, nil
		}
		if c.embedder == nil {
			c.store(key, false)
			return false, nil
		}
	}

	verdict, err := c.ask(ctx, a, b)
	if err != nil {
		return false, err
	}
	c.store(key, verdict)
	return verdict, nil
}

// embeddingPrefilter reports (reject, decided). Failures fall through to
// the model rather than failing the pair.
func (c *LLMComparator) embeddingPrefilter(ctx context.Context, a, b EntityRef) (bool, bool) {
	if c.embedder == nil {
		return false, false
	}
	vectors, err := c.embedder.Embed(ctx, []string{a.Name, b.Name})
	if err != nil || len(vectors) != 2 {
		return false, false
	}
	return utils.CosineSimilarity(vectors[0], vectors[1]) < prefilterCosineFloor, true
}

func (c *LLMComparator) ask(ctx context.Context, a, b EntityRef) (bool, error) {
	messages := []types.Message{
		types.NewSystemMessage("You decide whether two entity mentions refer to the same real-world entity. Respond with only \"same\" or \"different\"."),
		types.NewUserMessage(fmt.Sprintf(
			"Entity A: %s (type: %s) %s\nEntity B: %s (type: %s) %s",
			a.Name, a.EntityType, a.Summary, b.Name, b.EntityType, b.Summary)),
	}
	response, err := c.client.Chat(ctx, messages, nil)
	if err != nil {
		return false, fmt.Errorf("compare entities: %w", err)
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(response)), "same"), nil
}

func (c *LLMComparator) store(key string, verdict bool) {
	c.mu.Lock()
	c.cache[key] = verdict
	c.mu.Unlock()
}
