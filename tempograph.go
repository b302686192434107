// Package tempograph is a temporally-aware knowledge graph engine. Episodes
// of raw content are distilled into entity nodes and bi-temporal relation
// edges, contradicted facts are invalidated rather than deleted, and the
// resulting graph is queried through hybrid semantic, lexical, and graph
// search.
package tempograph

import (
	"fmt"
	"log/slog"

	"github.com/tempograph/tempograph/pkg/checkpoint"
	"github.com/tempograph/tempograph/pkg/community"
	"github.com/tempograph/tempograph/pkg/crossencoder"
	"github.com/tempograph/tempograph/pkg/dedupe"
	"github.com/tempograph/tempograph/pkg/driver"
	"github.com/tempograph/tempograph/pkg/embedder"
	"github.com/tempograph/tempograph/pkg/extraction"
	"github.com/tempograph/tempograph/pkg/nlp"
	"github.com/tempograph/tempograph/pkg/resolver"
	"github.com/tempograph/tempograph/pkg/search"
	"github.com/tempograph/tempograph/pkg/telemetry"
	"github.com/tempograph/tempograph/pkg/types"
	"github.com/tempograph/tempograph/pkg/utils"
)

// DefaultPreviousEpisodes is how many prior episodes are handed to
// extraction as conversational context.
const DefaultPreviousEpisodes = 5

// Config tunes a Client beyond its three required backends.
type Config struct {
	// Registry constrains entity attributes. Nil accepts everything.
	Registry *types.SchemaRegistry
	// ExclusivePredicates names classes of mutually exclusive predicates,
	// e.g. {"residence": {"LIVES_IN", "RESIDES_IN"}}. Predicates outside
	// any class are multi-valued and never invalidate each other.
	ExclusivePredicates map[string][]string
	// Reranker, when set, enables cross-encoder reranking in search.
	Reranker crossencoder.Client
	// Checkpoints, when set, records ingested episode UUIDs durably so
	// replays are detected without a graph round trip.
	Checkpoints *checkpoint.Store
	// Journal, when set, writes parquet telemetry for ingestion and search.
	Journal *telemetry.Journal
	// PreviousEpisodes overrides DefaultPreviousEpisodes.
	PreviousEpisodes int
	// MaxConcurrency bounds batch ingestion parallelism. Zero uses the
	// SEMAPHORE_LIMIT environment setting.
	MaxConcurrency int
}

// Client is the engine facade. All operations are scoped to a group ID,
// which partitions the graph into isolated tenants.
type Client struct {
	driver   driver.GraphDriver
	model    nlp.Client
	embedder embedder.Client

	extractor   extraction.Extractor
	entities    *resolver.EntityResolver
	edges       *resolver.EdgeResolver
	invalidator *resolver.Invalidator
	deduper     *dedupe.Deduplicator
	engine      *search.Engine
	communities *community.Builder

	registry    *types.SchemaRegistry
	checkpoints *checkpoint.Store
	journal     *telemetry.Journal
	logger      *slog.Logger

	previousEpisodes int
	maxConcurrency   int
}

// NewClient wires the engine. The driver, model, and embedder are required;
// cfg and logger may be nil.
func NewClient(d driver.GraphDriver, model nlp.Client, emb embedder.Client, cfg *Config, logger *slog.Logger) (*Client, error) {
	if d == nil {
		return nil, fmt.Errorf("tempograph: graph driver is required")
	}
	if model == nil {
		return nil, fmt.Errorf("tempograph: language model client is required")
	}
	if emb == nil {
		return nil, fmt.Errorf("tempograph: embedder client is required")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	extractor := extraction.NewLLMExtractor(model, logger)
	comparator := resolver.NewLLMComparator(model, emb)
	exclusivity := resolver.NewExclusivityIndex(cfg.ExclusivePredicates)

	searchOpts := []search.Option{search.WithLogger(logger)}
	if cfg.Reranker != nil {
		searchOpts = append(searchOpts, search.WithReranker(cfg.Reranker))
	}

	c := &Client{
		driver:           d,
		model:            model,
		embedder:         emb,
		extractor:        extractor,
		entities:         resolver.NewEntityResolver(d, comparator, logger),
		edges:            resolver.NewEdgeResolver(d, logger),
		invalidator:      resolver.NewInvalidator(d, exclusivity, logger),
		deduper:          dedupe.NewDeduplicator(d, comparator, logger),
		engine:           search.NewEngine(d, emb, searchOpts...),
		communities:      community.NewBuilder(d, extractor, emb, logger),
		registry:         cfg.Registry,
		checkpoints:      cfg.Checkpoints,
		journal:          cfg.Journal,
		logger:           logger,
		previousEpisodes: cfg.PreviousEpisodes,
		maxConcurrency:   cfg.MaxConcurrency,
	}
	if c.previousEpisodes <= 0 {
		c.previousEpisodes = DefaultPreviousEpisodes
	}
	if c.maxConcurrency <= 0 {
		c.maxConcurrency = utils.SemaphoreLimit()
	}
	return c, nil
}

// Driver exposes the underlying graph driver.
func (c *Client) Driver() driver.GraphDriver { return c.driver }

// CommunityBuilder exposes the community detection component.
func (c *Client) CommunityBuilder() *community.Builder { return c.communities }

// Close releases the client's backends. The graph driver is closed last.
func (c *Client) Close() error {
	var firstErr error
	if c.journal != nil {
		if err := c.journal.Close(); err != nil {
			firstErr = err
		}
	}
	if c.checkpoints != nil {
		if err := c.checkpoints.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := c.model.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.embedder.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.driver.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
