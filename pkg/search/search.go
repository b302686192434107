package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/tempograph/tempograph/pkg/crossencoder"
	"github.com/tempograph/tempograph/pkg/driver"
	"github.com/tempograph/tempograph/pkg/embedder"
	"github.com/tempograph/tempograph/pkg/types"
	"github.com/tempograph/tempograph/pkg/utils"
)

// DefaultMethodTimeout bounds each retrieval method so one stuck backend
// cannot hold the whole search.
const DefaultMethodTimeout = 10 * time.Second

// Engine executes hybrid searches against a graph driver.
type Engine struct {
	driver         driver.GraphDriver
	embedder       embedder.Client
	reranker       crossencoder.Client
	logger         *slog.Logger
	methodTimeout  time.Duration
	maxConcurrency int
}

// Option configures an Engine.
type Option func(*Engine)

// WithReranker sets the cross-encoder used by RerankCrossEncoder configs.
func WithReranker(r crossencoder.Client) Option {
	return func(e *Engine) { e.reranker = r }
}

// WithMethodTimeout overrides the per-method timeout.
func WithMethodTimeout(d time.Duration) Option {
	return func(e *Engine) { e.methodTimeout = d }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine builds a search engine over the driver and embedder.
func NewEngine(d driver.GraphDriver, emb embedder.Client, opts ...Option) *Engine {
	e := &Engine{
		driver:         d,
		embedder:       emb,
		logger:         slog.Default(),
		methodTimeout:  DefaultMethodTimeout,
		maxConcurrency: utils.SemaphoreLimit(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search runs the configured retrieval methods concurrently, fuses their
// rankings and applies the configured reranker per result kind. Individual
// method failures degrade the result rather than failing the call; when
// every configured method fails the results carry AllFailed and the error
// wraps ErrSearchDegraded.
func (e *Engine) Search(ctx context.Context, query, groupID string, cfg *types.SearchConfig, filters *types.SearchFilters) (*types.SearchResults, error) {
	if cfg == nil {
		cfg = types.DefaultSearchConfig()
	}
	if filters == nil {
		filters = &types.SearchFilters{}
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = types.DefaultSearchLimit
	}

	results := &types.SearchResults{
		Query:   query,
		Methods: make(map[string][]types.SearchMethod),
	}
	ctx = withQuery(ctx, query)

	queryVector := e.embedQuery(ctx, query, cfg, results)

	// Each kind runs in its own goroutine with its own partial result, so
	// every configured method of every kind is in flight at once. Partials
	// are merged after the barrier; the kinds touch disjoint result fields.
	attempted := 0
	var parts []*types.SearchResults
	var kinds []func() error
	addKind := func(run func(part *types.SearchResults)) {
		part := &types.SearchResults{Methods: make(map[string][]types.SearchMethod)}
		parts = append(parts, part)
		kinds = append(kinds, func() error {
			run(part)
			return nil
		})
	}
	if cfg.Nodes != nil {
		attempted += len(cfg.Nodes.Methods)
		addKind(func(part *types.SearchResults) {
			e.searchNodes(ctx, query, queryVector, groupID, limit, cfg.Nodes, filters, part)
		})
	}
	if cfg.Edges != nil {
		attempted += len(cfg.Edges.Methods)
		addKind(func(part *types.SearchResults) {
			e.searchEdges(ctx, query, queryVector, groupID, limit, cfg.Edges, filters, part)
		})
	}
	if cfg.Episodes != nil {
		attempted += len(cfg.Episodes.Methods)
		addKind(func(part *types.SearchResults) {
			e.searchEpisodes(ctx, query, groupID, limit, cfg.Episodes, part)
		})
	}
	if cfg.Communities != nil {
		attempted += len(cfg.Communities.Methods)
		addKind(func(part *types.SearchResults) {
			e.searchCommunities(ctx, queryVector, groupID, limit, cfg.Communities, part)
		})
	}
	utils.SemaphoreGather(ctx, e.maxConcurrency, kinds...)
	for _, part := range parts {
		mergePart(results, part)
	}

	if attempted > 0 && len(results.FailedMethods) >= attempted &&
		len(results.Nodes)+len(results.Edges)+len(results.Episodes)+len(results.Communities) == 0 {
		results.AllFailed = true
		return results, fmt.Errorf("search %q: %w", query, types.ErrSearchDegraded)
	}
	return results, nil
}

// embedQuery embeds the query once when any configured method needs it.
// Failure records one failed method per cosine use and lets fulltext and
// BFS continue.
func (e *Engine) embedQuery(ctx context.Context, query string, cfg *types.SearchConfig, results *types.SearchResults) []float32 {
	if query == "" || e.embedder == nil {
		return nil
	}
	needed := false
	for _, mc := range []*types.SearchMethodConfig{cfg.Nodes, cfg.Edges, cfg.Communities} {
		if mc == nil {
			continue
		}
		for _, m := range mc.Methods {
			if m == types.MethodCosineSimilarity {
				needed = true
			}
		}
	}
	if !needed {
		return nil
	}
	vec, err := e.embedder.EmbedSingle(ctx, query)
	if err != nil {
		e.logger.Warn("query embedding failed, cosine methods degraded", "err", err)
		return nil
	}
	return vec
}

type ranking struct {
	method types.SearchMethod
	uuids  []string
}

// runMethods executes the method closures concurrently with per-method
// timeouts, returning successful rankings and recorded failures.
func (e *Engine) runMethods(ctx context.Context, kind string, methods []types.SearchMethod,
	run map[types.SearchMethod]func(context.Context) ([]string, error), results *types.SearchResults) []ranking {

	fns := make([]func() ([]string, error), 0, len(methods))
	active := make([]types.SearchMethod, 0, len(methods))
	for _, method := range methods {
		fn, ok := run[method]
		if !ok {
			continue
		}
		active = append(active, method)
		fns = append(fns, func() ([]string, error) {
			mctx, cancel := context.WithTimeout(ctx, e.methodTimeout)
			defer cancel()
			return fn(mctx)
		})
	}

	ranked, errs := utils.SemaphoreGatherWithResults(ctx, e.maxConcurrency, fns...)
	var out []ranking
	for i, method := range active {
		if errs[i] != nil {
			e.logger.Warn("search method failed",
				"kind", kind, "method", method, "err", errs[i])
			results.FailedMethods = append(results.FailedMethods, types.MethodFailure{
				Kind: kind, Method: method, Err: errs[i].Error(),
			})
			continue
		}
		out = append(out, ranking{method: method, uuids: ranked[i]})
	}
	return out
}

func bfsOrigins(filters *types.SearchFilters) []string {
	if len(filters.BFSOriginUUIDs) > 0 {
		return filters.BFSOriginUUIDs
	}
	if filters.CenterNodeUUID != "" {
		return []string{filters.CenterNodeUUID}
	}
	return nil
}

func (e *Engine) searchNodes(ctx context.Context, query string, queryVector []float32,
	groupID string, limit int, mc *types.SearchMethodConfig, filters *types.SearchFilters,
	results *types.SearchResults) {

	items := make(map[string]*types.Node)
	collect := func(hits []driver.ScoredNode) []string {
		uuids := make([]string, 0, len(hits))
		for _, hit := range hits {
			if !nodePassesFilters(hit.Node, filters) {
				continue
			}
			items[hit.Node.UUID] = hit.Node
			uuids = append(uuids, hit.Node.UUID)
		}
		return uuids
	}

	candidateLimit := limit * 2
	run := map[types.SearchMethod]func(context.Context) ([]string, error){}
	if len(queryVector) > 0 {
		run[types.MethodCosineSimilarity] = func(mctx context.Context) ([]string, error) {
			hits, err := e.driver.SearchNodesByVector(mctx, queryVector, groupID, candidateLimit, mc.MinScore)
			if err != nil {
				return nil, err
			}
			return collect(hits), nil
		}
	}
	if query != "" {
		run[types.MethodBM25] = func(mctx context.Context) ([]string, error) {
			hits, err := e.driver.SearchNodesFulltext(mctx, query, groupID, candidateLimit)
			if err != nil {
				return nil, err
			}
			return collect(hits), nil
		}
	}
	if origins := bfsOrigins(filters); len(origins) > 0 {
		run[types.MethodBFS] = func(mctx context.Context) ([]string, error) {
			distances, err := e.driver.Neighborhood(mctx, origins, groupID, mc.BFSMaxDepth)
			if err != nil {
				return nil, err
			}
			hits, err := e.nodesByDistance(mctx, distances, groupID, filters)
			if err != nil {
				return nil, err
			}
			return collect(hits), nil
		}
	}

	rankings := e.runMethods(ctx, "nodes", mc.Methods, run, results)
	if len(items) == 0 {
		return
	}

	scores, order := e.fuse(ctx, rankings, mc, limit, filters, groupID, nodeEmbeddings(items), func(uuid string) string {
		n := items[uuid]
		return n.Name + ". " + n.Summary
	}, nil)

	results.NodeScores = make(map[string]float64, len(order))
	for _, uuid := range order {
		results.Nodes = append(results.Nodes, items[uuid])
		results.NodeScores[uuid] = scores[uuid]
	}
	attachMethods(results, rankings, order)
}

func (e *Engine) searchEdges(ctx context.Context, query string, queryVector []float32,
	groupID string, limit int, mc *types.SearchMethodConfig, filters *types.SearchFilters,
	results *types.SearchResults) {

	items := make(map[string]*types.Edge)
	collect := func(hits []driver.ScoredEdge) []string {
		uuids := make([]string, 0, len(hits))
		for _, hit := range hits {
			if !edgePassesFilters(hit.Edge, filters) {
				continue
			}
			items[hit.Edge.UUID] = hit.Edge
			uuids = append(uuids, hit.Edge.UUID)
		}
		return uuids
	}

	candidateLimit := limit * 2
	run := map[types.SearchMethod]func(context.Context) ([]string, error){}
	if len(queryVector) > 0 {
		run[types.MethodCosineSimilarity] = func(mctx context.Context) ([]string, error) {
			hits, err := e.driver.SearchEdgesByVector(mctx, queryVector, groupID, candidateLimit, mc.MinScore)
			if err != nil {
				return nil, err
			}
			return collect(hits), nil
		}
	}
	if query != "" {
		run[types.MethodBM25] = func(mctx context.Context) ([]string, error) {
			hits, err := e.driver.SearchEdgesFulltext(mctx, query, groupID, candidateLimit)
			if err != nil {
				return nil, err
			}
			return collect(hits), nil
		}
	}
	if origins := bfsOrigins(filters); len(origins) > 0 {
		run[types.MethodBFS] = func(mctx context.Context) ([]string, error) {
			hits, err := e.edgesByTraversal(mctx, origins, groupID, mc.BFSMaxDepth)
			if err != nil {
				return nil, err
			}
			return collect(hits), nil
		}
	}

	rankings := e.runMethods(ctx, "edges", mc.Methods, run, results)
	if len(items) == 0 {
		return
	}

	mentions := make(map[string]int, len(items))
	for uuid, edge := range items {
		mentions[uuid] = len(edge.Episodes)
	}
	scores, order := e.fuse(ctx, rankings, mc, limit, filters, groupID, edgeEmbeddings(items), func(uuid string) string {
		return items[uuid].Fact
	}, mentions)

	results.EdgeScores = make(map[string]float64, len(order))
	for _, uuid := range order {
		results.Edges = append(results.Edges, items[uuid])
		results.EdgeScores[uuid] = scores[uuid]
	}
	attachMethods(results, rankings, order)
}

func (e *Engine) searchEpisodes(ctx context.Context, query, groupID string, limit int,
	mc *types.SearchMethodConfig, results *types.SearchResults) {
	if query == "" {
		return
	}

	items := make(map[string]*types.Node)
	run := map[types.SearchMethod]func(context.Context) ([]string, error){
		types.MethodBM25: func(mctx context.Context) ([]string, error) {
			hits, err := e.driver.SearchEpisodesFulltext(mctx, query, groupID, limit*2)
			if err != nil {
				return nil, err
			}
			uuids := make([]string, 0, len(hits))
			for _, hit := range hits {
				items[hit.Node.UUID] = hit.Node
				uuids = append(uuids, hit.Node.UUID)
			}
			return uuids, nil
		},
	}

	rankings := e.runMethods(ctx, "episodes", mc.Methods, run, results)
	if len(items) == 0 {
		return
	}
	scores := rrfScores(rankingLists(rankings), mc.RankConstant)
	order := clampOrder(sortByScore(scores), limit)

	results.EpisodeScores = make(map[string]float64, len(order))
	for _, uuid := range order {
		results.Episodes = append(results.Episodes, items[uuid])
		results.EpisodeScores[uuid] = scores[uuid]
	}
	attachMethods(results, rankings, order)
}

func (e *Engine) searchCommunities(ctx context.Context, queryVector []float32, groupID string,
	limit int, mc *types.SearchMethodConfig, results *types.SearchResults) {
	if len(queryVector) == 0 {
		return
	}

	items := make(map[string]*types.Node)
	run := map[types.SearchMethod]func(context.Context) ([]string, error){
		types.MethodCosineSimilarity: func(mctx context.Context) ([]string, error) {
			hits, err := e.driver.SearchCommunitiesByVector(mctx, queryVector, groupID, limit*2, mc.MinScore)
			if err != nil {
				return nil, err
			}
			uuids := make([]string, 0, len(hits))
			for _, hit := range hits {
				items[hit.Node.UUID] = hit.Node
				uuids = append(uuids, hit.Node.UUID)
			}
			return uuids, nil
		},
	}

	rankings := e.runMethods(ctx, "communities", mc.Methods, run, results)
	if len(items) == 0 {
		return
	}
	scores := rrfScores(rankingLists(rankings), mc.RankConstant)
	order := clampOrder(sortByScore(scores), limit)

	results.CommunityScores = make(map[string]float64, len(order))
	for _, uuid := range order {
		results.Communities = append(results.Communities, items[uuid])
		results.CommunityScores[uuid] = scores[uuid]
	}
	attachMethods(results, rankings, order)
}

// fuse turns method rankings into final scores and order, applying the
// configured reranker. Mentions may be nil for kinds without provenance.
func (e *Engine) fuse(ctx context.Context, rankings []ranking, mc *types.SearchMethodConfig,
	limit int, filters *types.SearchFilters, groupID string,
	embeddings map[string][]float32, passage func(string) string,
	mentions map[string]int) (map[string]float64, []string) {

	scores := rrfScores(rankingLists(rankings), mc.RankConstant)

	switch mc.Reranker {
	case types.RerankMMR:
		return scores, mmrOrder(scores, embeddings, mc.MMRLambda, limit)

	case types.RerankNodeDistance:
		if filters.CenterNodeUUID != "" {
			distances, err := e.driver.Neighborhood(ctx, []string{filters.CenterNodeUUID}, groupID, types.MaxSearchDepth)
			if err != nil {
				e.logger.Warn("distance rerank degraded to rrf", "err", err)
				break
			}
			for uuid := range scores {
				d, ok := distances[uuid]
				scores[uuid] = distanceBoost(scores[uuid], d, ok)
			}
		}

	case types.RerankEpisodeMentions:
		for uuid := range scores {
			scores[uuid] = mentionBoost(scores[uuid], mentions[uuid])
		}

	case types.RerankCrossEncoder:
		if e.reranker == nil {
			e.logger.Warn("cross encoder not configured, rerank degraded to rrf")
			break
		}
		order := e.crossEncode(ctx, scores, passage, limit)
		if order != nil {
			return scores, order
		}
	}

	return scores, clampOrder(sortByScore(scores), limit)
}

// crossEncode reranks the RRF top candidates by passage relevance. A
// reranker failure returns nil so fusion falls back to the RRF order.
func (e *Engine) crossEncode(ctx context.Context, scores map[string]float64, passage func(string) string, limit int) []string {
	candidates := clampOrder(sortByScore(scores), limit*3)
	passages := make([]string, len(candidates))
	byPassage := make(map[string][]string, len(candidates))
	for i, uuid := range candidates {
		p := passage(uuid)
		passages[i] = p
		byPassage[p] = append(byPassage[p], uuid)
	}

	query := ""
	// The engine reranks against the original query, carried via context
	// by the caller of Search; passages are matched back by text.
	if q, ok := ctx.Value(queryKey{}).(string); ok {
		query = q
	}
	ranked, err := e.reranker.Rank(ctx, query, passages)
	if err != nil {
		e.logger.Warn("cross encoder failed, rerank degraded to rrf", "err", err)
		return nil
	}

	order := make([]string, 0, len(candidates))
	for _, rp := range ranked {
		uuids := byPassage[rp.Passage]
		if len(uuids) == 0 {
			continue
		}
		order = append(order, uuids[0])
		byPassage[rp.Passage] = uuids[1:]
		scores[uuids[0]] = rp.Score
	}
	return clampOrder(order, limit)
}

type queryKey struct{}

// withQuery threads the raw query to the cross encoder.
func withQuery(ctx context.Context, query string) context.Context {
	return context.WithValue(ctx, queryKey{}, query)
}

func (e *Engine) nodesByDistance(ctx context.Context, distances map[string]int, groupID string, filters *types.SearchFilters) ([]driver.ScoredNode, error) {
	uuids := make([]string, 0, len(distances))
	for uuid, d := range distances {
		if d > 0 { // origins themselves are not results
			uuids = append(uuids, uuid)
		}
	}
	nodes, err := e.driver.GetNodes(ctx, uuids, groupID)
	if err != nil {
		return nil, err
	}
	hits := make([]driver.ScoredNode, 0, len(nodes))
	for _, node := range nodes {
		if node.Kind != types.EntityNodeKind {
			continue
		}
		hits = append(hits, driver.ScoredNode{
			Node:  node,
			Score: 1.0 / float64(1+distances[node.UUID]),
		})
	}
	sortHitsByScore(hits)
	return hits, nil
}

func (e *Engine) edgesByTraversal(ctx context.Context, origins []string, groupID string, maxDepth int) ([]driver.ScoredEdge, error) {
	distances, err := e.driver.Neighborhood(ctx, origins, groupID, maxDepth)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var hits []driver.ScoredEdge
	for uuid, d := range distances {
		edges, err := e.driver.GetEdgesForNode(ctx, uuid, groupID)
		if err != nil {
			return nil, err
		}
		for _, edge := range edges {
			if seen[edge.UUID] {
				continue
			}
			seen[edge.UUID] = true
			hits = append(hits, driver.ScoredEdge{Edge: edge, Score: 1.0 / float64(1+d)})
		}
	}
	sortEdgeHitsByScore(hits)
	return hits, nil
}

func nodePassesFilters(node *types.Node, filters *types.SearchFilters) bool {
	if len(filters.EntityTypes) == 0 {
		return true
	}
	for _, et := range filters.EntityTypes {
		if node.EntityType == et {
			return true
		}
	}
	return false
}

func edgePassesFilters(edge *types.Edge, filters *types.SearchFilters) bool {
	if !filters.IncludeInvalid && !edge.IsValid() {
		return false
	}
	if filters.AsOf != nil && !edge.IsLiveAt(*filters.AsOf) {
		return false
	}
	if len(filters.EdgeNames) > 0 {
		found := false
		for _, name := range filters.EdgeNames {
			if edge.Name == name {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// mergePart folds one kind's partial results into the fused output. Every
// kind fills its own slices and score map, so only the method attribution
// and failure list are shared.
func mergePart(dst, src *types.SearchResults) {
	dst.Nodes = append(dst.Nodes, src.Nodes...)
	dst.Edges = append(dst.Edges, src.Edges...)
	dst.Episodes = append(dst.Episodes, src.Episodes...)
	dst.Communities = append(dst.Communities, src.Communities...)
	if src.NodeScores != nil {
		dst.NodeScores = src.NodeScores
	}
	if src.EdgeScores != nil {
		dst.EdgeScores = src.EdgeScores
	}
	if src.EpisodeScores != nil {
		dst.EpisodeScores = src.EpisodeScores
	}
	if src.CommunityScores != nil {
		dst.CommunityScores = src.CommunityScores
	}
	for uuid, methods := range src.Methods {
		dst.Methods[uuid] = append(dst.Methods[uuid], methods...)
	}
	dst.FailedMethods = append(dst.FailedMethods, src.FailedMethods...)
}

func rankingLists(rankings []ranking) [][]string {
	lists := make([][]string, len(rankings))
	for i, r := range rankings {
		lists[i] = r.uuids
	}
	return lists
}

func attachMethods(results *types.SearchResults, rankings []ranking, order []string) {
	inOrder := make(map[string]bool, len(order))
	for _, uuid := range order {
		inOrder[uuid] = true
	}
	for _, r := range rankings {
		for _, uuid := range r.uuids {
			if inOrder[uuid] {
				results.Methods[uuid] = appendMethod(results.Methods[uuid], r.method)
			}
		}
	}
}

func appendMethod(methods []types.SearchMethod, m types.SearchMethod) []types.SearchMethod {
	for _, existing := range methods {
		if existing == m {
			return methods
		}
	}
	return append(methods, m)
}

func clampOrder(order []string, limit int) []string {
	if limit > 0 && len(order) > limit {
		return order[:limit]
	}
	return order
}

func nodeEmbeddings(items map[string]*types.Node) map[string][]float32 {
	out := make(map[string][]float32, len(items))
	for uuid, node := range items {
		if len(node.NameEmbedding) > 0 {
			out[uuid] = node.NameEmbedding
		}
	}
	return out
}

func edgeEmbeddings(items map[string]*types.Edge) map[string][]float32 {
	out := make(map[string][]float32, len(items))
	for uuid, edge := range items {
		if len(edge.FactEmbedding) > 0 {
			out[uuid] = edge.FactEmbedding
		}
	}
	return out
}

func sortHitsByScore(hits []driver.ScoredNode) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Node.UUID < hits[j].Node.UUID
	})
}

func sortEdgeHitsByScore(hits []driver.ScoredEdge) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Edge.UUID < hits[j].Edge.UUID
	})
}
