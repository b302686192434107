package types

import "time"

// SearchMethod names a retrieval method.
type SearchMethod string

const (
	MethodCosineSimilarity SearchMethod = "cosine_similarity"
	MethodBM25             SearchMethod = "bm25"
	MethodBFS              SearchMethod = "breadth_first_search"
)

// RerankerType names a fusion or reranking strategy applied after the
// retrieval methods run.
type RerankerType string

const (
	RerankRRF             RerankerType = "rrf"
	RerankMMR             RerankerType = "mmr"
	RerankNodeDistance    RerankerType = "node_distance"
	RerankEpisodeMentions RerankerType = "episode_mentions"
	RerankCrossEncoder    RerankerType = "cross_encoder"
)

// Search defaults shared across configs.
const (
	DefaultSearchLimit  = 10
	DefaultRankConstant = 60
	DefaultMMRLambda    = 0.5
	DefaultMinScore     = 0.6
	MaxSearchDepth      = 3
)

// SearchMethodConfig configures retrieval and reranking for one result kind.
type SearchMethodConfig struct {
	Methods      []SearchMethod `json:"methods"`
	Reranker     RerankerType   `json:"reranker"`
	MinScore     float64        `json:"min_score"`
	MMRLambda    float64        `json:"mmr_lambda,omitempty"`
	RankConstant int            `json:"rank_constant,omitempty"`
	BFSMaxDepth  int            `json:"bfs_max_depth,omitempty"`
}

// SearchConfig drives a hybrid search across node, edge, episode and
// community result kinds. A nil kind config disables that kind.
type SearchConfig struct {
	Limit       int                 `json:"limit"`
	Nodes       *SearchMethodConfig `json:"nodes,omitempty"`
	Edges       *SearchMethodConfig `json:"edges,omitempty"`
	Episodes    *SearchMethodConfig `json:"episodes,omitempty"`
	Communities *SearchMethodConfig `json:"communities,omitempty"`
}

// SearchFilters narrows search results before fusion.
type SearchFilters struct {
	GroupIDs    []string   `json:"group_ids,omitempty"`
	EntityTypes []string   `json:"entity_types,omitempty"`
	EdgeNames   []string   `json:"edge_names,omitempty"`
	// IncludeInvalid opts into historical edges whose validity interval
	// has been closed. By default only live edges are returned.
	IncludeInvalid bool `json:"include_invalid,omitempty"`
	// AsOf restricts edges to those live at the given instant.
	AsOf *time.Time `json:"as_of,omitempty"`
	// CenterNodeUUID anchors node-distance reranking and BFS seeding.
	CenterNodeUUID string `json:"center_node_uuid,omitempty"`
	// BFSOriginUUIDs seed graph traversal when set.
	BFSOriginUUIDs []string `json:"bfs_origin_uuids,omitempty"`
}

// MethodFailure records one retrieval method that failed during a search.
type MethodFailure struct {
	Kind   string       `json:"kind"`
	Method SearchMethod `json:"method"`
	Err    string       `json:"error"`
}

// SearchResults is the fused output of a hybrid search. Methods maps
// result UUIDs to the retrieval methods that surfaced them.
type SearchResults struct {
	Query       string  `json:"query"`
	Nodes       []*Node `json:"nodes,omitempty"`
	Edges       []*Edge `json:"edges,omitempty"`
	Episodes    []*Node `json:"episodes,omitempty"`
	Communities []*Node `json:"communities,omitempty"`

	NodeScores      map[string]float64 `json:"node_scores,omitempty"`
	EdgeScores      map[string]float64 `json:"edge_scores,omitempty"`
	EpisodeScores   map[string]float64 `json:"episode_scores,omitempty"`
	CommunityScores map[string]float64 `json:"community_scores,omitempty"`

	Methods map[string][]SearchMethod `json:"methods,omitempty"`

	FailedMethods []MethodFailure `json:"failed_methods,omitempty"`
	// AllFailed is set when every configured method failed and the results
	// are empty for that reason rather than a true miss.
	AllFailed bool `json:"all_failed,omitempty"`
}

// DefaultNodeSearchConfig returns the standard hybrid node search: cosine
// and BM25 fused with RRF.
func DefaultNodeSearchConfig() *SearchMethodConfig {
	return &SearchMethodConfig{
		Methods:      []SearchMethod{MethodCosineSimilarity, MethodBM25},
		Reranker:     RerankRRF,
		MinScore:     DefaultMinScore,
		RankConstant: DefaultRankConstant,
	}
}

// DefaultEdgeSearchConfig returns the standard hybrid edge search.
func DefaultEdgeSearchConfig() *SearchMethodConfig {
	return &SearchMethodConfig{
		Methods:      []SearchMethod{MethodCosineSimilarity, MethodBM25, MethodBFS},
		Reranker:     RerankRRF,
		MinScore:     DefaultMinScore,
		RankConstant: DefaultRankConstant,
		BFSMaxDepth:  MaxSearchDepth,
	}
}

// DefaultSearchConfig returns a hybrid search over nodes and edges.
func DefaultSearchConfig() *SearchConfig {
	return &SearchConfig{
		Limit: DefaultSearchLimit,
		Nodes: DefaultNodeSearchConfig(),
		Edges: DefaultEdgeSearchConfig(),
	}
}
