package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tempograph/tempograph/pkg/driver"
	"github.com/tempograph/tempograph/pkg/embedder"
	"github.com/tempograph/tempograph/pkg/types"
)

// faultyDriver injects failures into selected retrieval methods.
type faultyDriver struct {
	driver.GraphDriver
	failVector   bool
	failFulltext bool
}

var errBackend = errors.New("backend unavailable")

func (f *faultyDriver) SearchNodesByVector(ctx context.Context, vector []float32, groupID string, limit int, minScore float64) ([]driver.ScoredNode, error) {
	if f.failVector {
		return nil, errBackend
	}
	return f.GraphDriver.SearchNodesByVector(ctx, vector, groupID, limit, minScore)
}

func (f *faultyDriver) SearchNodesFulltext(ctx context.Context, query, groupID string, limit int) ([]driver.ScoredNode, error) {
	if f.failFulltext {
		return nil, errBackend
	}
	return f.GraphDriver.SearchNodesFulltext(ctx, query, groupID, limit)
}

func seededGraph(t *testing.T, emb embedder.Client) *driver.MemoryDriver {
	t.Helper()
	ctx := context.Background()
	d := driver.NewMemoryDriver()
	now := time.Now().UTC()

	entities := []struct{ uuid, name, summary string }{
		{"alice", "Alice", "Alice lives in Seattle and works at Acme"},
		{"acme", "Acme Corp", "An anvil company"},
		{"bob", "Bob", "Bob plays jazz"},
	}
	for _, ent := range entities {
		vec, _ := emb.EmbedSingle(ctx, ent.name)
		err := d.UpsertNode(ctx, &types.Node{
			UUID: ent.uuid, Name: ent.name, Kind: types.EntityNodeKind,
			GroupID: "g", CreatedAt: now, Summary: ent.summary, NameEmbedding: vec,
		})
		if err != nil {
			t.Fatalf("UpsertNode() = %v", err)
		}
	}

	edges := []struct{ uuid, src, dst, pred, fact string }{
		{"e-works", "alice", "acme", "WORKS_AT", "Alice works at Acme Corp"},
		{"e-knows", "alice", "bob", "KNOWS", "Alice knows Bob"},
	}
	for _, ed := range edges {
		vec, _ := emb.EmbedSingle(ctx, ed.fact)
		err := d.UpsertEdge(ctx, &types.Edge{
			UUID: ed.uuid, Kind: types.RelatesEdgeKind, GroupID: "g",
			SourceNodeID: ed.src, TargetNodeID: ed.dst,
			Name: ed.pred, Fact: ed.fact, FactEmbedding: vec,
			CreatedAt: now, Episodes: []string{"ep-1"},
		})
		if err != nil {
			t.Fatalf("UpsertEdge() = %v", err)
		}
	}
	return d
}

func TestSearchHybridFindsAcrossMethods(t *testing.T) {
	emb := embedder.NewMockClient(16)
	d := seededGraph(t, emb)
	engine := NewEngine(d, emb)

	results, err := engine.Search(context.Background(), "Alice", "g", nil, nil)
	if err != nil {
		t.Fatalf("Search() = %v", err)
	}
	if len(results.Nodes) == 0 || results.Nodes[0].UUID != "alice" {
		t.Fatalf("Nodes = %+v, want alice first", results.Nodes)
	}
	if len(results.Methods["alice"]) == 0 {
		t.Errorf("no method attribution for alice")
	}
	if len(results.Edges) == 0 {
		t.Errorf("Edges empty, want fulltext hits for Alice facts")
	}
}

func TestSearchRRFAgreementWins(t *testing.T) {
	// "alice" matches by exact-name vector similarity AND fulltext, while
	// other nodes can match one method at most, so agreement must rank it
	// first under RRF.
	emb := embedder.NewMockClient(16)
	d := seededGraph(t, emb)
	engine := NewEngine(d, emb)

	results, err := engine.Search(context.Background(), "Alice", "g", nil, nil)
	if err != nil {
		t.Fatalf("Search() = %v", err)
	}
	methods := results.Methods["alice"]
	if len(methods) < 2 {
		t.Fatalf("alice methods = %v, want both cosine and bm25", methods)
	}
	top := results.Nodes[0].UUID
	if top != "alice" {
		t.Errorf("top node = %s, want multi-method alice", top)
	}
}

func TestSearchDegradesWhenOneMethodFails(t *testing.T) {
	emb := embedder.NewMockClient(16)
	d := seededGraph(t, emb)
	engine := NewEngine(&faultyDriver{GraphDriver: d, failVector: true}, emb)

	cfg := &types.SearchConfig{Limit: 10, Nodes: types.DefaultNodeSearchConfig()}
	results, err := engine.Search(context.Background(), "Alice", "g", cfg, nil)
	if err != nil {
		t.Fatalf("Search() = %v, want degraded success", err)
	}
	if len(results.Nodes) == 0 {
		t.Errorf("Nodes empty, want fulltext results despite vector failure")
	}
	if len(results.FailedMethods) != 1 || results.FailedMethods[0].Method != types.MethodCosineSimilarity {
		t.Errorf("FailedMethods = %+v, want cosine failure recorded", results.FailedMethods)
	}
	if results.AllFailed {
		t.Errorf("AllFailed = true with partial results")
	}
}

func TestSearchAllMethodsFailed(t *testing.T) {
	emb := embedder.NewMockClient(16)
	d := seededGraph(t, emb)
	engine := NewEngine(&faultyDriver{GraphDriver: d, failVector: true, failFulltext: true}, emb)

	cfg := &types.SearchConfig{Limit: 10, Nodes: types.DefaultNodeSearchConfig()}
	results, err := engine.Search(context.Background(), "Alice", "g", cfg, nil)
	if !errors.Is(err, types.ErrSearchDegraded) {
		t.Fatalf("Search() err = %v, want ErrSearchDegraded", err)
	}
	if !results.AllFailed {
		t.Errorf("AllFailed = false, want true when every method failed")
	}
	if len(results.Nodes) != 0 {
		t.Errorf("Nodes = %+v, want empty", results.Nodes)
	}
}

func TestSearchEmptyQueryWithSeedsTraverses(t *testing.T) {
	emb := embedder.NewMockClient(16)
	d := seededGraph(t, emb)
	engine := NewEngine(d, emb)

	cfg := &types.SearchConfig{
		Limit: 10,
		Nodes: &types.SearchMethodConfig{
			Methods:     []types.SearchMethod{types.MethodCosineSimilarity, types.MethodBM25, types.MethodBFS},
			Reranker:    types.RerankRRF,
			BFSMaxDepth: 2,
		},
	}
	results, err := engine.Search(context.Background(), "", "g",
		cfg, &types.SearchFilters{BFSOriginUUIDs: []string{"alice"}})
	if err != nil {
		t.Fatalf("Search() = %v", err)
	}
	if len(results.Nodes) != 2 {
		t.Fatalf("Nodes = %+v, want alice's two neighbors", results.Nodes)
	}
	for _, node := range results.Nodes {
		if node.UUID == "alice" {
			t.Errorf("BFS origin returned as result")
		}
	}
}

func TestSearchExcludesInvalidatedEdgesByDefault(t *testing.T) {
	emb := embedder.NewMockClient(16)
	d := seededGraph(t, emb)
	ctx := context.Background()

	stale, err := d.GetEdge(ctx, "e-works", "g")
	if err != nil {
		t.Fatalf("GetEdge() = %v", err)
	}
	if err := stale.Invalidate(time.Now().UTC()); err != nil {
		t.Fatalf("Invalidate() = %v", err)
	}
	if err := d.UpsertEdge(ctx, stale); err != nil {
		t.Fatalf("UpsertEdge() = %v", err)
	}

	engine := NewEngine(d, emb)
	results, err := engine.Search(ctx, "Alice", "g", nil, nil)
	if err != nil {
		t.Fatalf("Search() = %v", err)
	}
	if len(results.Edges) == 0 {
		t.Fatalf("Edges empty, want the live KNOWS edge")
	}
	for _, edge := range results.Edges {
		if edge.UUID == "e-works" {
			t.Errorf("superseded edge returned without opting into history")
		}
	}

	// Historical retrieval is an explicit opt-in.
	cfg := &types.SearchConfig{Limit: 10, Edges: types.DefaultEdgeSearchConfig()}
	results, err = engine.Search(ctx, "Alice", "g", cfg, &types.SearchFilters{IncludeInvalid: true})
	if err != nil {
		t.Fatalf("Search() = %v", err)
	}
	found := false
	for _, edge := range results.Edges {
		if edge.UUID == "e-works" {
			found = true
		}
	}
	if !found {
		t.Errorf("IncludeInvalid did not return the superseded edge")
	}
}

func TestSearchAllKindsReturnTogether(t *testing.T) {
	emb := embedder.NewMockClient(16)
	d := seededGraph(t, emb)
	ctx := context.Background()
	now := time.Now().UTC()

	err := d.UpsertNode(ctx, &types.Node{
		UUID: "ep-1", Name: "episode 1", Kind: types.EpisodicNodeKind,
		GroupID: "g", CreatedAt: now, Content: "Alice moved to Seattle",
		Source: types.SourceText, Reference: now,
	})
	if err != nil {
		t.Fatalf("UpsertNode() = %v", err)
	}
	vec, _ := emb.EmbedSingle(ctx, "Alice")
	err = d.UpsertNode(ctx, &types.Node{
		UUID: "com-1", Name: "Community of Alice", Kind: types.CommunityNodeKind,
		GroupID: "g", CreatedAt: now, NameEmbedding: vec, Members: []string{"alice"},
	})
	if err != nil {
		t.Fatalf("UpsertNode() = %v", err)
	}

	engine := NewEngine(d, emb)
	cfg := types.DefaultSearchConfig()
	cfg.Episodes = &types.SearchMethodConfig{
		Methods: []types.SearchMethod{types.MethodBM25},
		Reranker: types.RerankRRF, RankConstant: types.DefaultRankConstant,
	}
	cfg.Communities = &types.SearchMethodConfig{
		Methods: []types.SearchMethod{types.MethodCosineSimilarity},
		Reranker: types.RerankRRF, RankConstant: types.DefaultRankConstant,
		MinScore: 0.5,
	}

	results, err := engine.Search(ctx, "Alice", "g", cfg, nil)
	if err != nil {
		t.Fatalf("Search() = %v", err)
	}
	if len(results.Nodes) == 0 || len(results.Edges) == 0 {
		t.Errorf("nodes/edges missing: %d nodes, %d edges", len(results.Nodes), len(results.Edges))
	}
	if len(results.Episodes) != 1 || results.Episodes[0].UUID != "ep-1" {
		t.Errorf("Episodes = %+v, want ep-1", results.Episodes)
	}
	if len(results.Communities) != 1 || results.Communities[0].UUID != "com-1" {
		t.Errorf("Communities = %+v, want com-1", results.Communities)
	}
	for _, uuid := range []string{"alice", "ep-1", "com-1"} {
		if len(results.Methods[uuid]) == 0 {
			t.Errorf("no method attribution for %s", uuid)
		}
	}
}

func TestRRFScoresMonotonic(t *testing.T) {
	scores := rrfScores([][]string{
		{"both", "only-a"},
		{"both", "only-b"},
	}, types.DefaultRankConstant)
	if scores["both"] <= scores["only-a"] || scores["both"] <= scores["only-b"] {
		t.Errorf("scores = %v, want multi-list item highest", scores)
	}
}

func TestMMRPenalizesRedundancy(t *testing.T) {
	scores := map[string]float64{"a": 1.0, "a2": 0.95, "b": 0.9}
	embeddings := map[string][]float32{
		"a":  {1, 0},
		"a2": {1, 0},
		"b":  {0, 1},
	}
	order := mmrOrder(scores, embeddings, 0.5, 3)
	if order[0] != "a" || order[1] != "b" {
		t.Errorf("order = %v, want near-duplicate a2 demoted below b", order)
	}
}
