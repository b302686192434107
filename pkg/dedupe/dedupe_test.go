package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/tempograph/tempograph/pkg/driver"
	"github.com/tempograph/tempograph/pkg/nlp"
	"github.com/tempograph/tempograph/pkg/resolver"
	"github.com/tempograph/tempograph/pkg/types"
)

func TestUnionFindTransitivity(t *testing.T) {
	uf := NewUnionFind([]string{"a", "b", "c", "d"})
	uf.Union("a", "b")
	uf.Union("b", "c")
	if uf.Find("a") != uf.Find("c") {
		t.Errorf("a and c not in same set after transitive unions")
	}
	if uf.Find("d") == uf.Find("a") {
		t.Errorf("d merged without a union")
	}
}

func TestUnionFindDeterministicRoot(t *testing.T) {
	// Same pairs, different order, same roots.
	uf1 := NewUnionFind([]string{"x", "m", "a"})
	uf1.Union("x", "m")
	uf1.Union("m", "a")

	uf2 := NewUnionFind([]string{"x", "m", "a"})
	uf2.Union("m", "a")
	uf2.Union("x", "m")

	if uf1.Find("x") != "a" || uf2.Find("x") != "a" {
		t.Errorf("roots = %s, %s; want lexicographically smallest (a)", uf1.Find("x"), uf2.Find("x"))
	}
}

func batchOf(names ...string) []BatchCandidate {
	out := make([]BatchCandidate, len(names))
	for i, name := range names {
		out[i] = BatchCandidate{
			Key:    CandidateKey(i, 0),
			Entity: types.CandidateEntity{Name: name, EntityType: "Company"},
		}
	}
	return out
}

func TestDedupeCollapsesNameVariants(t *testing.T) {
	// Exact matches short-circuit in the comparator; the one borderline
	// pair (Acme Corp vs Acme Corporation) gets a scripted "same".
	comparator := resolver.NewLLMComparator(nlp.NewMockClient("same"), nil)
	d := NewDeduplicator(driver.NewMemoryDriver(), comparator, nil)

	result, err := d.Dedupe(context.Background(), "g",
		batchOf("Acme Corp", "Acme Corp", "Acme Corporation"))
	if err != nil {
		t.Fatalf("Dedupe() = %v", err)
	}
	if len(result.Canonical) != 1 {
		t.Fatalf("canonical = %+v, want single Acme entry", result.Canonical)
	}
	want := CandidateKey(0, 0)
	for key, ck := range result.CanonicalKey {
		if ck != want {
			t.Errorf("CanonicalKey[%s] = %s, want %s", key, ck, want)
		}
	}
}

func TestDedupeKeepsDistinctEntities(t *testing.T) {
	comparator := resolver.NewLLMComparator(nlp.NewMockClient("different"), nil)
	d := NewDeduplicator(driver.NewMemoryDriver(), comparator, nil)

	result, err := d.Dedupe(context.Background(), "g", batchOf("Acme Corp", "Globex Inc"))
	if err != nil {
		t.Fatalf("Dedupe() = %v", err)
	}
	if len(result.Canonical) != 2 {
		t.Errorf("canonical = %+v, want both entities kept", result.Canonical)
	}
}

func TestDedupeAnchorsToExistingNode(t *testing.T) {
	ctx := context.Background()
	graph := driver.NewMemoryDriver()
	err := graph.UpsertNode(ctx, &types.Node{
		UUID: "acme-node", Name: "Acme Corp", Kind: types.EntityNodeKind,
		GroupID: "g", EntityType: "Company", CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("UpsertNode() = %v", err)
	}

	comparator := resolver.NewLLMComparator(nlp.NewMockClient("same"), nil)
	d := NewDeduplicator(graph, comparator, nil)

	result, err := d.Dedupe(ctx, "g", batchOf("Acme Corporation"))
	if err != nil {
		t.Fatalf("Dedupe() = %v", err)
	}
	ck := result.CanonicalKey[CandidateKey(0, 0)]
	node, ok := result.Nodes[ck]
	if !ok || node.UUID != "acme-node" {
		t.Fatalf("Nodes[%s] = %+v, want the existing acme-node", ck, node)
	}
	if len(result.Canonical) != 1 || result.Canonical[0].Entity.Name != "Acme Corp" {
		t.Errorf("Canonical = %+v, want entry renamed to the graph spelling", result.Canonical)
	}
}

func TestDedupeKeepsDistinctFromExistingNodes(t *testing.T) {
	ctx := context.Background()
	graph := driver.NewMemoryDriver()
	err := graph.UpsertNode(ctx, &types.Node{
		UUID: "acme-node", Name: "Acme Systems", Kind: types.EntityNodeKind,
		GroupID: "g", EntityType: "Company", CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("UpsertNode() = %v", err)
	}

	comparator := resolver.NewLLMComparator(nlp.NewMockClient("different"), nil)
	d := NewDeduplicator(graph, comparator, nil)

	result, err := d.Dedupe(ctx, "g", batchOf("Acme Corp"))
	if err != nil {
		t.Fatalf("Dedupe() = %v", err)
	}
	ck := result.CanonicalKey[CandidateKey(0, 0)]
	if ck != CandidateKey(0, 0) {
		t.Errorf("CanonicalKey = %s, want candidate kept distinct from the node", ck)
	}
	if len(result.Nodes) != 0 {
		t.Errorf("Nodes = %+v, want no anchor for a distinct candidate", result.Nodes)
	}
}

func TestDedupeMergesAttributes(t *testing.T) {
	comparator := resolver.NewLLMComparator(nlp.NewMockClient("same"), nil)
	d := NewDeduplicator(driver.NewMemoryDriver(), comparator, nil)

	candidates := []BatchCandidate{
		{Key: CandidateKey(0, 0), Entity: types.CandidateEntity{
			Name: "Acme Corp", Attributes: map[string]any{"industry": "anvils"},
		}},
		{Key: CandidateKey(1, 0), Entity: types.CandidateEntity{
			Name: "Acme Corp", Summary: "An anvil company",
			Attributes: map[string]any{"industry": "explosives", "founded": 1949},
		}},
	}
	result, err := d.Dedupe(context.Background(), "g", candidates)
	if err != nil {
		t.Fatalf("Dedupe() = %v", err)
	}
	if len(result.Canonical) != 1 {
		t.Fatalf("canonical = %+v, want one entry", result.Canonical)
	}
	got := result.Canonical[0].Entity
	if got.Attributes["industry"] != "anvils" {
		t.Errorf("first mention lost attribute conflict: %v", got.Attributes)
	}
	if got.Attributes["founded"] != 1949 {
		t.Errorf("duplicate's attribute not folded in: %v", got.Attributes)
	}
	if got.Summary != "An anvil company" {
		t.Errorf("summary not backfilled: %q", got.Summary)
	}
}
