package community

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempograph/tempograph/pkg/driver"
	"github.com/tempograph/tempograph/pkg/embedder"
	"github.com/tempograph/tempograph/pkg/extraction"
	"github.com/tempograph/tempograph/pkg/nlp"
	"github.com/tempograph/tempograph/pkg/types"
)

func seedEntity(t *testing.T, d *driver.MemoryDriver, uuid, name, groupID string) {
	t.Helper()
	now := time.Now().UTC()
	err := d.UpsertNode(context.Background(), &types.Node{
		UUID:      uuid,
		Name:      name,
		Kind:      types.EntityNodeKind,
		GroupID:   groupID,
		Summary:   name + " is part of the test graph",
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)
}

func seedRelation(t *testing.T, d *driver.MemoryDriver, uuid, source, target, groupID string) {
	t.Helper()
	err := d.UpsertEdge(context.Background(), &types.Edge{
		UUID:         uuid,
		Kind:         types.RelatesEdgeKind,
		GroupID:      groupID,
		SourceNodeID: source,
		TargetNodeID: target,
		Name:         "KNOWS",
		Fact:         source + " knows " + target,
		CreatedAt:    time.Now().UTC(),
	})
	require.NoError(t, err)
}

// Two triangles joined by a single bridge edge should settle into two
// communities, not one.
func TestBuildSplitsBridgedClusters(t *testing.T) {
	d := driver.NewMemoryDriver()
	group := "g1"
	for _, uuid := range []string{"a1", "a2", "a3", "b1", "b2", "b3"} {
		seedEntity(t, d, uuid, "node "+uuid, group)
	}
	pairs := [][2]string{
		{"a1", "a2"}, {"a2", "a3"}, {"a1", "a3"},
		{"b1", "b2"}, {"b2", "b3"}, {"b1", "b3"},
		{"a1", "b1"},
	}
	for i, p := range pairs {
		seedRelation(t, d, fmt.Sprintf("e%d", i), p[0], p[1], group)
	}

	builder := NewBuilder(d, nil, nil, nil)
	communities, err := builder.Build(context.Background(), group)
	require.NoError(t, err)
	require.Len(t, communities, 2)

	memberSets := map[string]bool{}
	for _, c := range communities {
		assert.Equal(t, types.CommunityNodeKind, c.Kind)
		assert.Len(t, c.Members, 3)
		key := fmt.Sprintf("%v", c.Members)
		memberSets[key] = true
	}
	assert.True(t, memberSets["[a1 a2 a3]"], "expected a-triangle community, got %v", memberSets)
	assert.True(t, memberSets["[b1 b2 b3]"], "expected b-triangle community, got %v", memberSets)
}

func TestBuildSkipsSingletons(t *testing.T) {
	d := driver.NewMemoryDriver()
	group := "g1"
	seedEntity(t, d, "a1", "alone", group)
	seedEntity(t, d, "b1", "pair one", group)
	seedEntity(t, d, "b2", "pair two", group)
	seedRelation(t, d, "e0", "b1", "b2", group)

	builder := NewBuilder(d, nil, nil, nil)
	communities, err := builder.Build(context.Background(), group)
	require.NoError(t, err)
	require.Len(t, communities, 1)
	assert.ElementsMatch(t, []string{"b1", "b2"}, communities[0].Members)
}

func TestBuildReplacesPriorCommunities(t *testing.T) {
	d := driver.NewMemoryDriver()
	group := "g1"
	seedEntity(t, d, "a1", "one", group)
	seedEntity(t, d, "a2", "two", group)
	seedRelation(t, d, "e0", "a1", "a2", group)

	builder := NewBuilder(d, nil, nil, nil)
	first, err := builder.Build(context.Background(), group)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := builder.Build(context.Background(), group)
	require.NoError(t, err)
	require.Len(t, second, 1)

	stored, err := d.GetCommunities(context.Background(), group, -1)
	require.NoError(t, err)
	require.Len(t, stored, 1, "stale communities must be removed on rebuild")
	assert.Equal(t, second[0].UUID, stored[0].UUID)
}

func TestBuildSummarizesAndEmbeds(t *testing.T) {
	d := driver.NewMemoryDriver()
	group := "g1"
	seedEntity(t, d, "a1", "Alice", group)
	seedEntity(t, d, "a2", "Acme", group)
	seedRelation(t, d, "e0", "a1", "a2", group)

	model := nlp.NewMockClient("Alice works at Acme.")
	builder := NewBuilder(d, extraction.NewLLMExtractor(model, nil), embedder.NewMockClient(8), nil)

	communities, err := builder.Build(context.Background(), group)
	require.NoError(t, err)
	require.Len(t, communities, 1)
	assert.Equal(t, "Alice works at Acme.", communities[0].Summary)
	assert.Len(t, communities[0].NameEmbedding, 8)

	edges, err := d.GetEdgesForNode(context.Background(), communities[0].UUID, group)
	require.NoError(t, err)
	memberEdges := 0
	for _, e := range edges {
		if e.Kind == types.MemberEdgeKind {
			memberEdges++
		}
	}
	assert.Equal(t, 2, memberEdges)
}

func TestLabelPropagationEmptyGraph(t *testing.T) {
	assert.Nil(t, labelPropagation(nil))
	assert.Nil(t, labelPropagation(map[string]map[string]int{}))
}
