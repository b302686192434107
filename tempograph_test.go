package tempograph

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempograph/tempograph/pkg/checkpoint"
	"github.com/tempograph/tempograph/pkg/driver"
	"github.com/tempograph/tempograph/pkg/embedder"
	"github.com/tempograph/tempograph/pkg/types"
)

// routingModel answers pipeline prompts by inspecting what is being asked,
// so concurrent extraction never sees a response meant for another call.
type routingModel struct {
	entities  map[string]string // episode content marker -> entities JSON
	relations map[string]string // episode content marker -> relations JSON
	verdict   string
}

func (m *routingModel) Chat(ctx context.Context, messages []types.Message, opts *types.GenerateOptions) (string, error) {
	system := messages[0].Content
	prompt := messages[len(messages)-1].Content
	// Match markers only against the episode body, not the previous-episode
	// context block that precedes it.
	body := prompt
	if idx := strings.LastIndex(prompt, "EPISODE ("); idx >= 0 {
		body = prompt[idx:]
	}
	lookup := func(table map[string]string) (string, error) {
		for marker, response := range table {
			if strings.Contains(body, marker) {
				return response, nil
			}
		}
		return "", fmt.Errorf("no scripted response for prompt: %.80s", prompt)
	}
	switch {
	case strings.Contains(system, "extracting entities"):
		return lookup(m.entities)
	case strings.Contains(system, "extracting relationships"):
		return lookup(m.relations)
	case strings.Contains(system, "same real-world entity"):
		if m.verdict == "" {
			return "different", nil
		}
		return m.verdict, nil
	}
	return "", fmt.Errorf("unexpected prompt: %.80s", system)
}

func (m *routingModel) Close() error { return nil }

func newTestClient(t *testing.T, model *routingModel, cfg *Config) (*Client, *driver.MemoryDriver) {
	t.Helper()
	d := driver.NewMemoryDriver()
	c, err := NewClient(d, model, embedder.NewMockClient(16), cfg, nil)
	require.NoError(t, err)
	return c, d
}

func relocationModel() *routingModel {
	return &routingModel{
		entities: map[string]string{
			"moved to Boston": `{"entities": [
				{"name": "Alice", "entity_type": "Person"},
				{"name": "Boston", "entity_type": "City"}]}`,
			"relocated to Seattle": `{"entities": [
				{"name": "Alice", "entity_type": "Person"},
				{"name": "Seattle", "entity_type": "City"}]}`,
		},
		relations: map[string]string{
			"moved to Boston": `{"relations": [
				{"source": "Alice", "target": "Boston", "predicate": "LIVES_IN",
				 "fact": "Alice lives in Boston", "valid_at": "2020-01-01"}]}`,
			"relocated to Seattle": `{"relations": [
				{"source": "Alice", "target": "Seattle", "predicate": "LIVES_IN",
				 "fact": "Alice lives in Seattle", "valid_at": "2023-06-01"}]}`,
		},
	}
}

// residenceConfig marks LIVES_IN mutually exclusive so a relocation
// supersedes the previous residence.
func residenceConfig() *Config {
	return &Config{ExclusivePredicates: map[string][]string{"residence": {"LIVES_IN"}}}
}

func bostonEpisode() types.RawEpisode {
	return types.RawEpisode{
		Name:      "episode 1",
		Content:   "Alice moved to Boston in January 2020.",
		Source:    types.SourceMessage,
		Reference: time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}

func seattleEpisode() types.RawEpisode {
	return types.RawEpisode{
		Name:      "episode 2",
		Content:   "Alice relocated to Seattle in June 2023.",
		Source:    types.SourceMessage,
		Reference: time.Date(2023, 6, 2, 0, 0, 0, 0, time.UTC),
	}
}

func findNode(t *testing.T, d *driver.MemoryDriver, uuids []string, groupID, name string) *types.Node {
	t.Helper()
	nodes, err := d.GetNodes(context.Background(), uuids, groupID)
	require.NoError(t, err)
	for _, n := range nodes {
		if n.Name == name {
			return n
		}
	}
	t.Fatalf("node %q not found among %v", name, uuids)
	return nil
}

func TestNewClientRequiresBackends(t *testing.T) {
	_, err := NewClient(nil, &routingModel{}, embedder.NewMockClient(4), nil, nil)
	assert.Error(t, err)
	_, err = NewClient(driver.NewMemoryDriver(), nil, embedder.NewMockClient(4), nil, nil)
	assert.Error(t, err)
	_, err = NewClient(driver.NewMemoryDriver(), &routingModel{}, nil, nil, nil)
	assert.Error(t, err)
}

func TestIngestEpisodeCreatesGraph(t *testing.T) {
	c, d := newTestClient(t, relocationModel(), nil)
	ctx := context.Background()

	result, err := c.IngestEpisode(ctx, bostonEpisode(), "g1")
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.Len(t, result.CreatedNodeIDs, 2)
	assert.Len(t, result.CreatedEdgeIDs, 1)
	assert.Empty(t, result.InvalidatedEdgeIDs)

	episode, err := d.GetEpisode(ctx, result.EpisodeUUID, "g1")
	require.NoError(t, err)
	assert.Equal(t, "Alice moved to Boston in January 2020.", episode.Content)
	assert.Equal(t, result.CreatedEdgeIDs, episode.MentionedEdges)

	edge, err := d.GetEdge(ctx, result.CreatedEdgeIDs[0], "g1")
	require.NoError(t, err)
	assert.Equal(t, "LIVES_IN", edge.Name)
	require.NotNil(t, edge.ValidAt)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), *edge.ValidAt)
	assert.Nil(t, edge.InvalidAt)
	assert.Equal(t, []string{result.EpisodeUUID}, edge.Episodes)
	assert.NotEmpty(t, edge.FactEmbedding)

	alice := findNode(t, d, result.CreatedNodeIDs, "g1", "Alice")
	mentions, err := d.GetEdgesForNode(ctx, alice.UUID, "g1")
	require.NoError(t, err)
	sawMention := false
	for _, e := range mentions {
		if e.Kind == types.MentionsEdgeKind && e.SourceNodeID == result.EpisodeUUID {
			sawMention = true
		}
	}
	assert.True(t, sawMention, "episode should mention Alice")
}

func TestSupersededFactIsInvalidated(t *testing.T) {
	c, d := newTestClient(t, relocationModel(), residenceConfig())
	ctx := context.Background()

	first, err := c.IngestEpisode(ctx, bostonEpisode(), "g1")
	require.NoError(t, err)
	second, err := c.IngestEpisode(ctx, seattleEpisode(), "g1")
	require.NoError(t, err)

	bostonEdge := first.CreatedEdgeIDs[0]
	assert.Contains(t, second.InvalidatedEdgeIDs, bostonEdge)
	assert.Len(t, second.CreatedNodeIDs, 1, "only Seattle is new")
	assert.Contains(t, second.MergedNodeIDs, findNode(t, d, first.CreatedNodeIDs, "g1", "Alice").UUID)

	old, err := d.GetEdge(ctx, bostonEdge, "g1")
	require.NoError(t, err)
	require.NotNil(t, old.InvalidAt)
	assert.Equal(t, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), *old.InvalidAt)

	current, err := d.GetEdge(ctx, second.CreatedEdgeIDs[0], "g1")
	require.NoError(t, err)
	assert.Nil(t, current.InvalidAt)
}

func TestUnconfiguredPredicatesStayLive(t *testing.T) {
	// No exclusivity classes configured: both residence facts coexist.
	c, d := newTestClient(t, relocationModel(), nil)
	ctx := context.Background()

	first, err := c.IngestEpisode(ctx, bostonEpisode(), "g1")
	require.NoError(t, err)
	second, err := c.IngestEpisode(ctx, seattleEpisode(), "g1")
	require.NoError(t, err)
	assert.Empty(t, second.InvalidatedEdgeIDs)

	old, err := d.GetEdge(ctx, first.CreatedEdgeIDs[0], "g1")
	require.NoError(t, err)
	assert.Nil(t, old.InvalidAt)
}

func TestIngestEpisodeIsIdempotent(t *testing.T) {
	c, _ := newTestClient(t, relocationModel(), nil)
	ctx := context.Background()

	episode := bostonEpisode()
	episode.UUID = "ep-fixed"
	first, err := c.IngestEpisode(ctx, episode, "g1")
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := c.IngestEpisode(ctx, episode, "g1")
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Empty(t, second.CreatedNodeIDs)
}

func TestIngestEpisodeChecksCheckpoints(t *testing.T) {
	store, err := checkpoint.Open(checkpoint.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Mark("g1", "ep-fixed", nil))

	c, _ := newTestClient(t, relocationModel(), &Config{Checkpoints: store})
	episode := bostonEpisode()
	episode.UUID = "ep-fixed"
	result, err := c.IngestEpisode(context.Background(), episode, "g1")
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
}

func TestIngestBatchDeduplicatesAcrossEpisodes(t *testing.T) {
	model := &routingModel{
		entities: map[string]string{
			"hired Bob": `{"entities": [
				{"name": "Acme Corp", "entity_type": "Company"},
				{"name": "Bob", "entity_type": "Person"}]}`,
			"Bob resigned": `{"entities": [
				{"name": "Bob", "entity_type": "Person"},
				{"name": "Acme Corporation", "entity_type": "Company"}]}`,
		},
		relations: map[string]string{
			"hired Bob": `{"relations": [
				{"source": "Acme Corp", "target": "Bob", "predicate": "EMPLOYS",
				 "fact": "Acme Corp employs Bob", "valid_at": "2021-03-01"}]}`,
			"Bob resigned": `{"relations": []}`,
		},
		verdict: "same",
	}
	c, d := newTestClient(t, model, nil)
	ctx := context.Background()

	episodes := []types.RawEpisode{
		{
			Name:      "resignation",
			Content:   "Bob resigned from Acme Corporation.",
			Reference: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			Name:      "hire",
			Content:   "Acme Corp hired Bob.",
			Reference: time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	results, err := c.IngestBatch(ctx, episodes, "g1")
	require.NoError(t, err)
	require.Len(t, results, 2)

	// The older episode is applied first and creates both entities; the
	// newer one resolves to them through batch dedupe.
	hire, resignation := results[1], results[0]
	assert.Len(t, hire.CreatedNodeIDs, 2)
	assert.Empty(t, resignation.CreatedNodeIDs, "Acme Corporation should collapse into Acme Corp")
	assert.Len(t, resignation.MergedNodeIDs, 2)

	uuids, err := d.EntityUUIDs(ctx, "g1")
	require.NoError(t, err)
	assert.Len(t, uuids, 2, "batch dedupe should leave exactly Bob and Acme Corp")
}

func TestSearchFindsIngestedFacts(t *testing.T) {
	c, _ := newTestClient(t, relocationModel(), nil)
	ctx := context.Background()

	_, err := c.IngestEpisode(ctx, bostonEpisode(), "g1")
	require.NoError(t, err)

	results, err := c.Search(ctx, "Boston", "g1", nil, nil)
	require.NoError(t, err)
	require.NotNil(t, results)

	nodeNames := make([]string, len(results.Nodes))
	for i, n := range results.Nodes {
		nodeNames[i] = n.Name
	}
	assert.Contains(t, nodeNames, "Boston")

	require.NotEmpty(t, results.Edges)
	assert.Equal(t, "Alice lives in Boston", results.Edges[0].Fact)
}

func TestFactsAtRespectsTemporalBounds(t *testing.T) {
	c, d := newTestClient(t, relocationModel(), residenceConfig())
	ctx := context.Background()

	first, err := c.IngestEpisode(ctx, bostonEpisode(), "g1")
	require.NoError(t, err)
	_, err = c.IngestEpisode(ctx, seattleEpisode(), "g1")
	require.NoError(t, err)

	alice := findNode(t, d, first.CreatedNodeIDs, "g1", "Alice")
	boston := findNode(t, d, first.CreatedNodeIDs, "g1", "Boston")

	during, err := c.FactsAt(ctx, alice.UUID, boston.UUID, "g1", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, during, 1)
	assert.Equal(t, "Alice lives in Boston", during[0].Fact)

	after, err := c.FactsAt(ctx, alice.UUID, boston.UUID, "g1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, after, "superseded fact is not live after invalidation")
}

func TestUpdateCommunities(t *testing.T) {
	c, d := newTestClient(t, relocationModel(), nil)
	ctx := context.Background()

	_, err := c.IngestEpisode(ctx, bostonEpisode(), "g1")
	require.NoError(t, err)

	// The router does not script the summarization prompt; the builder
	// degrades to name-only communities rather than failing.
	communities, err := c.UpdateCommunities(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, communities, 1)

	entityUUIDs, err := d.EntityUUIDs(ctx, "g1")
	require.NoError(t, err)
	assert.ElementsMatch(t, entityUUIDs, communities[0].Members)

	listed, err := c.Communities(ctx, "g1", -1)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}
