package driver

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tempograph/tempograph/pkg/types"
	"github.com/tempograph/tempograph/pkg/utils"
)

// MemoryDriver is an in-process GraphDriver used for tests, examples and
// small deployments. All operations are safe for concurrent use.
type MemoryDriver struct {
	mu     sync.RWMutex
	groups map[string]*memoryGroup
}

type memoryGroup struct {
	nodes map[string]*types.Node
	edges map[string]*types.Edge
	// adjacency maps node UUID to connected edge UUIDs.
	adjacency map[string][]string
}

// NewMemoryDriver creates an empty in-memory graph.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{groups: make(map[string]*memoryGroup)}
}

func (d *MemoryDriver) group(groupID string) *memoryGroup {
	g, ok := d.groups[groupID]
	if !ok {
		g = &memoryGroup{
			nodes:     make(map[string]*types.Node),
			edges:     make(map[string]*types.Edge),
			adjacency: make(map[string][]string),
		}
		d.groups[groupID] = g
	}
	return g
}

func cloneNode(n *types.Node) *types.Node {
	c := *n
	if len(n.Attributes) > 0 {
		c.Attributes = make(map[string]any, len(n.Attributes))
		for k, v := range n.Attributes {
			c.Attributes[k] = v
		}
	}
	c.Members = append([]string(nil), n.Members...)
	c.MentionedEdges = append([]string(nil), n.MentionedEdges...)
	return &c
}

func cloneEdge(e *types.Edge) *types.Edge {
	c := *e
	if e.ValidAt != nil {
		t := *e.ValidAt
		c.ValidAt = &t
	}
	if e.InvalidAt != nil {
		t := *e.InvalidAt
		c.InvalidAt = &t
	}
	c.Episodes = append([]string(nil), e.Episodes...)
	return &c
}

func (d *MemoryDriver) GetNode(ctx context.Context, uuid, groupID string) (*types.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.groups[groupID]
	if !ok {
		return nil, ErrNodeNotFound
	}
	n, ok := g.nodes[uuid]
	if !ok {
		return nil, ErrNodeNotFound
	}
	return cloneNode(n), nil
}

func (d *MemoryDriver) GetNodes(ctx context.Context, uuids []string, groupID string) ([]*types.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.groups[groupID]
	if !ok {
		return nil, nil
	}
	out := make([]*types.Node, 0, len(uuids))
	for _, id := range uuids {
		if n, ok := g.nodes[id]; ok {
			out = append(out, cloneNode(n))
		}
	}
	return out, nil
}

func (d *MemoryDriver) UpsertNode(ctx context.Context, node *types.Node) error {
	if err := node.Validate(); err != nil {
		return fmt.Errorf("upsert node: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.group(node.GroupID).nodes[node.UUID] = cloneNode(node)
	return nil
}

func (d *MemoryDriver) GetEdge(ctx context.Context, uuid, groupID string) (*types.Edge, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.groups[groupID]
	if !ok {
		return nil, ErrEdgeNotFound
	}
	e, ok := g.edges[uuid]
	if !ok {
		return nil, ErrEdgeNotFound
	}
	return cloneEdge(e), nil
}

func (d *MemoryDriver) UpsertEdge(ctx context.Context, edge *types.Edge) error {
	if err := edge.Validate(); err != nil {
		return fmt.Errorf("upsert edge: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.upsertEdgeLocked(edge)
	return nil
}

func (d *MemoryDriver) upsertEdgeLocked(edge *types.Edge) {
	g := d.group(edge.GroupID)
	if _, exists := g.edges[edge.UUID]; !exists {
		g.adjacency[edge.SourceNodeID] = append(g.adjacency[edge.SourceNodeID], edge.UUID)
		g.adjacency[edge.TargetNodeID] = append(g.adjacency[edge.TargetNodeID], edge.UUID)
	}
	g.edges[edge.UUID] = cloneEdge(edge)
}

func (d *MemoryDriver) GetEdgesBetween(ctx context.Context, sourceUUID, targetUUID, groupID string) ([]*types.Edge, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.groups[groupID]
	if !ok {
		return nil, nil
	}
	var out []*types.Edge
	for _, edgeID := range g.adjacency[sourceUUID] {
		e := g.edges[edgeID]
		if e.Kind != types.RelatesEdgeKind {
			continue
		}
		if (e.SourceNodeID == sourceUUID && e.TargetNodeID == targetUUID) ||
			(e.SourceNodeID == targetUUID && e.TargetNodeID == sourceUUID) {
			out = append(out, cloneEdge(e))
		}
	}
	sortEdgesByUUID(out)
	return out, nil
}

func (d *MemoryDriver) GetEdgesForNode(ctx context.Context, nodeUUID, groupID string) ([]*types.Edge, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.groups[groupID]
	if !ok {
		return nil, nil
	}
	var out []*types.Edge
	for _, edgeID := range g.adjacency[nodeUUID] {
		if e := g.edges[edgeID]; e.Kind == types.RelatesEdgeKind {
			out = append(out, cloneEdge(e))
		}
	}
	sortEdgesByUUID(out)
	return out, nil
}

func (d *MemoryDriver) GetEpisode(ctx context.Context, uuid, groupID string) (*types.Node, error) {
	n, err := d.GetNode(ctx, uuid, groupID)
	if err != nil {
		return nil, err
	}
	if n.Kind != types.EpisodicNodeKind {
		return nil, ErrNodeNotFound
	}
	return n, nil
}

func (d *MemoryDriver) RetrieveEpisodes(ctx context.Context, before time.Time, groupID string, limit int) ([]*types.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.groups[groupID]
	if !ok {
		return nil, nil
	}
	var out []*types.Node
	for _, n := range g.nodes {
		if n.Kind == types.EpisodicNodeKind && !n.Reference.After(before) {
			out = append(out, cloneNode(n))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Reference.Equal(out[j].Reference) {
			return out[i].Reference.After(out[j].Reference)
		}
		return out[i].UUID < out[j].UUID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (d *MemoryDriver) SearchNodesByVector(ctx context.Context, vector []float32, groupID string, limit int, minScore float64) ([]ScoredNode, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.groups[groupID]
	if !ok {
		return nil, nil
	}
	var hits []ScoredNode
	for _, n := range g.nodes {
		if n.Kind != types.EntityNodeKind || len(n.NameEmbedding) == 0 {
			continue
		}
		score := utils.CosineSimilarity(vector, n.NameEmbedding)
		if score >= minScore {
			hits = append(hits, ScoredNode{Node: cloneNode(n), Score: score})
		}
	}
	sortScoredNodes(hits)
	return truncNodes(hits, limit), nil
}

func (d *MemoryDriver) SearchEdgesByVector(ctx context.Context, vector []float32, groupID string, limit int, minScore float64) ([]ScoredEdge, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.groups[groupID]
	if !ok {
		return nil, nil
	}
	var hits []ScoredEdge
	for _, e := range g.edges {
		if e.Kind != types.RelatesEdgeKind || len(e.FactEmbedding) == 0 {
			continue
		}
		score := utils.CosineSimilarity(vector, e.FactEmbedding)
		if score >= minScore {
			hits = append(hits, ScoredEdge{Edge: cloneEdge(e), Score: score})
		}
	}
	sortScoredEdges(hits)
	return truncEdges(hits, limit), nil
}

func (d *MemoryDriver) SearchNodesFulltext(ctx context.Context, query, groupID string, limit int) ([]ScoredNode, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.groups[groupID]
	if !ok {
		return nil, nil
	}
	queryTokens := utils.Tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}
	var hits []ScoredNode
	for _, n := range g.nodes {
		if n.Kind != types.EntityNodeKind {
			continue
		}
		score := tokenMatchScore(queryTokens, n.Name+" "+n.Summary)
		if score > 0 {
			hits = append(hits, ScoredNode{Node: cloneNode(n), Score: score})
		}
	}
	sortScoredNodes(hits)
	return truncNodes(hits, limit), nil
}

func (d *MemoryDriver) SearchEdgesFulltext(ctx context.Context, query, groupID string, limit int) ([]ScoredEdge, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.groups[groupID]
	if !ok {
		return nil, nil
	}
	queryTokens := utils.Tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}
	var hits []ScoredEdge
	for _, e := range g.edges {
		if e.Kind != types.RelatesEdgeKind {
			continue
		}
		score := tokenMatchScore(queryTokens, e.Name+" "+e.Fact)
		if score > 0 {
			hits = append(hits, ScoredEdge{Edge: cloneEdge(e), Score: score})
		}
	}
	sortScoredEdges(hits)
	return truncEdges(hits, limit), nil
}

func (d *MemoryDriver) SearchEpisodesFulltext(ctx context.Context, query, groupID string, limit int) ([]ScoredNode, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.groups[groupID]
	if !ok {
		return nil, nil
	}
	queryTokens := utils.Tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}
	var hits []ScoredNode
	for _, n := range g.nodes {
		if n.Kind != types.EpisodicNodeKind {
			continue
		}
		score := tokenMatchScore(queryTokens, n.Name+" "+n.Content)
		if score > 0 {
			hits = append(hits, ScoredNode{Node: cloneNode(n), Score: score})
		}
	}
	sortScoredNodes(hits)
	return truncNodes(hits, limit), nil
}

func (d *MemoryDriver) SearchCommunitiesByVector(ctx context.Context, vector []float32, groupID string, limit int, minScore float64) ([]ScoredNode, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.groups[groupID]
	if !ok {
		return nil, nil
	}
	var hits []ScoredNode
	for _, n := range g.nodes {
		if n.Kind != types.CommunityNodeKind || len(n.NameEmbedding) == 0 {
			continue
		}
		score := utils.CosineSimilarity(vector, n.NameEmbedding)
		if score >= minScore {
			hits = append(hits, ScoredNode{Node: cloneNode(n), Score: score})
		}
	}
	sortScoredNodes(hits)
	return truncNodes(hits, limit), nil
}

func (d *MemoryDriver) Neighborhood(ctx context.Context, originUUIDs []string, groupID string, maxDepth int) (map[string]int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.groups[groupID]
	if !ok {
		return map[string]int{}, nil
	}
	if maxDepth <= 0 {
		maxDepth = types.MaxSearchDepth
	}
	distances := make(map[string]int)
	frontier := make([]string, 0, len(originUUIDs))
	for _, id := range originUUIDs {
		if _, exists := g.nodes[id]; exists {
			distances[id] = 0
			frontier = append(frontier, id)
		}
	}
	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			for _, edgeID := range g.adjacency[id] {
				e := g.edges[edgeID]
				for _, other := range []string{e.SourceNodeID, e.TargetNodeID} {
					if other == id {
						continue
					}
					if _, seen := distances[other]; !seen {
						distances[other] = depth
						next = append(next, other)
					}
				}
			}
		}
		frontier = next
	}
	return distances, nil
}

func (d *MemoryDriver) GetCommunities(ctx context.Context, groupID string, level int) ([]*types.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.groups[groupID]
	if !ok {
		return nil, nil
	}
	var out []*types.Node
	for _, n := range g.nodes {
		if n.Kind == types.CommunityNodeKind && (level < 0 || n.Level == level) {
			out = append(out, cloneNode(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UUID < out[j].UUID })
	return out, nil
}

func (d *MemoryDriver) RemoveCommunities(ctx context.Context, groupID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.groups[groupID]
	if !ok {
		return nil
	}
	for id, n := range g.nodes {
		if n.Kind == types.CommunityNodeKind {
			delete(g.nodes, id)
		}
	}
	for id, e := range g.edges {
		if e.Kind == types.MemberEdgeKind {
			delete(g.edges, id)
			g.adjacency[e.SourceNodeID] = removeString(g.adjacency[e.SourceNodeID], id)
			g.adjacency[e.TargetNodeID] = removeString(g.adjacency[e.TargetNodeID], id)
		}
	}
	return nil
}

func (d *MemoryDriver) EntityUUIDs(ctx context.Context, groupID string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.groups[groupID]
	if !ok {
		return nil, nil
	}
	var out []string
	for id, n := range g.nodes {
		if n.Kind == types.EntityNodeKind {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Commit applies the batch under a single lock, so memory commits are
// effectively atomic. Write order still follows the contract.
func (d *MemoryDriver) Commit(ctx context.Context, batch *WriteBatch) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if batch.Episode != nil {
		d.group(batch.Episode.GroupID).nodes[batch.Episode.UUID] = cloneNode(batch.Episode)
	}
	for _, n := range batch.Nodes {
		d.group(n.GroupID).nodes[n.UUID] = cloneNode(n)
	}
	for _, e := range batch.Edges {
		d.upsertEdgeLocked(e)
	}
	for _, e := range batch.EpisodicEdges {
		d.upsertEdgeLocked(e)
	}
	for _, e := range batch.Invalidations {
		g := d.group(e.GroupID)
		existing, ok := g.edges[e.UUID]
		if !ok {
			d.upsertEdgeLocked(e)
			continue
		}
		existing.InvalidAt = e.InvalidAt
		existing.UpdatedAt = e.UpdatedAt
	}
	return nil
}

func (d *MemoryDriver) CreateIndices(ctx context.Context) error { return nil }

func (d *MemoryDriver) Provider() GraphProvider { return GraphProviderMemory }

func (d *MemoryDriver) Close() error { return nil }

// tokenMatchScore returns the fraction of query tokens present in the text,
// a cheap stand-in for a real fulltext index.
func tokenMatchScore(queryTokens []string, text string) float64 {
	docTokens := utils.Tokenize(text)
	docSet := make(map[string]bool, len(docTokens))
	for _, tok := range docTokens {
		docSet[tok] = true
	}
	matched := 0
	for _, tok := range queryTokens {
		if docSet[tok] {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTokens))
}

func sortScoredNodes(hits []ScoredNode) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Node.UUID < hits[j].Node.UUID
	})
}

func sortScoredEdges(hits []ScoredEdge) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Edge.UUID < hits[j].Edge.UUID
	})
}

func sortEdgesByUUID(edges []*types.Edge) {
	sort.Slice(edges, func(i, j int) bool { return edges[i].UUID < edges[j].UUID })
}

func truncNodes(hits []ScoredNode, limit int) []ScoredNode {
	if limit > 0 && len(hits) > limit {
		return hits[:limit]
	}
	return hits
}

func truncEdges(hits []ScoredEdge, limit int) []ScoredEdge {
	if limit > 0 && len(hits) > limit {
		return hits[:limit]
	}
	return hits
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
