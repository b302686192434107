// Package community clusters entity nodes into labeled communities with
// model-written summaries.
package community

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/tempograph/tempograph/pkg/driver"
	"github.com/tempograph/tempograph/pkg/embedder"
	"github.com/tempograph/tempograph/pkg/extraction"
	"github.com/tempograph/tempograph/pkg/types"
	"github.com/tempograph/tempograph/pkg/utils"
)

// Builder detects communities over the entity graph and persists them as
// community nodes with HAS_MEMBER edges.
type Builder struct {
	driver    driver.GraphDriver
	extractor extraction.Extractor
	embedder  embedder.Client
	logger    *slog.Logger
}

// NewBuilder wires a community builder. Extractor and embedder may be nil,
// which skips summaries and embeddings respectively.
func NewBuilder(d driver.GraphDriver, ex extraction.Extractor, emb embedder.Client, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{driver: d, extractor: ex, embedder: emb, logger: logger}
}

// Build replaces the group's communities with freshly detected clusters.
// Singleton clusters are not materialized.
func (b *Builder) Build(ctx context.Context, groupID string) ([]*types.Node, error) {
	projection, err := b.projectGraph(ctx, groupID)
	if err != nil {
		return nil, err
	}
	clusters := labelPropagation(projection)
	if len(clusters) == 0 {
		return nil, nil
	}

	if err := b.driver.RemoveCommunities(ctx, groupID); err != nil {
		return nil, fmt.Errorf("remove stale communities: %w", err)
	}

	communities := make([]*types.Node, 0, len(clusters))
	for _, cluster := range clusters {
		node, edges, err := b.buildCommunity(ctx, cluster, groupID)
		if err != nil {
			return nil, err
		}
		batch := &driver.WriteBatch{Nodes: []*types.Node{node}, Edges: edges}
		if err := b.driver.Commit(ctx, batch); err != nil {
			return nil, fmt.Errorf("persist community %s: %w", node.UUID, err)
		}
		communities = append(communities, node)
	}
	b.logger.Info("communities rebuilt", "group_id", groupID, "count", len(communities))
	return communities, nil
}

// projectGraph builds the undirected adjacency with edge multiplicity used
// as propagation weight.
func (b *Builder) projectGraph(ctx context.Context, groupID string) (map[string]map[string]int, error) {
	uuids, err := b.driver.EntityUUIDs(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("project graph: %w", err)
	}
	projection := make(map[string]map[string]int, len(uuids))
	for _, uuid := range uuids {
		projection[uuid] = make(map[string]int)
	}
	for _, uuid := range uuids {
		edges, err := b.driver.GetEdgesForNode(ctx, uuid, groupID)
		if err != nil {
			return nil, fmt.Errorf("project graph: %w", err)
		}
		for _, edge := range edges {
			other := edge.TargetNodeID
			if other == uuid {
				other = edge.SourceNodeID
			}
			if _, ok := projection[other]; ok && other != uuid {
				projection[uuid][other]++
			}
		}
	}
	return projection, nil
}

func (b *Builder) buildCommunity(ctx context.Context, memberUUIDs []string, groupID string) (*types.Node, []*types.Edge, error) {
	members, err := b.driver.GetNodes(ctx, memberUUIDs, groupID)
	if err != nil {
		return nil, nil, fmt.Errorf("load community members: %w", err)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].UUID < members[j].UUID })

	now := time.Now().UTC()
	node := &types.Node{
		UUID:      utils.GenerateUUID(),
		Kind:      types.CommunityNodeKind,
		GroupID:   groupID,
		CreatedAt: now,
		UpdatedAt: now,
		Level:     0,
		Members:   memberUUIDs,
	}

	names := make([]string, len(members))
	facts := make([]string, 0, len(members))
	for i, m := range members {
		names[i] = m.Name
		if m.Summary != "" {
			facts = append(facts, m.Name+": "+m.Summary)
		}
	}
	node.Name = fmt.Sprintf("Community of %s", names[0])
	if len(names) > 1 {
		node.Name = fmt.Sprintf("Community of %s and %d others", names[0], len(names)-1)
	}

	if b.extractor != nil {
		summary, err := b.extractor.Summarize(ctx, node.Name, "", facts)
		if err != nil {
			b.logger.Warn("community summary degraded", "community", node.UUID, "err", err)
		} else {
			node.Summary = summary
		}
	}
	if b.embedder != nil && node.Summary != "" {
		vec, err := b.embedder.EmbedSingle(ctx, node.Summary)
		if err != nil {
			b.logger.Warn("community embedding degraded", "community", node.UUID, "err", err)
		} else {
			node.NameEmbedding = vec
		}
	}

	edges := make([]*types.Edge, 0, len(members))
	for _, m := range members {
		edges = append(edges, &types.Edge{
			UUID:         utils.GenerateUUID(),
			Kind:         types.MemberEdgeKind,
			GroupID:      groupID,
			SourceNodeID: node.UUID,
			TargetNodeID: m.UUID,
			CreatedAt:    now,
		})
	}
	return node, edges, nil
}

// labelPropagation assigns each node the weighted-majority label of its
// neighbors until stable, then returns clusters of size two or more.
func labelPropagation(projection map[string]map[string]int) [][]string {
	if len(projection) == 0 {
		return nil
	}

	uuids := make([]string, 0, len(projection))
	for uuid := range projection {
		uuids = append(uuids, uuid)
	}
	sort.Strings(uuids)

	labels := make(map[string]int, len(uuids))
	for i, uuid := range uuids {
		labels[uuid] = i
	}

	const maxIterations = 100
	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		next := make(map[string]int, len(labels))

		for _, uuid := range uuids {
			counts := make(map[int]int)
			for neighbor, weight := range projection[uuid] {
				counts[labels[neighbor]] += weight
			}

			best := labels[uuid]
			bestCount := 0
			for label, count := range counts {
				if count > bestCount || (count == bestCount && label > best) {
					best, bestCount = label, count
				}
			}
			// A single supporting vote is not enough to pull a node into a
			// neighbor's community; drift toward the larger label instead so
			// bridged clusters settle rather than oscillate.
			if bestCount <= 1 && best < labels[uuid] {
				best = labels[uuid]
			}
			next[uuid] = best
			if best != labels[uuid] {
				changed = true
			}
		}

		labels = next
		if !changed {
			break
		}
	}

	byLabel := make(map[int][]string)
	for _, uuid := range uuids {
		byLabel[labels[uuid]] = append(byLabel[labels[uuid]], uuid)
	}
	var clusters [][]string
	for _, cluster := range byLabel {
		if len(cluster) > 1 {
			sort.Strings(cluster)
			clusters = append(clusters, cluster)
		}
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i][0] < clusters[j][0] })
	return clusters
}
