package tempograph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tempograph/tempograph/pkg/dedupe"
	"github.com/tempograph/tempograph/pkg/driver"
	"github.com/tempograph/tempograph/pkg/extraction"
	"github.com/tempograph/tempograph/pkg/types"
	"github.com/tempograph/tempograph/pkg/utils"
)

// episodePlan carries one episode through the pipeline: the raw content,
// the extracted candidates, and for each candidate position the canonical
// candidate it collapsed to during dedupe. When dedupe anchored a
// candidate onto an existing graph node, anchors holds that node.
type episodePlan struct {
	episode   *types.RawEpisode
	entities  []types.CandidateEntity
	canonical []types.CandidateEntity
	anchors   []*types.Node
	relations []types.CandidateRelation
}

// IngestEpisode distills one episode into the graph. Replaying an episode
// UUID that was already ingested returns a result with Duplicate set and
// changes nothing.
func (c *Client) IngestEpisode(ctx context.Context, episode types.RawEpisode, groupID string) (*types.IngestionResult, error) {
	start := time.Now()
	result, err := c.ingestOne(ctx, &episode, groupID)
	c.journal.RecordIngestion(groupID, result, time.Since(start), err)
	return result, err
}

func (c *Client) ingestOne(ctx context.Context, episode *types.RawEpisode, groupID string) (*types.IngestionResult, error) {
	if err := c.prepareEpisode(episode, groupID); err != nil {
		return nil, err
	}

	dup, err := c.alreadyIngested(ctx, episode.UUID, groupID)
	if err != nil {
		return nil, err
	}
	if dup {
		c.logger.Info("episode already ingested", "episode", episode.UUID, "group_id", groupID)
		return &types.IngestionResult{EpisodeUUID: episode.UUID, Duplicate: true}, nil
	}

	plan, err := c.extractEpisode(ctx, episode, groupID)
	if err != nil {
		return nil, err
	}
	if err := c.canonicalize(ctx, []*episodePlan{plan}, groupID); err != nil {
		return nil, err
	}

	result, err := c.applyPlan(ctx, plan, groupID)
	if err != nil {
		return result, err
	}
	if err := c.mark(groupID, episode.UUID, result); err != nil {
		return result, err
	}
	return result, nil
}

// IngestBatch ingests episodes oldest first by reference time. Extraction
// runs concurrently; candidates are deduplicated across the whole batch
// before any graph writes, which happen sequentially in temporal order.
// A failed episode does not stop the rest; when any fail the returned
// error wraps ErrIngestionDegraded and the failed positions hold nil.
func (c *Client) IngestBatch(ctx context.Context, episodes []types.RawEpisode, groupID string) ([]*types.IngestionResult, error) {
	prepared := make([]*types.RawEpisode, len(episodes))
	for i := range episodes {
		ep := episodes[i]
		if err := c.prepareEpisode(&ep, groupID); err != nil {
			return nil, fmt.Errorf("episode %d: %w", i, err)
		}
		prepared[i] = &ep
	}
	order := make([]int, len(prepared))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return prepared[order[a]].Reference.Before(prepared[order[b]].Reference)
	})

	plans := make([]*episodePlan, len(prepared))
	failures := make([]error, len(prepared))
	extractors := make([]func() error, len(prepared))
	for i := range prepared {
		i := i
		extractors[i] = func() error {
			dup, err := c.alreadyIngested(ctx, prepared[i].UUID, groupID)
			if err != nil {
				return err
			}
			if dup {
				return nil
			}
			plan, err := c.extractEpisode(ctx, prepared[i], groupID)
			if err != nil {
				return err
			}
			plans[i] = plan
			return nil
		}
	}
	copy(failures, utils.SemaphoreGather(ctx, c.maxConcurrency, extractors...))

	var live []*episodePlan
	for _, idx := range order {
		if plans[idx] != nil {
			live = append(live, plans[idx])
		}
	}
	if err := c.canonicalize(ctx, live, groupID); err != nil {
		return nil, err
	}

	results := make([]*types.IngestionResult, len(prepared))
	failed := 0
	for _, i := range order {
		plan := plans[i]
		if failures[i] != nil {
			c.logger.Error("episode ingestion failed", "episode", prepared[i].UUID, "err", failures[i])
			failed++
			continue
		}
		if plan == nil {
			results[i] = &types.IngestionResult{EpisodeUUID: prepared[i].UUID, Duplicate: true}
			continue
		}
		start := time.Now()
		result, err := c.applyPlan(ctx, plan, groupID)
		if err == nil {
			err = c.mark(groupID, plan.episode.UUID, result)
		}
		c.journal.RecordIngestion(groupID, result, time.Since(start), err)
		if err != nil {
			c.logger.Error("episode ingestion failed", "episode", plan.episode.UUID, "err", err)
			failures[i] = err
			failed++
			continue
		}
		results[i] = result
	}

	if failed > 0 {
		return results, fmt.Errorf("%w: %d of %d episodes failed", types.ErrIngestionDegraded, failed, len(prepared))
	}
	return results, nil
}

// UpdateCommunities rebuilds the group's communities from the current
// entity graph.
func (c *Client) UpdateCommunities(ctx context.Context, groupID string) ([]*types.Node, error) {
	if err := utils.ValidateGroupID(groupID); err != nil {
		return nil, err
	}
	return c.communities.Build(ctx, groupID)
}

func (c *Client) prepareEpisode(episode *types.RawEpisode, groupID string) error {
	if err := utils.ValidateGroupID(groupID); err != nil {
		return err
	}
	if err := episode.Validate(); err != nil {
		return fmt.Errorf("ingest episode: %w", err)
	}
	if episode.UUID == "" {
		episode.UUID = utils.GenerateUUID()
	}
	if episode.Reference.IsZero() {
		episode.Reference = time.Now().UTC()
	}
	if episode.Source == "" {
		episode.Source = types.SourceText
	}
	return nil
}

func (c *Client) alreadyIngested(ctx context.Context, episodeUUID, groupID string) (bool, error) {
	if c.checkpoints != nil {
		seen, err := c.checkpoints.Seen(groupID, episodeUUID)
		if err != nil {
			return false, err
		}
		if seen {
			return true, nil
		}
	}
	_, err := c.driver.GetEpisode(ctx, episodeUUID, groupID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, driver.ErrNodeNotFound) {
		return false, nil
	}
	return false, types.NewProviderError("episode lookup", err)
}

func (c *Client) mark(groupID, episodeUUID string, result *types.IngestionResult) error {
	if c.checkpoints == nil {
		return nil
	}
	return c.checkpoints.Mark(groupID, episodeUUID, result)
}

func (c *Client) extractEpisode(ctx context.Context, episode *types.RawEpisode, groupID string) (*episodePlan, error) {
	previous, err := c.driver.RetrieveEpisodes(ctx, episode.Reference, groupID, c.previousEpisodes)
	if err != nil {
		return nil, types.NewProviderError("previous episodes", err)
	}

	entities, err := c.extractor.ExtractEntities(ctx, episode, previous, c.registry)
	if err != nil {
		return nil, err
	}
	relations, err := c.extractor.ExtractRelations(ctx, episode, entities)
	if err != nil {
		return nil, err
	}
	return &episodePlan{episode: episode, entities: entities, relations: relations}, nil
}

// canonicalize collapses duplicate candidates across the given plans and
// fills each plan's canonical slice, so a later mention of "Acme Corp"
// resolves through the same candidate as the first. Candidates that
// dedupe matched to an existing graph node carry that node as an anchor,
// skipping the resolver round trip.
func (c *Client) canonicalize(ctx context.Context, plans []*episodePlan, groupID string) error {
	var candidates []dedupe.BatchCandidate
	for epIdx, plan := range plans {
		for i, ent := range plan.entities {
			candidates = append(candidates, dedupe.BatchCandidate{
				Key:    dedupe.CandidateKey(epIdx, i),
				Entity: ent,
			})
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	deduped, err := c.deduper.Dedupe(ctx, groupID, candidates)
	if err != nil {
		return err
	}
	byKey := make(map[string]types.CandidateEntity, len(deduped.Canonical))
	for _, cand := range deduped.Canonical {
		byKey[cand.Key] = cand.Entity
	}

	for epIdx, plan := range plans {
		plan.canonical = make([]types.CandidateEntity, len(plan.entities))
		plan.anchors = make([]*types.Node, len(plan.entities))
		for i := range plan.entities {
			canonKey := deduped.CanonicalKey[dedupe.CandidateKey(epIdx, i)]
			plan.canonical[i] = byKey[canonKey]
			plan.anchors[i] = deduped.Nodes[canonKey]
		}
	}
	return nil
}

// applyPlan resolves a plan against the graph and commits everything the
// episode changed in one batch: the episode node, the touched entity
// nodes, new and re-observed edges, mention edges, and invalidations.
func (c *Client) applyPlan(ctx context.Context, plan *episodePlan, groupID string) (*types.IngestionResult, error) {
	ep := plan.episode
	now := time.Now().UTC()
	result := &types.IngestionResult{EpisodeUUID: ep.UUID}

	episodeNode := &types.Node{
		UUID:      ep.UUID,
		Name:      ep.Name,
		Kind:      types.EpisodicNodeKind,
		GroupID:   groupID,
		Content:   ep.Content,
		Source:    ep.Source,
		Reference: ep.Reference,
		CreatedAt: now,
		UpdatedAt: now,
	}

	embeddings := c.embedCanonicalNames(ctx, plan)

	// Resolve each distinct canonical candidate once; aliases share the
	// resolved node.
	resolvedByName := make(map[string]*types.Node)
	nodeByCanonical := make(map[string]*types.Node)
	var touchedNodes []*types.Node
	for i, orig := range plan.entities {
		canon := plan.canonical[i]
		canonKey := strings.ToLower(canon.Name)
		node, ok := nodeByCanonical[canonKey]
		if !ok {
			if anchor := plan.anchors[i]; anchor != nil {
				// Dedupe already matched the candidate to a graph node.
				node = anchor
				c.entities.Merge(node, canon, embeddings[canonKey])
				nodeByCanonical[canonKey] = node
				touchedNodes = append(touchedNodes, node)
				result.MergedNodeIDs = append(result.MergedNodeIDs, node.UUID)
			} else {
				var err error
				var created bool
				node, created, err = c.entities.Resolve(ctx, canon, groupID, embeddings[canonKey])
				if err != nil {
					if errors.Is(err, types.ErrExtractionIncomplete) {
						result.Skipped = append(result.Skipped, types.SkippedCandidate{
							Name: canon.Name, Reason: "unresolvable entity candidate",
						})
						continue
					}
					return nil, err
				}
				nodeByCanonical[canonKey] = node
				touchedNodes = append(touchedNodes, node)
				if created {
					result.CreatedNodeIDs = append(result.CreatedNodeIDs, node.UUID)
				} else {
					result.MergedNodeIDs = append(result.MergedNodeIDs, node.UUID)
				}
			}
		}
		resolvedByName[strings.ToLower(orig.Name)] = node
	}

	var persistEdges []*types.Edge
	var invalidations []*types.Edge
	for _, rel := range plan.relations {
		source := resolvedByName[strings.ToLower(rel.Source)]
		target := resolvedByName[strings.ToLower(rel.Target)]
		if source == nil || target == nil {
			result.Skipped = append(result.Skipped, types.SkippedCandidate{
				Name: rel.Predicate, Reason: "relation references unresolved entity",
			})
			continue
		}

		validAt := extraction.ResolveValidAt(rel.ValidAtHint, ep.Reference)
		proposed := &types.Edge{
			UUID:         utils.GenerateUUID(),
			Kind:         types.RelatesEdgeKind,
			GroupID:      groupID,
			SourceNodeID: source.UUID,
			TargetNodeID: target.UUID,
			Name:         strings.ToUpper(strings.TrimSpace(rel.Predicate)),
			Fact:         rel.Fact,
			CreatedAt:    now,
			UpdatedAt:    now,
			ValidAt:      &validAt,
		}
		if end := extraction.ParseTemporalHint(rel.InvalidAtHint, ep.Reference); end != nil && !end.Before(validAt) {
			proposed.InvalidAt = end
		}

		edge, created, err := c.edges.Resolve(ctx, proposed, ep.UUID)
		if err != nil {
			return nil, err
		}
		if created {
			if vec, embErr := c.embedder.EmbedSingle(ctx, edge.Fact); embErr != nil {
				c.logger.Warn("fact embedding degraded", "edge", edge.UUID, "err", embErr)
			} else {
				edge.FactEmbedding = vec
			}
			result.CreatedEdgeIDs = append(result.CreatedEdgeIDs, edge.UUID)
		} else {
			result.UpdatedEdgeIDs = append(result.UpdatedEdgeIDs, edge.UUID)
		}
		persistEdges = append(persistEdges, edge)

		if edge.IsValid() {
			contradicted, err := c.invalidator.Process(ctx, edge)
			if err != nil {
				return nil, err
			}
			for _, inv := range contradicted {
				result.InvalidatedEdgeIDs = append(result.InvalidatedEdgeIDs, inv.UUID)
				// The resolved edge itself lands here when an existing
				// fact with a later valid_at wins; it is persisted
				// through the edge list, not as a write-back.
				if inv.UUID != edge.UUID {
					invalidations = append(invalidations, inv)
				}
			}
		}
		episodeNode.MentionedEdges = append(episodeNode.MentionedEdges, edge.UUID)
	}

	episodicEdges := make([]*types.Edge, 0, len(touchedNodes))
	for _, node := range touchedNodes {
		episodicEdges = append(episodicEdges, &types.Edge{
			UUID:         utils.GenerateUUID(),
			Kind:         types.MentionsEdgeKind,
			GroupID:      groupID,
			SourceNodeID: ep.UUID,
			TargetNodeID: node.UUID,
			CreatedAt:    now,
		})
	}

	batch := &driver.WriteBatch{
		Episode:       episodeNode,
		Nodes:         touchedNodes,
		Edges:         persistEdges,
		EpisodicEdges: episodicEdges,
		Invalidations: invalidations,
	}
	if err := c.driver.Commit(ctx, batch); err != nil {
		var partial *types.PartialFailure
		if errors.As(err, &partial) {
			return result, err
		}
		return nil, err
	}

	c.logger.Info("episode ingested",
		"episode", ep.UUID,
		"group_id", groupID,
		"created_nodes", len(result.CreatedNodeIDs),
		"merged_nodes", len(result.MergedNodeIDs),
		"created_edges", len(result.CreatedEdgeIDs),
		"invalidated_edges", len(result.InvalidatedEdgeIDs))
	return result, nil
}

// embedCanonicalNames embeds each distinct canonical entity name once.
// Embedding failure degrades resolution to fulltext shortlisting only.
func (c *Client) embedCanonicalNames(ctx context.Context, plan *episodePlan) map[string][]float32 {
	seen := make(map[string]bool)
	var names []string
	for _, canon := range plan.canonical {
		key := strings.ToLower(canon.Name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, canon.Name)
	}
	if len(names) == 0 {
		return nil
	}
	vectors, err := c.embedder.Embed(ctx, names)
	if err != nil || len(vectors) != len(names) {
		c.logger.Warn("name embedding degraded", "episode", plan.episode.UUID, "err", err)
		return nil
	}
	out := make(map[string][]float32, len(names))
	for i, name := range names {
		out[strings.ToLower(name)] = vectors[i]
	}
	return out
}
