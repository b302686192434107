package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/tempograph/tempograph/pkg/driver"
	"github.com/tempograph/tempograph/pkg/types"
	"github.com/tempograph/tempograph/pkg/utils"
)

// Shortlist thresholds for candidate matching.
const (
	MinScoreNodes  = 0.8
	MinScoreEdges  = 0.6
	ShortlistLimit = 10
)

// EntityResolver matches entity candidates against existing graph nodes,
// merging into an existing node when the comparator confirms identity.
type EntityResolver struct {
	driver     driver.GraphDriver
	comparator Comparator
	logger     *slog.Logger
}

// NewEntityResolver builds a resolver. A nil logger uses slog.Default.
func NewEntityResolver(d driver.GraphDriver, comparator Comparator, logger *slog.Logger) *EntityResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &EntityResolver{driver: d, comparator: comparator, logger: logger}
}

// Resolve returns the graph node for the candidate, creating one when no
// existing node matches. The bool reports whether the node is new.
func (r *EntityResolver) Resolve(ctx context.Context, cand types.CandidateEntity, groupID string, nameEmbedding []float32) (*types.Node, bool, error) {
	if cand.Name == "" {
		return nil, false, fmt.Errorf("resolve entity: %w", types.ErrExtractionIncomplete)
	}

	shortlist, err := r.shortlist(ctx, cand, groupID, nameEmbedding)
	if err != nil {
		return nil, false, err
	}
	// Most recently updated first, so a tie between accepted matches
	// resolves to the freshest node.
	sort.Slice(shortlist, func(i, j int) bool {
		if !shortlist[i].UpdatedAt.Equal(shortlist[j].UpdatedAt) {
			return shortlist[i].UpdatedAt.After(shortlist[j].UpdatedAt)
		}
		return shortlist[i].UUID < shortlist[j].UUID
	})

	for _, existing := range shortlist {
		same, err := r.comparator.SameEntity(ctx,
			EntityRef{Name: cand.Name, EntityType: cand.EntityType, Summary: cand.Summary},
			EntityRef{Name: existing.Name, EntityType: existing.EntityType, Summary: existing.Summary})
		if err != nil {
			return nil, false, err
		}
		if same {
			r.merge(existing, cand, nameEmbedding)
			r.logger.Debug("entity resolved to existing node",
				"candidate", cand.Name, "node", existing.UUID)
			return existing, false, nil
		}
	}

	now := time.Now().UTC()
	node := &types.Node{
		UUID:          utils.GenerateUUID(),
		Name:          cand.Name,
		Kind:          types.EntityNodeKind,
		GroupID:       groupID,
		CreatedAt:     now,
		UpdatedAt:     now,
		EntityType:    cand.EntityType,
		Summary:       cand.Summary,
		Attributes:    cand.Attributes,
		NameEmbedding: nameEmbedding,
	}
	return node, true, nil
}

// shortlist gathers plausible matches by embedding similarity and name
// fulltext, verifying every hit stays inside the group.
func (r *EntityResolver) shortlist(ctx context.Context, cand types.CandidateEntity, groupID string, nameEmbedding []float32) ([]*types.Node, error) {
	seen := make(map[string]bool)
	var shortlist []*types.Node

	add := func(node *types.Node) error {
		if node.GroupID != groupID {
			return fmt.Errorf("shortlist for %q: %w", cand.Name, types.ErrPartitionMismatch)
		}
		if !seen[node.UUID] {
			seen[node.UUID] = true
			shortlist = append(shortlist, node)
		}
		return nil
	}

	if len(nameEmbedding) > 0 {
		hits, err := r.driver.SearchNodesByVector(ctx, nameEmbedding, groupID, ShortlistLimit, MinScoreNodes)
		if err != nil {
			return nil, types.NewProviderError("entity shortlist", err)
		}
		for _, hit := range hits {
			if err := add(hit.Node); err != nil {
				return nil, err
			}
		}
	}

	hits, err := r.driver.SearchNodesFulltext(ctx, cand.Name, groupID, ShortlistLimit)
	if err != nil {
		return nil, types.NewProviderError("entity shortlist", err)
	}
	for _, hit := range hits {
		if err := add(hit.Node); err != nil {
			return nil, err
		}
	}
	return shortlist, nil
}

// Merge folds a candidate into a node that was matched outside the
// shortlist path, such as batch dedupe anchoring onto an existing node.
func (r *EntityResolver) Merge(existing *types.Node, cand types.CandidateEntity, nameEmbedding []float32) {
	r.merge(existing, cand, nameEmbedding)
}

// merge folds candidate data into the existing node. The existing node
// keeps its identity and wins attribute conflicts.
func (r *EntityResolver) merge(existing *types.Node, cand types.CandidateEntity, nameEmbedding []float32) {
	if dropped := existing.MergeAttributes(cand.Attributes); len(dropped) > 0 {
		r.logger.Debug("merge kept existing attributes", "node", existing.UUID, "dropped", dropped)
	}
	if existing.Summary == "" {
		existing.Summary = cand.Summary
	}
	if existing.EntityType == "" {
		existing.EntityType = cand.EntityType
	}
	if len(existing.NameEmbedding) == 0 {
		existing.NameEmbedding = nameEmbedding
	}
	existing.UpdatedAt = time.Now().UTC()
}
