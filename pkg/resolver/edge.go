package resolver

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/tempograph/tempograph/pkg/driver"
	"github.com/tempograph/tempograph/pkg/types"
	"github.com/tempograph/tempograph/pkg/utils"
)

// EdgeResolver deduplicates extracted relationships against existing edges
// between the same node pair.
type EdgeResolver struct {
	driver driver.GraphDriver
	logger *slog.Logger
}

// NewEdgeResolver builds an edge resolver.
func NewEdgeResolver(d driver.GraphDriver, logger *slog.Logger) *EdgeResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &EdgeResolver{driver: d, logger: logger}
}

// Resolve returns the edge to persist for the proposal. When a live edge
// between the same pair states the same fact, that edge is reused with the
// new episode attached; otherwise the proposal stands as a new edge. The
// bool reports whether the edge is new.
func (r *EdgeResolver) Resolve(ctx context.Context, proposed *types.Edge, episodeUUID string) (*types.Edge, bool, error) {
	existing, err := r.driver.GetEdgesBetween(ctx, proposed.SourceNodeID, proposed.TargetNodeID, proposed.GroupID)
	if err != nil {
		return nil, false, types.NewProviderError("edge shortlist", err)
	}

	for _, edge := range existing {
		if !edge.IsValid() {
			continue
		}
		if !r.sameFact(proposed, edge) {
			continue
		}
		edge.AttachEpisode(episodeUUID)
		edge.UpdatedAt = time.Now().UTC()
		// Re-observation refines an unset valid_at with the new one.
		if edge.ValidAt == nil && proposed.ValidAt != nil {
			edge.ValidAt = proposed.ValidAt
		}
		r.logger.Debug("edge resolved to existing fact",
			"predicate", proposed.Name, "edge", edge.UUID)
		return edge, false, nil
	}

	proposed.AttachEpisode(episodeUUID)
	return proposed, true, nil
}

// sameFact reports whether two edges between the same pair state the same
// fact: identical predicate, or near-identical fact text.
func (r *EdgeResolver) sameFact(a, b *types.Edge) bool {
	if strings.EqualFold(a.Name, b.Name) {
		return true
	}
	return utils.WordOverlap(a.Fact, b.Fact) >= MinScoreEdges
}
