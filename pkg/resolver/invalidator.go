package resolver

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tempograph/tempograph/pkg/driver"
	"github.com/tempograph/tempograph/pkg/types"
)

// ExclusivityIndex maps predicates to named exclusivity classes. Two live
// edges from the same source node whose predicates share a class cannot
// both hold, so the older fact is invalidated when a newer one arrives.
// Predicates outside any class never invalidate anything.
type ExclusivityIndex struct {
	classByPredicate map[string]string
}

// NewExclusivityIndex builds an index from class name to member predicates.
func NewExclusivityIndex(classes map[string][]string) *ExclusivityIndex {
	idx := &ExclusivityIndex{classByPredicate: make(map[string]string)}
	for class, predicates := range classes {
		for _, p := range predicates {
			idx.classByPredicate[strings.ToUpper(p)] = class
		}
	}
	return idx
}

// Exclusive reports whether the two predicates cannot simultaneously hold
// from the same source node.
func (idx *ExclusivityIndex) Exclusive(a, b string) bool {
	if idx == nil {
		return false
	}
	ca, oka := idx.classByPredicate[strings.ToUpper(a)]
	cb, okb := idx.classByPredicate[strings.ToUpper(b)]
	return oka && okb && ca == cb
}

// Invalidator applies bi-temporal contradiction resolution when a new fact
// conflicts with live edges.
type Invalidator struct {
	driver driver.GraphDriver
	index  *ExclusivityIndex
	logger *slog.Logger
}

// NewInvalidator builds an invalidator with the given exclusivity index.
func NewInvalidator(d driver.GraphDriver, index *ExclusivityIndex, logger *slog.Logger) *Invalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invalidator{driver: d, index: index, logger: logger}
}

// Process finds live edges contradicting the resolved edge and closes the
// losing side's validity interval. Returned edges carry the InvalidAt to
// persist; when the new edge itself loses the out-of-order comparison it is
// among them. Edges are only ever mutated, never removed.
func (v *Invalidator) Process(ctx context.Context, resolved *types.Edge) ([]*types.Edge, error) {
	candidates, err := v.driver.GetEdgesForNode(ctx, resolved.SourceNodeID, resolved.GroupID)
	if err != nil {
		return nil, types.NewProviderError("invalidation candidates", err)
	}

	var invalidated []*types.Edge
	for _, candidate := range candidates {
		if candidate.UUID == resolved.UUID {
			continue
		}
		// Only edges leaving the same source contradict: an exclusive
		// predicate constrains the subject, not the object.
		if candidate.SourceNodeID != resolved.SourceNodeID {
			continue
		}
		if candidate.SamePair(resolved) && strings.EqualFold(candidate.Name, resolved.Name) {
			// Same fact, handled by edge resolution.
			continue
		}
		if !v.index.Exclusive(candidate.Name, resolved.Name) {
			continue
		}
		// Already closed before the new fact began: no overlap.
		if candidate.InvalidAt != nil && resolved.ValidAt != nil && resolved.ValidAt.After(*candidate.InvalidAt) {
			continue
		}
		// New fact already closed before the candidate began: no overlap.
		if resolved.InvalidAt != nil && candidate.ValidAt != nil && candidate.ValidAt.After(*resolved.InvalidAt) {
			continue
		}
		if candidate.InvalidAt != nil {
			continue
		}

		switch {
		case candidate.ValidAt == nil, resolved.ValidAt == nil,
			candidate.ValidAt.Before(*resolved.ValidAt):
			// The newer fact supersedes the older one.
			at := resolved.CreatedAt
			if resolved.ValidAt != nil {
				at = *resolved.ValidAt
			}
			if err := candidate.Invalidate(at); err != nil {
				v.logger.Warn("skipping contradiction, invalidation rejected",
					"edge", candidate.UUID, "err", err)
				continue
			}
			v.logger.Info("invalidated superseded fact",
				"edge", candidate.UUID, "by", resolved.UUID, "at", at)
			invalidated = append(invalidated, candidate)

		case candidate.ValidAt.After(*resolved.ValidAt):
			// Out-of-order arrival: the existing fact is newer in world
			// time, so the incoming edge is the one that ended.
			if resolved.InvalidAt == nil {
				if err := resolved.Invalidate(*candidate.ValidAt); err != nil {
					v.logger.Warn("could not close out-of-order edge",
						"edge", resolved.UUID, "err", err)
					continue
				}
				v.logger.Info("incoming fact superseded by existing newer fact",
					"edge", resolved.UUID, "by", candidate.UUID)
				invalidated = append(invalidated, resolved)
			}
		}
	}
	return invalidated, nil
}
