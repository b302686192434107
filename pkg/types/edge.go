package types

import (
	"slices"
	"time"
)

// EdgeKind distinguishes the edge varieties in the graph.
type EdgeKind string

const (
	// RelatesEdgeKind edges carry a fact between two entity nodes.
	RelatesEdgeKind EdgeKind = "relates"
	// MentionsEdgeKind edges link an episodic node to an entity it mentions.
	MentionsEdgeKind EdgeKind = "mentions"
	// MemberEdgeKind edges link a community node to a member entity.
	MemberEdgeKind EdgeKind = "member"
)

// Edge is a directed edge in the graph. Relates edges are bi-temporal:
// ValidAt and InvalidAt bound when the fact held in the world, CreatedAt
// records when the system learned it. InvalidAt transitions from nil to a
// value exactly once; invalidated edges are never deleted.
type Edge struct {
	UUID         string    `json:"uuid"`
	Kind         EdgeKind  `json:"kind"`
	GroupID      string    `json:"group_id"`
	SourceNodeID string    `json:"source_node_uuid"`
	TargetNodeID string    `json:"target_node_uuid"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at,omitzero"`

	// Relates fields. Name is the predicate, Fact the natural-language
	// statement it was extracted from.
	Name          string         `json:"name,omitempty"`
	Fact          string         `json:"fact,omitempty"`
	FactEmbedding []float32      `json:"fact_embedding,omitempty"`
	Attributes    map[string]any `json:"attributes,omitempty"`

	// Episodes lists the UUIDs of episodic nodes this fact was derived
	// from. Append-only: entries accumulate across re-observations.
	Episodes []string `json:"episodes,omitempty"`

	ValidAt   *time.Time `json:"valid_at,omitempty"`
	InvalidAt *time.Time `json:"invalid_at,omitempty"`
}

// Validate checks structural fields common to all edge kinds.
func (e *Edge) Validate() error {
	if e.UUID == "" {
		return ErrEmptyUUID
	}
	if e.GroupID == "" {
		return ErrEmptyGroupID
	}
	if e.SourceNodeID == "" || e.TargetNodeID == "" {
		return ErrEmptyUUID
	}
	if e.InvalidAt != nil && e.ValidAt != nil && e.InvalidAt.Before(*e.ValidAt) {
		return ErrInvalidTemporalRange
	}
	return nil
}

// IsValid reports whether the edge has not been invalidated.
func (e *Edge) IsValid() bool { return e.InvalidAt == nil }

// IsLiveAt reports whether the fact held at t. An edge with no ValidAt is
// treated as live from its creation.
func (e *Edge) IsLiveAt(t time.Time) bool {
	if e.ValidAt != nil && t.Before(*e.ValidAt) {
		return false
	}
	if e.InvalidAt != nil && !t.Before(*e.InvalidAt) {
		return false
	}
	return true
}

// Invalidate closes the edge's validity interval at t. It is an error to
// invalidate twice or to close the interval before it opened.
func (e *Edge) Invalidate(t time.Time) error {
	if e.InvalidAt != nil {
		return ErrEdgeAlreadyInvalid
	}
	if e.ValidAt != nil && t.Before(*e.ValidAt) {
		return ErrInvalidTemporalRange
	}
	e.InvalidAt = &t
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// AttachEpisode records a supporting episode, preserving append-only
// provenance. Duplicate UUIDs are ignored.
func (e *Edge) AttachEpisode(episodeUUID string) {
	if episodeUUID == "" || slices.Contains(e.Episodes, episodeUUID) {
		return
	}
	e.Episodes = append(e.Episodes, episodeUUID)
}

// SamePair reports whether other connects the same source and target,
// in either direction.
func (e *Edge) SamePair(other *Edge) bool {
	if e.SourceNodeID == other.SourceNodeID && e.TargetNodeID == other.TargetNodeID {
		return true
	}
	return e.SourceNodeID == other.TargetNodeID && e.TargetNodeID == other.SourceNodeID
}
