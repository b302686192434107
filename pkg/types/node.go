package types

import (
	"time"
)

// NodeKind distinguishes the three node varieties in the graph.
type NodeKind string

const (
	// EntityNodeKind nodes represent real-world entities extracted from
	// episode content.
	EntityNodeKind NodeKind = "entity"
	// EpisodicNodeKind nodes represent raw ingested episodes.
	EpisodicNodeKind NodeKind = "episodic"
	// CommunityNodeKind nodes represent clusters of related entities.
	CommunityNodeKind NodeKind = "community"
)

// EpisodeSource describes the format of an episode body.
type EpisodeSource string

const (
	SourceMessage EpisodeSource = "message"
	SourceText    EpisodeSource = "text"
	SourceJSON    EpisodeSource = "json"
)

// Node is a vertex in the temporal knowledge graph. A single struct backs
// all three kinds so drivers can persist them uniformly; kind-specific
// fields are zero for the kinds that do not use them.
type Node struct {
	UUID      string    `json:"uuid"`
	Name      string    `json:"name"`
	Kind      NodeKind  `json:"kind"`
	GroupID   string    `json:"group_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`

	// Entity fields.
	EntityType    string         `json:"entity_type,omitempty"`
	Summary       string         `json:"summary,omitempty"`
	Attributes    map[string]any `json:"attributes,omitempty"`
	NameEmbedding []float32      `json:"name_embedding,omitempty"`

	// Episodic fields. Reference is the time the episode content refers to,
	// which drives temporal ordering; CreatedAt is when it was ingested.
	Content   string        `json:"content,omitempty"`
	Source    EpisodeSource `json:"source,omitempty"`
	Reference time.Time     `json:"reference,omitzero"`
	// MentionedEdges lists edge UUIDs whose facts were derived from this
	// episode, kept for checkpoint recovery.
	MentionedEdges []string `json:"mentioned_edges,omitempty"`

	// Community fields.
	Level   int      `json:"level,omitempty"`
	Members []string `json:"members,omitempty"`
}

// Validate checks the fields every node kind requires.
func (n *Node) Validate() error {
	if n.UUID == "" {
		return ErrEmptyUUID
	}
	if n.Name == "" {
		return ErrEmptyName
	}
	if n.GroupID == "" {
		return ErrEmptyGroupID
	}
	return nil
}

// IsEntity reports whether the node is an entity node.
func (n *Node) IsEntity() bool { return n.Kind == EntityNodeKind }

// MergeAttributes folds src attributes into the node. An existing non-nil
// value wins on conflict; a nil existing value is replaced by the incoming
// one. Returns the keys whose incoming values were dropped.
func (n *Node) MergeAttributes(src map[string]any) []string {
	if len(src) == 0 {
		return nil
	}
	if n.Attributes == nil {
		n.Attributes = make(map[string]any, len(src))
	}
	var dropped []string
	for k, v := range src {
		if existing, ok := n.Attributes[k]; ok && existing != nil {
			dropped = append(dropped, k)
			continue
		}
		n.Attributes[k] = v
	}
	return dropped
}
