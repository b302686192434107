package types

import "time"

// RawEpisode is the caller-facing input to ingestion: a discrete unit of
// content with the time it refers to. Reference drives temporal ordering
// of facts, independent of when the episode reaches the system.
type RawEpisode struct {
	Name      string         `json:"name"`
	Content   string         `json:"content"`
	Source    EpisodeSource  `json:"source"`
	Reference time.Time      `json:"reference"`
	UUID      string         `json:"uuid,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Validate checks the fields ingestion requires.
func (r *RawEpisode) Validate() error {
	if r.Name == "" {
		return ErrEmptyName
	}
	if r.Content == "" {
		return ErrEmptyContent
	}
	return nil
}

// CandidateEntity is an entity proposal produced by extraction, before
// resolution against the existing graph.
type CandidateEntity struct {
	Name       string         `json:"name"`
	EntityType string         `json:"entity_type,omitempty"`
	Summary    string         `json:"summary,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// CandidateRelation is a relationship proposal produced by extraction.
// Source and Target name entities from the same extraction pass; temporal
// hints are free-form and resolved against the episode reference time.
type CandidateRelation struct {
	Source        string `json:"source"`
	Target        string `json:"target"`
	Predicate     string `json:"predicate"`
	Fact          string `json:"fact"`
	ValidAtHint   string `json:"valid_at,omitempty"`
	InvalidAtHint string `json:"invalid_at,omitempty"`
}

// SkippedCandidate records a candidate dropped during ingestion and why,
// so degraded results stay inspectable.
type SkippedCandidate struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// IngestionResult summarizes what one episode changed in the graph.
type IngestionResult struct {
	EpisodeUUID        string             `json:"episode_uuid"`
	CreatedNodeIDs     []string           `json:"created_node_uuids,omitempty"`
	MergedNodeIDs      []string           `json:"merged_node_uuids,omitempty"`
	CreatedEdgeIDs     []string           `json:"created_edge_uuids,omitempty"`
	UpdatedEdgeIDs     []string           `json:"updated_edge_uuids,omitempty"`
	InvalidatedEdgeIDs []string           `json:"invalidated_edge_uuids,omitempty"`
	Skipped            []SkippedCandidate `json:"skipped,omitempty"`
	// Duplicate is set when the episode UUID was already ingested and the
	// episode was skipped entirely.
	Duplicate bool `json:"duplicate,omitempty"`
}
