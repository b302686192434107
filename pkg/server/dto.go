package server

import (
	"time"

	"github.com/tempograph/tempograph/pkg/types"
)

// ErrorResponse is the JSON body for every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// EpisodeRequest is one episode in an ingestion request.
type EpisodeRequest struct {
	Name      string         `json:"name" binding:"required"`
	Content   string         `json:"content" binding:"required"`
	Source    string         `json:"source,omitempty"`
	Reference *time.Time     `json:"reference,omitempty"`
	UUID      string         `json:"uuid,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (r *EpisodeRequest) toRaw() types.RawEpisode {
	ep := types.RawEpisode{
		Name:     r.Name,
		Content:  r.Content,
		Source:   types.EpisodeSource(r.Source),
		UUID:     r.UUID,
		Metadata: r.Metadata,
	}
	if r.Reference != nil {
		ep.Reference = *r.Reference
	}
	return ep
}

// IngestRequest carries a batch of episodes for one group.
type IngestRequest struct {
	GroupID  string           `json:"group_id" binding:"required"`
	Episodes []EpisodeRequest `json:"episodes" binding:"required,min=1"`
}

// IngestResponse reports per-episode outcomes in request order.
type IngestResponse struct {
	Results  []*types.IngestionResult `json:"results"`
	Degraded bool                     `json:"degraded,omitempty"`
}

// SearchRequest configures one hybrid search.
type SearchRequest struct {
	GroupID     string   `json:"group_id" binding:"required"`
	Query       string   `json:"query"`
	Limit       int      `json:"limit,omitempty"`
	EntityTypes []string `json:"entity_types,omitempty"`
	EdgeNames   []string `json:"edge_names,omitempty"`
	// IncludeInvalid returns superseded facts too; the default is live
	// facts only.
	IncludeInvalid bool       `json:"include_invalid,omitempty"`
	AsOf           *time.Time `json:"as_of,omitempty"`
	CenterNode     string     `json:"center_node_uuid,omitempty"`
}

// SearchResponse is the wire form of search results.
type SearchResponse struct {
	Nodes         []*types.Node `json:"nodes"`
	Edges         []*types.Edge `json:"edges"`
	Episodes      []*types.Node `json:"episodes,omitempty"`
	Communities   []*types.Node `json:"communities,omitempty"`
	FailedMethods int           `json:"failed_methods,omitempty"`
}

// CommunityResponse lists community nodes for a group.
type CommunityResponse struct {
	Communities []*types.Node `json:"communities"`
}

// EpisodesResponse lists episodic nodes for a group.
type EpisodesResponse struct {
	Episodes []*types.Node `json:"episodes"`
}
