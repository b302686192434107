// Package driver abstracts graph storage behind a single interface with
// Neo4j and in-memory implementations. Every operation is scoped to a
// group ID; drivers never return data across group boundaries.
package driver

import (
	"context"
	"errors"
	"time"

	"github.com/tempograph/tempograph/pkg/types"
)

// GraphProvider identifies the backing store.
type GraphProvider string

const (
	GraphProviderNeo4j  GraphProvider = "neo4j"
	GraphProviderMemory GraphProvider = "memory"
)

// ErrNodeNotFound and ErrEdgeNotFound are returned by point lookups.
var (
	ErrNodeNotFound = errors.New("node not found")
	ErrEdgeNotFound = errors.New("edge not found")
)

// ScoredNode pairs a node with its retrieval score.
type ScoredNode struct {
	Node  *types.Node
	Score float64
}

// ScoredEdge pairs an edge with its retrieval score.
type ScoredEdge struct {
	Edge  *types.Edge
	Score float64
}

// WriteBatch is one episode's worth of graph mutations. Commit applies the
// sections in a fixed order so a failure partway through never leaves an
// edge without its endpoints or an invalidation without its replacement:
// episode and entity nodes first, then edges, then invalidations.
type WriteBatch struct {
	Episode       *types.Node
	Nodes         []*types.Node
	Edges         []*types.Edge
	EpisodicEdges []*types.Edge
	// Invalidations holds existing edges whose InvalidAt was set during
	// resolution. Only the temporal fields are written back.
	Invalidations []*types.Edge
}

// GraphDriver is the storage contract for the knowledge graph.
type GraphDriver interface {
	// Node operations.
	GetNode(ctx context.Context, uuid, groupID string) (*types.Node, error)
	GetNodes(ctx context.Context, uuids []string, groupID string) ([]*types.Node, error)
	UpsertNode(ctx context.Context, node *types.Node) error

	// Edge operations.
	GetEdge(ctx context.Context, uuid, groupID string) (*types.Edge, error)
	UpsertEdge(ctx context.Context, edge *types.Edge) error
	// GetEdgesBetween returns relates edges connecting the two nodes in
	// either direction.
	GetEdgesBetween(ctx context.Context, sourceUUID, targetUUID, groupID string) ([]*types.Edge, error)
	// GetEdgesForNode returns relates edges touching the node.
	GetEdgesForNode(ctx context.Context, nodeUUID, groupID string) ([]*types.Edge, error)

	// Episode operations.
	GetEpisode(ctx context.Context, uuid, groupID string) (*types.Node, error)
	// RetrieveEpisodes returns the most recent episodes with reference
	// time at or before the given instant, newest first.
	RetrieveEpisodes(ctx context.Context, before time.Time, groupID string, limit int) ([]*types.Node, error)

	// Retrieval.
	SearchNodesByVector(ctx context.Context, vector []float32, groupID string, limit int, minScore float64) ([]ScoredNode, error)
	SearchEdgesByVector(ctx context.Context, vector []float32, groupID string, limit int, minScore float64) ([]ScoredEdge, error)
	SearchNodesFulltext(ctx context.Context, query, groupID string, limit int) ([]ScoredNode, error)
	SearchEdgesFulltext(ctx context.Context, query, groupID string, limit int) ([]ScoredEdge, error)
	SearchEpisodesFulltext(ctx context.Context, query, groupID string, limit int) ([]ScoredNode, error)
	SearchCommunitiesByVector(ctx context.Context, vector []float32, groupID string, limit int, minScore float64) ([]ScoredNode, error)
	// Neighborhood walks outward from the origin nodes up to maxDepth hops
	// and returns hop distances keyed by node UUID. Origins map to 0.
	Neighborhood(ctx context.Context, originUUIDs []string, groupID string, maxDepth int) (map[string]int, error)

	// Community operations.
	GetCommunities(ctx context.Context, groupID string, level int) ([]*types.Node, error)
	RemoveCommunities(ctx context.Context, groupID string) error
	// EntityUUIDs lists entity node UUIDs in the group, for clustering.
	EntityUUIDs(ctx context.Context, groupID string) ([]string, error)

	// Commit applies a write batch in order. On stores without atomic
	// multi-statement transactions a *types.PartialFailure reports which
	// writes did not apply.
	Commit(ctx context.Context, batch *WriteBatch) error

	// Maintenance.
	CreateIndices(ctx context.Context) error
	Provider() GraphProvider
	Close() error
}
