package tempograph

import (
	"context"
	"time"

	"github.com/tempograph/tempograph/pkg/types"
	"github.com/tempograph/tempograph/pkg/utils"
)

// Search runs hybrid retrieval over the group's graph. A nil config uses
// the default node and edge hybrid search; a nil filters searches the
// whole group.
func (c *Client) Search(ctx context.Context, query, groupID string, cfg *types.SearchConfig, filters *types.SearchFilters) (*types.SearchResults, error) {
	if err := utils.ValidateGroupID(groupID); err != nil {
		return nil, err
	}
	start := time.Now()
	results, err := c.engine.Search(ctx, query, groupID, cfg, filters)
	c.journal.RecordSearch(groupID, query, results, time.Since(start))
	return results, err
}

// FactsAt returns the relation edges stored between two entities together
// with their temporal bounds, letting callers ask what was believed true
// at a given instant.
func (c *Client) FactsAt(ctx context.Context, sourceUUID, targetUUID, groupID string, at time.Time) ([]*types.Edge, error) {
	if err := utils.ValidateGroupID(groupID); err != nil {
		return nil, err
	}
	edges, err := c.driver.GetEdgesBetween(ctx, sourceUUID, targetUUID, groupID)
	if err != nil {
		return nil, types.NewProviderError("facts between", err)
	}
	var out []*types.Edge
	for _, edge := range edges {
		if edge.IsLiveAt(at) {
			out = append(out, edge)
		}
	}
	return out, nil
}

// RecentEpisodes returns the newest episodes referenced at or before the
// given instant.
func (c *Client) RecentEpisodes(ctx context.Context, groupID string, before time.Time, limit int) ([]*types.Node, error) {
	if err := utils.ValidateGroupID(groupID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = types.DefaultSearchLimit
	}
	episodes, err := c.driver.RetrieveEpisodes(ctx, before, groupID, limit)
	if err != nil {
		return nil, types.NewProviderError("recent episodes", err)
	}
	return episodes, nil
}

// Communities returns the group's community nodes. A negative level
// returns every level.
func (c *Client) Communities(ctx context.Context, groupID string, level int) ([]*types.Node, error) {
	if err := utils.ValidateGroupID(groupID); err != nil {
		return nil, err
	}
	nodes, err := c.driver.GetCommunities(ctx, groupID, level)
	if err != nil {
		return nil, types.NewProviderError("communities", err)
	}
	return nodes, nil
}
