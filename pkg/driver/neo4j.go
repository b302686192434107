package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/tempograph/tempograph/pkg/types"
	"github.com/tempograph/tempograph/pkg/utils"
)

// Neo4jDriver implements GraphDriver against a Neo4j database.
type Neo4jDriver struct {
	client   neo4j.DriverWithContext
	database string
}

// NewNeo4jDriver connects to Neo4j with basic auth. An empty database name
// selects the default "neo4j" database.
func NewNeo4jDriver(uri, username, password, database string) (*Neo4jDriver, error) {
	client, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if database == "" {
		database = "neo4j"
	}
	return &Neo4jDriver{client: client, database: database}, nil
}

func (n *Neo4jDriver) session(ctx context.Context) neo4j.SessionWithContext {
	return n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
}

func nodeLabel(kind types.NodeKind) string {
	switch kind {
	case types.EpisodicNodeKind:
		return "Episodic"
	case types.CommunityNodeKind:
		return "Community"
	default:
		return "Entity"
	}
}

func edgeType(kind types.EdgeKind) string {
	switch kind {
	case types.MentionsEdgeKind:
		return "MENTIONS"
	case types.MemberEdgeKind:
		return "HAS_MEMBER"
	default:
		return "RELATES_TO"
	}
}

func nodeProps(node *types.Node) map[string]any {
	props := map[string]any{
		"uuid":       node.UUID,
		"name":       node.Name,
		"kind":       string(node.Kind),
		"group_id":   node.GroupID,
		"created_at": node.CreatedAt,
		"updated_at": node.UpdatedAt,
	}
	if node.EntityType != "" {
		props["entity_type"] = node.EntityType
	}
	if node.Summary != "" {
		props["summary"] = node.Summary
	}
	if len(node.Attributes) > 0 {
		if raw, err := json.Marshal(node.Attributes); err == nil {
			props["attributes"] = string(raw)
		}
	}
	if len(node.NameEmbedding) > 0 {
		props["name_embedding"] = float32sToAny(node.NameEmbedding)
	}
	if node.Content != "" {
		props["content"] = node.Content
		props["source"] = string(node.Source)
		props["reference"] = node.Reference
	}
	if len(node.MentionedEdges) > 0 {
		props["mentioned_edges"] = node.MentionedEdges
	}
	if node.Kind == types.CommunityNodeKind {
		props["level"] = node.Level
		props["members"] = node.Members
	}
	return props
}

func edgeProps(edge *types.Edge) map[string]any {
	props := map[string]any{
		"uuid":       edge.UUID,
		"kind":       string(edge.Kind),
		"group_id":   edge.GroupID,
		"created_at": edge.CreatedAt,
		"updated_at": edge.UpdatedAt,
	}
	if edge.Name != "" {
		props["name"] = edge.Name
	}
	if edge.Fact != "" {
		props["fact"] = edge.Fact
	}
	if len(edge.FactEmbedding) > 0 {
		props["fact_embedding"] = float32sToAny(edge.FactEmbedding)
	}
	if len(edge.Episodes) > 0 {
		props["episodes"] = edge.Episodes
	}
	if len(edge.Attributes) > 0 {
		if raw, err := json.Marshal(edge.Attributes); err == nil {
			props["attributes"] = string(raw)
		}
	}
	if edge.ValidAt != nil {
		props["valid_at"] = *edge.ValidAt
	}
	if edge.InvalidAt != nil {
		props["invalid_at"] = *edge.InvalidAt
	}
	return props
}

func float32sToAny(v []float32) []any {
	out := make([]any, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func (n *Neo4jDriver) GetNode(ctx context.Context, uuid, groupID string) (*types.Node, error) {
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (n {uuid: $uuid, group_id: $group_id})
			RETURN n
		`, map[string]any{"uuid": uuid, "group_id": groupID})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("get node: %w", err)
	}
	records := result.([]*db.Record)
	if len(records) == 0 {
		return nil, ErrNodeNotFound
	}
	return nodeFromRecord(records[0], "n")
}

func (n *Neo4jDriver) GetNodes(ctx context.Context, uuids []string, groupID string) ([]*types.Node, error) {
	if len(uuids) == 0 {
		return nil, nil
	}
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (n {group_id: $group_id})
			WHERE n.uuid IN $uuids
			RETURN n
		`, map[string]any{"uuids": uuids, "group_id": groupID})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("get nodes: %w", err)
	}
	return nodesFromRecords(result.([]*db.Record), "n")
}

func (n *Neo4jDriver) UpsertNode(ctx context.Context, node *types.Node) error {
	if err := node.Validate(); err != nil {
		return fmt.Errorf("upsert node: %w", err)
	}
	if node.CreatedAt.IsZero() {
		node.CreatedAt = time.Now().UTC()
	}
	node.UpdatedAt = time.Now().UTC()

	session := n.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return n.upsertNodeTx(ctx, tx, node)
	})
	if err != nil {
		return fmt.Errorf("upsert node: %w", err)
	}
	return nil
}

func (n *Neo4jDriver) upsertNodeTx(ctx context.Context, tx neo4j.ManagedTransaction, node *types.Node) (any, error) {
	query := fmt.Sprintf(`
		MERGE (n:%s {uuid: $uuid, group_id: $group_id})
		SET n += $props
	`, nodeLabel(node.Kind))
	return tx.Run(ctx, query, map[string]any{
		"uuid":     node.UUID,
		"group_id": node.GroupID,
		"props":    nodeProps(node),
	})
}

func (n *Neo4jDriver) GetEdge(ctx context.Context, uuid, groupID string) (*types.Edge, error) {
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (s)-[r {uuid: $uuid, group_id: $group_id}]->(t)
			RETURN r, s.uuid AS source_id, t.uuid AS target_id
		`, map[string]any{"uuid": uuid, "group_id": groupID})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("get edge: %w", err)
	}
	records := result.([]*db.Record)
	if len(records) == 0 {
		return nil, ErrEdgeNotFound
	}
	return edgeFromRecord(records[0])
}

func (n *Neo4jDriver) UpsertEdge(ctx context.Context, edge *types.Edge) error {
	if err := edge.Validate(); err != nil {
		return fmt.Errorf("upsert edge: %w", err)
	}
	session := n.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return n.upsertEdgeTx(ctx, tx, edge)
	})
	if err != nil {
		return fmt.Errorf("upsert edge: %w", err)
	}
	return nil
}

func (n *Neo4jDriver) upsertEdgeTx(ctx context.Context, tx neo4j.ManagedTransaction, edge *types.Edge) (any, error) {
	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = time.Now().UTC()
	}
	edge.UpdatedAt = time.Now().UTC()
	query := fmt.Sprintf(`
		MATCH (s {uuid: $source_id, group_id: $group_id})
		MATCH (t {uuid: $target_id, group_id: $group_id})
		MERGE (s)-[r:%s {uuid: $uuid}]->(t)
		SET r += $props
	`, edgeType(edge.Kind))
	return tx.Run(ctx, query, map[string]any{
		"source_id": edge.SourceNodeID,
		"target_id": edge.TargetNodeID,
		"group_id":  edge.GroupID,
		"uuid":      edge.UUID,
		"props":     edgeProps(edge),
	})
}

func (n *Neo4jDriver) GetEdgesBetween(ctx context.Context, sourceUUID, targetUUID, groupID string) ([]*types.Edge, error) {
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (s {group_id: $group_id})-[r:RELATES_TO]-(t {group_id: $group_id})
			WHERE s.uuid = $source_id AND t.uuid = $target_id
			RETURN DISTINCT r, startNode(r).uuid AS source_id, endNode(r).uuid AS target_id
		`, map[string]any{
			"source_id": sourceUUID,
			"target_id": targetUUID,
			"group_id":  groupID,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("get edges between: %w", err)
	}
	return edgesFromRecords(result.([]*db.Record))
}

func (n *Neo4jDriver) GetEdgesForNode(ctx context.Context, nodeUUID, groupID string) ([]*types.Edge, error) {
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (s {uuid: $uuid, group_id: $group_id})-[r:RELATES_TO]-(t)
			RETURN DISTINCT r, startNode(r).uuid AS source_id, endNode(r).uuid AS target_id
		`, map[string]any{"uuid": nodeUUID, "group_id": groupID})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("get edges for node: %w", err)
	}
	return edgesFromRecords(result.([]*db.Record))
}

func (n *Neo4jDriver) GetEpisode(ctx context.Context, uuid, groupID string) (*types.Node, error) {
	node, err := n.GetNode(ctx, uuid, groupID)
	if err != nil {
		return nil, err
	}
	if node.Kind != types.EpisodicNodeKind {
		return nil, ErrNodeNotFound
	}
	return node, nil
}

func (n *Neo4jDriver) RetrieveEpisodes(ctx context.Context, before time.Time, groupID string, limit int) ([]*types.Node, error) {
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (e:Episodic {group_id: $group_id})
			WHERE e.reference <= $before
			RETURN e
			ORDER BY e.reference DESC
			LIMIT $limit
		`, map[string]any{"group_id": groupID, "before": before, "limit": limit})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve episodes: %w", err)
	}
	return nodesFromRecords(result.([]*db.Record), "e")
}

func (n *Neo4jDriver) SearchNodesByVector(ctx context.Context, vector []float32, groupID string, limit int, minScore float64) ([]ScoredNode, error) {
	if len(vector) == 0 {
		return nil, nil
	}
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (n:Entity {group_id: $group_id})
			WHERE n.name_embedding IS NOT NULL
			WITH n, vector.similarity.cosine(n.name_embedding, $vector) AS score
			WHERE score >= $min_score
			RETURN n, score
			ORDER BY score DESC
			LIMIT $limit
		`, map[string]any{
			"group_id":  groupID,
			"vector":    float32sToAny(vector),
			"min_score": minScore,
			"limit":     limit,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("search nodes by vector: %w", err)
	}
	return scoredNodesFromRecords(result.([]*db.Record), "n")
}

func (n *Neo4jDriver) SearchEdgesByVector(ctx context.Context, vector []float32, groupID string, limit int, minScore float64) ([]ScoredEdge, error) {
	if len(vector) == 0 {
		return nil, nil
	}
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (s)-[r:RELATES_TO {group_id: $group_id}]->(t)
			WHERE r.fact_embedding IS NOT NULL
			WITH r, s, t, vector.similarity.cosine(r.fact_embedding, $vector) AS score
			WHERE score >= $min_score
			RETURN r, s.uuid AS source_id, t.uuid AS target_id, score
			ORDER BY score DESC
			LIMIT $limit
		`, map[string]any{
			"group_id":  groupID,
			"vector":    float32sToAny(vector),
			"min_score": minScore,
			"limit":     limit,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("search edges by vector: %w", err)
	}
	return scoredEdgesFromRecords(result.([]*db.Record))
}

func (n *Neo4jDriver) SearchNodesFulltext(ctx context.Context, query, groupID string, limit int) ([]ScoredNode, error) {
	sanitized := utils.SanitizeFulltextQuery(query)
	if sanitized == "" {
		return nil, nil
	}
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			CALL db.index.fulltext.queryNodes('entity_name_and_summary', $query)
			YIELD node AS n, score
			WHERE n.group_id = $group_id
			RETURN n, score
			LIMIT $limit
		`, map[string]any{"query": sanitized, "group_id": groupID, "limit": limit})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("search nodes fulltext: %w", err)
	}
	return scoredNodesFromRecords(result.([]*db.Record), "n")
}

func (n *Neo4jDriver) SearchEdgesFulltext(ctx context.Context, query, groupID string, limit int) ([]ScoredEdge, error) {
	sanitized := utils.SanitizeFulltextQuery(query)
	if sanitized == "" {
		return nil, nil
	}
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			CALL db.index.fulltext.queryRelationships('edge_name_and_fact', $query)
			YIELD relationship AS r, score
			WHERE r.group_id = $group_id
			RETURN r, startNode(r).uuid AS source_id, endNode(r).uuid AS target_id, score
			LIMIT $limit
		`, map[string]any{"query": sanitized, "group_id": groupID, "limit": limit})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("search edges fulltext: %w", err)
	}
	return scoredEdgesFromRecords(result.([]*db.Record))
}

func (n *Neo4jDriver) SearchEpisodesFulltext(ctx context.Context, query, groupID string, limit int) ([]ScoredNode, error) {
	sanitized := utils.SanitizeFulltextQuery(query)
	if sanitized == "" {
		return nil, nil
	}
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			CALL db.index.fulltext.queryNodes('episode_content', $query)
			YIELD node AS e, score
			WHERE e.group_id = $group_id
			RETURN e, score
			LIMIT $limit
		`, map[string]any{"query": sanitized, "group_id": groupID, "limit": limit})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("search episodes fulltext: %w", err)
	}
	return scoredNodesFromRecords(result.([]*db.Record), "e")
}

func (n *Neo4jDriver) SearchCommunitiesByVector(ctx context.Context, vector []float32, groupID string, limit int, minScore float64) ([]ScoredNode, error) {
	if len(vector) == 0 {
		return nil, nil
	}
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (c:Community {group_id: $group_id})
			WHERE c.name_embedding IS NOT NULL
			WITH c, vector.similarity.cosine(c.name_embedding, $vector) AS score
			WHERE score >= $min_score
			RETURN c, score
			ORDER BY score DESC
			LIMIT $limit
		`, map[string]any{
			"group_id":  groupID,
			"vector":    float32sToAny(vector),
			"min_score": minScore,
			"limit":     limit,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("search communities by vector: %w", err)
	}
	return scoredNodesFromRecords(result.([]*db.Record), "c")
}

func (n *Neo4jDriver) Neighborhood(ctx context.Context, originUUIDs []string, groupID string, maxDepth int) (map[string]int, error) {
	if len(originUUIDs) == 0 {
		return map[string]int{}, nil
	}
	if maxDepth <= 0 {
		maxDepth = types.MaxSearchDepth
	}
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, fmt.Sprintf(`
			MATCH (origin {group_id: $group_id})
			WHERE origin.uuid IN $origins
			MATCH path = (origin)-[*0..%d]-(n {group_id: $group_id})
			RETURN n.uuid AS uuid, min(length(path)) AS distance
		`, maxDepth), map[string]any{"origins": originUUIDs, "group_id": groupID})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("neighborhood: %w", err)
	}

	distances := make(map[string]int)
	for _, record := range result.([]*db.Record) {
		uuidVal, _ := record.Get("uuid")
		distVal, _ := record.Get("distance")
		uuid, ok := uuidVal.(string)
		if !ok {
			continue
		}
		if dist, ok := distVal.(int64); ok {
			distances[uuid] = int(dist)
		}
	}
	return distances, nil
}

func (n *Neo4jDriver) GetCommunities(ctx context.Context, groupID string, level int) ([]*types.Node, error) {
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (c:Community {group_id: $group_id})
			WHERE $level < 0 OR c.level = $level
			RETURN c
		`, map[string]any{"group_id": groupID, "level": level})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("get communities: %w", err)
	}
	return nodesFromRecords(result.([]*db.Record), "c")
}

func (n *Neo4jDriver) RemoveCommunities(ctx context.Context, groupID string) error {
	session := n.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
			MATCH (c:Community {group_id: $group_id})
			DETACH DELETE c
		`, map[string]any{"group_id": groupID})
	})
	if err != nil {
		return fmt.Errorf("remove communities: %w", err)
	}
	return nil
}

func (n *Neo4jDriver) EntityUUIDs(ctx context.Context, groupID string) ([]string, error) {
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (n:Entity {group_id: $group_id})
			RETURN n.uuid AS uuid
			ORDER BY uuid
		`, map[string]any{"group_id": groupID})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("entity uuids: %w", err)
	}
	var out []string
	for _, record := range result.([]*db.Record) {
		if v, ok := record.Get("uuid"); ok {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

// Commit applies the whole batch inside one write transaction, so the
// ordering contract holds and a failure rolls everything back.
func (n *Neo4jDriver) Commit(ctx context.Context, batch *WriteBatch) error {
	session := n.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if batch.Episode != nil {
			if _, err := n.upsertNodeTx(ctx, tx, batch.Episode); err != nil {
				return nil, fmt.Errorf("episode %s: %w", batch.Episode.UUID, err)
			}
		}
		for _, node := range batch.Nodes {
			if _, err := n.upsertNodeTx(ctx, tx, node); err != nil {
				return nil, fmt.Errorf("node %s: %w", node.UUID, err)
			}
		}
		for _, edge := range batch.Edges {
			if _, err := n.upsertEdgeTx(ctx, tx, edge); err != nil {
				return nil, fmt.Errorf("edge %s: %w", edge.UUID, err)
			}
		}
		for _, edge := range batch.EpisodicEdges {
			if _, err := n.upsertEdgeTx(ctx, tx, edge); err != nil {
				return nil, fmt.Errorf("episodic edge %s: %w", edge.UUID, err)
			}
		}
		for _, edge := range batch.Invalidations {
			_, err := tx.Run(ctx, `
				MATCH ()-[r {uuid: $uuid, group_id: $group_id}]->()
				SET r.invalid_at = $invalid_at, r.updated_at = $updated_at
			`, map[string]any{
				"uuid":       edge.UUID,
				"group_id":   edge.GroupID,
				"invalid_at": edge.InvalidAt,
				"updated_at": edge.UpdatedAt,
			})
			if err != nil {
				return nil, fmt.Errorf("invalidate edge %s: %w", edge.UUID, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (n *Neo4jDriver) CreateIndices(ctx context.Context) error {
	session := n.session(ctx)
	defer session.Close(ctx)

	statements := []string{
		"CREATE INDEX entity_uuid_group IF NOT EXISTS FOR (n:Entity) ON (n.uuid, n.group_id)",
		"CREATE INDEX episodic_uuid_group IF NOT EXISTS FOR (n:Episodic) ON (n.uuid, n.group_id)",
		"CREATE INDEX community_uuid_group IF NOT EXISTS FOR (n:Community) ON (n.uuid, n.group_id)",
		"CREATE INDEX episodic_reference IF NOT EXISTS FOR (n:Episodic) ON (n.reference)",
		"CREATE FULLTEXT INDEX entity_name_and_summary IF NOT EXISTS FOR (n:Entity) ON EACH [n.name, n.summary]",
		"CREATE FULLTEXT INDEX episode_content IF NOT EXISTS FOR (n:Episodic) ON EACH [n.name, n.content]",
		"CREATE FULLTEXT INDEX edge_name_and_fact IF NOT EXISTS FOR ()-[r:RELATES_TO]-() ON EACH [r.name, r.fact]",
	}
	for _, stmt := range statements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func (n *Neo4jDriver) Provider() GraphProvider { return GraphProviderNeo4j }

func (n *Neo4jDriver) Close() error {
	return n.client.Close(context.Background())
}
