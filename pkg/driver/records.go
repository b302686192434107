package driver

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/tempograph/tempograph/pkg/types"
)

func propString(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

func propTime(props map[string]any, key string) time.Time {
	switch v := props[key].(type) {
	case time.Time:
		return v
	case dbtype.LocalDateTime:
		return v.Time()
	}
	return time.Time{}
}

func propTimePtr(props map[string]any, key string) *time.Time {
	t := propTime(props, key)
	if t.IsZero() {
		return nil
	}
	return &t
}

func propFloat32s(props map[string]any, key string) []float32 {
	raw, ok := props[key].([]any)
	if !ok {
		return nil
	}
	out := make([]float32, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(float64); ok {
			out = append(out, float32(f))
		}
	}
	return out
}

func propStrings(props map[string]any, key string) []string {
	raw, ok := props[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func propAttributes(props map[string]any, key string) map[string]any {
	raw := propString(props, key)
	if raw == "" {
		return nil
	}
	var attrs map[string]any
	if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
		return nil
	}
	return attrs
}

func nodeFromDBNode(dbNode dbtype.Node) *types.Node {
	props := dbNode.Props
	node := &types.Node{
		UUID:           propString(props, "uuid"),
		Name:           propString(props, "name"),
		Kind:           types.NodeKind(propString(props, "kind")),
		GroupID:        propString(props, "group_id"),
		CreatedAt:      propTime(props, "created_at"),
		UpdatedAt:      propTime(props, "updated_at"),
		EntityType:     propString(props, "entity_type"),
		Summary:        propString(props, "summary"),
		Attributes:     propAttributes(props, "attributes"),
		NameEmbedding:  propFloat32s(props, "name_embedding"),
		Content:        propString(props, "content"),
		Source:         types.EpisodeSource(propString(props, "source")),
		Reference:      propTime(props, "reference"),
		MentionedEdges: propStrings(props, "mentioned_edges"),
		Members:        propStrings(props, "members"),
	}
	if lvl, ok := props["level"].(int64); ok {
		node.Level = int(lvl)
	}
	if node.Kind == "" {
		for _, label := range dbNode.Labels {
			switch label {
			case "Episodic":
				node.Kind = types.EpisodicNodeKind
			case "Community":
				node.Kind = types.CommunityNodeKind
			case "Entity":
				node.Kind = types.EntityNodeKind
			}
		}
	}
	return node
}

func edgeFromDBRelationship(rel dbtype.Relationship, sourceID, targetID string) *types.Edge {
	props := rel.Props
	edge := &types.Edge{
		UUID:          propString(props, "uuid"),
		Kind:          types.EdgeKind(propString(props, "kind")),
		GroupID:       propString(props, "group_id"),
		SourceNodeID:  sourceID,
		TargetNodeID:  targetID,
		CreatedAt:     propTime(props, "created_at"),
		UpdatedAt:     propTime(props, "updated_at"),
		Name:          propString(props, "name"),
		Fact:          propString(props, "fact"),
		FactEmbedding: propFloat32s(props, "fact_embedding"),
		Episodes:      propStrings(props, "episodes"),
		Attributes:    propAttributes(props, "attributes"),
		ValidAt:       propTimePtr(props, "valid_at"),
		InvalidAt:     propTimePtr(props, "invalid_at"),
	}
	if edge.Kind == "" {
		switch rel.Type {
		case "MENTIONS":
			edge.Kind = types.MentionsEdgeKind
		case "HAS_MEMBER":
			edge.Kind = types.MemberEdgeKind
		default:
			edge.Kind = types.RelatesEdgeKind
		}
	}
	return edge
}

func nodeFromRecord(record *db.Record, key string) (*types.Node, error) {
	value, found := record.Get(key)
	if !found {
		return nil, ErrNodeNotFound
	}
	dbNode, ok := value.(dbtype.Node)
	if !ok {
		return nil, fmt.Errorf("unexpected record type %T for node", value)
	}
	return nodeFromDBNode(dbNode), nil
}

func nodesFromRecords(records []*db.Record, key string) ([]*types.Node, error) {
	nodes := make([]*types.Node, 0, len(records))
	for _, record := range records {
		node, err := nodeFromRecord(record, key)
		if err != nil {
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func edgeFromRecord(record *db.Record) (*types.Edge, error) {
	value, found := record.Get("r")
	if !found {
		return nil, ErrEdgeNotFound
	}
	rel, ok := value.(dbtype.Relationship)
	if !ok {
		return nil, fmt.Errorf("unexpected record type %T for relationship", value)
	}
	sourceVal, _ := record.Get("source_id")
	targetVal, _ := record.Get("target_id")
	sourceID, _ := sourceVal.(string)
	targetID, _ := targetVal.(string)
	return edgeFromDBRelationship(rel, sourceID, targetID), nil
}

func edgesFromRecords(records []*db.Record) ([]*types.Edge, error) {
	edges := make([]*types.Edge, 0, len(records))
	for _, record := range records {
		edge, err := edgeFromRecord(record)
		if err != nil {
			continue
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

func recordScore(record *db.Record) float64 {
	value, found := record.Get("score")
	if !found {
		return 0
	}
	if f, ok := value.(float64); ok {
		return f
	}
	return 0
}

func scoredNodesFromRecords(records []*db.Record, key string) ([]ScoredNode, error) {
	hits := make([]ScoredNode, 0, len(records))
	for _, record := range records {
		node, err := nodeFromRecord(record, key)
		if err != nil {
			continue
		}
		hits = append(hits, ScoredNode{Node: node, Score: recordScore(record)})
	}
	return hits, nil
}

func scoredEdgesFromRecords(records []*db.Record) ([]ScoredEdge, error) {
	hits := make([]ScoredEdge, 0, len(records))
	for _, record := range records {
		edge, err := edgeFromRecord(record)
		if err != nil {
			continue
		}
		hits = append(hits, ScoredEdge{Edge: edge, Score: recordScore(record)})
	}
	return hits, nil
}
