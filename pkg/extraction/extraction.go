// Package extraction turns raw episode content into entity and relation
// candidates via a language model.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	jsonrepair "github.com/kaptinlin/jsonrepair"
	"gopkg.in/yaml.v3"

	"github.com/tempograph/tempograph/pkg/nlp"
	"github.com/tempograph/tempograph/pkg/types"
)

// Extractor is the contract ingestion depends on.
type Extractor interface {
	// ExtractEntities proposes entities mentioned in the episode.
	// Previous episodes give the model conversational context.
	ExtractEntities(ctx context.Context, episode *types.RawEpisode, previous []*types.Node, registry *types.SchemaRegistry) ([]types.CandidateEntity, error)
	// ExtractRelations proposes relationships among the given entities.
	ExtractRelations(ctx context.Context, episode *types.RawEpisode, entities []types.CandidateEntity) ([]types.CandidateRelation, error)
	// Summarize produces an updated entity summary from accumulated facts.
	Summarize(ctx context.Context, name, existingSummary string, facts []string) (string, error)
}

// LLMExtractor implements Extractor on an nlp.Client.
type LLMExtractor struct {
	client nlp.Client
	logger *slog.Logger
}

// NewLLMExtractor builds an extractor. A nil logger uses slog.Default.
func NewLLMExtractor(client nlp.Client, logger *slog.Logger) *LLMExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMExtractor{client: client, logger: logger}
}

type extractedEntities struct {
	Entities []types.CandidateEntity `json:"entities" yaml:"entities"`
}

type extractedRelations struct {
	Relations []types.CandidateRelation `json:"relations" yaml:"relations"`
}

func (e *LLMExtractor) ExtractEntities(ctx context.Context, episode *types.RawEpisode, previous []*types.Node, registry *types.SchemaRegistry) ([]types.CandidateEntity, error) {
	var sb strings.Builder
	sb.WriteString("Extract every significant entity mentioned in the EPISODE below.\n")
	if defs := registry.Types(); len(defs) > 0 {
		sb.WriteString("Classify each entity into one of these types when it fits, otherwise leave entity_type empty:\n")
		for _, def := range defs {
			fmt.Fprintf(&sb, "- %s: %s (attributes: %s)\n", def.Name, def.Description, strings.Join(def.Attributes, ", "))
		}
	}
	if len(previous) > 0 {
		sb.WriteString("\nPREVIOUS EPISODES (context only, do not extract from these):\n")
		for _, prev := range previous {
			fmt.Fprintf(&sb, "- %s\n", prev.Content)
		}
	}
	fmt.Fprintf(&sb, "\nEPISODE (%s):\n%s\n", episode.Source, episode.Content)
	sb.WriteString(`
Respond with JSON: {"entities": [{"name": ..., "entity_type": ..., "summary": ..., "attributes": {...}}]}`)

	messages := []types.Message{
		types.NewSystemMessage("You are an expert at extracting entities from text into a knowledge graph."),
		types.NewUserMessage(sb.String()),
	}
	response, err := e.client.Chat(ctx, messages, &types.GenerateOptions{JSONMode: true})
	if err != nil {
		return nil, fmt.Errorf("extract entities: %w", err)
	}

	var parsed extractedEntities
	if err := decodeStructured(response, &parsed); err != nil {
		return nil, fmt.Errorf("extract entities: %w: %w", types.ErrExtractionIncomplete, err)
	}

	entities := make([]types.CandidateEntity, 0, len(parsed.Entities))
	for _, cand := range parsed.Entities {
		cand.Name = strings.TrimSpace(cand.Name)
		if cand.Name == "" {
			e.logger.Warn("dropping unnamed entity candidate", "episode", episode.Name)
			continue
		}
		cand.Attributes = registry.Apply(cand.EntityType, cand.Attributes)
		entities = append(entities, cand)
	}
	return entities, nil
}

func (e *LLMExtractor) ExtractRelations(ctx context.Context, episode *types.RawEpisode, entities []types.CandidateEntity) ([]types.CandidateRelation, error) {
	if len(entities) < 2 {
		return nil, nil
	}
	names := make([]string, len(entities))
	for i, ent := range entities {
		names[i] = ent.Name
	}

	var sb strings.Builder
	sb.WriteString("Extract factual relationships between the listed ENTITIES that the EPISODE states or implies.\n")
	fmt.Fprintf(&sb, "ENTITIES: %s\n", strings.Join(names, "; "))
	fmt.Fprintf(&sb, "EPISODE (reference time %s):\n%s\n", episode.Reference.Format("2006-01-02"), episode.Content)
	sb.WriteString(`
For each relationship give:
- source, target: entity names from the list
- predicate: SCREAMING_SNAKE_CASE relation name
- fact: one sentence stating the fact
- valid_at: when the fact became true, if the episode says (ISO 8601 or empty)
- invalid_at: when the fact stopped being true, if the episode says (ISO 8601 or empty)

Respond with JSON: {"relations": [{"source": ..., "target": ..., "predicate": ..., "fact": ..., "valid_at": ..., "invalid_at": ...}]}`)

	messages := []types.Message{
		types.NewSystemMessage("You are an expert at extracting relationships from text into a knowledge graph."),
		types.NewUserMessage(sb.String()),
	}
	response, err := e.client.Chat(ctx, messages, &types.GenerateOptions{JSONMode: true})
	if err != nil {
		return nil, fmt.Errorf("extract relations: %w", err)
	}

	var parsed extractedRelations
	if err := decodeStructured(response, &parsed); err != nil {
		return nil, fmt.Errorf("extract relations: %w: %w", types.ErrExtractionIncomplete, err)
	}

	known := make(map[string]bool, len(names))
	for _, name := range names {
		known[strings.ToLower(name)] = true
	}
	relations := make([]types.CandidateRelation, 0, len(parsed.Relations))
	for _, rel := range parsed.Relations {
		rel.Source = strings.TrimSpace(rel.Source)
		rel.Target = strings.TrimSpace(rel.Target)
		if rel.Source == "" || rel.Target == "" || rel.Predicate == "" {
			e.logger.Warn("dropping incomplete relation candidate", "episode", episode.Name)
			continue
		}
		if !known[strings.ToLower(rel.Source)] || !known[strings.ToLower(rel.Target)] {
			e.logger.Warn("dropping relation naming unknown entity",
				"source", rel.Source, "target", rel.Target)
			continue
		}
		if rel.Fact == "" {
			rel.Fact = fmt.Sprintf("%s %s %s", rel.Source, rel.Predicate, rel.Target)
		}
		relations = append(relations, rel)
	}
	return relations, nil
}

func (e *LLMExtractor) Summarize(ctx context.Context, name, existingSummary string, facts []string) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a concise summary (3 sentences max) of the entity %q.\n", name)
	if existingSummary != "" {
		fmt.Fprintf(&sb, "Current summary: %s\n", existingSummary)
	}
	sb.WriteString("Known facts:\n")
	for _, fact := range facts {
		fmt.Fprintf(&sb, "- %s\n", fact)
	}

	messages := []types.Message{
		types.NewSystemMessage("You summarize entities for a knowledge graph. Respond with the summary text only."),
		types.NewUserMessage(sb.String()),
	}
	summary, err := e.client.Chat(ctx, messages, nil)
	if err != nil {
		return "", fmt.Errorf("summarize %s: %w", name, err)
	}
	return strings.TrimSpace(summary), nil
}

// decodeStructured parses a model response as JSON, repairing malformed
// output first and falling back to YAML as a last resort.
func decodeStructured(response string, out any) error {
	cleaned := stripFences(response)
	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}
	if repaired, err := jsonrepair.JSONRepair(cleaned); err == nil {
		if err := json.Unmarshal([]byte(repaired), out); err == nil {
			return nil
		}
	}
	if err := yaml.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}
	return fmt.Errorf("response is not valid JSON or YAML")
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```yaml")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
