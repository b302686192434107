// Package dedupe collapses duplicate entity candidates across a bulk
// ingestion batch before they hit the resolver.
package dedupe

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/tempograph/tempograph/pkg/driver"
	"github.com/tempograph/tempograph/pkg/resolver"
	"github.com/tempograph/tempograph/pkg/types"
	"github.com/tempograph/tempograph/pkg/utils"
)

// UnionFind tracks duplicate sets with path compression.
type UnionFind struct {
	parent map[string]string
}

// NewUnionFind initializes each element as its own set.
func NewUnionFind(elements []string) *UnionFind {
	parent := make(map[string]string, len(elements))
	for _, element := range elements {
		parent[element] = element
	}
	return &UnionFind{parent: parent}
}

// Find returns the root of x's set, compressing the path on the way.
func (uf *UnionFind) Find(x string) string {
	if root, ok := uf.parent[x]; !ok {
		uf.parent[x] = x
		return x
	} else if root != x {
		uf.parent[x] = uf.Find(root)
	}
	return uf.parent[x]
}

// Union merges the sets containing a and b, attaching the
// lexicographically larger root under the smaller so the canonical
// representative is deterministic regardless of union order.
func (uf *UnionFind) Union(a, b string) {
	rootA, rootB := uf.Find(a), uf.Find(b)
	if rootA == rootB {
		return
	}
	if rootA < rootB {
		uf.parent[rootB] = rootA
	} else {
		uf.parent[rootA] = rootB
	}
}

// BatchCandidate is one extracted entity with its position in the batch.
type BatchCandidate struct {
	// Key identifies the candidate within the batch (episode index plus
	// candidate index).
	Key    string
	Entity types.CandidateEntity
}

// Result maps every candidate key to its canonical key and lists the
// canonical candidates in deterministic order. A set that collapsed into
// an existing graph node carries that node in Nodes, keyed like
// CanonicalKey values.
type Result struct {
	CanonicalKey map[string]string
	Canonical    []BatchCandidate
	Nodes        map[string]*types.Node
}

// Deduplicator finds duplicate candidates across a batch using the same
// comparator the per-episode resolver uses, then collapses them through
// union-find so verdicts compose transitively. Existing graph nodes join
// the union-find from one batched name query, so a candidate that is
// already in the graph canonicalizes straight onto its node.
type Deduplicator struct {
	driver         driver.GraphDriver
	comparator     resolver.Comparator
	logger         *slog.Logger
	maxConcurrency int
}

// NewDeduplicator builds a batch deduplicator.
func NewDeduplicator(d driver.GraphDriver, comparator resolver.Comparator, logger *slog.Logger) *Deduplicator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deduplicator{
		driver:         d,
		comparator:     comparator,
		logger:         logger,
		maxConcurrency: utils.SemaphoreLimit(),
	}
}

// CandidateKey builds the batch-local key for episode and candidate indices.
func CandidateKey(episodeIdx, candidateIdx int) string {
	return fmt.Sprintf("%04d:%04d", episodeIdx, candidateIdx)
}

func graphKey(uuid string) string { return "graph:" + uuid }

// element is one union-find member: a batch candidate or an existing node.
type element struct {
	key  string
	ref  resolver.EntityRef
	node *types.Node
}

type pair struct {
	a, b int
}

// Dedupe compares candidates pairwise and unions the pairs the comparator
// marks as the same entity. Comparisons run concurrently under the batch
// semaphore; union-find mutation happens afterwards on a single goroutine.
// The canonical entry for each set is its existing graph node when one is
// in the set, otherwise the candidate with the smallest key, which is the
// earliest mention in the batch.
func (d *Deduplicator) Dedupe(ctx context.Context, groupID string, candidates []BatchCandidate) (*Result, error) {
	elements := make([]element, 0, len(candidates))
	byKey := make(map[string]BatchCandidate, len(candidates))
	for _, cand := range candidates {
		elements = append(elements, element{key: cand.Key, ref: refOf(cand.Entity)})
		byKey[cand.Key] = cand
	}
	elements = append(elements, d.existingElements(ctx, groupID, candidates)...)

	keys := make([]string, len(elements))
	for i, el := range elements {
		keys[i] = el.key
	}
	uf := NewUnionFind(keys)

	// Cheap blocking: only pairs sharing at least one name token reach the
	// comparator, which keeps the pair count manageable on large batches.
	// Node-node pairs never compare; merging existing nodes with each
	// other is not this component's job.
	var pairs []pair
	for i := 0; i < len(elements); i++ {
		for j := i + 1; j < len(elements); j++ {
			if elements[i].node != nil && elements[j].node != nil {
				continue
			}
			if !sameBlock(elements[i].ref, elements[j].ref) {
				continue
			}
			pairs = append(pairs, pair{a: i, b: j})
		}
	}

	fns := make([]func() (bool, error), len(pairs))
	for i, p := range pairs {
		a, b := elements[p.a].ref, elements[p.b].ref
		fns[i] = func() (bool, error) {
			return d.comparator.SameEntity(ctx, a, b)
		}
	}
	verdicts, errs := utils.SemaphoreGatherWithResults(ctx, d.maxConcurrency, fns...)
	if err := utils.FirstError(errs); err != nil {
		return nil, fmt.Errorf("dedupe batch: %w", err)
	}
	for i, p := range pairs {
		if verdicts[i] {
			uf.Union(elements[p.a].key, elements[p.b].key)
		}
	}

	return d.collapse(elements, byKey, uf), nil
}

// existingElements runs the one batched lookup for graph nodes that might
// already hold a candidate. A failed lookup degrades to batch-only dedupe.
func (d *Deduplicator) existingElements(ctx context.Context, groupID string, candidates []BatchCandidate) []element {
	if d.driver == nil || len(candidates) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(candidates))
	var names []string
	for _, cand := range candidates {
		name := strings.ToLower(cand.Entity.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, cand.Entity.Name)
	}
	hits, err := d.driver.SearchNodesFulltext(ctx, strings.Join(names, " "), groupID, len(names)*resolver.ShortlistLimit)
	if err != nil {
		d.logger.Warn("existing-node lookup degraded, batch-only dedupe", "err", err)
		return nil
	}
	out := make([]element, 0, len(hits))
	for _, hit := range hits {
		node := hit.Node
		out = append(out, element{
			key:  graphKey(node.UUID),
			ref:  resolver.EntityRef{Name: node.Name, EntityType: node.EntityType, Summary: node.Summary},
			node: node,
		})
	}
	return out
}

// collapse reads the settled union-find into canonical assignments.
func (d *Deduplicator) collapse(elements []element, byKey map[string]BatchCandidate, uf *UnionFind) *Result {
	nodeByKey := make(map[string]*types.Node)
	var candidateKeys []string
	for _, el := range elements {
		if el.node != nil {
			nodeByKey[el.key] = el.node
		} else {
			candidateKeys = append(candidateKeys, el.key)
		}
	}

	// Per set: an existing node wins (smallest UUID when several matched),
	// otherwise the earliest candidate mention.
	canonical := make(map[string]string)
	for _, el := range elements {
		root := uf.Find(el.key)
		cur, ok := canonical[root]
		switch {
		case !ok:
			canonical[root] = el.key
		case el.node != nil && nodeByKey[cur] == nil:
			canonical[root] = el.key
		case (el.node == nil) == (nodeByKey[cur] == nil) && el.key < cur:
			canonical[root] = el.key
		}
	}

	result := &Result{
		CanonicalKey: make(map[string]string, len(candidateKeys)),
		Nodes:        make(map[string]*types.Node),
	}
	for _, key := range candidateKeys {
		ck := canonical[uf.Find(key)]
		result.CanonicalKey[key] = ck
		if node := nodeByKey[ck]; node != nil {
			result.Nodes[ck] = node
		}
	}

	seen := make(map[string]bool)
	for _, key := range candidateKeys {
		ck := result.CanonicalKey[key]
		if seen[ck] {
			continue
		}
		seen[ck] = true
		merged := d.mergeSet(ck, candidateKeys, byKey, result)
		result.Canonical = append(result.Canonical, merged)
	}
	sort.Slice(result.Canonical, func(i, j int) bool {
		return result.Canonical[i].Key < result.Canonical[j].Key
	})

	d.logger.Debug("batch deduplicated",
		"candidates", len(candidateKeys), "canonical", len(result.Canonical))
	return result
}

// mergeSet folds the set's candidates into one entry under the canonical
// key, first mention winning conflicts. A node-anchored set takes the
// node's name so downstream resolution stays on the graph spelling.
func (d *Deduplicator) mergeSet(ck string, candidateKeys []string, byKey map[string]BatchCandidate, result *Result) BatchCandidate {
	var members []string
	for _, key := range candidateKeys {
		if result.CanonicalKey[key] == ck {
			members = append(members, key)
		}
	}
	sort.Strings(members)

	merged := byKey[members[0]]
	merged.Key = ck
	for _, key := range members[1:] {
		merged.Entity = mergeCandidates(merged.Entity, byKey[key].Entity)
	}
	if node := result.Nodes[ck]; node != nil {
		merged.Entity.Name = node.Name
		if merged.Entity.EntityType == "" {
			merged.Entity.EntityType = node.EntityType
		}
	}
	return merged
}

func refOf(e types.CandidateEntity) resolver.EntityRef {
	return resolver.EntityRef{Name: e.Name, EntityType: e.EntityType, Summary: e.Summary}
}

func sameBlock(a, b resolver.EntityRef) bool {
	if strings.EqualFold(a.Name, b.Name) {
		return true
	}
	return utils.WordOverlap(a.Name, b.Name) > 0
}

func mergeCandidates(canonical, dup types.CandidateEntity) types.CandidateEntity {
	if canonical.Attributes == nil && len(dup.Attributes) > 0 {
		canonical.Attributes = make(map[string]any, len(dup.Attributes))
	}
	for k, v := range dup.Attributes {
		if _, ok := canonical.Attributes[k]; !ok {
			canonical.Attributes[k] = v
		}
	}
	if canonical.Summary == "" {
		canonical.Summary = dup.Summary
	}
	if canonical.EntityType == "" {
		canonical.EntityType = dup.EntityType
	}
	return canonical
}
