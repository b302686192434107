// Package search runs hybrid retrieval across vector, fulltext and graph
// methods, fusing and reranking into a single result set.
package search

import (
	"sort"

	"github.com/tempograph/tempograph/pkg/types"
	"github.com/tempograph/tempograph/pkg/utils"
)

// rrfScores fuses ranked UUID lists with reciprocal rank fusion: each list
// contributes 1/(rank + k) for every item it ranked. Items surfacing in
// several lists accumulate score, so agreement between methods wins.
func rrfScores(rankings [][]string, k int) map[string]float64 {
	if k <= 0 {
		k = types.DefaultRankConstant
	}
	scores := make(map[string]float64)
	for _, ranking := range rankings {
		for rank, uuid := range ranking {
			scores[uuid] += 1.0 / float64(rank+1+k)
		}
	}
	return scores
}

// sortByScore returns UUIDs by descending score, ties broken by UUID for
// deterministic output.
func sortByScore(scores map[string]float64) []string {
	uuids := make([]string, 0, len(scores))
	for uuid := range scores {
		uuids = append(uuids, uuid)
	}
	sort.Slice(uuids, func(i, j int) bool {
		if scores[uuids[i]] != scores[uuids[j]] {
			return scores[uuids[i]] > scores[uuids[j]]
		}
		return uuids[i] < uuids[j]
	})
	return uuids
}

// mmrOrder reranks candidates with maximal marginal relevance: each pick
// maximizes lambda*relevance - (1-lambda)*similarity to anything already
// picked. Items without an embedding keep relevance only.
func mmrOrder(scores map[string]float64, embeddings map[string][]float32, lambda float64, limit int) []string {
	if lambda <= 0 || lambda > 1 {
		lambda = types.DefaultMMRLambda
	}
	remaining := sortByScore(scores)
	if limit <= 0 || limit > len(remaining) {
		limit = len(remaining)
	}

	selected := make([]string, 0, limit)
	for len(selected) < limit && len(remaining) > 0 {
		bestIdx, bestScore := 0, -1e18
		for i, uuid := range remaining {
			penalty := 0.0
			if vec, ok := embeddings[uuid]; ok {
				for _, picked := range selected {
					if pv, ok := embeddings[picked]; ok {
						if sim := utils.CosineSimilarity(vec, pv); sim > penalty {
							penalty = sim
						}
					}
				}
			}
			score := lambda*scores[uuid] - (1-lambda)*penalty
			if score > bestScore {
				bestIdx, bestScore = i, score
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

// distanceBoost scales a score by graph proximity to the center node.
// Unreachable items keep their score with the maximum-depth penalty.
func distanceBoost(score float64, distance int, known bool) float64 {
	if !known {
		distance = types.MaxSearchDepth + 1
	}
	return score / float64(1+distance)
}

// mentionBoost scales a score by how many episodes support the item.
func mentionBoost(score float64, mentions int) float64 {
	return score * (1 + float64(mentions)/4)
}
