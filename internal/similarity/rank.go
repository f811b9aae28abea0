package similarity

import "sort"

// Match is a candidate index and its similarity to the query
type Match struct {
	Index int
	Score float64
}

// Rank scores every candidate against query and returns those at or above min,
// best first. Ties keep candidate order. topK <= 0 means no limit.
func Rank(query []float32, candidates [][]float32, topK int, min float64) []Match {
	matches := make([]Match, 0, len(candidates))
	for i, c := range candidates {
		score := CosineSimilarity(query, c)
		if score >= min {
			matches = append(matches, Match{Index: i, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}
