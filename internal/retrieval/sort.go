package retrieval

import "sort"

// sortResults implements invariant I6 (spec §3): score descending, ties
// broken by rerankedScore descending then id ascending, mirroring the
// teacher fusion package's deterministic tie-break chain.
func sortResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		ar, br := rerankedOrZero(a), rerankedOrZero(b)
		if ar != br {
			return ar > br
		}
		return a.ID < b.ID
	})
}

func rerankedOrZero(r SearchResult) float64 {
	if r.RerankedScore == nil {
		return 0
	}
	return *r.RerankedScore
}
