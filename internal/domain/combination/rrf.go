package combination

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// reciprocalRank computes score(d) = sum of w_i/(k + rank_i(d)) over the sub-queries where d
// appears. ranks are 1-based; 0 means absent.
func reciprocalRank(ranks []int, weights []float64) float64 {
	var score float64
	for i, r := range ranks {
		if r == 0 {
			continue
		}
		score += weights[i] / float64(rrfK+r)
	}
	return score
}
