package combination

import "math"

// arithmeticMean is the weighted mean of a document's sub-query scores.
// A sub-query that did not return the document contributes a score of 0. Negative and NaN
// scores are treated as absent: both the score and its weight are left out of the mean.
func arithmeticMean(scores, weights []float64) float64 {
	var sum, sumWeights float64
	for i, s := range scores {
		if s < 0 || math.IsNaN(s) {
			continue
		}
		sum += s * weights[i]
		sumWeights += weights[i]
	}
	if sumWeights == 0 {
		return 0
	}
	return sum / sumWeights
}
