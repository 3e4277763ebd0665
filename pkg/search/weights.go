package search

// SplitWeights divides the non-vector share of the score among the graph and
// fulltext signals. Alpha is the configured vector weight; when fulltext
// produced hits it takes 30% of the remainder and the graph keeps the rest,
// otherwise the graph takes everything. Alpha + beta + gamma always sums to 1.
func SplitWeights(alpha float64, hasFTSHits bool) (beta, gamma float64) {
	if hasFTSHits {
		gamma = (1 - alpha) * 0.3
	}
	beta = (1 - alpha) - gamma
	return beta, gamma
}
