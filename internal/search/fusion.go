package search

// MinMaxNormalize rescales scores to [0, 1] within the set. When all scores
// are equal (including a singleton set) every entry maps to 1.0 so that a
// sole hit still contributes fully; an empty set normalizes to an empty map.
func MinMaxNormalize(scores map[int64]float64) map[int64]float64 {
	if len(scores) == 0 {
		return map[int64]float64{}
	}
	min, max := 0.0, 0.0
	first := true
	for _, s := range scores {
		if first {
			min, max = s, s
			first = false
			continue
		}
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	out := make(map[int64]float64, len(scores))
	if max == min {
		for id := range scores {
			out[id] = 1.0
		}
		return out
	}
	for id, s := range scores {
		out[id] = (s - min) / (max - min)
	}
	return out
}

// Fuse combines normalized vector and keyword scores into a weighted sum:
// alpha*vector + (1-alpha)*keyword. A chunk missing from one signal
// contributes 0 for that signal. The union of both candidate sets is scored.
func Fuse(vectorScores, keywordScores map[int64]float64, alpha float64) map[int64]float64 {
	out := make(map[int64]float64, len(vectorScores)+len(keywordScores))
	for id, v := range vectorScores {
		out[id] = alpha * v
	}
	for id, k := range keywordScores {
		out[id] += (1 - alpha) * k
	}
	return out
}
