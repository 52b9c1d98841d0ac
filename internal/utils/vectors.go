package utils

import "math"

// Cosine returns the cosine similarity of two vectors. Mismatched or empty
// vectors score 0 so a bad embedding never outranks a real one.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Centroid returns the component-wise mean of a set of vectors. Vectors whose
// dimensionality differs from the first are skipped.
func Centroid(vectors [][]float64) []float64 {
	var dims int
	for _, v := range vectors {
		if len(v) > 0 {
			dims = len(v)
			break
		}
	}
	if dims == 0 {
		return nil
	}

	sum := make([]float64, dims)
	count := 0
	for _, v := range vectors {
		if len(v) != dims {
			continue
		}
		for i, x := range v {
			sum[i] += x
		}
		count++
	}
	if count == 0 {
		return nil
	}
	for i := range sum {
		sum[i] /= float64(count)
	}
	return sum
}
