package similarity

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// CosineSimilarity returns the cosine of the angle between a and b, in [-1, 1].
// Vectors of different length, empty vectors and zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	af := toFloat64(a)
	bf := toFloat64(b)

	magA := math.Sqrt(floats.Dot(af, af))
	magB := math.Sqrt(floats.Dot(bf, bf))
	if magA == 0 || magB == 0 {
		return 0
	}

	return floats.Dot(af, bf) / (magA * magB)
}

// CosineDistance is 1 - CosineSimilarity, in [0, 2]
func CosineDistance(a, b []float32) float64 {
	return 1 - CosineSimilarity(a, b)
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		out[i] = float64(v[i])
	}
	return out
}
