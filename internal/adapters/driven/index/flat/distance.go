package flat

import (
	"math"

	"github.com/custodia-labs/conversa-cli/internal/core/domain"
)

// distance computes the configured metric between two equal-length
// vectors. Accumulation runs in float64 to limit rounding drift.
func distance(metric domain.DistanceMetric, a, b []float32) float32 {
	if metric == domain.MetricCosine {
		return cosineDistance(a, b)
	}
	return squaredL2(a, b)
}

// squaredL2 returns the squared Euclidean distance. The square root
// is skipped: it never changes the ranking.
func squaredL2(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(sum)
}

// cosineDistance returns 1 minus the cosine similarity, so 0 means
// identical direction and 2 means opposite. A zero vector has no
// direction and is treated as maximally distant from everything.
func cosineDistance(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 2
	}

	return float32(1 - dot/(math.Sqrt(normA)*math.Sqrt(normB)))
}
