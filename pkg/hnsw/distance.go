package hnsw

import "github.com/chewxy/math32"

// Metric is the distance function an index is created with; a query
// must use the same metric as the index (spec.md §4.1).
type Metric string

const (
	MetricL2         Metric = "l2"
	MetricCosine     Metric = "cosine"
	MetricInnerProduct Metric = "dot"
)

// distanceFunc returns smaller-is-closer distances for every metric,
// including cosine and inner product, so the search/prune code never
// needs to special-case "higher is better".
func distanceFunc(m Metric) func(a, b []float32) float32 {
	switch m {
	case MetricCosine:
		return cosineDistance
	case MetricInnerProduct:
		return negDotDistance
	default:
		return l2SquaredDistance
	}
}

func l2SquaredDistance(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func negDotDistance(a, b []float32) float32 {
	return -dot(a, b)
}

func norm(a []float32) float32 {
	return math32.Sqrt(dot(a, a))
}

func cosineDistance(a, b []float32) float32 {
	na, nb := norm(a), norm(b)
	if na == 0 || nb == 0 {
		return 1
	}
	cos := dot(a, b) / (na * nb)
	return 1 - cos
}

// normalizeInPlace L2-normalizes v, matching the pack's float32-throughout
// vector-search convention instead of round-tripping through float64.
func normalizeInPlace(v []float32) {
	n := norm(v)
	if n == 0 {
		return
	}
	for i := range v {
		v[i] /= n
	}
}
