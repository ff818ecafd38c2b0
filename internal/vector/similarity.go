package vector

import "github.com/viant/vec/search"

// magnitude returns the L2 norm of v.
func magnitude(v []float32) float32 {
	if len(v) == 0 {
		return 0
	}
	return search.Float32s(v).Magnitude()
}

// cosineDistance returns 1 - cos(a, b). The precomputed magnitudes only
// short-circuit zero vectors, which are at distance 1 from everything.
// CosineDistance is the variant viant/vec exports on every architecture.
func cosineDistance(a []float32, am float32, b []float32, bm float32) float32 {
	if am == 0 || bm == 0 {
		return 1
	}
	return search.Float32s(a).CosineDistance(b)
}

// CosineSimilarity returns the cosine similarity of a and b, 0 for mismatched lengths.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	return 1 - float64(cosineDistance(a, magnitude(a), b, magnitude(b)))
}
