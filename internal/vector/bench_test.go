package vector

import (
	"context"
	"testing"
)

func BenchmarkHNSWIndex_Search(b *testing.B) {
	ctx := context.Background()
	const n, dim = 5000, 128
	h, _ := NewHNSWIndex(Options{Dimensions: dim, Model: "bench"})
	if err := h.Upsert(ctx, seqIDs(n, 1), randomVectors(n, dim, 1)); err != nil {
		b.Fatal(err)
	}
	queries := randomVectors(100, dim, 2)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := h.Search(ctx, queries[i%len(queries)], 20); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMemoryIndex_Search(b *testing.B) {
	ctx := context.Background()
	const n, dim = 5000, 128
	m, _ := NewMemoryIndex(Options{Dimensions: dim, Model: "bench"})
	if err := m.Upsert(ctx, seqIDs(n, 1), randomVectors(n, dim, 1)); err != nil {
		b.Fatal(err)
	}
	queries := randomVectors(100, dim, 2)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.Search(ctx, queries[i%len(queries)], 20); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkHNSWIndex_Upsert(b *testing.B) {
	ctx := context.Background()
	const dim = 128
	vecs := randomVectors(b.N, dim, 3)
	h, _ := NewHNSWIndex(Options{Dimensions: dim, Model: "bench"})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := h.Upsert(ctx, []int64{int64(i)}, vecs[i:i+1]); err != nil {
			b.Fatal(err)
		}
	}
}
