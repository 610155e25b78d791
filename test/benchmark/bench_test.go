package benchmark

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/internal/vectorstore"
)

func randomVectors(n, dim int) [][]float32 {
	vecs := make([][]float32, n)
	for i := range vecs {
		vecs[i] = make([]float32, dim)
		for j := range vecs[i] {
			vecs[i][j] = float32((i*31+j*17)%97) / 97
		}
	}
	return vecs
}

func benchmarkIndexSearch(b *testing.B, indexType string) {
	const dim = 384
	idx, err := vector.NewIndex(indexType, dim, vector.Options{Seed: 1})
	if err != nil {
		b.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()
	if err := idx.Add(ctx, randomVectors(2000, dim)); err != nil {
		b.Fatal(err)
	}
	query := randomVectors(1, dim)[0]
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Search(ctx, query, 5)
	}
}

func BenchmarkFlatIndexSearch(b *testing.B) { benchmarkIndexSearch(b, "flat") }

func BenchmarkHNSWIndexSearch(b *testing.B) { benchmarkIndexSearch(b, "hnsw") }

func BenchmarkHashEmbedder_Embed(b *testing.B) {
	e := embedding.NewHashEmbedder(384)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "benchmark query text for embedding")
	}
}

func BenchmarkSplitter_Split(b *testing.B) {
	s, err := ingest.NewSplitter(1000, 200)
	if err != nil {
		b.Fatal(err)
	}
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&sb, "Paragraph %d talks about settlement windows and fee schedules.\n\n", i)
	}
	text := sb.String()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.Split(text)
	}
}

func BenchmarkStore_Search(b *testing.B) {
	store, err := vectorstore.Open(b.TempDir(), embedding.NewHashEmbedder(384))
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()
	chunks := make([]string, 1000)
	for i := range chunks {
		chunks[i] = fmt.Sprintf("chunk %d about fee schedule revision %d", i, i%13)
	}
	if err := store.Add(ctx, chunks, "bench.txt"); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.Search(ctx, "fee schedule revision 7", 3)
	}
}
