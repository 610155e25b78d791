package vector

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/hyperjump/kotae/pkg/utils"
)

// FlatIndex is an exact index: every search scans all vectors.
type FlatIndex struct {
	dimensions int
	vectors    [][]float32
	mu         sync.RWMutex
}

// NewFlatIndex creates an empty exact index with the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &FlatIndex{dimensions: dimensions}, nil
}

// Type returns the index type identifier.
func (f *FlatIndex) Type() string {
	return string(IndexTypeFlat)
}

// Add appends vectors. Nothing is added if any vector has the wrong dimension.
func (f *FlatIndex) Add(ctx context.Context, vectors [][]float32) error {
	if err := checkDimensions(vectors, f.dimensions); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range vectors {
		vec := make([]float32, f.dimensions)
		copy(vec, v)
		f.vectors = append(f.vectors, vec)
	}
	return nil
}

// Search returns the k nearest vectors by squared L2 distance. Ties go to the lower slot.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), f.dimensions)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if k <= 0 || len(f.vectors) == 0 {
		return nil, nil
	}
	hits := make([]Neighbor, len(f.vectors))
	for i, vec := range f.vectors {
		hits[i] = Neighbor{Slot: i, Distance: utils.SquaredL2(query, vec)}
	}
	sortNeighbors(hits)
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Truncate drops vectors with slot >= n.
func (f *FlatIndex) Truncate(n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n < 0 || n > len(f.vectors) {
		return fmt.Errorf("truncate to %d out of range [0, %d]", n, len(f.vectors))
	}
	for i := n; i < len(f.vectors); i++ {
		f.vectors[i] = nil
	}
	f.vectors = f.vectors[:n]
	return nil
}

// Encode writes all vectors.
func (f *FlatIndex) Encode(w io.Writer) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return encodeVectors(w, f.dimensions, f.vectors)
}

// Decode replaces the contents. On error the index is unchanged.
func (f *FlatIndex) Decode(r io.Reader) error {
	vectors, err := decodeVectors(r, f.dimensions)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors = vectors
	return nil
}

// Size returns the number of vectors in the index.
func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Dimensions returns the vector dimension.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}

// Close is a no-op for FlatIndex.
func (f *FlatIndex) Close() error {
	return nil
}

func checkDimensions(vectors [][]float32, dimensions int) error {
	for i, v := range vectors {
		if len(v) != dimensions {
			return fmt.Errorf("vector %d dimension mismatch: got %d, expected %d", i, len(v), dimensions)
		}
	}
	return nil
}

func sortNeighbors(hits []Neighbor) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Slot < hits[j].Slot
	})
}
