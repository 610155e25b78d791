package vector

import "fmt"

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeFlat scans every vector. Exact; fine up to tens of thousands of chunks.
	IndexTypeFlat IndexType = "flat"
	// IndexTypeHNSW uses a hierarchical proximity graph. Approximate.
	IndexTypeHNSW IndexType = "hnsw"
	// IndexTypeFAISS uses the FAISS IndexFlatL2. Requires -tags=faiss and the FAISS C library.
	IndexTypeFAISS IndexType = "faiss"
)

// Options tunes the HNSW index. Zero values take defaults.
type Options struct {
	M              int
	EfConstruction int
	EfSearch       int
	Seed           int64
}

// NewIndex creates a vector index of the specified type.
// Supported types: "flat" (default), "hnsw", "faiss".
func NewIndex(indexType string, dimensions int, opts Options) (Index, error) {
	switch IndexType(indexType) {
	case IndexTypeFlat, "":
		return NewFlatIndex(dimensions)
	case IndexTypeHNSW:
		return NewHNSWIndex(dimensions, opts)
	case IndexTypeFAISS:
		return NewFAISSIndex(dimensions)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: flat, hnsw, faiss)", indexType)
	}
}

// IsFAISSAvailable returns true if FAISS support is compiled in.
func IsFAISSAvailable() bool {
	idx, err := NewFAISSIndex(1)
	if err != nil {
		return false
	}
	_ = idx.Close()
	return true
}
