// Package vector provides positional vector indexes searched by squared L2 distance.
//
// Vectors are addressed by slot: the Nth vector added has slot N. Callers keep any
// per-vector metadata in a parallel slice indexed by the same slot.
package vector

import (
	"context"
	"io"
)

// Index stores fixed-dimension vectors in insertion order and answers k-nearest-neighbour queries.
type Index interface {
	// Add appends vectors; the first one gets slot Size().
	Add(ctx context.Context, vectors [][]float32) error
	// Search returns up to k neighbours ordered nearest first.
	Search(ctx context.Context, query []float32, k int) ([]Neighbor, error)
	// Truncate drops every vector with slot >= n.
	Truncate(n int) error
	Size() int
	Dimensions() int
	Type() string
	// Encode writes the vectors in the shared binary layout (see codec.go).
	Encode(w io.Writer) error
	// Decode replaces the contents with vectors read from r.
	Decode(r io.Reader) error
	Close() error
}

// Neighbor is a single search hit.
type Neighbor struct {
	Slot     int
	Distance float32 // squared L2
}
